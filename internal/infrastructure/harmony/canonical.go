package harmony

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// CanonicalJSON serializa v en la forma canónica que exige la firma: claves de
// objeto ordenadas alfabéticamente y sin espacios. Se logra re-serializando a
// través de mapas (encoding/json ordena las claves de los mapas) con UseNumber
// para no perder precisión numérica. Los bytes devueltos son EXACTAMENTE los
// que se firman y los que viajan como cuerpo.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	canonical, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("re-marshal canónico: %w", err)
	}
	return canonical, nil
}

// SignPayload firma el cuerpo canónico: base64(HMAC-SHA256(secret, payload)).
func SignPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
