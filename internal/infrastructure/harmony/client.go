package harmony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Fiscal-Harmony/odoov19/internal/domain"
	"github.com/Fiscal-Harmony/odoov19/pkg/logger"
)

// Headers que identifican a la aplicación ante la API Fiscal Harmony.
const (
	headerAPIKey     = "X-Api-Key"
	headerApp        = "X-Application"
	headerAppStation = "X-App-Station"
	headerSignature  = "X-Api-Signature"

	applicationName = "FH_Quickbooks"
)

// Options parámetros de transporte del cliente.
type Options struct {
	Timeout         time.Duration // timeout por petición (default 30s)
	PostSubmitDelay time.Duration // espera antes del poll de /status (default 6s)
}

// Client cliente firmado contra la API Fiscal Harmony. Una instancia por
// configuración fiscal (credenciales por bodega). Los reintentos NO viven
// aquí: la política de reintentos es del orquestador de envíos.
type Client struct {
	http            *resty.Client
	apiKey          string
	apiSecret       string
	postSubmitDelay time.Duration
	log             *logger.Logger
}

// NewClient construye el cliente para las credenciales dadas.
func NewClient(apiURL, apiKey, apiSecret string, opts Options, log *logger.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	delay := opts.PostSubmitDelay
	if delay <= 0 {
		delay = 6 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(apiURL, "/")).
		SetTimeout(timeout)

	return &Client{
		http:            httpClient,
		apiKey:          apiKey,
		apiSecret:       apiSecret,
		postSubmitDelay: delay,
		log:             log,
	}
}

// SubmitDocument envía el payload a route (/invoice o /creditnote), espera el
// delay de procesamiento y consulta /status con el token devuelto. Devuelve el
// primer resultado junto con el rastro del intercambio para el log de envíos.
// El Exchange se devuelve también en caso de error cuando hubo intercambio.
func (c *Client) SubmitDocument(ctx context.Context, route string, payload any) (*StatusResult, *Exchange, error) {
	start := time.Now()

	body, err := CanonicalJSON(payload)
	if err != nil {
		return nil, nil, &domain.NetworkError{Kind: domain.NetworkMalformedResponse, Op: route, Err: err}
	}
	exchange := &Exchange{RequestBody: string(body)}

	resp, err := c.signedPost(ctx, route, body)
	if resp != nil {
		exchange.StatusCode = resp.StatusCode()
		exchange.ResponseBody = resp.String()
	}
	exchange.Duration = time.Since(start)
	if err != nil {
		return nil, exchange, err
	}

	token := parseToken(resp.String())
	if token == "" {
		return nil, exchange, &domain.NetworkError{
			Kind: domain.NetworkMalformedResponse, Op: route,
			StatusCode: resp.StatusCode(), Err: errors.New("respuesta sin token de transacción"),
		}
	}

	c.log.Info().Str("route", route).Str("token", token).Msg("documento aceptado para procesamiento")

	// La autoridad procesa en asíncrono: espera fija antes de consultar estado.
	select {
	case <-time.After(c.postSubmitDelay):
	case <-ctx.Done():
		exchange.Duration = time.Since(start)
		return nil, exchange, &domain.NetworkError{Kind: domain.NetworkTimeout, Op: route, Err: ctx.Err()}
	}

	results, statusResp, err := c.CheckStatus(ctx, []string{token})
	if statusResp != nil {
		exchange.StatusCode = statusResp.StatusCode()
		exchange.ResponseBody = statusResp.String()
	}
	exchange.Duration = time.Since(start)
	if err != nil {
		return nil, exchange, err
	}
	if len(results) == 0 {
		return nil, exchange, &domain.NetworkError{
			Kind: domain.NetworkMalformedResponse, Op: "/status",
			StatusCode: exchange.StatusCode, Err: errors.New("respuesta de estado vacía"),
		}
	}
	return &results[0], exchange, nil
}

// CheckStatus consulta POST /status con la lista de tokens pendientes.
func (c *Client) CheckStatus(ctx context.Context, tokens []string) ([]StatusResult, *resty.Response, error) {
	body, err := CanonicalJSON(tokens)
	if err != nil {
		return nil, nil, &domain.NetworkError{Kind: domain.NetworkMalformedResponse, Op: "/status", Err: err}
	}

	resp, err := c.signedPost(ctx, "/status", body)
	if err != nil {
		return nil, resp, err
	}

	var results []StatusResult
	if err := json.Unmarshal(resp.Body(), &results); err != nil {
		return nil, resp, &domain.NetworkError{
			Kind: domain.NetworkMalformedResponse, Op: "/status",
			StatusCode: resp.StatusCode(), Err: err,
		}
	}
	return results, resp, nil
}

// FetchProfile consulta GET /profile (prueba de conectividad y UserId).
func (c *Client) FetchProfile(ctx context.Context) (*Profile, error) {
	resp, err := c.get(ctx, "/profile")
	if err != nil {
		return nil, err
	}
	var profile Profile
	if err := json.Unmarshal(resp.Body(), &profile); err != nil {
		return nil, &domain.NetworkError{
			Kind: domain.NetworkMalformedResponse, Op: "/profile",
			StatusCode: resp.StatusCode(), Err: err,
		}
	}
	return &profile, nil
}

// FetchDeviceTaxes consulta GET /fiscaldevice y extrae los impuestos
// aplicables del CurrentConfig (JSON anidado en string).
func (c *Client) FetchDeviceTaxes(ctx context.Context) ([]DeviceTax, error) {
	resp, err := c.get(ctx, "/fiscaldevice")
	if err != nil {
		return nil, err
	}

	var device deviceResponse
	if err := json.Unmarshal(resp.Body(), &device); err != nil {
		return nil, &domain.NetworkError{
			Kind: domain.NetworkMalformedResponse, Op: "/fiscaldevice",
			StatusCode: resp.StatusCode(), Err: err,
		}
	}

	var cfg deviceConfig
	if device.CurrentConfig != "" {
		if err := json.Unmarshal([]byte(device.CurrentConfig), &cfg); err != nil {
			return nil, &domain.NetworkError{
				Kind: domain.NetworkMalformedResponse, Op: "/fiscaldevice",
				StatusCode: resp.StatusCode(), Err: fmt.Errorf("CurrentConfig anidado: %w", err),
			}
		}
	}

	taxes := make([]DeviceTax, 0, len(cfg.ApplicableTaxes))
	for _, t := range cfg.ApplicableTaxes {
		if t.TaxID == 0 || t.TaxName == "" {
			c.log.Warn().Int("tax_id", t.TaxID).Str("tax_name", t.TaxName).Msg("impuesto del dispositivo incompleto, omitido")
			continue
		}
		taxes = append(taxes, t)
	}
	return taxes, nil
}

// DownloadPDF descarga el PDF fiscal por su referencia (GET /download/{ref}).
func (c *Client) DownloadPDF(ctx context.Context, ref string) ([]byte, error) {
	resp, err := c.get(ctx, "/download/"+ref)
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// PushTaxMapping publica un mapeo de impuesto en la autoridad.
func (c *Client) PushTaxMapping(ctx context.Context, p TaxMappingPush) error {
	return c.push(ctx, "/taxmapping", p)
}

// PushCurrencyMapping publica un mapeo de moneda en la autoridad.
func (c *Client) PushCurrencyMapping(ctx context.Context, p CurrencyMappingPush) error {
	return c.push(ctx, "/currencymapping", p)
}

func (c *Client) push(ctx context.Context, route string, payload any) error {
	body, err := CanonicalJSON(payload)
	if err != nil {
		return &domain.NetworkError{Kind: domain.NetworkMalformedResponse, Op: route, Err: err}
	}
	_, err = c.signedPost(ctx, route, body)
	return err
}

// signedPost envía body (ya canónico) firmado. El cuerpo que viaja es byte a
// byte el mismo que se firmó.
func (c *Client) signedPost(ctx context.Context, route string, body []byte) (*resty.Response, error) {
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(headerAPIKey, c.apiKey).
		SetHeader(headerApp, applicationName).
		SetHeader(headerAppStation, "").
		SetHeader(headerSignature, SignPayload(c.apiSecret, body)).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(route)

	c.logExchange("POST", route, resp, start, err)

	if err != nil {
		return resp, c.classifyTransport(route, err)
	}
	if resp.IsError() {
		return resp, c.classifyHTTP(route, resp)
	}
	return resp, nil
}

// get petición GET autenticada solo con el API key (sin firma).
func (c *Client) get(ctx context.Context, route string) (*resty.Response, error) {
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(headerAPIKey, c.apiKey).
		Get(route)

	c.logExchange("GET", route, resp, start, err)

	if err != nil {
		return resp, c.classifyTransport(route, err)
	}
	if resp.IsError() {
		return resp, c.classifyHTTP(route, resp)
	}
	return resp, nil
}

func (c *Client) logExchange(method, route string, resp *resty.Response, start time.Time, err error) {
	evt := c.log.Info()
	if err != nil || (resp != nil && resp.IsError()) {
		evt = c.log.Error()
	}
	evt = evt.Str("method", method).Str("route", route).Dur("duration", time.Since(start))
	if resp != nil {
		evt = evt.Int("status", resp.StatusCode()).Str("body", truncate(resp.String(), 512))
	}
	if err != nil {
		evt = evt.Err(err)
	}
	evt.Msg("intercambio con Fiscal Harmony")
}

func (c *Client) classifyTransport(route string, err error) *domain.NetworkError {
	kind := domain.NetworkConnectionFailure
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = domain.NetworkTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = domain.NetworkTimeout
	}
	return &domain.NetworkError{Kind: kind, Op: route, Err: err}
}

func (c *Client) classifyHTTP(route string, resp *resty.Response) *domain.NetworkError {
	kind := domain.NetworkHTTPError
	if resp.StatusCode() == http.StatusUnauthorized {
		kind = domain.NetworkUnauthorized
	}
	return &domain.NetworkError{
		Kind: kind, Op: route, StatusCode: resp.StatusCode(),
		Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode(), truncate(resp.String(), 256)),
	}
}

// parseToken extrae el token de transacción del cuerpo plano devuelto por
// /invoice y /creditnote (a veces llega como string JSON entre comillas).
func parseToken(body string) string {
	token := strings.TrimSpace(body)
	if strings.HasPrefix(token, `"`) {
		var s string
		if err := json.Unmarshal([]byte(token), &s); err == nil {
			token = s
		}
	}
	return strings.TrimSpace(token)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
