package harmony

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fiscal-Harmony/odoov19/internal/domain"
	"github.com/Fiscal-Harmony/odoov19/pkg/logger"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "clave-api", "clave-secreta", Options{
		Timeout:         5 * time.Second,
		PostSubmitDelay: time.Millisecond,
	}, logger.New(logger.Config{Env: "production", Level: "error"}))
}

func TestSubmitDocument_Exito(t *testing.T) {
	var submitBody []byte
	mux := http.NewServeMux()
	mux.HandleFunc("/invoice", func(w http.ResponseWriter, r *http.Request) {
		submitBody, _ = io.ReadAll(r.Body)
		assert.Equal(t, "clave-api", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "FH_Quickbooks", r.Header.Get("X-Application"))
		assert.Equal(t, SignPayload("clave-secreta", submitBody), r.Header.Get("X-Api-Signature"))
		_, _ = w.Write([]byte("tok-123"))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `["tok-123"]`, string(body))
		_, _ = w.Write([]byte(`[{"Error":"","FiscalDay":22,"InvoiceNumber":"77","QrData":{"QrCodeUrl":"https://qr","VerificationCode":"ABCD"},"FiscalInvoicePdf":"ref-pdf"}]`))
	})

	client := newTestClient(t, mux)
	result, exchange, err := client.SubmitDocument(context.Background(), "/invoice", map[string]string{"Reference": "INV/001"})

	require.NoError(t, err)
	assert.True(t, result.Succeeded())
	assert.Equal(t, "22", result.EffectiveFiscalDay())
	assert.Equal(t, "77", result.EffectiveInvoiceNumber())
	assert.Equal(t, "ref-pdf", result.FiscalInvoicePdf)

	require.NotNil(t, exchange)
	assert.Equal(t, `{"Reference":"INV/001"}`, exchange.RequestBody)
	assert.Equal(t, string(submitBody), exchange.RequestBody, "el cuerpo firmado debe ser el que viaja")
	assert.Equal(t, http.StatusOK, exchange.StatusCode)
}

func TestSubmitDocument_ErrorDeLaAutoridad(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/invoice", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`"tok-456"`))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"Error":"Customer TIN is invalid"}]`))
	})

	client := newTestClient(t, mux)
	result, _, err := client.SubmitDocument(context.Background(), "/invoice", map[string]string{"Reference": "INV/002"})

	require.NoError(t, err)
	assert.False(t, result.Succeeded())
	assert.Equal(t, "Customer TIN is invalid", result.Error)
}

func TestSubmitDocument_NoAutorizado(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))

	_, exchange, err := client.SubmitDocument(context.Background(), "/invoice", map[string]string{"Reference": "INV/003"})

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, domain.NetworkUnauthorized, netErr.Kind)
	assert.False(t, netErr.Retryable())
	require.NotNil(t, exchange)
	assert.Equal(t, http.StatusUnauthorized, exchange.StatusCode)
}

func TestSubmitDocument_RespuestaSinToken(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("   "))
	}))

	_, _, err := client.SubmitDocument(context.Background(), "/invoice", map[string]string{"Reference": "INV/004"})

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, domain.NetworkMalformedResponse, netErr.Kind)
}

func TestSubmitDocument_EstadoVacio(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/invoice", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tok-789"))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	client := newTestClient(t, mux)
	_, _, err := client.SubmitDocument(context.Background(), "/invoice", map[string]string{"Reference": "INV/005"})

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, domain.NetworkMalformedResponse, netErr.Kind)
}

func TestSubmitDocument_ContextoCancelado(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/invoice", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tok-ctx"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, "clave-api", "clave-secreta", Options{
		Timeout:         5 * time.Second,
		PostSubmitDelay: time.Minute,
	}, logger.New(logger.Config{Env: "production", Level: "error"}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, _, err := client.SubmitDocument(ctx, "/invoice", map[string]string{"Reference": "INV/006"})

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, domain.NetworkTimeout, netErr.Kind)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCheckStatus_RespuestaMalformada(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>mantenimiento</html>"))
	}))

	_, _, err := client.CheckStatus(context.Background(), []string{"tok"})

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, domain.NetworkMalformedResponse, netErr.Kind)
	assert.True(t, netErr.Retryable())
}

func TestFetchProfile(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "clave-api", r.Header.Get("X-Api-Key"))
		assert.Empty(t, r.Header.Get("X-Api-Signature"), "los GET no se firman")
		_, _ = w.Write([]byte(`{"Id":321,"FullName":"Tienda Central"}`))
	}))

	profile, err := client.FetchProfile(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "321", profile.ID.String())
	assert.Equal(t, "Tienda Central", profile.FullName)
}

func TestFetchDeviceTaxes_ConfigAnidada(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"CurrentConfig":"{\"applicableTaxes\":[{\"taxID\":1,\"taxName\":\"Standard rated 15%\"},{\"taxID\":3,\"taxName\":\"Exempt\"},{\"taxID\":0,\"taxName\":\"\"}]}"}`))
	}))

	taxes, err := client.FetchDeviceTaxes(context.Background())

	require.NoError(t, err)
	require.Len(t, taxes, 2, "los impuestos incompletos se omiten")
	assert.Equal(t, 1, taxes[0].TaxID)
	assert.Equal(t, "Standard rated 15%", taxes[0].TaxName)
	assert.Equal(t, 3, taxes[1].TaxID)
}

func TestFetchDeviceTaxes_SinConfig(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"CurrentConfig":""}`))
	}))

	taxes, err := client.FetchDeviceTaxes(context.Background())

	require.NoError(t, err)
	assert.Empty(t, taxes)
}

func TestDownloadPDF(t *testing.T) {
	pdf := []byte("%PDF-1.4 contenido")
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/download/ref-pdf", r.URL.Path)
		_, _ = w.Write(pdf)
	}))

	got, err := client.DownloadPDF(context.Background(), "ref-pdf")

	require.NoError(t, err)
	assert.Equal(t, pdf, got)
}

func TestPushTaxMapping(t *testing.T) {
	var body []byte
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/taxmapping", r.URL.Path)
		body, _ = io.ReadAll(r.Body)
		assert.Equal(t, SignPayload("clave-secreta", body), r.Header.Get("X-Api-Signature"))
		w.WriteHeader(http.StatusOK)
	}))

	err := client.PushTaxMapping(context.Background(), TaxMappingPush{
		UserID: 321, TaxCode: "IVA15", TaxName: "Standard rated 15%", DestinationTaxID: 1,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"DestinationTaxId":1,"TaxCode":"IVA15","TaxName":"Standard rated 15%","UserId":321}`, string(body))
}

func TestParseToken(t *testing.T) {
	assert.Equal(t, "tok", parseToken("tok"))
	assert.Equal(t, "tok", parseToken("  tok\n"))
	assert.Equal(t, "tok", parseToken(`"tok"`))
	assert.Equal(t, "", parseToken("   "))
}

func TestConexionRechazada(t *testing.T) {
	// Puerto sin listener: fallo de conexión inmediato.
	client := NewClient("http://127.0.0.1:1", "clave-api", "clave-secreta", Options{
		Timeout: time.Second,
	}, logger.New(logger.Config{Env: "production", Level: "error"}))

	_, err := client.FetchProfile(context.Background())

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, domain.NetworkConnectionFailure, netErr.Kind)
	assert.True(t, netErr.Retryable())
}
