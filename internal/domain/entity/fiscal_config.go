package entity

import "time"

// Límites y tiempos por defecto de la política de envío.
const (
	DefaultMaxManualRetries = 5
	DefaultMaxCronRetries   = 3
	DefaultTimeoutSecs      = 30
)

// FiscalConfig credenciales y política de un dispositivo fiscal (una por bodega activa).
type FiscalConfig struct {
	ID            string
	Name          string
	WarehouseID   string
	APIURL        string
	APIKey        string
	APISecret     string
	HarmonyUserID string // Id devuelto por /profile; se incluye en pushes de mapeos

	Active        bool
	AutoFiscalize bool // fiscalizar automáticamente al ingresar documentos pagados
	AutoSyncTaxes bool // sincronizar impuestos del dispositivo en el barrido periódico

	MaxManualRetries int // tope de reintentos manuales (default 5)
	MaxCronRetries   int // tope de reintentos del barrido automático (default 3)
	TimeoutSecs      int // timeout por petición a la autoridad, en segundos (default 30)

	LastSuccessAt *time.Time // último envío fiscalizado con esta configuración
	TaxesSyncedAt *time.Time // última sincronización de impuestos del dispositivo

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ManualRetryLimit devuelve el tope manual efectivo.
func (c *FiscalConfig) ManualRetryLimit() int {
	if c.MaxManualRetries <= 0 {
		return DefaultMaxManualRetries
	}
	return c.MaxManualRetries
}

// CronRetryLimit devuelve el tope del barrido efectivo.
func (c *FiscalConfig) CronRetryLimit() int {
	if c.MaxCronRetries <= 0 {
		return DefaultMaxCronRetries
	}
	return c.MaxCronRetries
}

// RequestTimeout devuelve el timeout efectivo por petición.
func (c *FiscalConfig) RequestTimeout() time.Duration {
	if c.TimeoutSecs <= 0 {
		return DefaultTimeoutSecs * time.Second
	}
	return time.Duration(c.TimeoutSecs) * time.Second
}
