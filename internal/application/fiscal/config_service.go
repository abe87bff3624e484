package fiscal

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"

	"github.com/Fiscal-Harmony/odoov19/internal/domain"
	"github.com/Fiscal-Harmony/odoov19/internal/domain/entity"
	"github.com/Fiscal-Harmony/odoov19/internal/domain/repository"
	"github.com/Fiscal-Harmony/odoov19/internal/infrastructure/harmony"
	"github.com/Fiscal-Harmony/odoov19/pkg/logger"
	"github.com/Fiscal-Harmony/odoov19/pkg/zimra"
)

// ConfigService gestiona configuraciones fiscales y sus mapeos: alta, prueba
// de conexión, sincronización de impuestos del dispositivo y publicación de
// mapeos en la autoridad.
type ConfigService struct {
	configRepo   repository.FiscalConfigRepository
	taxRepo      repository.TaxMappingRepository
	currencyRepo repository.CurrencyMappingRepository
	txRunner     TaxSyncTxRunner
	clients      ClientFactory
	log          *logger.Logger
}

// NewConfigService construye el servicio.
func NewConfigService(
	configRepo repository.FiscalConfigRepository,
	taxRepo repository.TaxMappingRepository,
	currencyRepo repository.CurrencyMappingRepository,
	txRunner TaxSyncTxRunner,
	clients ClientFactory,
	log *logger.Logger,
) *ConfigService {
	return &ConfigService{
		configRepo:   configRepo,
		taxRepo:      taxRepo,
		currencyRepo: currencyRepo,
		txRunner:     txRunner,
		clients:      clients,
		log:          log,
	}
}

// Create da de alta una configuración fiscal. A lo sumo una activa por bodega
// (lo garantiza un índice parcial; la violación llega como ErrConflict).
func (s *ConfigService) Create(ctx context.Context, cfg *entity.FiscalConfig) error {
	if cfg.Name == "" || cfg.WarehouseID == "" {
		return fmt.Errorf("%w: nombre y bodega son obligatorios", domain.ErrInvalidInput)
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return fmt.Errorf("%w: API key y secret son obligatorios", domain.ErrInvalidInput)
	}
	return s.configRepo.Create(ctx, cfg)
}

// Get devuelve una configuración por ID.
func (s *ConfigService) Get(ctx context.Context, id string) (*entity.FiscalConfig, error) {
	return s.configRepo.GetByID(ctx, id)
}

// List devuelve todas las configuraciones.
func (s *ConfigService) List(ctx context.Context) ([]*entity.FiscalConfig, error) {
	return s.configRepo.List(ctx)
}

// Update persiste cambios de una configuración existente.
func (s *ConfigService) Update(ctx context.Context, cfg *entity.FiscalConfig) error {
	return s.configRepo.Update(ctx, cfg)
}

// TestConnection verifica las credenciales contra /profile y guarda el UserId
// de la autoridad en la configuración (se necesita para publicar mapeos).
func (s *ConfigService) TestConnection(ctx context.Context, configID string) (*harmony.Profile, error) {
	cfg, err := s.configRepo.GetByID(ctx, configID)
	if err != nil {
		return nil, err
	}

	profile, err := s.clients(cfg).FetchProfile(ctx)
	if err != nil {
		return nil, err
	}

	if profile.ID.String() != "" && profile.ID.String() != cfg.HarmonyUserID {
		cfg.HarmonyUserID = profile.ID.String()
		if uErr := s.configRepo.Update(ctx, cfg); uErr != nil {
			s.log.Error().Err(uErr).Str("config_id", cfg.ID).Msg("no se pudo guardar el UserId de la autoridad")
		}
	}
	return profile, nil
}

// SyncDeviceTaxes reemplaza los mapeos de impuestos de la configuración con los
// impuestos aplicables del dispositivo fiscal. Los enlaces a impuestos locales
// ya hechos se conservan por tipo canónico. Todo el replace es atómico.
func (s *ConfigService) SyncDeviceTaxes(ctx context.Context, configID string) (int, error) {
	cfg, err := s.configRepo.GetByID(ctx, configID)
	if err != nil {
		return 0, err
	}

	deviceTaxes, err := s.clients(cfg).FetchDeviceTaxes(ctx)
	if err != nil {
		return 0, err
	}
	if len(deviceTaxes) == 0 {
		return 0, fmt.Errorf("%w: el dispositivo no reporta impuestos aplicables", domain.ErrInvalidInput)
	}

	// Enlaces locales existentes, indexados por tipo canónico.
	existing, err := s.taxRepo.ListByConfig(ctx, configID)
	if err != nil {
		return 0, err
	}
	localByType := make(map[string]*entity.TaxMapping, len(existing))
	for _, m := range existing {
		if m.LocalTaxID != "" {
			localByType[m.TaxType] = m
		}
	}

	mappings := make([]*entity.TaxMapping, 0, len(deviceTaxes))
	for _, dt := range deviceTaxes {
		mappings = append(mappings, buildDeviceMapping(configID, dt, localByType))
	}

	err = s.txRunner.RunTaxSync(ctx, func(taxRepo repository.TaxMappingRepository) error {
		if err := taxRepo.DeleteByConfig(ctx, configID); err != nil {
			return err
		}
		for _, m := range mappings {
			if err := taxRepo.Create(ctx, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	syncedAt := time.Now()
	cfg.TaxesSyncedAt = &syncedAt
	if uErr := s.configRepo.Update(ctx, cfg); uErr != nil {
		s.log.ConfigID(cfg.ID).Warn().Err(uErr).Msg("no se pudo guardar la fecha de sincronización")
	}

	s.log.ConfigID(configID).Info().Int("count", len(mappings)).Msg("impuestos del dispositivo sincronizados")
	return len(mappings), nil
}

// buildDeviceMapping arma el mapeo a partir de un impuesto del dispositivo,
// conservando el enlace local previo del mismo tipo si existía.
func buildDeviceMapping(configID string, dt harmony.DeviceTax, localByType map[string]*entity.TaxMapping) *entity.TaxMapping {
	taxType := zimra.NormalizeTaxType(dt.TaxName)

	rate := 0.0
	if info, ok := zimra.DefaultTaxCatalog[taxType]; ok {
		rate = info.Rate
	}
	if r, ok := zimra.ExtractRateFromName(dt.TaxName); ok {
		rate = r
	}

	m := &entity.TaxMapping{
		ConfigID:    configID,
		TaxCode:     strconv.Itoa(dt.TaxID),
		TaxName:     dt.TaxName,
		TaxRate:     decimal.NewFromFloat(rate),
		TaxType:     taxType,
		Description: "sincronizado del dispositivo fiscal",
		Active:      true,
	}
	if prev, ok := localByType[taxType]; ok {
		m.LocalTaxID = prev.LocalTaxID
		m.LocalTaxName = prev.LocalTaxName
	}
	return m
}

// BindLocalTax enlaza un impuesto local del host con un mapeo del dispositivo
// y publica el enlace en la autoridad.
func (s *ConfigService) BindLocalTax(ctx context.Context, configID, mappingID, localTaxID, localTaxName string) error {
	cfg, err := s.configRepo.GetByID(ctx, configID)
	if err != nil {
		return err
	}

	mappings, err := s.taxRepo.ListByConfig(ctx, configID)
	if err != nil {
		return err
	}
	var target *entity.TaxMapping
	for _, m := range mappings {
		if m.ID == mappingID {
			target = m
			break
		}
	}
	if target == nil {
		return domain.ErrNotFound
	}

	target.LocalTaxID = localTaxID
	target.LocalTaxName = localTaxName
	err = s.txRunner.RunTaxSync(ctx, func(taxRepo repository.TaxMappingRepository) error {
		if err := taxRepo.DeleteByConfig(ctx, configID); err != nil {
			return err
		}
		for _, m := range mappings {
			if err := taxRepo.Create(ctx, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.pushTaxMapping(ctx, cfg, target)
}

// CreateTaxMapping da de alta un mapeo de impuesto manual (sin pasar por el
// sync del dispositivo) y, si enlaza un impuesto local, lo publica en la
// autoridad. El tipo canónico y la tasa se derivan del nombre si faltan.
func (s *ConfigService) CreateTaxMapping(ctx context.Context, m *entity.TaxMapping) error {
	if m.TaxCode == "" || m.TaxName == "" {
		return fmt.Errorf("%w: TaxCode y TaxName son obligatorios", domain.ErrInvalidInput)
	}
	cfg, err := s.configRepo.GetByID(ctx, m.ConfigID)
	if err != nil {
		return err
	}

	if m.TaxType == "" {
		m.TaxType = zimra.NormalizeTaxType(m.TaxName)
	}
	if m.TaxRate.IsZero() {
		if r, ok := zimra.ExtractRateFromName(m.TaxName); ok {
			m.TaxRate = decimal.NewFromFloat(r)
		}
	}
	m.Active = true
	if err := s.taxRepo.Create(ctx, m); err != nil {
		return err
	}

	if m.LocalTaxID == "" {
		return nil
	}
	return s.pushTaxMapping(ctx, cfg, m)
}

// CreateCurrencyMapping da de alta un mapeo de moneda y lo publica en la autoridad.
func (s *ConfigService) CreateCurrencyMapping(ctx context.Context, m *entity.CurrencyMapping) error {
	if m.LocalCurrencyCode == "" || m.ZimraCurrencyCode == "" {
		return fmt.Errorf("%w: moneda local y moneda ZIMRA son obligatorias", domain.ErrInvalidInput)
	}
	cfg, err := s.configRepo.GetByID(ctx, m.ConfigID)
	if err != nil {
		return err
	}
	m.Active = true
	if err := s.currencyRepo.Create(ctx, m); err != nil {
		return err
	}

	userID, err := s.authorityUserID(ctx, cfg)
	if err != nil {
		s.log.Warn().Err(err).Str("config_id", cfg.ID).Msg("mapeo de moneda creado sin publicar en la autoridad")
		return nil
	}
	if err := s.clients(cfg).PushCurrencyMapping(ctx, harmony.CurrencyMappingPush{
		UserID:              userID,
		SourceCurrency:      m.LocalCurrencyCode,
		DestinationCurrency: m.ZimraCurrencyCode,
	}); err != nil {
		s.log.Warn().Err(err).Str("config_id", cfg.ID).Msg("no se pudo publicar el mapeo de moneda")
	}
	return nil
}

// ListTaxMappings devuelve los mapeos de impuestos de la configuración.
func (s *ConfigService) ListTaxMappings(ctx context.Context, configID string) ([]*entity.TaxMapping, error) {
	return s.taxRepo.ListByConfig(ctx, configID)
}

// ListCurrencyMappings devuelve los mapeos de moneda de la configuración.
func (s *ConfigService) ListCurrencyMappings(ctx context.Context, configID string) ([]*entity.CurrencyMapping, error) {
	return s.currencyRepo.ListByConfig(ctx, configID)
}

// SyncAutoConfigs sincroniza los impuestos del dispositivo de todas las
// configuraciones con sincronización periódica habilitada. Un fallo en una
// configuración no corta el barrido.
func (s *ConfigService) SyncAutoConfigs(ctx context.Context) error {
	configs, err := s.configRepo.ListAutoSync(ctx)
	if err != nil {
		return err
	}

	var result *multierror.Error
	for _, cfg := range configs {
		if _, err := s.SyncDeviceTaxes(ctx, cfg.ID); err != nil {
			result = multierror.Append(result, fmt.Errorf("config %s: %w", cfg.ID, err))
		}
	}
	return result.ErrorOrNil()
}

// ── helpers privados ──────────────────────────────────────────────────────────

func (s *ConfigService) pushTaxMapping(ctx context.Context, cfg *entity.FiscalConfig, m *entity.TaxMapping) error {
	userID, err := s.authorityUserID(ctx, cfg)
	if err != nil {
		s.log.Warn().Err(err).Str("config_id", cfg.ID).Msg("mapeo de impuesto enlazado sin publicar en la autoridad")
		return nil
	}
	destinationID, err := strconv.Atoi(m.TaxCode)
	if err != nil {
		return fmt.Errorf("%w: TaxCode %q no es numérico", domain.ErrInvalidInput, m.TaxCode)
	}
	if err := s.clients(cfg).PushTaxMapping(ctx, harmony.TaxMappingPush{
		UserID:           userID,
		TaxCode:          m.LocalTaxID,
		TaxName:          m.LocalTaxName,
		DestinationTaxID: destinationID,
	}); err != nil {
		s.log.Warn().Err(err).Str("config_id", cfg.ID).Msg("no se pudo publicar el mapeo de impuesto")
	}
	return nil
}

// authorityUserID devuelve el UserId de la autoridad, consultando /profile y
// cacheándolo en la configuración si aún no se conocía.
func (s *ConfigService) authorityUserID(ctx context.Context, cfg *entity.FiscalConfig) (int, error) {
	if cfg.HarmonyUserID == "" {
		profile, err := s.clients(cfg).FetchProfile(ctx)
		if err != nil {
			return 0, err
		}
		cfg.HarmonyUserID = profile.ID.String()
		if uErr := s.configRepo.Update(ctx, cfg); uErr != nil {
			s.log.Error().Err(uErr).Str("config_id", cfg.ID).Msg("no se pudo guardar el UserId de la autoridad")
		}
	}
	userID, err := strconv.Atoi(cfg.HarmonyUserID)
	if err != nil {
		return 0, fmt.Errorf("%w: UserId %q no es numérico", domain.ErrInvalidInput, cfg.HarmonyUserID)
	}
	return userID, nil
}
