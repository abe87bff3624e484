package fiscal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fiscal-Harmony/odoov19/internal/domain"
	"github.com/Fiscal-Harmony/odoov19/internal/domain/entity"
	"github.com/Fiscal-Harmony/odoov19/internal/infrastructure/harmony"
	"github.com/Fiscal-Harmony/odoov19/pkg/zimra"
)

type configFixture struct {
	service      *ConfigService
	configRepo   *fakeConfigRepo
	taxRepo      *fakeTaxRepo
	currencyRepo *fakeCurrencyRepo
	client       *fakeClient
}

func newConfigFixture(t *testing.T) *configFixture {
	t.Helper()
	f := &configFixture{
		configRepo:   newFakeConfigRepo(baseConfig()),
		taxRepo:      &fakeTaxRepo{},
		currencyRepo: &fakeCurrencyRepo{},
		client:       &fakeClient{},
	}
	f.service = NewConfigService(
		f.configRepo, f.taxRepo, f.currencyRepo,
		&fakeTxRunner{taxRepo: f.taxRepo},
		func(cfg *entity.FiscalConfig) HarmonyClient { return f.client },
		testLogger(),
	)
	return f
}

func TestConfigCreate_Validaciones(t *testing.T) {
	f := newConfigFixture(t)

	err := f.service.Create(context.Background(), &entity.FiscalConfig{Name: "sin bodega"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = f.service.Create(context.Background(), &entity.FiscalConfig{
		Name: "sin credenciales", WarehouseID: "wh-2",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = f.service.Create(context.Background(), &entity.FiscalConfig{
		ID: "cfg-2", Name: "completa", WarehouseID: "wh-2",
		APIKey: "k", APISecret: "s", Active: true,
	})
	assert.NoError(t, err)
}

func TestTestConnection_GuardaElUserID(t *testing.T) {
	f := newConfigFixture(t)

	profile, err := f.service.TestConnection(context.Background(), "cfg-1")
	require.NoError(t, err)
	assert.Equal(t, "Tienda Central", profile.FullName)

	cfg, err := f.configRepo.GetByID(context.Background(), "cfg-1")
	require.NoError(t, err)
	assert.Equal(t, "321", cfg.HarmonyUserID)
}

func TestSyncDeviceTaxes_ReemplazaYNormaliza(t *testing.T) {
	f := newConfigFixture(t)
	f.client.deviceTaxesFn = func(ctx context.Context) ([]harmony.DeviceTax, error) {
		return []harmony.DeviceTax{
			{TaxID: 1, TaxName: "Standard rated 15%"},
			{TaxID: 2, TaxName: "Zero rate"},
			{TaxID: 3, TaxName: "Exempt"},
		}, nil
	}

	// Mapeo viejo que debe desaparecer con el replace.
	require.NoError(t, f.taxRepo.Create(context.Background(), &entity.TaxMapping{
		ConfigID: "cfg-1", TaxCode: "99", TaxName: "viejo", TaxType: zimra.TaxTypeWithholding,
	}))

	count, err := f.service.SyncDeviceTaxes(context.Background(), "cfg-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	mappings, err := f.taxRepo.ListByConfig(context.Background(), "cfg-1")
	require.NoError(t, err)
	require.Len(t, mappings, 3)

	byCode := map[string]*entity.TaxMapping{}
	for _, m := range mappings {
		byCode[m.TaxCode] = m
	}
	assert.Equal(t, zimra.TaxTypeStandardRated, byCode["1"].TaxType)
	assert.True(t, byCode["1"].TaxRate.Equal(dec("15")))
	assert.Equal(t, zimra.TaxTypeZeroRated, byCode["2"].TaxType)
	assert.Equal(t, zimra.TaxTypeExempt, byCode["3"].TaxType)
	assert.NotContains(t, byCode, "99")
}

func TestSyncDeviceTaxes_ConservaEnlacesLocales(t *testing.T) {
	f := newConfigFixture(t)
	f.client.deviceTaxesFn = func(ctx context.Context) ([]harmony.DeviceTax, error) {
		return []harmony.DeviceTax{{TaxID: 1, TaxName: "Standard rated 15%"}}, nil
	}

	require.NoError(t, f.taxRepo.Create(context.Background(), &entity.TaxMapping{
		ConfigID: "cfg-1", TaxCode: "1", TaxName: "Standard rated 15%",
		TaxType: zimra.TaxTypeStandardRated,
		LocalTaxID: "tax-15", LocalTaxName: "IVA 15%",
	}))

	_, err := f.service.SyncDeviceTaxes(context.Background(), "cfg-1")
	require.NoError(t, err)

	mappings, _ := f.taxRepo.ListByConfig(context.Background(), "cfg-1")
	require.Len(t, mappings, 1)
	assert.Equal(t, "tax-15", mappings[0].LocalTaxID)
	assert.Equal(t, "IVA 15%", mappings[0].LocalTaxName)
}

func TestSyncDeviceTaxes_MarcaLaFechaDeSincronizacion(t *testing.T) {
	f := newConfigFixture(t)
	f.client.deviceTaxesFn = func(ctx context.Context) ([]harmony.DeviceTax, error) {
		return []harmony.DeviceTax{{TaxID: 1, TaxName: "Standard rated 15%"}}, nil
	}

	_, err := f.service.SyncDeviceTaxes(context.Background(), "cfg-1")
	require.NoError(t, err)

	cfg, err := f.configRepo.GetByID(context.Background(), "cfg-1")
	require.NoError(t, err)
	require.NotNil(t, cfg.TaxesSyncedAt)
}

func TestSyncDeviceTaxes_DispositivoSinImpuestos(t *testing.T) {
	f := newConfigFixture(t)
	f.client.deviceTaxesFn = func(ctx context.Context) ([]harmony.DeviceTax, error) {
		return nil, nil
	}

	_, err := f.service.SyncDeviceTaxes(context.Background(), "cfg-1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBindLocalTax_PublicaEnLaAutoridad(t *testing.T) {
	f := newConfigFixture(t)
	require.NoError(t, f.taxRepo.Create(context.Background(), &entity.TaxMapping{
		ID: "tm-std", ConfigID: "cfg-1", TaxCode: "1",
		TaxName: "Standard rated 15%", TaxType: zimra.TaxTypeStandardRated,
	}))

	err := f.service.BindLocalTax(context.Background(), "cfg-1", "tm-std", "tax-15", "IVA 15%")
	require.NoError(t, err)

	mappings, _ := f.taxRepo.ListByConfig(context.Background(), "cfg-1")
	require.Len(t, mappings, 1)
	assert.Equal(t, "tax-15", mappings[0].LocalTaxID)

	require.Len(t, f.client.pushedTaxes, 1)
	push := f.client.pushedTaxes[0]
	assert.Equal(t, 321, push.UserID, "el UserId sale de /profile")
	assert.Equal(t, "tax-15", push.TaxCode)
	assert.Equal(t, 1, push.DestinationTaxID)
}

func TestCreateTaxMapping_DerivaTipoYPublica(t *testing.T) {
	f := newConfigFixture(t)

	m := &entity.TaxMapping{
		ConfigID: "cfg-1", TaxCode: "1", TaxName: "Standard rated 15%",
		LocalTaxID: "tax-15", LocalTaxName: "IVA 15%",
	}
	require.NoError(t, f.service.CreateTaxMapping(context.Background(), m))

	assert.Equal(t, zimra.TaxTypeStandardRated, m.TaxType)
	assert.True(t, m.TaxRate.Equal(dec("15")))
	assert.True(t, m.Active)

	require.Len(t, f.client.pushedTaxes, 1)
	assert.Equal(t, "tax-15", f.client.pushedTaxes[0].TaxCode)
}

func TestCreateTaxMapping_SinEnlaceLocalNoPublica(t *testing.T) {
	f := newConfigFixture(t)

	m := &entity.TaxMapping{ConfigID: "cfg-1", TaxCode: "3", TaxName: "Exempt"}
	require.NoError(t, f.service.CreateTaxMapping(context.Background(), m))

	assert.Empty(t, f.client.pushedTaxes)

	err := f.service.CreateTaxMapping(context.Background(), &entity.TaxMapping{ConfigID: "cfg-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCreateCurrencyMapping_Publica(t *testing.T) {
	f := newConfigFixture(t)

	err := f.service.CreateCurrencyMapping(context.Background(), &entity.CurrencyMapping{
		ConfigID: "cfg-1", LocalCurrencyCode: "ZWG", ZimraCurrencyCode: "ZWG",
	})
	require.NoError(t, err)

	mappings, _ := f.currencyRepo.ListByConfig(context.Background(), "cfg-1")
	require.Len(t, mappings, 1)
	assert.True(t, mappings[0].Active)

	require.Len(t, f.client.pushedMonedas, 1)
	assert.Equal(t, "ZWG", f.client.pushedMonedas[0].SourceCurrency)
	assert.Equal(t, 321, f.client.pushedMonedas[0].UserID)
}

func TestSyncAutoConfigs(t *testing.T) {
	f := newConfigFixture(t)
	cfg, _ := f.configRepo.GetByID(context.Background(), "cfg-1")
	cfg.AutoSyncTaxes = true
	require.NoError(t, f.configRepo.Update(context.Background(), cfg))

	f.client.deviceTaxesFn = func(ctx context.Context) ([]harmony.DeviceTax, error) {
		return []harmony.DeviceTax{{TaxID: 3, TaxName: "Exempt"}}, nil
	}

	require.NoError(t, f.service.SyncAutoConfigs(context.Background()))

	mappings, _ := f.taxRepo.ListByConfig(context.Background(), "cfg-1")
	assert.Len(t, mappings, 1)
}
