package fiscal

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/Fiscal-Harmony/odoov19/internal/domain"
	"github.com/Fiscal-Harmony/odoov19/internal/domain/entity"
	"github.com/Fiscal-Harmony/odoov19/internal/domain/repository"
	"github.com/Fiscal-Harmony/odoov19/internal/infrastructure/harmony"
	"github.com/Fiscal-Harmony/odoov19/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Env: "production", Level: "error"})
}

// ── fakeDocRepo ───────────────────────────────────────────────────────────────

type fakeDocRepo struct {
	mu   sync.Mutex
	docs map[string]*entity.FiscalDocument
}

func newFakeDocRepo(docs ...*entity.FiscalDocument) *fakeDocRepo {
	r := &fakeDocRepo{docs: make(map[string]*entity.FiscalDocument)}
	for _, d := range docs {
		r.docs[d.ID] = d
	}
	return r
}

func (r *fakeDocRepo) Create(_ context.Context, doc *entity.FiscalDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.docs {
		if d.DocNumber == doc.DocNumber && d.WarehouseID == doc.WarehouseID {
			return domain.ErrDuplicate
		}
	}
	clone := *doc
	r.docs[doc.ID] = &clone
	return nil
}

func (r *fakeDocRepo) GetByID(_ context.Context, id string) (*entity.FiscalDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *d
	return &clone, nil
}

func (r *fakeDocRepo) Update(_ context.Context, doc *entity.FiscalDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.docs[doc.ID]
	if !ok {
		return domain.ErrNotFound
	}
	clone := *doc
	// El lease se maneja solo por Acquire/Release, como en la implementación real.
	clone.InFlight = stored.InFlight
	clone.LeasedAt = stored.LeasedAt
	r.docs[doc.ID] = &clone
	return nil
}

func (r *fakeDocRepo) FindFiscalizedByNumber(_ context.Context, docNumber, warehouseID, excludeID string) (*entity.FiscalDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.docs {
		if d.ID != excludeID && d.DocNumber == docNumber && d.WarehouseID == warehouseID &&
			d.FiscalStatus == entity.FiscalStatusFiscalized {
			clone := *d
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeDocRepo) AcquireLease(_ context.Context, id string, staleBefore time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if d.InFlight && d.LeasedAt != nil && d.LeasedAt.After(staleBefore) {
		return false, nil
	}
	now := time.Now()
	d.InFlight = true
	d.LeasedAt = &now
	return true, nil
}

func (r *fakeDocRepo) ReleaseLease(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.docs[id]; ok {
		d.InFlight = false
		d.LeasedAt = nil
	}
	return nil
}

func (r *fakeDocRepo) ListFailedForRetry(_ context.Context) ([]*entity.FiscalDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.FiscalDocument
	for _, d := range r.docs {
		if d.FiscalStatus == entity.FiscalStatusFailed && d.Finalized() {
			clone := *d
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeDocRepo) ListStaleSent(_ context.Context, staleBefore time.Time) ([]*entity.FiscalDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.FiscalDocument
	for _, d := range r.docs {
		if d.FiscalStatus == entity.FiscalStatusSent && d.InFlight &&
			d.LeasedAt != nil && d.LeasedAt.Before(staleBefore) {
			clone := *d
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeDocRepo) get(id string) *entity.FiscalDocument {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *r.docs[id]
	return &clone
}

// ── fakeConfigRepo ────────────────────────────────────────────────────────────

type fakeConfigRepo struct {
	mu      sync.Mutex
	configs map[string]*entity.FiscalConfig
}

func newFakeConfigRepo(configs ...*entity.FiscalConfig) *fakeConfigRepo {
	r := &fakeConfigRepo{configs: make(map[string]*entity.FiscalConfig)}
	for _, c := range configs {
		r.configs[c.ID] = c
	}
	return r
}

func (r *fakeConfigRepo) Create(_ context.Context, cfg *entity.FiscalConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.configs {
		if c.WarehouseID == cfg.WarehouseID && c.Active && cfg.Active {
			return domain.ErrConflict
		}
	}
	r.configs[cfg.ID] = cfg
	return nil
}

func (r *fakeConfigRepo) GetByID(_ context.Context, id string) (*entity.FiscalConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.configs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (r *fakeConfigRepo) GetActiveByWarehouse(_ context.Context, warehouseID string) (*entity.FiscalConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.configs {
		if c.WarehouseID == warehouseID && c.Active {
			clone := *c
			return &clone, nil
		}
	}
	return nil, domain.ErrConfigMissing
}

func (r *fakeConfigRepo) List(_ context.Context) ([]*entity.FiscalConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.FiscalConfig
	for _, c := range r.configs {
		clone := *c
		out = append(out, &clone)
	}
	return out, nil
}

func (r *fakeConfigRepo) ListAutoSync(_ context.Context) ([]*entity.FiscalConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.FiscalConfig
	for _, c := range r.configs {
		if c.Active && c.AutoSyncTaxes {
			clone := *c
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeConfigRepo) Update(_ context.Context, cfg *entity.FiscalConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *cfg
	r.configs[cfg.ID] = &clone
	return nil
}

// ── fakeTaxRepo / fakeCurrencyRepo ────────────────────────────────────────────

type fakeTaxRepo struct {
	mu       sync.Mutex
	mappings []*entity.TaxMapping
	nextID   int
}

func (r *fakeTaxRepo) Create(_ context.Context, m *entity.TaxMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == "" {
		r.nextID++
		m.ID = "tm-" + strconv.Itoa(r.nextID)
	}
	clone := *m
	r.mappings = append(r.mappings, &clone)
	return nil
}

func (r *fakeTaxRepo) ListByConfig(_ context.Context, configID string) ([]*entity.TaxMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.TaxMapping
	for _, m := range r.mappings {
		if m.ConfigID == configID {
			clone := *m
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeTaxRepo) DeleteByConfig(_ context.Context, configID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.mappings[:0]
	for _, m := range r.mappings {
		if m.ConfigID != configID {
			kept = append(kept, m)
		}
	}
	r.mappings = kept
	return nil
}

type fakeCurrencyRepo struct {
	mu       sync.Mutex
	mappings []*entity.CurrencyMapping
}

func (r *fakeCurrencyRepo) Create(_ context.Context, m *entity.CurrencyMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *m
	r.mappings = append(r.mappings, &clone)
	return nil
}

func (r *fakeCurrencyRepo) ListByConfig(_ context.Context, configID string) ([]*entity.CurrencyMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.CurrencyMapping
	for _, m := range r.mappings {
		if m.ConfigID == configID {
			clone := *m
			out = append(out, &clone)
		}
	}
	return out, nil
}

// ── fakeLogRepo ───────────────────────────────────────────────────────────────

type fakeLogRepo struct {
	mu      sync.Mutex
	entries []*entity.SubmissionLog
	cutoffs []time.Time
	nextID  int
}

func (r *fakeLogRepo) Create(_ context.Context, l *entity.SubmissionLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.ID == "" {
		r.nextID++
		l.ID = "log-" + strconv.Itoa(r.nextID)
	}
	clone := *l
	r.entries = append(r.entries, &clone)
	return nil
}

func (r *fakeLogRepo) Update(_ context.Context, l *entity.SubmissionLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.ID == l.ID {
			clone := *l
			r.entries[i] = &clone
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *fakeLogRepo) ListByDocument(_ context.Context, documentID string) ([]*entity.SubmissionLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.SubmissionLog
	for _, e := range r.entries {
		if e.DocumentID == documentID {
			clone := *e
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeLogRepo) DeleteFinishedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cutoffs = append(r.cutoffs, cutoff)
	return 0, nil
}

// ── fakeClient ────────────────────────────────────────────────────────────────

type fakeClient struct {
	submitFn       func(ctx context.Context, route string, payload any) (*harmony.StatusResult, *harmony.Exchange, error)
	profileFn      func(ctx context.Context) (*harmony.Profile, error)
	deviceTaxesFn  func(ctx context.Context) ([]harmony.DeviceTax, error)
	downloadFn     func(ctx context.Context, ref string) ([]byte, error)
	pushTaxFn      func(ctx context.Context, p harmony.TaxMappingPush) error
	pushCurrencyFn func(ctx context.Context, p harmony.CurrencyMappingPush) error

	mu            sync.Mutex
	submitRoutes  []string
	pushedTaxes   []harmony.TaxMappingPush
	pushedMonedas []harmony.CurrencyMappingPush
}

func (c *fakeClient) SubmitDocument(ctx context.Context, route string, payload any) (*harmony.StatusResult, *harmony.Exchange, error) {
	c.mu.Lock()
	c.submitRoutes = append(c.submitRoutes, route)
	c.mu.Unlock()
	if c.submitFn == nil {
		return okStatusResult(), okExchange(), nil
	}
	return c.submitFn(ctx, route, payload)
}

func (c *fakeClient) FetchProfile(ctx context.Context) (*harmony.Profile, error) {
	if c.profileFn == nil {
		return &harmony.Profile{ID: "321", FullName: "Tienda Central"}, nil
	}
	return c.profileFn(ctx)
}

func (c *fakeClient) FetchDeviceTaxes(ctx context.Context) ([]harmony.DeviceTax, error) {
	if c.deviceTaxesFn == nil {
		return nil, nil
	}
	return c.deviceTaxesFn(ctx)
}

func (c *fakeClient) DownloadPDF(ctx context.Context, ref string) ([]byte, error) {
	if c.downloadFn == nil {
		return []byte("%PDF-1.4"), nil
	}
	return c.downloadFn(ctx, ref)
}

func (c *fakeClient) PushTaxMapping(ctx context.Context, p harmony.TaxMappingPush) error {
	c.mu.Lock()
	c.pushedTaxes = append(c.pushedTaxes, p)
	c.mu.Unlock()
	if c.pushTaxFn == nil {
		return nil
	}
	return c.pushTaxFn(ctx, p)
}

func (c *fakeClient) PushCurrencyMapping(ctx context.Context, p harmony.CurrencyMappingPush) error {
	c.mu.Lock()
	c.pushedMonedas = append(c.pushedMonedas, p)
	c.mu.Unlock()
	if c.pushCurrencyFn == nil {
		return nil
	}
	return c.pushCurrencyFn(ctx, p)
}

func okStatusResult() *harmony.StatusResult {
	return &harmony.StatusResult{
		FiscalDay:     "22",
		InvoiceNumber: "77",
		QrData: harmony.QrData{
			QrCodeURL:        "https://qr/verify",
			VerificationCode: "ABCD-1234",
		},
		FiscalInvoicePdf: "ref-pdf",
	}
}

func okExchange() *harmony.Exchange {
	return &harmony.Exchange{
		RequestBody:  `{"Reference":"x"}`,
		ResponseBody: `[{"Error":""}]`,
		StatusCode:   200,
		Duration:     12 * time.Millisecond,
	}
}

// ── fakeTxRunner ──────────────────────────────────────────────────────────────

// fakeTxRunner pasa los repos de la prueba directamente al callback.
type fakeTxRunner struct {
	taxRepo *fakeTaxRepo
	docRepo *fakeDocRepo
}

func (r *fakeTxRunner) RunTaxSync(ctx context.Context, fn func(taxRepo repository.TaxMappingRepository) error) error {
	return fn(r.taxRepo)
}

func (r *fakeTxRunner) RunIngest(ctx context.Context, fn func(docRepo repository.FiscalDocumentRepository) error) error {
	return fn(r.docRepo)
}
