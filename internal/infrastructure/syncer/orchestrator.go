package syncer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appledger "github.com/fieldsales/ledgersync/internal/application/ledger"
	"github.com/fieldsales/ledgersync/internal/domain/ledger"
	"github.com/fieldsales/ledgersync/internal/infrastructure/logger"
)

// InvoicePusher submits pending invoices. Satisfied by the invoice service.
type InvoicePusher interface {
	PendingInvoiceIDs(ctx context.Context) ([]uuid.UUID, error)
	SendInvoice(ctx context.Context, id uuid.UUID) (*appledger.InvoiceResponse, error)
}

// GroupPusher submits retryable receipt groups. Satisfied by the collection
// service.
type GroupPusher interface {
	RetryableGroups(ctx context.Context) ([]uuid.UUID, error)
	SendGroup(ctx context.Context, groupID uuid.UUID) (*appledger.ReceiptGroupResponse, error)
}

// BalancePuller refreshes the stored open-items snapshot
type BalancePuller interface {
	RefreshFromRemote(ctx context.Context) (int, error)
}

// CatalogPuller refreshes the partner and product caches
type CatalogPuller interface {
	RefreshPartners(ctx context.Context) (int, error)
	RefreshProducts(ctx context.Context) (int, error)
}

// Orchestrator errors
var (
	ErrSyncInProgress = errors.New("a sync run is already in progress")
	ErrInvalidConfig  = errors.New("invalid orchestrator configuration")
)

// Config holds configuration for the sync orchestrator
type Config struct {
	// Enabled controls the periodic loop; RunOnce works regardless
	Enabled bool
	// Interval is the delay between periodic runs
	Interval time.Duration
}

// DefaultConfig returns default orchestrator configuration
func DefaultConfig() Config {
	return Config{
		Enabled:  true,
		Interval: 5 * time.Minute,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Interval < time.Second {
		return ErrInvalidConfig
	}
	return nil
}

// Report summarizes one sync run. Every record is attempted in isolation;
// one failing document never blocks the rest of the run.
type Report struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`

	InvoicesSent         int `json:"invoices_sent"`
	InvoicesRejected     int `json:"invoices_rejected"`
	InvoicesDeferred     int `json:"invoices_deferred"`
	GroupsSynced         int `json:"groups_synced"`
	GroupsAlreadySettled int `json:"groups_already_settled"`
	GroupsFailed         int `json:"groups_failed"`
	GroupsDeferred       int `json:"groups_deferred"`
	BalanceLines         int `json:"balance_lines"`
	Partners             int `json:"partners"`
	Products             int `json:"products"`

	Errors []string `json:"errors,omitempty"`
}

func (r *Report) addError(err error) {
	r.Errors = append(r.Errors, err.Error())
}

// Orchestrator drives one full reconciliation cycle against the remote
// ledger: refresh the balance snapshot, push local pending invoices, push
// retryable receipt groups, then pull the catalogs. Runs never overlap: a
// cycle started while another is active returns ErrSyncInProgress.
type Orchestrator struct {
	config   Config
	invoices InvoicePusher
	colls    GroupPusher
	balances BalancePuller
	catalogs CatalogPuller
	logger   *zap.Logger

	running   atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isStarted bool

	lastMu     sync.RWMutex
	lastReport *Report
}

// New creates a new sync orchestrator
func New(
	config Config,
	invoices InvoicePusher,
	colls GroupPusher,
	balances BalancePuller,
	catalogs CatalogPuller,
	log *zap.Logger,
) (*Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		config:   config,
		invoices: invoices,
		colls:    colls,
		balances: balances,
		catalogs: catalogs,
		logger:   log,
	}, nil
}

// LastReport returns the report of the most recent completed run, nil before
// the first one
func (o *Orchestrator) LastReport() *Report {
	o.lastMu.RLock()
	defer o.lastMu.RUnlock()
	return o.lastReport
}

// RunOnce executes one full sync cycle
func (o *Orchestrator) RunOnce(ctx context.Context) (*Report, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer o.running.Store(false)

	runID := uuid.NewString()
	ctx, log := logger.WithRunID(ctx, o.logger, runID)

	report := &Report{RunID: runID, StartedAt: time.Now()}
	log.Info("sync run started")

	o.refreshSnapshot(ctx, log, report)
	o.pushInvoices(ctx, log, report)
	o.pushReceiptGroups(ctx, log, report)
	o.pullCatalogs(ctx, log, report)

	report.FinishedAt = time.Now()
	report.Duration = report.FinishedAt.Sub(report.StartedAt)

	o.lastMu.Lock()
	o.lastReport = report
	o.lastMu.Unlock()

	log.Info("sync run finished",
		zap.Duration("duration", report.Duration),
		zap.Int("invoices_sent", report.InvoicesSent),
		zap.Int("invoices_rejected", report.InvoicesRejected),
		zap.Int("groups_synced", report.GroupsSynced),
		zap.Int("balance_lines", report.BalanceLines),
		zap.Int("errors", len(report.Errors)))
	return report, nil
}

// pushInvoices submits every pending invoice. A rejection only fails that
// invoice; an unavailable remote ends the phase since every further push
// would hit the same dead network.
func (o *Orchestrator) pushInvoices(ctx context.Context, log *zap.Logger, report *Report) {
	ids, err := o.invoices.PendingInvoiceIDs(ctx)
	if err != nil {
		log.Error("listing pending invoices failed", zap.Error(err))
		report.addError(err)
		return
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		if _, err := o.invoices.SendInvoice(ctx, id); err != nil {
			report.addError(err)
			switch {
			case ledger.IsGatewayUnavailable(err):
				report.InvoicesDeferred += len(ids) - report.InvoicesSent - report.InvoicesRejected
				log.Warn("remote unavailable, deferring remaining invoices",
					zap.String("invoice_id", id.String()), zap.Error(err))
				return
			case ledger.IsGatewayRejection(err):
				report.InvoicesRejected++
				log.Warn("invoice rejected by remote ledger",
					zap.String("invoice_id", id.String()), zap.Error(err))
			default:
				report.InvoicesDeferred++
				log.Error("invoice send failed",
					zap.String("invoice_id", id.String()), zap.Error(err))
			}
			continue
		}
		report.InvoicesSent++
	}
}

// pushReceiptGroups submits every retryable receipt group through the
// duplicate guard
func (o *Orchestrator) pushReceiptGroups(ctx context.Context, log *zap.Logger, report *Report) {
	groupIDs, err := o.colls.RetryableGroups(ctx)
	if err != nil {
		log.Error("listing retryable receipt groups failed", zap.Error(err))
		report.addError(err)
		return
	}

	for _, groupID := range groupIDs {
		if ctx.Err() != nil {
			return
		}
		resp, err := o.colls.SendGroup(ctx, groupID)
		if err != nil {
			report.addError(err)
			switch {
			case ledger.IsGatewayUnavailable(err):
				report.GroupsDeferred += len(groupIDs) - report.GroupsSynced - report.GroupsAlreadySettled - report.GroupsFailed
				log.Warn("remote unavailable, deferring remaining receipt groups",
					zap.String("receipt_group_id", groupID.String()), zap.Error(err))
				return
			case ledger.IsGatewayRejection(err):
				report.GroupsFailed++
				log.Warn("receipt group rejected by remote ledger",
					zap.String("receipt_group_id", groupID.String()), zap.Error(err))
			default:
				report.GroupsDeferred++
				log.Error("receipt group send failed",
					zap.String("receipt_group_id", groupID.String()), zap.Error(err))
			}
			continue
		}
		if resp.AlreadySettled {
			report.GroupsAlreadySettled++
			continue
		}
		report.GroupsSynced++
	}
}

// refreshSnapshot pulls the open-items snapshot before the push phases so the
// duplicate guard and balance checks see the newest remote state
func (o *Orchestrator) refreshSnapshot(ctx context.Context, log *zap.Logger, report *Report) {
	if n, err := o.balances.RefreshFromRemote(ctx); err != nil {
		log.Warn("balance snapshot refresh failed", zap.Error(err))
		report.addError(err)
	} else {
		report.BalanceLines = n
	}
}

// pullCatalogs refreshes the partner and product caches
func (o *Orchestrator) pullCatalogs(ctx context.Context, log *zap.Logger, report *Report) {
	if n, err := o.catalogs.RefreshPartners(ctx); err != nil {
		log.Warn("partner catalog refresh failed", zap.Error(err))
		report.addError(err)
	} else {
		report.Partners = n
	}

	if ctx.Err() != nil {
		return
	}
	if n, err := o.catalogs.RefreshProducts(ctx); err != nil {
		log.Warn("product catalog refresh failed", zap.Error(err))
		report.addError(err)
	} else {
		report.Products = n
	}
}

// Start launches the periodic sync loop. The first run fires after one full
// interval, not immediately; callers wanting an immediate cycle use RunOnce.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.isStarted {
		return nil
	}
	if !o.config.Enabled {
		o.logger.Info("periodic sync disabled")
		return nil
	}
	o.isStarted = true

	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.wg.Add(1)
	go o.loop(ctx)

	o.logger.Info("sync orchestrator started", zap.Duration("interval", o.config.Interval))
	return nil
}

// Stop gracefully stops the periodic loop, waiting for an in-flight run
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	if !o.isStarted {
		o.mu.Unlock()
		return nil
	}
	o.isStarted = false
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.logger.Info("sync orchestrator stopped")
		return nil
	case <-ctx.Done():
		o.logger.Warn("sync orchestrator stop timed out")
		return ctx.Err()
	}
}

func (o *Orchestrator) loop(ctx context.Context) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := o.RunOnce(ctx); err != nil && !errors.Is(err, ErrSyncInProgress) {
				o.logger.Error("periodic sync run failed", zap.Error(err))
			}
		}
	}
}
