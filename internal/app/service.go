// Package service wires the escrow engine to its ledger, metrics and logs,
// and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/wagerpool/internal/adapters/ledger"
	"github.com/okian/wagerpool/internal/domain/address"
	"github.com/okian/wagerpool/internal/domain/escrow"
	"github.com/okian/wagerpool/internal/domain/model"
	"github.com/okian/wagerpool/pkg/logger"
	"github.com/okian/wagerpool/pkg/metrics"
	"github.com/robfig/cron/v3"
)

// Default service configuration constants.
const (
	defaultRefreshSchedule = "@every 15s"
	defaultFaucetMax       = 10_000_000_000
)

// Operation names used for metrics and logs.
const (
	opInitialize  = "initialize"
	opCreateRound = "create_round"
	opDeposit     = "deposit"
	opAirdrop     = "airdrop"
)

// Service runs escrow operations against a ledger.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     ledger.Store
	ownsStore bool
	engine    *escrow.Engine
	cron      *cron.Cron

	// Configuration
	programID       address.Address
	minBid          uint64
	clock           func() time.Time
	refreshSchedule string
	faucetEnabled   bool
	faucetMax       uint64

	// State
	started          bool
	poolsInitialized atomic.Int64
	roundsCreated    atomic.Int64
	roundsFinished   atomic.Int64
	depositsAccepted atomic.Int64
	depositsRejected atomic.Int64

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the ledger. The caller keeps ownership and closes it after Stop.
func WithStore(store ledger.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithProgramID sets the program owning every record.
func WithProgramID(id address.Address) Option {
	return func(s *Service) {
		if !id.IsZero() {
			s.programID = id
		}
	}
}

// WithMinBid sets the smallest bid accepted by CreateRound.
func WithMinBid(minBid uint64) Option {
	return func(s *Service) {
		if minBid > 0 {
			s.minBid = minBid
		}
	}
}

// WithClock sets the time source for receipts.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.clock = now
		}
	}
}

// WithRefreshSchedule sets the cron spec for refreshing ledger gauges.
func WithRefreshSchedule(spec string) Option {
	return func(s *Service) {
		if spec != "" {
			s.refreshSchedule = spec
		}
	}
}

// WithFaucet enables the development airdrop, capped at maxAmount per call.
func WithFaucet(enabled bool, maxAmount uint64) Option {
	return func(s *Service) {
		s.faucetEnabled = enabled
		if maxAmount > 0 {
			s.faucetMax = maxAmount
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		programID:       address.FromHash([]byte("wagerpool/program")),
		minBid:          escrow.DefaultMinBid,
		clock:           time.Now,
		refreshSchedule: defaultRefreshSchedule,
		faucetMax:       defaultFaucetMax,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the engine and schedules gauge refreshes.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.store == nil {
		s.store = ledger.NewMemoryStore()
		s.ownsStore = true
		s.logger.Info(ctx, "using in-memory ledger")
	}

	s.engine = escrow.NewEngine(s.store, s.programID,
		escrow.WithMinBid(s.minBid),
		escrow.WithClock(s.clock),
		escrow.WithLogger(s.logger.Named("escrow")),
	)

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.refreshSchedule, s.refreshGauges); err != nil {
		return fmt.Errorf("schedule gauge refresh %q: %w", s.refreshSchedule, err)
	}
	s.cron.Start()

	s.started = true
	s.logger.Info(ctx, "wagerpool service started",
		logger.Stringer("program_id", s.programID),
		logger.Uint64("min_bid", s.minBid),
		logger.Bool("faucet", s.faucetEnabled),
		logger.String("refresh_schedule", s.refreshSchedule),
	)
	return nil
}

// Stop stops scheduled jobs and closes the ledger the service opened itself.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping wagerpool service...")

	<-s.cron.Stop().Done()
	if s.ownsStore {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(ctx, "close ledger", logger.Error(err))
		}
		s.store, s.ownsStore = nil, false
	}

	s.started = false
	s.logger.Info(ctx, "wagerpool service stopped")
}

func (s *Service) running() (*escrow.Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.engine, nil
}

func (s *Service) runningStore() (ledger.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// observe records latency and, for failures, the error code of one operation.
func (s *Service) observe(ctx context.Context, op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = Code(err)
		metrics.RecordErrorByComponent("escrow", outcome)
		s.logger.Warn(ctx, op+" rejected", logger.String("code", outcome), logger.Error(err))
	}
	metrics.RecordOperationLatency(op, outcome, float64(time.Since(start).Microseconds())/1000)
}

// ProgramID returns the program owning every record.
func (s *Service) ProgramID() address.Address {
	return s.programID
}

// Initialize creates the pool record.
func (s *Service) Initialize(ctx context.Context, p escrow.InitializeParams) (model.Pool, error) {
	start := time.Now()
	e, err := s.running()
	if err != nil {
		return model.Pool{}, err
	}
	pool, err := e.Initialize(ctx, p)
	s.observe(ctx, opInitialize, start, err)
	if err != nil {
		return model.Pool{}, err
	}
	s.poolsInitialized.Add(1)
	metrics.RecordPoolInitialized()
	s.logger.Info(ctx, "pool initialized",
		logger.Stringer("pool", p.Pool),
		logger.Stringer("authority", p.Authority),
	)
	return pool, nil
}

// CreateRound opens a round.
func (s *Service) CreateRound(ctx context.Context, p escrow.CreateRoundParams) (escrow.RoundView, error) {
	start := time.Now()
	e, err := s.running()
	if err != nil {
		return escrow.RoundView{}, err
	}
	rv, err := e.CreateRound(ctx, p)
	s.observe(ctx, opCreateRound, start, err)
	if err != nil {
		return escrow.RoundView{}, err
	}
	s.roundsCreated.Add(1)
	metrics.RecordRoundCreated()
	s.logger.Info(ctx, "round created",
		logger.Stringer("pool", p.Pool),
		logger.String("round_id", rv.ID),
		logger.Stringer("round", rv.Address),
		logger.Int("capacity", int(rv.Capacity)),
		logger.String("bid_sol", model.FormatSOL(rv.Bid)),
	)
	return rv, nil
}

// Deposit pays a bid into a round.
func (s *Service) Deposit(ctx context.Context, p escrow.DepositParams) (escrow.DepositResult, error) {
	start := time.Now()
	e, err := s.running()
	if err != nil {
		return escrow.DepositResult{}, err
	}
	res, err := e.Deposit(ctx, p)
	s.observe(ctx, opDeposit, start, err)
	if err != nil {
		s.depositsRejected.Add(1)
		metrics.RecordDepositRejected(Code(err))
		return escrow.DepositResult{}, err
	}
	s.depositsAccepted.Add(1)
	metrics.RecordDepositAccepted(res.Fee, res.VaultAmount)
	if res.Finished {
		s.roundsFinished.Add(1)
		metrics.RecordRoundFinished()
		s.logger.Info(ctx, "round finished",
			logger.Stringer("pool", p.Pool),
			logger.String("round_id", res.Receipt.RoundID),
			logger.Int("deposits", int(res.Round.DepositedCount)),
		)
	}
	return res, nil
}

// Pool reads a pool record.
func (s *Service) Pool(ctx context.Context, addr address.Address) (model.Pool, error) {
	e, err := s.running()
	if err != nil {
		return model.Pool{}, err
	}
	return e.Pool(ctx, addr)
}

// PoolSigner returns the canonical signer and nonce of a pool.
func (s *Service) PoolSigner(_ context.Context, pool address.Address) (address.Address, uint8, error) {
	e, err := s.running()
	if err != nil {
		return address.Zero, 0, err
	}
	return e.PoolSigner(pool)
}

// RoundByID reads a round by its id within a pool.
func (s *Service) RoundByID(ctx context.Context, pool address.Address, id string) (escrow.RoundView, error) {
	e, err := s.running()
	if err != nil {
		return escrow.RoundView{}, err
	}
	return e.RoundByID(ctx, pool, id)
}

// RoundSeeds returns the canonical round and vault bumps for id within pool.
func (s *Service) RoundSeeds(_ context.Context, pool address.Address, id string) (bump, vaultBump uint8, err error) {
	e, err := s.running()
	if err != nil {
		return 0, 0, err
	}
	if _, bump, err = e.RoundAddress(pool, id); err != nil {
		return 0, 0, err
	}
	if _, vaultBump, err = e.VaultAddress(pool, id); err != nil {
		return 0, 0, err
	}
	return bump, vaultBump, nil
}

// Receipt reads the receipt of depositor in round id.
func (s *Service) Receipt(ctx context.Context, depositor address.Address, roundID string) (escrow.ReceiptView, error) {
	e, err := s.running()
	if err != nil {
		return escrow.ReceiptView{}, err
	}
	return e.Receipt(ctx, depositor, roundID)
}

// AccountView is the public view of one ledger account.
type AccountView struct {
	Address    address.Address `json:"address"`
	Owner      address.Address `json:"owner"`
	Balance    uint64          `json:"balance"`
	BalanceSOL string          `json:"balance_sol"`
	HasRecord  bool            `json:"has_record"`
	Space      int             `json:"space"`
}

// Account reads one ledger account.
func (s *Service) Account(ctx context.Context, addr address.Address) (AccountView, error) {
	store, err := s.runningStore()
	if err != nil {
		return AccountView{}, err
	}
	var view AccountView
	err = store.View(ctx, func(tx ledger.Tx) error {
		a, err := tx.Get(addr)
		if err != nil {
			return err
		}
		view = AccountView{
			Address:    addr,
			Owner:      a.Owner,
			Balance:    a.Balance,
			BalanceSOL: model.FormatSOL(a.Balance),
			HasRecord:  a.HasRecord(),
			Space:      len(a.Data),
		}
		return nil
	})
	return view, err
}

// Airdrop mints lamports to addr when the faucet is enabled.
func (s *Service) Airdrop(ctx context.Context, addr address.Address, amount uint64) (uint64, error) {
	start := time.Now()
	store, err := s.runningStore()
	if err != nil {
		return 0, err
	}
	err = s.airdrop(ctx, store, addr, amount)
	s.observe(ctx, opAirdrop, start, err)
	if err != nil {
		return 0, err
	}
	metrics.RecordAirdrop(amount)
	s.logger.Info(ctx, "airdrop",
		logger.Stringer("to", addr),
		logger.String("amount_sol", model.FormatSOL(amount)),
	)
	return store.Balance(ctx, addr)
}

func (s *Service) airdrop(ctx context.Context, store ledger.Store, addr address.Address, amount uint64) error {
	if !s.faucetEnabled {
		return ErrFaucetDisabled
	}
	if amount == 0 || amount > s.faucetMax {
		return fmt.Errorf("%w: %d not in 1..%d", ErrInvalidAmount, amount, s.faucetMax)
	}
	return store.Airdrop(ctx, addr, amount)
}

// refreshGauges pushes ledger-derived gauges. Runs on the cron schedule.
func (s *Service) refreshGauges() {
	s.mu.RLock()
	store, started := s.store, s.started
	s.mu.RUnlock()
	if !started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := store.Count(ctx)
	if err != nil {
		metrics.RecordErrorByComponent("service", "gauge_refresh")
		s.logger.Warn(ctx, "refresh ledger gauges", logger.Error(err))
		return
	}
	metrics.UpdateLedgerAccounts(n)
	metrics.UpdateOpenRounds(int(s.roundsCreated.Load() - s.roundsFinished.Load()))
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":          s.started,
		"programId":        s.programID.String(),
		"minBid":           s.minBid,
		"faucetEnabled":    s.faucetEnabled,
		"poolsInitialized": s.poolsInitialized.Load(),
		"roundsCreated":    s.roundsCreated.Load(),
		"roundsFinished":   s.roundsFinished.Load(),
		"depositsAccepted": s.depositsAccepted.Load(),
		"depositsRejected": s.depositsRejected.Load(),
	}

	if s.started {
		stats["ledgerBackend"] = backendName(s.store)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if n, err := s.store.Count(ctx); err == nil {
			stats["accounts"] = n
			metrics.UpdateLedgerAccounts(n)
		}
	}

	return stats
}

func backendName(store ledger.Store) string {
	switch store.(type) {
	case *ledger.MemoryStore:
		return "memory"
	case *ledger.RedisStore:
		return "redis"
	default:
		return fmt.Sprintf("%T", store)
	}
}
