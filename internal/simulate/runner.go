package simulate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/okian/wagerpool/internal/adapters/ledger"
	"github.com/okian/wagerpool/internal/domain/address"
	"github.com/okian/wagerpool/internal/domain/escrow"
	"github.com/okian/wagerpool/pkg/logger"
)

// Runner executes scenarios, each on a fresh in-memory ledger.
type Runner struct {
	programID address.Address
	logger    logger.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithProgramID sets the program owning every record.
func WithProgramID(id address.Address) Option {
	return func(r *Runner) {
		if !id.IsZero() {
			r.programID = id
		}
	}
}

// WithLogger sets the runner logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		programID: address.FromHash([]byte("wagerpool/program")),
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StepResult is the outcome of one step.
type StepResult struct {
	Index    int
	Action   string
	Round    string
	Signer   string
	Expect   string
	Got      string
	Failures []string
}

// OK reports whether the step met every expectation.
func (s StepResult) OK() bool {
	return len(s.Failures) == 0
}

// Balance is one named participant's final balance.
type Balance struct {
	Name     string
	Address  address.Address
	Lamports uint64
}

// Report is the outcome of a scenario run.
type Report struct {
	Scenario string
	Steps    []StepResult
	Balances []Balance
	Rounds   []escrow.RoundView
}

// Failed counts the steps with unmet expectations.
func (r *Report) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if !s.OK() {
			n++
		}
	}
	return n
}

// Err returns ErrExpectations when any step failed.
func (r *Report) Err() error {
	if n := r.Failed(); n > 0 {
		return fmt.Errorf("%w: %d of %d steps", ErrExpectations, n, len(r.Steps))
	}
	return nil
}

type run struct {
	engine *escrow.Engine
	store  *ledger.MemoryStore
	sc     *Scenario
	pool   address.Address
	names  map[string]struct{}
	rounds map[string]escrow.RoundView
	order  []string
}

// Run executes sc. The returned error covers setup failures only; unmet
// expectations are reported per step.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Report, error) {
	funded := make(map[address.Address]uint64, len(sc.Funding))
	names := make(map[string]struct{}, len(sc.Funding))
	for name, bal := range sc.Funding {
		funded[address.IdentityFromName(name)] = bal
		names[name] = struct{}{}
	}
	store := ledger.NewMemoryStore(ledger.WithBalances(funded))
	defer store.Close()

	opts := []escrow.Option{escrow.WithLogger(r.logger.Named("escrow"))}
	if sc.MinBid > 0 {
		opts = append(opts, escrow.WithMinBid(sc.MinBid))
	}
	st := &run{
		engine: escrow.NewEngine(store, r.programID, opts...),
		store:  store,
		sc:     sc,
		pool:   address.IdentityFromName(sc.Pool),
		names:  names,
		rounds: make(map[string]escrow.RoundView),
	}

	if err := st.initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize pool %q: %w", sc.Pool, err)
	}
	r.logger.Info(ctx, "scenario started",
		logger.String("scenario", sc.Name),
		logger.Int("steps", len(sc.Steps)),
	)

	rep := &Report{Scenario: sc.Name}
	for i, step := range sc.Steps {
		res, err := st.step(ctx, i+1, step)
		if err != nil {
			return nil, err
		}
		if !res.OK() {
			r.logger.Warn(ctx, "step failed",
				logger.Int("step", res.Index),
				logger.String("action", res.Action),
				logger.String("failures", strings.Join(res.Failures, "; ")),
			)
		}
		rep.Steps = append(rep.Steps, res)
	}

	var err error
	if rep.Balances, err = st.balances(ctx); err != nil {
		return nil, err
	}
	for _, id := range st.order {
		rv, err := st.engine.RoundByID(ctx, st.pool, id)
		if err != nil {
			return nil, fmt.Errorf("read round %q: %w", id, err)
		}
		rep.Rounds = append(rep.Rounds, rv)
	}
	return rep, nil
}

func (st *run) initialize(ctx context.Context) error {
	signer, nonce, err := st.engine.PoolSigner(st.pool)
	if err != nil {
		return err
	}
	authority := address.IdentityFromName(st.sc.Authority)
	_, err = st.engine.Initialize(ctx, escrow.InitializeParams{
		Pool:       st.pool,
		Authority:  authority,
		PoolSigner: signer,
		Nonce:      nonce,
		Signer:     authority,
	})
	return err
}

func (st *run) step(ctx context.Context, index int, s Step) (StepResult, error) {
	st.names[s.Signer] = struct{}{}
	res := StepResult{Index: index, Action: s.Action, Round: s.Round, Signer: s.Signer, Expect: s.Expect}
	signer := address.IdentityFromName(s.Signer)

	var err error
	switch s.Action {
	case ActionCreateRound:
		err = st.createRound(ctx, signer, s)
	case ActionDeposit:
		err = st.deposit(ctx, signer, s)
	}

	res.Got = ExpectOK
	if err != nil {
		res.Got = escrow.Code(err)
	}
	if res.Got != s.Expect {
		res.Failures = append(res.Failures, fmt.Sprintf("expected %s, got %s", s.Expect, res.Got))
	}

	checks, err := st.check(ctx, s)
	if err != nil {
		return res, err
	}
	res.Failures = append(res.Failures, checks...)
	return res, nil
}

func (st *run) createRound(ctx context.Context, signer address.Address, s Step) error {
	_, bump, err := st.engine.RoundAddress(st.pool, s.Round)
	if err != nil {
		return err
	}
	_, vaultBump, err := st.engine.VaultAddress(st.pool, s.Round)
	if err != nil {
		return err
	}
	rv, err := st.engine.CreateRound(ctx, escrow.CreateRoundParams{
		Pool:      st.pool,
		Signer:    signer,
		Bump:      bump,
		VaultBump: vaultBump,
		ID:        s.Round,
		Odd:       s.Odd,
		Capacity:  s.Capacity,
		Bid:       s.Bid,
	})
	if err != nil {
		return err
	}
	st.rounds[s.Round] = rv
	st.order = append(st.order, s.Round)
	return nil
}

func (st *run) deposit(ctx context.Context, signer address.Address, s Step) error {
	rv, ok := st.rounds[s.Round]
	if !ok {
		return fmt.Errorf("%w: round %q was never created", escrow.ErrNotFound, s.Round)
	}
	_, err := st.engine.Deposit(ctx, escrow.DepositParams{
		Pool:        st.pool,
		Round:       rv.Address,
		Vault:       rv.Vault,
		Depositor:   signer,
		FeeReceiver: rv.FeeReceiver,
		Signer:      signer,
	})
	return err
}

// check evaluates the optional post-step assertions.
func (st *run) check(ctx context.Context, s Step) ([]string, error) {
	var failures []string
	if s.Finished != nil || s.Deposited != nil {
		rv, err := st.engine.RoundByID(ctx, st.pool, s.Round)
		if err != nil {
			failures = append(failures, fmt.Sprintf("round %s: %v", s.Round, err))
		} else {
			if s.Finished != nil && rv.Finished != *s.Finished {
				failures = append(failures, fmt.Sprintf("round %s finished=%t, want %t", s.Round, rv.Finished, *s.Finished))
			}
			if s.Deposited != nil && rv.DepositedCount != *s.Deposited {
				failures = append(failures, fmt.Sprintf("round %s deposited=%d, want %d", s.Round, rv.DepositedCount, *s.Deposited))
			}
		}
	}

	names := make([]string, 0, len(s.Balances))
	for name := range s.Balances {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		addr, err := st.resolve(name)
		if err != nil {
			failures = append(failures, err.Error())
			continue
		}
		got, err := st.store.Balance(ctx, addr)
		if err != nil {
			return nil, fmt.Errorf("balance of %s: %w", name, err)
		}
		if want := s.Balances[name]; got != want {
			failures = append(failures, fmt.Sprintf("%s balance=%d, want %d", name, got, want))
		}
	}
	return failures, nil
}

// resolve maps a participant name or "vault:<round>" to an address.
func (st *run) resolve(name string) (address.Address, error) {
	if id, ok := strings.CutPrefix(name, vaultPrefix); ok {
		addr, _, err := st.engine.VaultAddress(st.pool, id)
		if err != nil {
			return address.Zero, fmt.Errorf("vault of %s: %w", id, err)
		}
		return addr, nil
	}
	return address.IdentityFromName(name), nil
}

func (st *run) balances(ctx context.Context) ([]Balance, error) {
	names := make([]string, 0, len(st.names)+len(st.order))
	for name := range st.names {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, id := range st.order {
		names = append(names, vaultPrefix+id)
	}

	out := make([]Balance, 0, len(names))
	for _, name := range names {
		addr, err := st.resolve(name)
		if err != nil {
			return nil, err
		}
		bal, err := st.store.Balance(ctx, addr)
		if err != nil {
			return nil, fmt.Errorf("balance of %s: %w", name, err)
		}
		out = append(out, Balance{Name: name, Address: addr, Lamports: bal})
	}
	return out, nil
}
