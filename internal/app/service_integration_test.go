package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	service "github.com/okian/wagerpool/internal/app"
	"github.com/okian/wagerpool/internal/adapters/ledger"
	"github.com/okian/wagerpool/internal/domain/address"
	"github.com/okian/wagerpool/internal/domain/escrow"
	. "github.com/smartystreets/goconvey/convey"
)

type harness struct {
	ctx       context.Context
	svc       *service.Service
	store     *ledger.MemoryStore
	pool      address.Address
	authority address.Address
	creator   address.Address
}

func newHarness(funded map[address.Address]uint64) *harness {
	store := ledger.NewMemoryStore(ledger.WithBalances(funded))
	h := &harness{
		ctx:       context.Background(),
		store:     store,
		pool:      address.IdentityFromName("svc-pool"),
		authority: address.IdentityFromName("svc-authority"),
		creator:   address.IdentityFromName("svc-creator"),
	}
	h.svc = service.New(
		service.WithStore(store),
		service.WithClock(func() time.Time { return time.Unix(1_700_000_000, 0) }),
	)
	if err := h.svc.Start(h.ctx); err != nil {
		panic(err)
	}
	return h
}

func (h *harness) initialize() error {
	signer, nonce, err := h.svc.PoolSigner(h.ctx, h.pool)
	if err != nil {
		return err
	}
	_, err = h.svc.Initialize(h.ctx, escrow.InitializeParams{
		Pool: h.pool, Authority: h.authority, PoolSigner: signer, Nonce: nonce, Signer: h.authority,
	})
	return err
}

func (h *harness) createRound(id string, capacity uint8, bid uint64) (escrow.RoundView, error) {
	bump, vaultBump, err := h.svc.RoundSeeds(h.ctx, h.pool, id)
	if err != nil {
		return escrow.RoundView{}, err
	}
	return h.svc.CreateRound(h.ctx, escrow.CreateRoundParams{
		Pool: h.pool, Signer: h.creator, Bump: bump, VaultBump: vaultBump,
		ID: id, Odd: 2, Capacity: capacity, Bid: bid,
	})
}

func (h *harness) deposit(rv escrow.RoundView, who address.Address) (escrow.DepositResult, error) {
	return h.svc.Deposit(h.ctx, escrow.DepositParams{
		Pool: h.pool, Round: rv.Address, Vault: rv.Vault, Depositor: who, FeeReceiver: rv.FeeReceiver, Signer: who,
	})
}

func TestServiceIntegration(t *testing.T) {
	x := address.IdentityFromName("svc-x")
	y := address.IdentityFromName("svc-y")

	Convey("Given a started service with two funded depositors", t, func() {
		h := newHarness(map[address.Address]uint64{x: 5000, y: 5000})
		defer h.svc.Stop()
		So(h.initialize(), ShouldBeNil)

		Convey("When a round fills up", func() {
			rv, err := h.createRound("svc-A", 2, 1000)
			So(err, ShouldBeNil)
			_, err = h.deposit(rv, x)
			So(err, ShouldBeNil)
			res, err := h.deposit(rv, y)
			So(err, ShouldBeNil)

			Convey("Then the round is finished and visible through the queries", func() {
				So(res.Finished, ShouldBeTrue)
				got, err := h.svc.RoundByID(h.ctx, h.pool, "svc-A")
				So(err, ShouldBeNil)
				So(got.Finished, ShouldBeTrue)
				So(got.DepositedCount, ShouldEqual, 2)

				p, err := h.svc.Pool(h.ctx, h.pool)
				So(err, ShouldBeNil)
				So(p.LastFinishedRoundID, ShouldEqual, "svc-A")

				rc, err := h.svc.Receipt(h.ctx, y, "svc-A")
				So(err, ShouldBeNil)
				So(rc.SequenceIndex, ShouldEqual, 2)

				vault, err := h.svc.Account(h.ctx, rv.Vault)
				So(err, ShouldBeNil)
				So(vault.Balance, ShouldEqual, 1940)
			})

			Convey("Then the stats count the work", func() {
				stats := h.svc.GetStats()
				So(stats["poolsInitialized"], ShouldEqual, 1)
				So(stats["roundsCreated"], ShouldEqual, 1)
				So(stats["roundsFinished"], ShouldEqual, 1)
				So(stats["depositsAccepted"], ShouldEqual, 2)
			})

			Convey("And a late deposit is rejected and counted", func() {
				_, err := h.deposit(rv, x)
				So(errors.Is(err, escrow.ErrFinishedGame), ShouldBeTrue)
				So(service.Code(err), ShouldEqual, escrow.CodeFinishedGame)
				So(h.svc.GetStats()["depositsRejected"], ShouldEqual, 1)
			})
		})

		Convey("When the pool is initialized twice", func() {
			err := h.initialize()

			Convey("Then the error code says so", func() {
				So(service.Code(err), ShouldEqual, escrow.CodeAlreadyInitialized)
			})
		})
	})
}

func TestServiceConcurrency(t *testing.T) {
	Convey("Given many depositors racing through the service", t, func() {
		const racers = 16
		funded := make(map[address.Address]uint64, racers)
		players := make([]address.Address, racers)
		for i := range players {
			players[i] = address.IdentityFromName(fmt.Sprintf("svc-racer-%d", i))
			funded[players[i]] = 1000
		}
		h := newHarness(funded)
		defer h.svc.Stop()
		So(h.initialize(), ShouldBeNil)
		rv, err := h.createRound("svc-race", 4, 1000)
		So(err, ShouldBeNil)
		supply := h.store.TotalSupply()

		var wg sync.WaitGroup
		var mu sync.Mutex
		accepted := 0
		for _, p := range players {
			wg.Add(1)
			go func(p address.Address) {
				defer wg.Done()
				if _, err := h.deposit(rv, p); err == nil {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}(p)
		}
		wg.Wait()

		Convey("Then exactly capacity deposits are accepted and value is conserved", func() {
			So(accepted, ShouldEqual, 4)
			got, err := h.svc.RoundByID(h.ctx, h.pool, "svc-race")
			So(err, ShouldBeNil)
			So(got.DepositedCount, ShouldEqual, 4)
			So(h.store.TotalSupply(), ShouldEqual, supply)
		})
	})
}
