package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/okian/wagerpool/internal/adapters/http/api"
	"github.com/okian/wagerpool/internal/adapters/ledger"
	service "github.com/okian/wagerpool/internal/app"
	"github.com/okian/wagerpool/internal/domain/address"
	"github.com/okian/wagerpool/internal/domain/escrow"
	"github.com/okian/wagerpool/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type apiHarness struct {
	svc       *service.Service
	handler   http.Handler
	pool      address.Address
	authority address.Address
	creator   address.Address
}

func newAPIHarness(funded map[address.Address]uint64) *apiHarness {
	svc := service.New(
		service.WithLogger(logger.Nop()),
		service.WithStore(ledger.NewMemoryStore(ledger.WithBalances(funded))),
		service.WithClock(func() time.Time { return time.Unix(1_700_000_000, 0) }),
		service.WithFaucet(true, 5000),
	)
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}
	return &apiHarness{
		svc:       svc,
		handler:   api.NewServer(svc).Handler(),
		pool:      address.IdentityFromName("api-pool"),
		authority: address.IdentityFromName("api-authority"),
		creator:   address.IdentityFromName("api-creator"),
	}
}

func (h *apiHarness) do(method, path string, signer address.Address, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if !signer.IsZero() {
		req.Header.Set(api.HeaderSigner, signer.String())
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	return w
}

func (h *apiHarness) initialize() *httptest.ResponseRecorder {
	return h.do(http.MethodPost, "/v1/pools", h.authority, map[string]any{"pool": h.pool.String()})
}

func (h *apiHarness) createRound(id string, capacity uint8, bid uint64) *httptest.ResponseRecorder {
	return h.do(http.MethodPost, "/v1/pools/"+h.pool.String()+"/rounds", h.creator,
		map[string]any{"id": id, "odd": 2, "capacity": capacity, "bid": bid})
}

func (h *apiHarness) deposit(id string, who address.Address) *httptest.ResponseRecorder {
	return h.do(http.MethodPost, "/v1/pools/"+h.pool.String()+"/rounds/"+id+"/deposits", who, map[string]any{})
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func TestAPI_Infrastructure(t *testing.T) {
	Convey("Given an API server", t, func() {
		h := newAPIHarness(nil)
		defer h.svc.Stop()

		Convey("When GET /healthz", func() {
			w := h.do(http.MethodGet, "/healthz", address.Zero, nil)

			Convey("Then it reports ok with a generated request id", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["status"], ShouldEqual, "ok")
				So(w.Header().Get(api.HeaderRequestID), ShouldNotBeEmpty)
			})
		})

		Convey("When the caller supplies a request id", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
			req.Header.Set(api.HeaderRequestID, "req-123")
			w := httptest.NewRecorder()
			h.handler.ServeHTTP(w, req)

			Convey("Then it is echoed back", func() {
				So(w.Header().Get(api.HeaderRequestID), ShouldEqual, "req-123")
			})
		})

		Convey("When GET /metrics", func() {
			_ = h.do(http.MethodGet, "/healthz", address.Zero, nil)
			w := h.do(http.MethodGet, "/metrics", address.Zero, nil)

			Convey("Then Prometheus text is served", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "wagerpool_")
			})
		})

		Convey("When GET /stats", func() {
			w := h.do(http.MethodGet, "/stats", address.Zero, nil)

			Convey("Then service stats are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["started"], ShouldEqual, true)
				So(decode(w)["ledgerBackend"], ShouldEqual, "memory")
			})
		})

		Convey("When GET /v1/program", func() {
			w := h.do(http.MethodGet, "/v1/program", address.Zero, nil)

			Convey("Then the program id is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["program_id"], ShouldEqual, h.svc.ProgramID().String())
			})
		})

		Convey("When an extra route is registered", func() {
			handler := api.NewServer(h.svc).Handler(func(r chi.Router) {
				r.Get("/extra", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
			})
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/extra", http.NoBody))

			Convey("Then it is served behind the same middleware", func() {
				So(w.Code, ShouldEqual, http.StatusTeapot)
				So(w.Header().Get(api.HeaderRequestID), ShouldNotBeEmpty)
			})
		})
	})
}

func TestAPI_Flow(t *testing.T) {
	x := address.IdentityFromName("api-x")
	y := address.IdentityFromName("api-y")
	poor := address.IdentityFromName("api-poor")

	Convey("Given an API server with funded depositors", t, func() {
		h := newAPIHarness(map[address.Address]uint64{x: 10_000, y: 10_000, poor: 500})
		defer h.svc.Stop()

		Convey("When the pool is initialized", func() {
			w := h.initialize()
			So(w.Code, ShouldEqual, http.StatusCreated)

			Convey("Then the pool can be read back", func() {
				body := decode(h.do(http.MethodGet, "/v1/pools/"+h.pool.String(), address.Zero, nil))
				So(body["authority"], ShouldEqual, h.authority.String())
				So(body["last_finished_round_id"], ShouldEqual, "0")
			})

			Convey("Then the signer endpoint returns the canonical signer", func() {
				w := h.do(http.MethodGet, "/v1/pools/"+h.pool.String()+"/signer", address.Zero, nil)
				So(w.Code, ShouldEqual, http.StatusOK)
				signer, _, err := h.svc.PoolSigner(context.Background(), h.pool)
				So(err, ShouldBeNil)
				So(decode(w)["signer"], ShouldEqual, signer.String())
			})

			Convey("Then a second initialize conflicts", func() {
				w := h.initialize()
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(decode(w)["code"], ShouldEqual, escrow.CodeAlreadyInitialized)
			})

			Convey("And a round is created and filled", func() {
				w := h.createRound("r1", 2, 1000)
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(decode(w)["creator"], ShouldEqual, h.creator.String())

				So(h.deposit("r1", x).Code, ShouldEqual, http.StatusCreated)
				w = h.deposit("r1", y)
				So(w.Code, ShouldEqual, http.StatusCreated)
				res := decode(w)

				Convey("Then the last deposit finishes the round", func() {
					So(res["finished"], ShouldEqual, true)
					So(res["fee"], ShouldEqual, 30)
					So(res["vault_amount"], ShouldEqual, 970)

					round := decode(h.do(http.MethodGet, "/v1/pools/"+h.pool.String()+"/rounds/r1", address.Zero, nil))
					So(round["finished"], ShouldEqual, true)
					So(round["deposited_count"], ShouldEqual, 2)
				})

				Convey("Then the receipt is readable", func() {
					w := h.do(http.MethodGet, "/v1/rounds/r1/receipts/"+y.String(), address.Zero, nil)
					So(w.Code, ShouldEqual, http.StatusOK)
					So(decode(w)["sequence_index"], ShouldEqual, 2)
				})

				Convey("Then a late deposit is a conflict", func() {
					w := h.deposit("r1", poor)
					So(w.Code, ShouldEqual, http.StatusConflict)
					So(decode(w)["code"], ShouldEqual, escrow.CodeFinishedGame)
				})
			})

			Convey("And the same depositor deposits twice", func() {
				So(h.createRound("r2", 3, 1000).Code, ShouldEqual, http.StatusCreated)
				So(h.deposit("r2", x).Code, ShouldEqual, http.StatusCreated)
				w := h.deposit("r2", x)

				Convey("Then the duplicate is rejected", func() {
					So(w.Code, ShouldEqual, http.StatusConflict)
					So(decode(w)["code"], ShouldEqual, escrow.CodeDuplicateDeposit)
				})
			})

			Convey("And a depositor cannot cover the bid", func() {
				So(h.createRound("r3", 2, 1000).Code, ShouldEqual, http.StatusCreated)
				w := h.deposit("r3", poor)

				Convey("Then payment is required and nothing moved", func() {
					So(w.Code, ShouldEqual, http.StatusPaymentRequired)
					acct := decode(h.do(http.MethodGet, "/v1/accounts/"+poor.String(), address.Zero, nil))
					So(acct["balance"], ShouldEqual, 500)
				})
			})

			Convey("And the deposit names someone else as depositor", func() {
				So(h.createRound("r4", 2, 1000).Code, ShouldEqual, http.StatusCreated)
				w := h.do(http.MethodPost, "/v1/pools/"+h.pool.String()+"/rounds/r4/deposits", x,
					map[string]any{"depositor": y.String()})

				Convey("Then the signature is missing", func() {
					So(w.Code, ShouldEqual, http.StatusForbidden)
					So(decode(w)["code"], ShouldEqual, escrow.CodeMissingSignature)
				})
			})

			Convey("And the deposit names a foreign vault", func() {
				So(h.createRound("r5", 2, 1000).Code, ShouldEqual, http.StatusCreated)
				w := h.do(http.MethodPost, "/v1/pools/"+h.pool.String()+"/rounds/r5/deposits", x,
					map[string]any{"vault": address.IdentityFromName("elsewhere").String()})

				Convey("Then the constraint is violated", func() {
					So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
					So(decode(w)["code"], ShouldEqual, escrow.CodeConstraintViolation)
				})
			})

			Convey("And the body names a different round than the path", func() {
				So(h.createRound("r8", 2, 1000).Code, ShouldEqual, http.StatusCreated)
				created := h.createRound("r9", 2, 1000)
				So(created.Code, ShouldEqual, http.StatusCreated)
				other := decode(created)["address"]
				w := h.do(http.MethodPost, "/v1/pools/"+h.pool.String()+"/rounds/r8/deposits", x,
					map[string]any{"round": other})

				Convey("Then the constraint is violated and neither round moves", func() {
					So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
					So(decode(w)["code"], ShouldEqual, escrow.CodeConstraintViolation)
					for _, id := range []string{"r8", "r9"} {
						round := decode(h.do(http.MethodGet, "/v1/pools/"+h.pool.String()+"/rounds/"+id, address.Zero, nil))
						So(round["deposited_count"], ShouldEqual, 0)
					}
				})
			})

			Convey("And the round vault signs its own deposit", func() {
				created := h.createRound("r10", 2, 1000)
				So(created.Code, ShouldEqual, http.StatusCreated)
				vault, err := address.Parse(decode(created)["vault"].(string))
				So(err, ShouldBeNil)
				w := h.deposit("r10", vault)

				Convey("Then the signature is missing", func() {
					So(w.Code, ShouldEqual, http.StatusForbidden)
					So(decode(w)["code"], ShouldEqual, escrow.CodeMissingSignature)
				})
			})

			Convey("And a round id is reused", func() {
				So(h.createRound("r6", 2, 1000).Code, ShouldEqual, http.StatusCreated)
				w := h.createRound("r6", 2, 1000)

				Convey("Then the address is in use", func() {
					So(w.Code, ShouldEqual, http.StatusConflict)
					So(decode(w)["code"], ShouldEqual, escrow.CodeAddressInUse)
				})
			})

			Convey("And the capacity is zero", func() {
				w := h.createRound("r7", 0, 1000)

				Convey("Then the request is invalid", func() {
					So(w.Code, ShouldEqual, http.StatusBadRequest)
					So(decode(w)["code"], ShouldEqual, escrow.CodeInvalidCapacity)
				})
			})
		})

		Convey("When a round is created before the pool exists", func() {
			w := h.createRound("early", 2, 1000)

			Convey("Then the pool is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decode(w)["code"], ShouldEqual, escrow.CodeNotInitialized)
			})
		})

		Convey("When a round does not exist", func() {
			w := h.do(http.MethodGet, "/v1/pools/"+h.pool.String()+"/rounds/ghost", address.Zero, nil)

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestAPI_RequestErrors(t *testing.T) {
	Convey("Given an API server", t, func() {
		h := newAPIHarness(nil)
		defer h.svc.Stop()

		Convey("When X-Signer is missing", func() {
			w := h.do(http.MethodPost, "/v1/pools", address.Zero, map[string]any{"pool": h.pool.String()})

			Convey("Then it is unauthorized", func() {
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
				body := decode(w)
				So(body["code"], ShouldEqual, "MissingSigner")
				So(body["request_id"], ShouldNotBeEmpty)
			})
		})

		Convey("When X-Signer is malformed", func() {
			req := httptest.NewRequest(http.MethodPost, "/v1/pools", strings.NewReader(`{}`))
			req.Header.Set(api.HeaderSigner, "not-hex")
			w := httptest.NewRecorder()
			h.handler.ServeHTTP(w, req)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the body is not JSON", func() {
			w := h.do(http.MethodPost, "/v1/pools", h.authority, "{nope")

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the body has unknown fields", func() {
			w := h.do(http.MethodPost, "/v1/pools", h.authority, map[string]any{"pool": h.pool.String(), "extra": 1})

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the pool field is missing", func() {
			w := h.do(http.MethodPost, "/v1/pools", h.authority, map[string]any{})

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["message"], ShouldContainSubstring, "missing pool")
			})
		})

		Convey("When a path address is malformed", func() {
			w := h.do(http.MethodGet, "/v1/pools/xyz", address.Zero, nil)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a round id is too long", func() {
			w := h.createRound(strings.Repeat("a", 33), 2, 1000)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["code"], ShouldEqual, escrow.CodeInvalidRoundID)
			})
		})
	})
}

func TestAPI_Accounts(t *testing.T) {
	Convey("Given an API server with the faucet enabled", t, func() {
		h := newAPIHarness(nil)
		defer h.svc.Stop()
		who := address.IdentityFromName("api-faucet")
		path := "/v1/accounts/" + who.String()

		Convey("When airdropping within the cap", func() {
			w := h.do(http.MethodPost, path+"/airdrop", address.Zero, map[string]any{"amount": 1500})

			Convey("Then the new balance is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["balance"], ShouldEqual, 1500)
				So(body["balance_sol"], ShouldEqual, "0.0000015")

				acct := decode(h.do(http.MethodGet, path, address.Zero, nil))
				So(acct["balance"], ShouldEqual, 1500)
				So(acct["has_record"], ShouldEqual, false)
			})
		})

		Convey("When airdropping over the cap", func() {
			w := h.do(http.MethodPost, path+"/airdrop", address.Zero, map[string]any{"amount": 5001})

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["code"], ShouldEqual, service.CodeInvalidAmount)
			})
		})
	})

	Convey("Given a service whose faucet is disabled", t, func() {
		svc := service.New(service.WithLogger(logger.Nop()))
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()
		handler := api.NewServer(svc).Handler()

		req := httptest.NewRequest(http.MethodPost, "/v1/accounts/"+address.IdentityFromName("z").String()+"/airdrop",
			strings.NewReader(`{"amount":1}`))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		Convey("Then airdrops are forbidden", func() {
			So(w.Code, ShouldEqual, http.StatusForbidden)
		})
	})
}

func TestKindError(t *testing.T) {
	Convey("Given a wrapped kind error", t, func() {
		cause := errors.New("boom")
		err := api.WrapKind("api.op", api.ErrBadRequest, cause)

		Convey("Then both the kind and the cause are matched", func() {
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: boom")
		})

		Convey("Then a bare kind renders without a cause", func() {
			So(api.NewKind("api.op", api.ErrMissingSigner).Error(), ShouldEqual, "api.op: missing X-Signer header")
		})
	})
}
