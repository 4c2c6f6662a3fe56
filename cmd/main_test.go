package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/wagerpool/internal/adapters/ledger"
	app "github.com/okian/wagerpool/internal/app"
	"github.com/okian/wagerpool/internal/config"
	"github.com/okian/wagerpool/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			t.Setenv("WAGERPOOL_ADDR", ":8080")
			t.Setenv("WAGERPOOL_MIN_BID", "1000")
			t.Setenv("WAGERPOOL_FAUCET_ENABLED", "true")

			convey.Convey("Then configuration should be loadable", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.MinBid, convey.ShouldEqual, 1000)
				convey.So(cfg.FaucetEnabled, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When mapping configuration onto the service", func() {
			cfg := config.New()
			cfg.MinBid = 500
			cfg.FaucetEnabled = true
			opts, err := serviceOptions(cfg, ledger.NewMemoryStore(), logger.Nop())
			convey.So(err, convey.ShouldBeNil)
			svc := app.New(opts...)

			convey.Convey("Then the options are applied", func() {
				stats := svc.GetStats()
				convey.So(stats["minBid"], convey.ShouldEqual, 500)
				convey.So(stats["faucetEnabled"], convey.ShouldEqual, true)
				program, _ := cfg.Program()
				convey.So(svc.ProgramID(), convey.ShouldEqual, program)
			})
		})

		convey.Convey("When the program id is malformed", func() {
			cfg := config.New()
			cfg.ProgramID = "zz"
			_, err := serviceOptions(cfg, ledger.NewMemoryStore(), logger.Nop())

			convey.Convey("Then the options are rejected", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestHTTPServer(t *testing.T) {
	convey.Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := app.New(app.WithLogger(logger.Nop()))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		cfg := config.New()
		srv := newHTTPServer(ctx, cfg, svc, logger.Nop())

		convey.Convey("Then the server carries the configured timeouts", func() {
			convey.So(srv.Addr, convey.ShouldEqual, cfg.Addr)
			convey.So(srv.ReadTimeout, convey.ShouldEqual, readTimeout)
			convey.So(srv.ReadHeaderTimeout, convey.ShouldEqual, readHeaderTimeout)
		})

		convey.Convey("Then API and docs routes are served", func() {
			for _, path := range []string{"/healthz", "/v1/program", "/openapi.yaml", "/api-docs"} {
				w := httptest.NewRecorder()
				srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			}
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When testing system metrics updater", func() {
			convey.Convey("Then it should return once the context ends", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()

				convey.So(func() {
					startSystemMetricsUpdater(ctx)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing system metrics update", func() {
			convey.Convey("Then it should update metrics without panicking", func() {
				convey.So(func() {
					updateSystemMetrics()
				}, convey.ShouldNotPanic)
			})
		})
	})
}
