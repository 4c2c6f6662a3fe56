package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then collectors use the wagerpool namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.poolsInitialized.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var found bool
				for _, f := range families {
					if f.GetName() == "wagerpool_escrow_pools_initialized_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("pool"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then names and labels follow the options", func() {
				manager.roundsCreated.Inc()
				expected := `
# HELP test_pool_rounds_created_total Total number of rounds opened
# TYPE test_pool_rounds_created_total counter
test_pool_rounds_created_total{env="test"} 1
`
				err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "test_pool_rounds_created_total")
				So(err, ShouldBeNil)
			})
		})

		Convey("When two managers share a registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording a deposit", func() {
			before := testutil.ToFloat64(globalManager.depositsAccepted)
			feeBefore := testutil.ToFloat64(globalManager.feeLamports)
			vaultBefore := testutil.ToFloat64(globalManager.vaultLamports)
			RecordDepositAccepted(30, 970)

			Convey("Then the counter and value totals advance", func() {
				So(testutil.ToFloat64(globalManager.depositsAccepted), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.feeLamports), ShouldEqual, feeBefore+30)
				So(testutil.ToFloat64(globalManager.vaultLamports), ShouldEqual, vaultBefore+970)
			})
		})

		Convey("When a round opens and fills", func() {
			UpdateOpenRounds(0)
			RecordRoundCreated()
			So(testutil.ToFloat64(globalManager.openRounds), ShouldEqual, 1)
			RecordRoundFinished()

			Convey("Then the open rounds gauge returns to zero", func() {
				So(testutil.ToFloat64(globalManager.openRounds), ShouldEqual, 0)
			})
		})

		Convey("When recording rejections by reason", func() {
			before := testutil.ToFloat64(globalManager.depositsRejected.WithLabelValues("duplicate_deposit"))
			RecordDepositRejected("duplicate_deposit")

			Convey("Then only that reason advances", func() {
				So(testutil.ToFloat64(globalManager.depositsRejected.WithLabelValues("duplicate_deposit")), ShouldEqual, before+1)
			})
		})

		Convey("When recording ledger, HTTP, error and system metrics", func() {
			Convey("Then nothing panics", func() {
				So(func() {
					RecordPoolInitialized()
					RecordAirdrop(1_000_000_000)
					UpdateLedgerAccounts(12)
					RecordOperationLatency("deposit", "ok", 0.4)
					RecordLedgerUpdateLatency(0.2)
					RecordLedgerConflict()
					RecordHTTPRequest("/v1/pools", "POST", "201")
					RecordHTTPRequestDuration("/v1/pools", "POST", "201", 1.5)
					RecordErrorByComponent("ledger", "conflict_retries_exhausted")
					RecordErrorByType("finished_game", "warning")
					RecordErrorByEndpoint("/v1/pools/{pool}/rounds/{id}/deposits", "POST", "finished_game")
					UpdateSystemMemoryUsage(1 << 20)
					UpdateSystemGoroutineCount(8)
					RecordSystemGCPauseTime(0.3)
				}, ShouldNotPanic)
				So(testutil.ToFloat64(globalManager.ledgerAccounts), ShouldEqual, 12)
			})
		})

		Convey("When reading the registry", func() {
			Convey("Then it is the custom registry", func() {
				So(GetRegistry(), ShouldEqual, customRegistry)
			})
		})
	})
}
