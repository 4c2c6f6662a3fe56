package simulate

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/wagerpool/internal/domain/escrow"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBuiltinScenario(t *testing.T) {
	Convey("Given the built-in escrow scenario", t, func() {
		So(BuiltinNames(), ShouldContain, "escrow")
		sc, err := Builtin("escrow")
		So(err, ShouldBeNil)

		Convey("When it runs", func() {
			rep, err := NewRunner().Run(context.Background(), sc)
			So(err, ShouldBeNil)

			Convey("Then every step meets its expectations", func() {
				for _, s := range rep.Steps {
					So(s.Failures, ShouldBeEmpty)
				}
				So(rep.Err(), ShouldBeNil)
			})

			Convey("Then the rounds end in the expected state", func() {
				So(len(rep.Rounds), ShouldEqual, 3)
				So(rep.Rounds[0].ID, ShouldEqual, "A")
				So(rep.Rounds[0].Finished, ShouldBeTrue)
				So(rep.Rounds[1].Finished, ShouldBeTrue)
				So(rep.Rounds[2].Finished, ShouldBeFalse)
				So(rep.Rounds[2].DepositedCount, ShouldEqual, 1)
			})

			Convey("Then the report renders", func() {
				var buf bytes.Buffer
				So(Render(&buf, rep), ShouldBeNil)
				So(buf.String(), ShouldContainSubstring, "vault:A")
				So(buf.String(), ShouldContainSubstring, "0.00000194")
				So(buf.String(), ShouldContainSubstring, "DuplicateDeposit")
			})
		})
	})

	Convey("Given an unknown built-in", t, func() {
		_, err := Builtin("nope")

		Convey("Then it is rejected", func() {
			So(errors.Is(err, ErrUnknownScenario), ShouldBeTrue)
		})
	})
}

func TestScenarioExpectations(t *testing.T) {
	Convey("Given a scenario whose expectations are wrong", t, func() {
		sc, err := Parse([]byte(`
name: wrong
funding:
  x: 100
steps:
  - action: create_round
    round: r
    signer: creator
    capacity: 1
    bid: 1000
  - action: deposit
    round: r
    signer: x
    finished: true
    balances:
      x: 100
`))
		So(err, ShouldBeNil)

		Convey("When it runs", func() {
			rep, err := NewRunner().Run(context.Background(), sc)
			So(err, ShouldBeNil)

			Convey("Then the failing step is reported", func() {
				So(rep.Steps[0].OK(), ShouldBeTrue)
				So(rep.Steps[1].OK(), ShouldBeFalse)
				So(rep.Steps[1].Got, ShouldEqual, escrow.CodeInsufficientFunds)
				So(len(rep.Steps[1].Failures), ShouldEqual, 2)
				So(errors.Is(rep.Err(), ErrExpectations), ShouldBeTrue)
			})
		})
	})

	Convey("Given a deposit into a round that was never created", t, func() {
		sc, err := Parse([]byte(`
steps:
  - action: deposit
    round: ghost
    signer: x
    expect: NotFound
`))
		So(err, ShouldBeNil)
		rep, err := NewRunner().Run(context.Background(), sc)

		Convey("Then the not found expectation holds", func() {
			So(err, ShouldBeNil)
			So(rep.Err(), ShouldBeNil)
		})
	})
}

func TestParse(t *testing.T) {
	Convey("Given scenario documents", t, func() {
		cases := []struct {
			name string
			doc  string
		}{
			{"no steps", "name: empty\n"},
			{"unknown action", "steps:\n  - action: withdraw\n    round: r\n    signer: x\n"},
			{"missing round", "steps:\n  - action: deposit\n    signer: x\n"},
			{"missing signer", "steps:\n  - action: deposit\n    round: r\n"},
			{"bad yaml", "steps: [\n"},
		}
		for _, c := range cases {
			Convey("When the document has "+c.name, func() {
				_, err := Parse([]byte(c.doc))

				Convey("Then it is invalid", func() {
					So(errors.Is(err, ErrInvalidScenario), ShouldBeTrue)
				})
			})
		}

		Convey("When defaults apply", func() {
			sc, err := Parse([]byte("steps:\n  - action: deposit\n    round: r\n    signer: x\n"))
			So(err, ShouldBeNil)

			Convey("Then pool, authority and expect are filled", func() {
				So(sc.Pool, ShouldEqual, "pool")
				So(sc.Authority, ShouldEqual, "authority")
				So(sc.Steps[0].Expect, ShouldEqual, ExpectOK)
			})
		})
	})

	Convey("Given a scenario file on disk", t, func() {
		path := filepath.Join(t.TempDir(), "s.yaml")
		So(os.WriteFile(path, []byte("steps:\n  - action: deposit\n    round: r\n    signer: x\n"), 0o600), ShouldBeNil)

		Convey("Then Load reads it", func() {
			sc, err := Load(path)
			So(err, ShouldBeNil)
			So(len(sc.Steps), ShouldEqual, 1)
		})

		Convey("Then a missing file is an error", func() {
			_, err := Load(path + ".missing")
			So(err, ShouldNotBeNil)
		})
	})
}
