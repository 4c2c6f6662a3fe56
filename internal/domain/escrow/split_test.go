package escrow_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/wagerpool/internal/domain/escrow"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSplit(t *testing.T) {
	Convey("Given typical bids", t, func() {
		cases := []struct {
			bid, fee, vault uint64
		}{
			{1000, 30, 970},
			{100, 3, 97},
			{1, 0, 0},
			{99, 2, 96},
			{1_000_000_000, 30_000_000, 970_000_000},
		}
		for _, c := range cases {
			fee, vault, err := escrow.Split(c.bid)
			So(err, ShouldBeNil)
			So(fee, ShouldEqual, c.fee)
			So(vault, ShouldEqual, c.vault)
		}
	})

	Convey("Given any bid the shares never exceed it and lose less than 100 units", t, func() {
		bids := []uint64{0, 7, 33, 101, 199, 12345, 987_654_321, math.MaxUint64 / 97}
		for b := uint64(0); b < 1000; b++ {
			bids = append(bids, b)
		}
		for _, bid := range bids {
			fee, vault, err := escrow.Split(bid)
			So(err, ShouldBeNil)
			So(fee+vault, ShouldBeLessThanOrEqualTo, bid)
			So(bid-(fee+vault), ShouldBeLessThan, 100)
		}
	})

	Convey("Given a bid whose vault share overflows", t, func() {
		_, _, err := escrow.Split(math.MaxUint64/97 + 1)

		Convey("Then the split fails instead of wrapping", func() {
			So(errors.Is(err, escrow.ErrArithmeticOverflow), ShouldBeTrue)
		})
	})
}

func TestCode(t *testing.T) {
	Convey("Given wrapped escrow errors", t, func() {
		So(escrow.Code(nil), ShouldEqual, "")
		So(escrow.Code(escrow.ErrFinishedGame), ShouldEqual, escrow.CodeFinishedGame)
		So(escrow.Code(errors.Join(errors.New("ctx"), escrow.ErrDuplicateDeposit)), ShouldEqual, escrow.CodeDuplicateDeposit)
		So(escrow.Code(errors.Join(escrow.ErrAddressInUse, escrow.ErrDuplicateDeposit)), ShouldEqual, escrow.CodeDuplicateDeposit)
		So(escrow.Code(escrow.ErrAddressInUse), ShouldEqual, escrow.CodeAddressInUse)
		So(escrow.Code(errors.New("disk on fire")), ShouldEqual, escrow.CodeInternal)
	})
}
