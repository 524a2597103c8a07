package drvhash_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/warpfork/go-wish"

	"github.com/ztzg/nix/drvhash"
)

func TestKindJoin(t *testing.T) {
	Convey("Kind is a join-semilattice with Regular as identity", t, func() {
		So(drvhash.Regular.Join(drvhash.Regular), ShouldEqual, drvhash.Regular)
		So(drvhash.Regular.Join(drvhash.Deferred), ShouldEqual, drvhash.Deferred)
		So(drvhash.Deferred.Join(drvhash.Regular), ShouldEqual, drvhash.Deferred)
		So(drvhash.Deferred.Join(drvhash.Deferred), ShouldEqual, drvhash.Deferred)
	})
}

func TestKindString(t *testing.T) {
	wish.Wish(t, drvhash.Regular.String(), wish.ShouldEqual, "regular")
	wish.Wish(t, drvhash.Deferred.String(), wish.ShouldEqual, "deferred")
}
