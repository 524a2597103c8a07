package drv_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/ztzg/nix/drv"
	"github.com/ztzg/nix/storepath"
	"github.com/ztzg/nix/storepath/storemem"
)

func TestHashPlaceholder(t *testing.T) {
	Convey("HashPlaceholder depends only on the output name", t, func() {
		So(drv.HashPlaceholder("out"), ShouldEqual, drv.HashPlaceholder("out"))
		So(drv.HashPlaceholder("out"), ShouldNotEqual, drv.HashPlaceholder("dev"))
		So(drv.HashPlaceholder("out"), ShouldStartWith, "/")
	})
}

func TestDownstreamPlaceholder(t *testing.T) {
	Convey("DownstreamPlaceholder is keyed on (drvPath, outputName)", t, func() {
		store := storemem.New("/nix/store/")
		drv1 := storepath.StorePath{Name: "foo.drv"}
		drv2 := storepath.StorePath{Name: "bar.drv", Digest: [20]byte{1}}

		Convey("Same inputs give the same placeholder", func() {
			So(drv.DownstreamPlaceholder(store, drv1, "out"), ShouldEqual, drv.DownstreamPlaceholder(store, drv1, "out"))
		})
		Convey("Different output names give different placeholders", func() {
			So(drv.DownstreamPlaceholder(store, drv1, "out"), ShouldNotEqual, drv.DownstreamPlaceholder(store, drv1, "dev"))
		})
		Convey("Different drv paths give different placeholders", func() {
			So(drv.DownstreamPlaceholder(store, drv1, "out"), ShouldNotEqual, drv.DownstreamPlaceholder(store, drv2, "out"))
		})
	})
}
