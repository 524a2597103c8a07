package aterm_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/ztzg/nix/drv/aterm"
	"github.com/ztzg/nix/storepath/storemem"
)

func TestWriteDerivation(t *testing.T) {
	Convey("WriteDerivation computes a stable path and persists the bytes", t, func() {
		store := storemem.New("/nix/store/")
		d := sampleDerivation()

		path1, err := aterm.WriteDerivation(store, d, false, false)
		So(err, ShouldBeNil)
		So(path1.Name, ShouldEqual, "hello.drv")

		data, err := store.ReadFile(path1)
		So(err, ShouldBeNil)
		So(len(data), ShouldBeGreaterThan, 0)

		Convey("Calling it again with the same derivation yields the same path", func() {
			path2, err := aterm.WriteDerivation(store, d, false, false)
			So(err, ShouldBeNil)
			So(path2, ShouldResemble, path1)
		})

		Convey("readOnly doesn't persist anything", func() {
			other := storemem.New("/nix/store/")
			path3, err := aterm.WriteDerivation(other, d, false, true)
			So(err, ShouldBeNil)
			So(path3, ShouldResemble, path1)
			_, err = other.ReadFile(path3)
			So(err, ShouldNotBeNil)
		})
	})
}
