package drv_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/ztzg/nix/drv"
	"github.com/ztzg/nix/storepath"
	"github.com/ztzg/nix/storepath/storemem"
)

func TestTryResolve(t *testing.T) {
	Convey("TryResolve rewrites downstream placeholders once inputs are known", t, func() {
		store := storemem.New("/nix/store/")
		inputDrv := storepath.StorePath{Name: "dep.drv", Digest: [20]byte{9}}

		d := &drv.Derivation{
			BasicDerivation: drv.BasicDerivation{
				Name: "consumer",
				Outputs: drv.DerivationOutputs{
					"out": drv.DeferredOutput{},
				},
				Builder: "/bin/sh",
				Args:    []string{"-c", "cp " + drv.DownstreamPlaceholder(store, inputDrv, "out") + "/x ."},
				Env: map[string]string{
					"dep": drv.DownstreamPlaceholder(store, inputDrv, "out"),
				},
			},
			InputDrvs: drv.InputDerivations{
				inputDrv: []string{"out"},
			},
		}

		Convey("When the input isn't resolved yet, TryResolve reports not-ok", func() {
			_, ok, err := drv.TryResolve(store, d)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("Once the input is resolved, placeholders are replaced with the real path", func() {
			depOut := storepath.StorePath{Name: "dep", Digest: [20]byte{2}}
			store.PutResolution(inputDrv, "out", depOut)

			resolved, ok, err := drv.TryResolve(store, d)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(resolved.Env["dep"], ShouldEqual, store.PrintPath(depOut))
			So(resolved.Args[1], ShouldContainSubstring, store.PrintPath(depOut))
			So(resolved.InputSrcs, ShouldContain, depOut)
		})
	})
}
