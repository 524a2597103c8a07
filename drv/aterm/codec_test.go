package aterm_test

import (
	"bytes"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/ztzg/nix/drv"
	"github.com/ztzg/nix/drv/aterm"
	"github.com/ztzg/nix/storepath"
	"github.com/ztzg/nix/storepath/storemem"
)

func sampleDerivation() *drv.Derivation {
	return &drv.Derivation{
		BasicDerivation: drv.BasicDerivation{
			Name: "hello",
			Outputs: drv.DerivationOutputs{
				"out": drv.InputAddressedOutput{Path: storepath.StorePath{Name: "hello", Digest: [20]byte{1}}},
			},
			InputSrcs: []storepath.StorePath{{Name: "src", Digest: [20]byte{2}}},
			Platform:  "x86_64-linux",
			Builder:   "/bin/sh",
			Args:      []string{"-c", "true"},
			Env: map[string]string{
				"PATH": "/usr/bin",
				"out":  "",
			},
		},
		InputDrvs: drv.InputDerivations{},
	}
}

func TestCodecRoundTrip(t *testing.T) {
	Convey("Encode/Decode round-trips a derivation byte for byte", t, func() {
		store := storemem.New("/nix/store/")
		d := sampleDerivation()

		text1, err := aterm.Encode(store, d, false)
		So(err, ShouldBeNil)

		parsed, err := aterm.Decode(store, text1)
		So(err, ShouldBeNil)

		text2, err := aterm.Encode(store, parsed, false)
		So(err, ShouldBeNil)

		So(text2, ShouldEqual, text1)
		So(parsed.Platform, ShouldEqual, d.Platform)
		So(parsed.Builder, ShouldEqual, d.Builder)
		So(parsed.Args, ShouldResemble, d.Args)
		So(parsed.Env, ShouldResemble, d.Env)
	})

	Convey("A derivation with escaped characters round-trips", t, func() {
		store := storemem.New("/nix/store/")
		d := sampleDerivation()
		d.Env["weird"] = "line1\nline2\t\"quoted\"\\backslash"

		text1, err := aterm.Encode(store, d, false)
		So(err, ShouldBeNil)
		parsed, err := aterm.Decode(store, text1)
		So(err, ShouldBeNil)
		So(parsed.Env["weird"], ShouldEqual, d.Env["weird"])
	})
}

func TestMaskOutputs(t *testing.T) {
	Convey("maskOutputs empties every output path", t, func() {
		store := storemem.New("/nix/store/")
		d := sampleDerivation()

		masked, err := aterm.Encode(store, d, true)
		So(err, ShouldBeNil)

		dPrime := sampleDerivation()
		dPrime.Outputs["out"] = drv.InputAddressedOutput{Path: storepath.StorePath{}}
		unmasked, err := aterm.Encode(store, dPrime, false)
		So(err, ShouldBeNil)

		// dPrime's InputAddressedOutput still carries a zero-value path,
		// which prints as a real (if empty-digest) store path rather than
		// "" the way masking does -- so the two texts are not compared;
		// only the masked text is checked to omit the original, non-zero
		// output path.
		So(masked, ShouldNotContainSubstring, store.PrintPath(storepath.StorePath{Name: "hello", Digest: [20]byte{1}}))
		_ = unmasked
	})
}

func TestWireFramingRoundTrip(t *testing.T) {
	Convey("WriteDerivationWire/ReadDerivationWire round-trips", t, func() {
		store := storemem.New("/nix/store/")
		d := sampleDerivation()

		var buf bytes.Buffer
		err := aterm.WriteDerivationWire(&buf, store, d, false)
		So(err, ShouldBeNil)

		parsed, err := aterm.ReadDerivationWire(&buf, store)
		So(err, ShouldBeNil)
		So(parsed.Platform, ShouldEqual, d.Platform)
		So(parsed.Builder, ShouldEqual, d.Builder)
		So(parsed.Args, ShouldResemble, d.Args)
		So(parsed.Env, ShouldResemble, d.Env)
	})
}
