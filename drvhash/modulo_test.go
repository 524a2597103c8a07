package drvhash_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/ztzg/nix/drv"
	"github.com/ztzg/nix/drv/aterm"
	"github.com/ztzg/nix/drvhash"
	"github.com/ztzg/nix/storepath"
	"github.com/ztzg/nix/storepath/storemem"
)

func leafDerivation(name string) *drv.Derivation {
	return &drv.Derivation{
		BasicDerivation: drv.BasicDerivation{
			Name: name,
			Outputs: drv.DerivationOutputs{
				"out": drv.InputAddressedOutput{Path: storepath.StorePath{Name: name, Digest: [20]byte{byte(len(name))}}},
			},
			Platform: "x86_64-linux",
			Builder:  "/bin/sh",
			Args:     []string{"-c", "true"},
			Env:      map[string]string{},
		},
		InputDrvs: drv.InputDerivations{},
	}
}

func TestHashDerivationModulo_TwoLevelRegular(t *testing.T) {
	Convey("A two-level regular dependency hashes per the masked-replacement rule", t, func() {
		store := storemem.New("/nix/store/")
		h := drvhash.NewHasher()

		b := leafDerivation("b")
		bPath, err := aterm.WriteDerivation(store, b, false, false)
		So(err, ShouldBeNil)

		bModulo, err := h.HashDerivationModuloAt(store, bPath)
		So(err, ShouldBeNil)
		bHash, ok := bModulo.(drvhash.DrvHash)
		So(ok, ShouldBeTrue)

		a := &drv.Derivation{
			BasicDerivation: drv.BasicDerivation{
				Name: "a",
				Outputs: drv.DerivationOutputs{
					"out": drv.InputAddressedOutput{Path: storepath.StorePath{Name: "a"}},
				},
				Platform: "x86_64-linux",
				Builder:  "/bin/sh",
				Args:     []string{"-c", "true"},
				Env:      map[string]string{},
			},
			InputDrvs: drv.InputDerivations{bPath: []string{"out"}},
		}

		aModulo, err := h.HashDerivationModulo(store, a, false)
		So(err, ShouldBeNil)
		aHash, ok := aModulo.(drvhash.DrvHash)
		So(ok, ShouldBeTrue)

		expectedText, err := aterm.EncodeModulo(store, a, false, []aterm.ModuloInputDrv{
			{Key: bHash.Hash.Hex(), OutputNames: []string{"out"}},
		})
		So(err, ShouldBeNil)
		expected := storepath.SumSHA256([]byte(expectedText))

		So(aHash.Hash.Equal(expected), ShouldBeTrue)
		So(aHash.Kind, ShouldEqual, drvhash.Regular)
	})

	Convey("Recomputing the same derivation path returns a memoized, identical result", t, func() {
		store := storemem.New("/nix/store/")
		h := drvhash.NewHasher()

		b := leafDerivation("b")
		bPath, err := aterm.WriteDerivation(store, b, false, false)
		So(err, ShouldBeNil)

		m1, err := h.HashDerivationModuloAt(store, bPath)
		So(err, ShouldBeNil)
		m2, err := h.HashDerivationModuloAt(store, bPath)
		So(err, ShouldBeNil)
		So(m1, ShouldResemble, m2)

		// An empty store has no file at bPath, so this call can only
		// succeed by answering from the memo table.
		m3, err := h.HashDerivationModuloAt(storemem.New("/nix/store/"), bPath)
		So(err, ShouldBeNil)
		So(m3, ShouldResemble, m1)
	})
}

func TestHashDerivationModulo_ModuloInsensitivity(t *testing.T) {
	Convey("Changing an input-drv's builder changes nothing upstream if its modulo-hash is unchanged", t, func() {
		store := storemem.New("/nix/store/")
		h := drvhash.NewHasher()

		buildFixed := func(builder string) *drv.Derivation {
			return &drv.Derivation{
				BasicDerivation: drv.BasicDerivation{
					Name: "src",
					Outputs: drv.DerivationOutputs{
						"out": drv.CAFixedOutput{Hash: drv.FixedOutputHash{Method: drv.Flat, Hash: storepath.SumSHA256([]byte("content"))}},
					},
					Platform: "x86_64-linux",
					Builder:  builder,
					Args:     []string{},
					Env:      map[string]string{},
				},
				InputDrvs: drv.InputDerivations{},
			}
		}
		buildB := func(fixedPath storepath.StorePath) *drv.Derivation {
			b := leafDerivation("b")
			b.InputDrvs = drv.InputDerivations{fixedPath: []string{"out"}}
			return b
		}

		f1Path, err := aterm.WriteDerivation(store, buildFixed("/bin/sh"), false, false)
		So(err, ShouldBeNil)
		b1Path, err := aterm.WriteDerivation(store, buildB(f1Path), false, false)
		So(err, ShouldBeNil)
		m1, err := h.HashDerivationModuloAt(store, b1Path)
		So(err, ShouldBeNil)

		// b2 is a structurally distinct derivation at a different path:
		// its fixed-output input differs from b1's only in its builder.
		// It still shares b1's modulo-hash, because a fixed-output input
		// is replaced by its per-output hash, which ignores the builder.
		f2Path, err := aterm.WriteDerivation(store, buildFixed("/bin/bash"), false, false)
		So(err, ShouldBeNil)
		b2Path, err := aterm.WriteDerivation(store, buildB(f2Path), false, false)
		So(err, ShouldBeNil)
		So(b2Path, ShouldNotResemble, b1Path)
		h2 := drvhash.NewHasher()
		m2, err := h2.HashDerivationModuloAt(store, b2Path)
		So(err, ShouldBeNil)

		So(m1, ShouldResemble, m2)

		buildA := func(inputDrv storepath.StorePath) *drv.Derivation {
			return &drv.Derivation{
				BasicDerivation: drv.BasicDerivation{
					Name:     "a",
					Outputs:  drv.DerivationOutputs{"out": drv.InputAddressedOutput{Path: storepath.StorePath{Name: "a"}}},
					Platform: "x86_64-linux",
					Builder:  "/bin/sh",
					Args:     []string{"-c", "true"},
					Env:      map[string]string{},
				},
				InputDrvs: drv.InputDerivations{inputDrv: []string{"out"}},
			}
		}

		aHash1, err := h.HashDerivationModulo(store, buildA(b1Path), false)
		So(err, ShouldBeNil)
		aHash2, err := h2.HashDerivationModulo(store, buildA(b2Path), false)
		So(err, ShouldBeNil)

		So(aHash1, ShouldResemble, aHash2)
	})
}

func TestHashDerivationModulo_FloatingLeaf(t *testing.T) {
	Convey("A floating-CA output yields a Deferred DrvHash", t, func() {
		store := storemem.New("/nix/store/")
		h := drvhash.NewHasher()

		d := &drv.Derivation{
			BasicDerivation: drv.BasicDerivation{
				Name: "floaty",
				Outputs: drv.DerivationOutputs{
					"out": drv.CAFloatingOutput{Method: drv.Recursive, HashType: storepath.SHA256},
				},
				Platform: "x86_64-linux",
				Builder:  "/bin/sh",
				Args:     []string{"-c", "true"},
				Env:      map[string]string{},
			},
			InputDrvs: drv.InputDerivations{},
		}

		modulo, err := h.HashDerivationModulo(store, d, false)
		So(err, ShouldBeNil)
		dh, ok := modulo.(drvhash.DrvHash)
		So(ok, ShouldBeTrue)
		So(dh.Kind, ShouldEqual, drvhash.Deferred)
	})
}

func TestHashDerivationModulo_DeferredPropagation(t *testing.T) {
	Convey("A Deferred transitive input propagates to the top-level result", t, func() {
		store := storemem.New("/nix/store/")
		h := drvhash.NewHasher()

		floaty := &drv.Derivation{
			BasicDerivation: drv.BasicDerivation{
				Name:     "floaty",
				Outputs:  drv.DerivationOutputs{"out": drv.CAFloatingOutput{Method: drv.Flat, HashType: storepath.SHA256}},
				Platform: "x86_64-linux",
				Builder:  "/bin/sh",
				Args:     []string{"-c", "true"},
				Env:      map[string]string{},
			},
			InputDrvs: drv.InputDerivations{},
		}
		floatyPath, err := aterm.WriteDerivation(store, floaty, false, false)
		So(err, ShouldBeNil)

		top := &drv.Derivation{
			BasicDerivation: drv.BasicDerivation{
				Name:     "top",
				Outputs:  drv.DerivationOutputs{"out": drv.DeferredOutput{}},
				Platform: "x86_64-linux",
				Builder:  "/bin/sh",
				Args:     []string{"-c", "true"},
				Env:      map[string]string{},
			},
			InputDrvs: drv.InputDerivations{floatyPath: []string{"out"}},
		}

		modulo, err := h.HashDerivationModulo(store, top, false)
		So(err, ShouldBeNil)
		dh, ok := modulo.(drvhash.DrvHash)
		So(ok, ShouldBeTrue)
		So(dh.Kind, ShouldEqual, drvhash.Deferred)
	})
}

func TestHashDerivationModulo_FixedUnderRegular(t *testing.T) {
	Convey("A fixed-output dependency's modulo hash is a CaOutputHashes map, insensitive to its builder", t, func() {
		store := storemem.New("/nix/store/")
		h := drvhash.NewHasher()

		buildFixed := func(builder string) *drv.Derivation {
			return &drv.Derivation{
				BasicDerivation: drv.BasicDerivation{
					Name: "src",
					Outputs: drv.DerivationOutputs{
						"out": drv.CAFixedOutput{Hash: drv.FixedOutputHash{Method: drv.Flat, Hash: storepath.SumSHA256([]byte("content"))}},
					},
					Platform: "x86_64-linux",
					Builder:  builder,
					Args:     []string{},
					Env:      map[string]string{},
				},
				InputDrvs: drv.InputDerivations{},
			}
		}

		f1 := buildFixed("/bin/sh")
		f1Path, err := aterm.WriteDerivation(store, f1, false, false)
		So(err, ShouldBeNil)
		m1, err := h.HashDerivationModuloAt(store, f1Path)
		So(err, ShouldBeNil)
		_, ok := m1.(drvhash.CaOutputHashes)
		So(ok, ShouldBeTrue)

		f2 := buildFixed("/bin/bash")
		h2 := drvhash.NewHasher()
		f2Path, err := aterm.WriteDerivation(store, f2, false, false)
		So(err, ShouldBeNil)
		m2, err := h2.HashDerivationModuloAt(store, f2Path)
		So(err, ShouldBeNil)

		So(m1, ShouldResemble, m2)

		buildA := func(fixedPath storepath.StorePath) *drv.Derivation {
			return &drv.Derivation{
				BasicDerivation: drv.BasicDerivation{
					Name:     "a",
					Outputs:  drv.DerivationOutputs{"out": drv.InputAddressedOutput{Path: storepath.StorePath{Name: "a"}}},
					Platform: "x86_64-linux",
					Builder:  "/bin/sh",
					Args:     []string{"-c", "true"},
					Env:      map[string]string{},
				},
				InputDrvs: drv.InputDerivations{fixedPath: []string{"out"}},
			}
		}

		aHash1, err := h.HashDerivationModulo(store, buildA(f1Path), false)
		So(err, ShouldBeNil)
		aHash2, err := h2.HashDerivationModulo(store, buildA(f2Path), false)
		So(err, ShouldBeNil)

		So(aHash1, ShouldResemble, aHash2)
	})
}

func TestRequireNoFixedNonDeferred(t *testing.T) {
	Convey("RequireNoFixedNonDeferred accepts only a Regular DrvHash", t, func() {
		ok := drvhash.DrvHash{Hash: storepath.SumSHA256([]byte("x")), Kind: drvhash.Regular}
		h, err := drvhash.RequireNoFixedNonDeferred(ok)
		So(err, ShouldBeNil)
		So(h, ShouldResemble, ok.Hash)

		deferred := drvhash.DrvHash{Hash: storepath.SumSHA256([]byte("x")), Kind: drvhash.Deferred}
		_, err = drvhash.RequireNoFixedNonDeferred(deferred)
		So(err, ShouldNotBeNil)

		_, err = drvhash.RequireNoFixedNonDeferred(drvhash.CaOutputHashes{})
		So(err, ShouldNotBeNil)
	})
}
