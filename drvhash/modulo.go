// Package drvhash computes hashDerivationModulo: the recursive,
// memoized hash that gives a derivation and its outputs a stable
// identity independent of semantically irrelevant changes upstream of
// any fixed-output dependency.
package drvhash

import (
	"sync"

	"github.com/inconshreveable/log15"
	. "github.com/warpfork/go-errcat"

	"github.com/ztzg/nix/drv"
	"github.com/ztzg/nix/drv/aterm"
	"github.com/ztzg/nix/storepath"
)

// DrvHashModulo is the closed, two-way result of hashDerivationModulo.
// Exactly one of CaOutputHashes or DrvHash is ever produced for a given
// derivation, determined by its DerivationType.
type DrvHashModulo interface {
	isDrvHashModulo()
}

// CaOutputHashes is produced only for fixed-output derivations: one
// hash per output name, computed directly from that output's pinned
// content hash and realized path, with no recursion.
type CaOutputHashes map[string]storepath.Hash

// DrvHash is produced for every other derivation type: a single hash
// covering the whole (masked) derivation, plus the Kind recording
// whether that hash is safe to use for output-path derivation yet.
type DrvHash struct {
	Hash storepath.Hash
	Kind Kind
}

func (CaOutputHashes) isDrvHashModulo() {}
func (DrvHash) isDrvHashModulo()        {}

// Hasher owns the process-wide memoization table mapping a derivation's
// own store path to its already-computed DrvHashModulo.  The design
// notes call for an explicit cache handle rather than a true package
// global; callers construct one Hasher per process (or per test) and
// share it across concurrent callers.
type Hasher struct {
	mu     sync.Mutex
	cache  map[storepath.StorePath]DrvHashModulo
	Logger log15.Logger
}

func NewHasher() *Hasher {
	return &Hasher{cache: make(map[storepath.StorePath]DrvHashModulo)}
}

func (h *Hasher) logger() log15.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return log15.Root()
}

// HashDerivationModuloAt is HashDerivationModulo for a derivation
// already known to live at drvPath in store -- the entry point used by
// recursion, where the caller has a path but not yet a parsed
// Derivation.  It consults the memo table before reading or parsing
// anything.
func (h *Hasher) HashDerivationModuloAt(store storepath.Store, drvPath storepath.StorePath) (DrvHashModulo, error) {
	if cached, ok := h.lookup(drvPath); ok {
		return cached, nil
	}

	data, err := store.ReadFile(drvPath)
	if err != nil {
		return nil, err
	}
	parsed, err := aterm.Decode(store, string(data))
	if err != nil {
		return nil, err
	}
	parsed.Name = drv.NameFromPath(drvPath)

	result, err := h.hashDerivationModulo(store, parsed, false)
	if err != nil {
		return nil, err
	}
	h.store(drvPath, result)
	return result, nil
}

func (h *Hasher) lookup(path storepath.StorePath) (DrvHashModulo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.cache[path]
	return v, ok
}

func (h *Hasher) store(path storepath.StorePath, v DrvHashModulo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cache[path] = v
}

// HashDerivationModulo implements the algorithm of §4.5: fixed-output
// derivations short-circuit to CaOutputHashes; everything else is
// masked (inputDrvs rewritten to (hash-hex -> output names)) and hashed
// as a DrvHash whose Kind absorbs Deferred from any floating output or
// any recursively Deferred input.
//
// This entry point does not itself consult or populate the memo table
// -- that happens only at the granularity of a derivation's own store
// path, via HashDerivationModuloAt -- since a freshly-constructed
// Derivation that hasn't been written to the store yet has no path to
// key the cache on.
func (h *Hasher) HashDerivationModulo(store storepath.Store, d *drv.Derivation, maskOutputs bool) (DrvHashModulo, error) {
	return h.hashDerivationModulo(store, d, maskOutputs)
}

func (h *Hasher) hashDerivationModulo(store storepath.Store, d *drv.Derivation, maskOutputs bool) (DrvHashModulo, error) {
	typ, err := drv.Classify(&d.BasicDerivation)
	if err != nil {
		return nil, err
	}

	if typ == drv.CAFixed {
		return h.caOutputHashes(store, d)
	}

	kind := Regular
	if typ == drv.CAFloating {
		kind = Deferred
	}

	byKey := make(map[string][]string)
	for inputDrvPath, outputNames := range d.InputDrvs {
		h.logger().Debug("hashDerivationModulo: recursing into input", "path", store.PrintPath(inputDrvPath))

		sub, err := h.HashDerivationModuloAt(store, inputDrvPath)
		if err != nil {
			return nil, err
		}

		switch s := sub.(type) {
		case CaOutputHashes:
			for _, outputName := range outputNames {
				hash, ok := s[outputName]
				if !ok {
					return nil, Errorf(storepath.ErrUnknownOutput, "derivation %q has no output %q", store.PrintPath(inputDrvPath), outputName)
				}
				key := hash.Hex()
				byKey[key] = append(byKey[key], outputName)
			}
		case DrvHash:
			key := s.Hash.Hex()
			byKey[key] = append(byKey[key], outputNames...)
			kind = kind.Join(s.Kind)
		default:
			return nil, Errorf(storepath.ErrProgrammer, "unreachable DrvHashModulo variant %T", sub)
		}
	}

	replacement := make([]aterm.ModuloInputDrv, 0, len(byKey))
	for key, names := range byKey {
		replacement = append(replacement, aterm.ModuloInputDrv{Key: key, OutputNames: names})
	}

	text, err := aterm.EncodeModulo(store, d, maskOutputs, replacement)
	if err != nil {
		return nil, err
	}

	return DrvHash{Hash: storepath.SumSHA256([]byte(text)), Kind: kind}, nil
}

// caOutputHashes implements §4.5 step 1: a fixed-output derivation is
// its own equivalence class, so its per-output hash is computed
// directly from the pinned hash and the output's realized full store
// path, with no recursion and no masking.
func (h *Hasher) caOutputHashes(store storepath.Store, d *drv.Derivation) (DrvHashModulo, error) {
	out := make(CaOutputHashes, len(d.Outputs))
	for name, o := range d.Outputs {
		fixed, ok := o.(drv.CAFixedOutput)
		if !ok {
			return nil, Errorf(storepath.ErrProgrammer, "caOutputHashes called on non-fixed output %q", name)
		}
		path, ok, err := drv.OutputPath(store, d.Name, name, o)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, Errorf(storepath.ErrProgrammer, "fixed output %q has no computable path", name)
		}

		innerHash := string(fixed.Hash.Hash.Algo) + ":" + fixed.Hash.Hash.Hex()
		preimage := "fixed:out:" + fixed.Hash.Method.Tag() + ":" + innerHash + ":" + store.PrintPath(path)
		out[name] = storepath.SumSHA256([]byte(preimage))
	}
	return out, nil
}

// StaticOutputHashes returns, for every output of d, a Hash uniquely
// identifying it modulo self-references: the per-output hash for
// CAFixed derivations, or the single DrvHash.hash replicated across
// every output name for everything else.  Callers that intend to use
// these for path derivation must additionally check
// RequireNoFixedNonDeferred.
func StaticOutputHashes(d *drv.Derivation, modulo DrvHashModulo) (map[string]storepath.Hash, error) {
	switch m := modulo.(type) {
	case CaOutputHashes:
		return map[string]storepath.Hash(m), nil
	case DrvHash:
		out := make(map[string]storepath.Hash, len(d.Outputs))
		for name := range d.Outputs {
			out[name] = m.Hash
		}
		return out, nil
	default:
		return nil, Errorf(storepath.ErrProgrammer, "unreachable DrvHashModulo variant %T", modulo)
	}
}

// RequireNoFixedNonDeferred returns the contained Hash only when modulo
// is a DrvHash with Kind == Regular; otherwise it fails with
// UnresolvedDrvHash, matching the original implementation's
// requireNoFixedNonDeferred.
func RequireNoFixedNonDeferred(modulo DrvHashModulo) (storepath.Hash, error) {
	dh, ok := modulo.(DrvHash)
	if !ok || dh.Kind != Regular {
		return storepath.Hash{}, Errorf(storepath.ErrUnresolvedDrvHash, "derivation hash is not a resolved regular hash: %#v", modulo)
	}
	return dh.Hash, nil
}
