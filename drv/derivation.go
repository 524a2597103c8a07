package drv

import (
	. "github.com/warpfork/go-errcat"

	"github.com/ztzg/nix/storepath"
)

// DerivationOutputs is a map from output name to its descriptor;
// SortedNames gives the canonical by-key order.  NewDerivationOutputs
// builds one from a list of pairs so that a duplicate name -- which can
// only happen from buggy caller code, never from parsing (the codec
// rejects duplicate keys itself) -- is caught at the boundary instead of
// silently overwriting an entry.
type DerivationOutputs map[string]DerivationOutput

func NewDerivationOutputs(pairs ...DerivationOutputPair) (DerivationOutputs, error) {
	outs := make(DerivationOutputs, len(pairs))
	for _, p := range pairs {
		if _, exists := outs[p.Name]; exists {
			return nil, Errorf(storepath.ErrProgrammer, "duplicate output name %q", p.Name)
		}
		outs[p.Name] = p.Output
	}
	return outs, nil
}

type DerivationOutputPair struct {
	Name   string
	Output DerivationOutput
}

// SortedNames returns the output names in the canonical ascending order
// the ATerm codec serializes them in.
func (outs DerivationOutputs) SortedNames() []string {
	names := make([]string, 0, len(outs))
	for name := range outs {
		names = append(names, name)
	}
	sortStrings(names)
	return names
}

// sortStrings is a tiny insertion sort; output lists are small (almost
// always one entry, rarely more than a handful), so pulling in "sort"
// for this isn't worth the indirection.
func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// InputDerivations maps a referenced .drv's store path to the subset of
// its output names this derivation actually consumes.
type InputDerivations map[storepath.StorePath][]string

// BasicDerivation is the part of a derivation that a build executes
// against: its outputs, its free-standing input sources, the builder
// invocation, and the environment.  It deliberately excludes
// InputDrvs -- a BasicDerivation has no further derivations behind it,
// matching the resolved form a real build sees.
type BasicDerivation struct {
	Name       string
	Outputs    DerivationOutputs
	InputSrcs  []storepath.StorePath
	Platform   string
	Builder    string
	Args       []string
	Env        map[string]string
}

// Derivation is a BasicDerivation plus its derivation-typed inputs: the
// full in-memory representation of a parsed or constructed .drv.
type Derivation struct {
	BasicDerivation
	InputDrvs InputDerivations
}

// OutputsAndOptPaths pairs every output name with its path when one is
// already computable (nil otherwise), mirroring the original
// implementation's BasicDerivation::outputsAndOptPaths: a caller that
// wants "give me everything, tell me what's missing" in one pass rather
// than calling OutputPath per name.
type OutputAndOptPath struct {
	Output DerivationOutput
	Path   *storepath.StorePath
}

type DerivationOutputsAndOptPaths map[string]OutputAndOptPath

func (d *BasicDerivation) OutputsAndOptPaths(store storepath.Store) (DerivationOutputsAndOptPaths, error) {
	result := make(DerivationOutputsAndOptPaths, len(d.Outputs))
	for name, out := range d.Outputs {
		path, ok, err := OutputPath(store, d.Name, name, out)
		if err != nil {
			return nil, err
		}
		entry := OutputAndOptPath{Output: out}
		if ok {
			entry.Path = &path
		}
		result[name] = entry
	}
	return result, nil
}

// IsBuiltin reports whether the builder invocation names one of the
// in-process pseudo-builders (conventionally prefixed "builtin:") rather
// than a real executable to run in a sandbox.  This module never runs
// either kind -- executing builds is out of scope -- but the
// classification itself is part of the data model other collaborators
// branch on.
func (d *BasicDerivation) IsBuiltin() bool {
	return len(d.Builder) >= len("builtin:") && d.Builder[:len("builtin:")] == "builtin:"
}

// WantOutput reports whether name is present in wanted, or whether name
// should be included because wanted is empty (meaning "all outputs").
func WantOutput(name string, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, w := range wanted {
		if w == name {
			return true
		}
	}
	return false
}

// NameFromPath strips a .drv path's "<hash>-" prefix and ".drv" suffix
// to recover the derivation's declared Name, the inverse of
// OutputPathName("out") composed with store-path rendering.
func NameFromPath(path storepath.StorePath) string {
	const suffix = ".drv"
	name := path.Name
	if len(name) >= len(suffix) && name[len(name)-len(suffix):] == suffix {
		name = name[:len(name)-len(suffix)]
	}
	return name
}
