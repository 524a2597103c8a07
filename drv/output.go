package drv

import (
	. "github.com/warpfork/go-errcat"

	"github.com/ztzg/nix/storepath"
)

// FileIngestionMethod selects whether a content hash is taken over a
// single file's bytes (Flat) or a canonical serialization of a
// directory tree (Recursive).
type FileIngestionMethod string

const (
	Flat      FileIngestionMethod = "flat"
	Recursive FileIngestionMethod = "recursive"
)

// Tag is the string nix/zb conventionally prefixes onto a hash
// algorithm name to record the ingestion method: "r:" for Recursive,
// empty for Flat.
func (m FileIngestionMethod) Tag() string {
	if m == Recursive {
		return "r:"
	}
	return ""
}

// FixedOutputHash pairs an ingestion method with the hash it pins.
type FixedOutputHash struct {
	Method FileIngestionMethod
	Hash   storepath.Hash
}

// PrintMethodAlgo renders the "[r:]<algo>" string ATerm serializes into
// an output's hashAlgo field.
func (h FixedOutputHash) PrintMethodAlgo() string {
	return h.Method.Tag() + string(h.Hash.Algo)
}

// innerHash is the algorithm-prefixed lowercase hex of the fixed hash,
// the form fed into the fixed-output preimage.
func (h FixedOutputHash) innerHash() string {
	return string(h.Hash.Algo) + ":" + h.Hash.Hex()
}

// DerivationOutput is a closed, four-way tagged variant describing how
// one output's path is determined. Every consumer (classifier, codec,
// hasher, path-computer) switches on the concrete type exhaustively;
// there is deliberately no open interface method that lets a variant
// hide its own behavior, and every such switch has a default branch
// that reports an ErrProgrammer error, so an unknown fifth alternative
// fails loudly at run time instead of silently falling through.
type DerivationOutput interface {
	isDerivationOutput()
}

// InputAddressedOutput's path is pre-computed from the owning
// derivation's modulo-hash and stored directly.
type InputAddressedOutput struct {
	Path storepath.StorePath
}

// CAFixedOutput's path is a pure function of Hash, the derivation's name
// and the output name; known a priori, independent of the rest of the
// derivation.
type CAFixedOutput struct {
	Hash FixedOutputHash
}

// CAFloatingOutput's path is a function of the realized content, not
// knowable until the build succeeds.
type CAFloatingOutput struct {
	Method   FileIngestionMethod
	HashType storepath.Algo
}

// DeferredOutput is input-addressed but not yet computable because some
// ancestor of the owning derivation is floating-CA.
type DeferredOutput struct{}

func (InputAddressedOutput) isDerivationOutput() {}
func (CAFixedOutput) isDerivationOutput()        {}
func (CAFloatingOutput) isDerivationOutput()     {}
func (DeferredOutput) isDerivationOutput()       {}

// OutputPathName returns drvName when outputName is "out" -- the
// conventional primary output -- and drvName + "-" + outputName
// otherwise.
func OutputPathName(drvName, outputName string) string {
	if outputName == "out" {
		return drvName
	}
	return drvName + "-" + outputName
}

// OutputPath answers "what path does this output occupy?", per output
// variant. ok is false for CAFloatingOutput and DeferredOutput, which
// have no computable path until a build happens.
func OutputPath(store storepath.Store, drvName, outputName string, out DerivationOutput) (storepath.StorePath, bool, error) {
	switch o := out.(type) {
	case InputAddressedOutput:
		return o.Path, true, nil
	case CAFixedOutput:
		p, err := fixedOutputPath(store, drvName, outputName, o.Hash)
		if err != nil {
			return storepath.StorePath{}, false, err
		}
		return p, true, nil
	case CAFloatingOutput, DeferredOutput:
		return storepath.StorePath{}, false, nil
	default:
		return storepath.StorePath{}, false, Errorf(storepath.ErrProgrammer, "unreachable derivation output variant %T", out)
	}
}

// fixedOutputPath computes the path deterministically so that any two
// derivations sharing the same (method, hash, outputName, drvName)
// agree on it regardless of anything else in either derivation -- the
// fixed-output stability property (spec §8).
func fixedOutputPath(store storepath.Store, drvName, outputName string, h FixedOutputHash) (storepath.StorePath, error) {
	name := OutputPathName(drvName, outputName)
	preimage := "fixed:out:" + h.Method.Tag() + ":" + h.innerHash() + ":" + store.Root() + name
	digest := storepath.SumSHA256([]byte(preimage))
	return store.PathFromHash(digest.Bytes, name)
}
