package drv

import (
	. "github.com/warpfork/go-errcat"

	"github.com/ztzg/nix/storepath"
)

// DerivationType classifies a whole derivation by the shape of its
// outputs, mirroring the original implementation's
// BasicDerivation::type().  A derivation's outputs must all agree on
// one of these shapes; mixing them is a construction error caught by
// Classify, never something the rest of this module needs to handle as
// a valid, if unusual, case.
type DerivationType int

const (
	// InputAddressed: every output is InputAddressedOutput.
	InputAddressed DerivationType = iota
	// CAFixed: exactly one output, named "out", and it is CAFixedOutput.
	CAFixed
	// CAFloating: every output is CAFloatingOutput.
	CAFloating
	// Deferred: every output is DeferredOutput.
	Deferred
)

func (t DerivationType) String() string {
	switch t {
	case InputAddressed:
		return "input-addressed"
	case CAFixed:
		return "ca-fixed"
	case CAFloating:
		return "ca-floating"
	case Deferred:
		return "deferred"
	default:
		return "unknown"
	}
}

// IsCA reports whether outputs of this type are content-addressed
// (their path is, or will be, a function of their content rather than
// of the derivation's inputs).
func (t DerivationType) IsCA() bool {
	return t == CAFixed || t == CAFloating
}

// IsFixed reports whether the content of this derivation's outputs is
// fixed a-priori via a hash. Never true for non-CA derivations.
func (t DerivationType) IsFixed() bool {
	return t == CAFixed
}

// IsImpure reports whether this derivation is allowed to observe
// builder-external state, e.g. network access during the build.
// Fixed-output derivations are the only ones permitted this.
func (t DerivationType) IsImpure() bool {
	return t == CAFixed
}

// HasKnownOutputPaths reports whether every output's path is computable
// right now, without needing a completed build to resolve it.
func (t DerivationType) HasKnownOutputPaths() bool {
	return t == InputAddressed || t == CAFixed
}

// Classify inspects a BasicDerivation's outputs and determines its
// DerivationType, or reports the specific way they disagree.  The
// mixing rules follow the original implementation exactly: CAFixed
// requires exactly one output named "out" and nothing else, everything
// else requires homogeneity across all outputs.
func Classify(d *BasicDerivation) (DerivationType, error) {
	if len(d.Outputs) == 0 {
		return 0, Errorf(storepath.ErrInvalidDerivationShape, "derivation %q has no outputs", d.Name)
	}

	if out, ok := d.Outputs["out"]; ok {
		if _, isFixed := out.(CAFixedOutput); isFixed {
			if len(d.Outputs) != 1 {
				return 0, Errorf(storepath.ErrInvalidDerivationShape,
					"derivation %q: fixed-output derivations must have exactly one output named \"out\", got %d outputs",
					d.Name, len(d.Outputs))
			}
			return CAFixed, nil
		}
	}

	var seenInputAddressed, seenCAFloating, seenDeferred, seenCAFixed bool
	for name, out := range d.Outputs {
		switch out.(type) {
		case InputAddressedOutput:
			seenInputAddressed = true
		case CAFloatingOutput:
			seenCAFloating = true
		case DeferredOutput:
			seenDeferred = true
		case CAFixedOutput:
			seenCAFixed = true
			_ = name
		default:
			return 0, Errorf(storepath.ErrProgrammer, "unreachable derivation output variant %T on output %q", out, name)
		}
	}

	switch {
	case seenCAFixed:
		return 0, Errorf(storepath.ErrInvalidDerivationShape,
			"derivation %q: a fixed-output declaration cannot be combined with any other output", d.Name)
	case seenInputAddressed && (seenCAFloating || seenDeferred):
		return 0, Errorf(storepath.ErrInvalidDerivationShape,
			"derivation %q: cannot mix input-addressed outputs with content-addressed or deferred outputs", d.Name)
	case seenCAFloating && seenDeferred:
		return 0, Errorf(storepath.ErrInvalidDerivationShape,
			"derivation %q: cannot mix floating content-addressed outputs with deferred outputs", d.Name)
	case seenDeferred:
		return Deferred, nil
	case seenCAFloating:
		return CAFloating, nil
	default:
		return InputAddressed, nil
	}
}
