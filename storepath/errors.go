package storepath

/*
	ErrorCategory is the category type used with
	github.com/warpfork/go-errcat across every package in this module
	(storepath, drv, drv/aterm, drvhash).  It lives here, the base
	package everything else depends on, so that a caller can switch on
	errcat.Category(err) against these constants regardless of which
	package actually raised the error -- exactly the pattern the teacher
	documents in lib/errcat/inspect.go, generalized to a module split
	across several packages instead of one.
*/

type ErrorCategory string

const (
	// ErrParse: malformed derivation bytes, in either the ATerm textual
	// form or the length-prefixed wire framing.
	ErrParse = ErrorCategory("nix-parse-error")

	// ErrInvalidDerivationShape: outputs mix incompatible variants, or
	// a fixed-output declaration is combined with any other output.
	ErrInvalidDerivationShape = ErrorCategory("nix-invalid-derivation-shape")

	// ErrUnresolvedDrvHash: a caller required a Regular DrvHash but got
	// Deferred or CaOutputHashes instead.
	ErrUnresolvedDrvHash = ErrorCategory("nix-unresolved-drv-hash")

	// ErrUnknownOutput: a requested output name is absent from a
	// derivation.
	ErrUnknownOutput = ErrorCategory("nix-unknown-output")

	// ErrStore: propagated verbatim from a Store implementation.
	ErrStore = ErrorCategory("nix-store-error")

	// ErrProgrammer: an invariant was violated by a caller, not by
	// untrusted input -- e.g. constructing a DerivationOutputs with a
	// duplicate key in code, rather than parsing one from bytes.
	ErrProgrammer = ErrorCategory("nix-programmer-error")
)
