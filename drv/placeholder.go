package drv

import (
	"github.com/ztzg/nix/storepath"
)

// HashPlaceholder is the opaque token substituted into a builder's
// environment in place of an output whose path isn't known yet because
// it's floating content-addressed.  It depends only on the output
// name, never on anything else about the derivation, so two
// derivations that both produce a floating output named "out" embed
// the identical placeholder string -- intentional, since the builder
// text is rewritten with the real path only after the build.
func HashPlaceholder(outputName string) string {
	h := storepath.SumSHA256([]byte("nix-output:" + outputName))
	return "/" + storepath.EncodeBase32(h.Bytes)
}

// DownstreamPlaceholder is the token substituted for an output of
// drvPath that is itself Deferred: not yet known because some upstream
// derivation is floating content-addressed, but distinguishable per
// (drvPath, outputName) so that two different unresolved derivations
// never collide on the same placeholder.
func DownstreamPlaceholder(store storepath.Store, drvPath storepath.StorePath, outputName string) string {
	drvName := NameFromPath(drvPath)
	hashPart := storepath.EncodeBase32(drvPath.Digest[:])
	clearText := "nix-upstream-output:" + hashPart + ":" + OutputPathName(drvName, outputName)
	h := storepath.SumSHA256([]byte(clearText))
	return "/" + storepath.EncodeBase32(h.Bytes)
}
