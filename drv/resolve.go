package drv

import (
	"strings"

	"github.com/ztzg/nix/storepath"
)

// TryResolve turns a Derivation with Deferred outputs and input
// derivations into a BasicDerivation with every downstream placeholder
// substituted for the real, now-known path -- provided every input
// output it references has in fact been resolved already.  ok is false
// if any referenced (inputDrv, outputName) pair isn't resolvable yet,
// in which case resolved is the zero value and no partial rewrite is
// returned.
func TryResolve(store storepath.Store, d *Derivation) (resolved BasicDerivation, ok bool, err error) {
	rewrites := make(map[string]string)
	extraSrcs := make([]storepath.StorePath, 0)

	for inputDrv, outputNames := range d.InputDrvs {
		for _, outputName := range outputNames {
			actual, found, err := store.ResolveOutput(inputDrv, outputName)
			if err != nil {
				return BasicDerivation{}, false, err
			}
			if !found {
				return BasicDerivation{}, false, nil
			}
			placeholder := DownstreamPlaceholder(store, inputDrv, outputName)
			rewrites[placeholder] = store.PrintPath(actual)
			extraSrcs = append(extraSrcs, actual)
		}
	}

	resolved = d.BasicDerivation
	resolved.InputSrcs = append(append([]storepath.StorePath{}, d.InputSrcs...), extraSrcs...)
	resolved.Builder = rewriteString(d.Builder, rewrites)
	resolved.Args = rewriteStrings(d.Args, rewrites)
	resolved.Env = rewriteEnv(d.Env, rewrites)

	return resolved, true, nil
}

func rewriteString(s string, rewrites map[string]string) string {
	for placeholder, actual := range rewrites {
		s = strings.ReplaceAll(s, placeholder, actual)
	}
	return s
}

func rewriteStrings(ss []string, rewrites map[string]string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = rewriteString(s, rewrites)
	}
	return out
}

func rewriteEnv(env map[string]string, rewrites map[string]string) map[string]string {
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[k] = rewriteString(v, rewrites)
	}
	return out
}
