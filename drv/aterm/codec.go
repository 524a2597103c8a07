// Package aterm implements the canonical textual serialization of a
// derivation (the "ATerm" format: Derive(...) applied to a fixed
// positional schema) and the length-prefixed binary wire framing used
// to move the same content between process and store.
package aterm

import (
	"sort"
	"strings"

	. "github.com/warpfork/go-errcat"

	"github.com/ztzg/nix/drv"
	"github.com/ztzg/nix/storepath"
)

// Encode renders d in the canonical textual form. When maskOutputs is
// set, every output's path field is emitted as the empty string
// regardless of its actual value -- the form the modulo-hasher hashes,
// so that a derivation's own not-yet-known output paths never leak
// into its own hash.
func Encode(store storepath.Store, d *drv.Derivation, maskOutputs bool) (string, error) {
	return encode(store, d, maskOutputs, func(b *strings.Builder) {
		writeInputDrvs(b, store, d.InputDrvs)
	})
}

// EncodeModulo renders d the same way Encode does, except the inputDrvs
// field is replaced by replacement: an ordered list of (key, output
// names) pairs where key is already the exact string the modulo-hasher
// wants serialized in that position (the hex of a recursively-computed
// hash, not a store path). This is the "masked copy... inputDrvs is
// replaced by a map" step of hashDerivationModulo (§4.5); nothing else
// about the encoding changes.
func EncodeModulo(store storepath.Store, d *drv.Derivation, maskOutputs bool, replacement []ModuloInputDrv) (string, error) {
	return encode(store, d, maskOutputs, func(b *strings.Builder) {
		writeModuloInputDrvs(b, replacement)
	})
}

// ModuloInputDrv is one entry of the replacement map described above.
type ModuloInputDrv struct {
	Key         string
	OutputNames []string
}

func encode(store storepath.Store, d *drv.Derivation, maskOutputs bool, writeInputs func(*strings.Builder)) (string, error) {
	var b strings.Builder
	b.WriteString("Derive(")

	if err := writeOutputs(&b, store, d, maskOutputs); err != nil {
		return "", err
	}
	b.WriteByte(',')
	writeInputs(&b)
	b.WriteByte(',')
	writeStorePaths(&b, store, d.InputSrcs)
	b.WriteByte(',')
	writeQuoted(&b, d.Platform)
	b.WriteByte(',')
	writeQuoted(&b, d.Builder)
	b.WriteByte(',')
	writeStrings(&b, d.Args)
	b.WriteByte(',')
	writeEnv(&b, d.Env)
	b.WriteByte(')')

	return b.String(), nil
}

func writeModuloInputDrvs(b *strings.Builder, replacement []ModuloInputDrv) {
	sorted := append([]ModuloInputDrv{}, replacement...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	b.WriteByte('[')
	for i, entry := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		names := append([]string{}, entry.OutputNames...)
		sort.Strings(names)
		b.WriteByte('(')
		writeQuoted(b, entry.Key)
		b.WriteByte(',')
		writeStrings(b, names)
		b.WriteByte(')')
	}
	b.WriteByte(']')
}

func writeQuoted(b *strings.Builder, s string) {
	b.WriteByte('"')
	b.WriteString(escapeString(s))
	b.WriteByte('"')
}

func writeStrings(b *strings.Builder, ss []string) {
	b.WriteByte('[')
	for i, s := range ss {
		if i > 0 {
			b.WriteByte(',')
		}
		writeQuoted(b, s)
	}
	b.WriteByte(']')
}

func writeStorePaths(b *strings.Builder, store storepath.Store, paths []storepath.StorePath) {
	sorted := append([]storepath.StorePath{}, paths...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })
	b.WriteByte('[')
	for i, p := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		writeQuoted(b, store.PrintPath(p))
	}
	b.WriteByte(']')
}

func writeOutputs(b *strings.Builder, store storepath.Store, d *drv.Derivation, maskOutputs bool) error {
	names := d.Outputs.SortedNames()
	b.WriteByte('[')
	for i, name := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		if err := writeOutput(b, store, d.Name, name, d.Outputs[name], maskOutputs); err != nil {
			return err
		}
	}
	b.WriteByte(']')
	return nil
}

func writeOutput(b *strings.Builder, store storepath.Store, drvName, outputName string, out drv.DerivationOutput, maskOutputs bool) error {
	var pathStr, hashAlgo, hashHex string

	switch o := out.(type) {
	case drv.InputAddressedOutput:
		pathStr = store.PrintPath(o.Path)
	case drv.CAFixedOutput:
		path, ok, err := drv.OutputPath(store, drvName, outputName, out)
		if err != nil {
			return err
		}
		if ok {
			pathStr = store.PrintPath(path)
		}
		hashAlgo = fixedOutputHashAlgo(o.Hash)
		hashHex = o.Hash.Hash.Hex()
	case drv.CAFloatingOutput:
		hashAlgo = floatingHashAlgo(o)
	case drv.DeferredOutput:
		// all fields empty
	default:
		return Errorf(storepath.ErrProgrammer, "unreachable derivation output variant %T", out)
	}

	if maskOutputs {
		pathStr = ""
	}

	b.WriteByte('(')
	writeQuoted(b, outputName)
	b.WriteByte(',')
	writeQuoted(b, pathStr)
	b.WriteByte(',')
	writeQuoted(b, hashAlgo)
	b.WriteByte(',')
	writeQuoted(b, hashHex)
	b.WriteByte(')')
	return nil
}

func fixedOutputHashAlgo(h drv.FixedOutputHash) string {
	return h.PrintMethodAlgo()
}

func floatingHashAlgo(o drv.CAFloatingOutput) string {
	tag := ""
	if o.Method == drv.Recursive {
		tag = "r:"
	}
	return tag + string(o.HashType)
}

func writeInputDrvs(b *strings.Builder, store storepath.Store, inputs drv.InputDerivations) {
	paths := make([]storepath.StorePath, 0, len(inputs))
	for p := range inputs {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i].String() < paths[j].String() })

	b.WriteByte('[')
	for i, p := range paths {
		if i > 0 {
			b.WriteByte(',')
		}
		names := append([]string{}, inputs[p]...)
		sort.Strings(names)
		b.WriteByte('(')
		writeQuoted(b, store.PrintPath(p))
		b.WriteByte(',')
		writeStrings(b, names)
		b.WriteByte(')')
	}
	b.WriteByte(']')
}

func writeEnv(b *strings.Builder, env map[string]string) {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteByte('[')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('(')
		writeQuoted(b, k)
		b.WriteByte(',')
		writeQuoted(b, env[k])
		b.WriteByte(')')
	}
	b.WriteByte(']')
}
