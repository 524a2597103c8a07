package aterm

import (
	"encoding/binary"
	"sort"

	. "github.com/warpfork/go-errcat"

	"github.com/ztzg/nix/drv"
	"github.com/ztzg/nix/storepath"
)

/*
	ReadDerivationWire and WriteDerivationWire implement the length-prefixed
	binary framing used on the wire between processes of the same
	family: every string is preceded by its little-endian 64-bit byte
	length, padded up to the next multiple of 8, and every sequence is
	preceded by its element count.  Semantic content is identical to the
	textual ATerm form; this is purely an alternate encoding of the same
	fields in the same positional order.
*/

func writeWireString(sink storepath.Sink, s string) error {
	n := uint64(len(s))
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], n)
	if err := writeAll(sink, lenBuf[:]); err != nil {
		return err
	}
	if err := writeAll(sink, []byte(s)); err != nil {
		return err
	}
	pad := paddedLen(n) - n
	if pad > 0 {
		if err := writeAll(sink, make([]byte, pad)); err != nil {
			return err
		}
	}
	return nil
}

func paddedLen(n uint64) uint64 {
	return (n + 7) / 8 * 8
}

func writeAll(sink storepath.Sink, buf []byte) error {
	for len(buf) > 0 {
		n, err := sink.Write(buf)
		if err != nil {
			return Errorf(storepath.ErrStore, "wire write failed: %s", err)
		}
		buf = buf[n:]
	}
	return nil
}

func readAll(source storepath.Source, buf []byte) error {
	for len(buf) > 0 {
		n, err := source.Read(buf)
		if err != nil {
			return Errorf(storepath.ErrStore, "wire read failed: %s", err)
		}
		buf = buf[n:]
	}
	return nil
}

func readWireString(source storepath.Source) (string, error) {
	var lenBuf [8]byte
	if err := readAll(source, lenBuf[:]); err != nil {
		return "", err
	}
	n := binary.LittleEndian.Uint64(lenBuf[:])
	buf := make([]byte, paddedLen(n))
	if err := readAll(source, buf); err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

func writeWireCount(sink storepath.Sink, n uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], n)
	return writeAll(sink, buf[:])
}

func readWireCount(source storepath.Source) (uint64, error) {
	var buf [8]byte
	if err := readAll(source, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// WriteDerivationWire emits d in the binary wire framing described
// above, with the same field order and masking semantics as Encode.
func WriteDerivationWire(sink storepath.Sink, store storepath.Store, d *drv.Derivation, maskOutputs bool) error {
	names := d.Outputs.SortedNames()
	if err := writeWireCount(sink, uint64(len(names))); err != nil {
		return err
	}
	for _, name := range names {
		pathStr, hashAlgo, hashHex, err := wireOutputFields(store, d.Name, name, d.Outputs[name], maskOutputs)
		if err != nil {
			return err
		}
		for _, s := range []string{name, pathStr, hashAlgo, hashHex} {
			if err := writeWireString(sink, s); err != nil {
				return err
			}
		}
	}

	paths := make([]storepath.StorePath, 0, len(d.InputDrvs))
	for p := range d.InputDrvs {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i].String() < paths[j].String() })
	if err := writeWireCount(sink, uint64(len(paths))); err != nil {
		return err
	}
	for _, p := range paths {
		if err := writeWireString(sink, store.PrintPath(p)); err != nil {
			return err
		}
		names := append([]string{}, d.InputDrvs[p]...)
		sort.Strings(names)
		if err := writeWireCount(sink, uint64(len(names))); err != nil {
			return err
		}
		for _, n := range names {
			if err := writeWireString(sink, n); err != nil {
				return err
			}
		}
	}

	srcs := append([]storepath.StorePath{}, d.InputSrcs...)
	sort.Slice(srcs, func(i, j int) bool { return srcs[i].String() < srcs[j].String() })
	if err := writeWireCount(sink, uint64(len(srcs))); err != nil {
		return err
	}
	for _, p := range srcs {
		if err := writeWireString(sink, store.PrintPath(p)); err != nil {
			return err
		}
	}

	if err := writeWireString(sink, d.Platform); err != nil {
		return err
	}
	if err := writeWireString(sink, d.Builder); err != nil {
		return err
	}

	if err := writeWireCount(sink, uint64(len(d.Args))); err != nil {
		return err
	}
	for _, a := range d.Args {
		if err := writeWireString(sink, a); err != nil {
			return err
		}
	}

	envKeys := make([]string, 0, len(d.Env))
	for k := range d.Env {
		envKeys = append(envKeys, k)
	}
	sort.Strings(envKeys)
	if err := writeWireCount(sink, uint64(len(envKeys))); err != nil {
		return err
	}
	for _, k := range envKeys {
		if err := writeWireString(sink, k); err != nil {
			return err
		}
		if err := writeWireString(sink, d.Env[k]); err != nil {
			return err
		}
	}

	return nil
}

func wireOutputFields(store storepath.Store, drvName, outputName string, out drv.DerivationOutput, maskOutputs bool) (pathStr, hashAlgo, hashHex string, err error) {
	switch o := out.(type) {
	case drv.InputAddressedOutput:
		pathStr = store.PrintPath(o.Path)
	case drv.CAFixedOutput:
		path, ok, perr := drv.OutputPath(store, drvName, outputName, out)
		if perr != nil {
			return "", "", "", perr
		}
		if ok {
			pathStr = store.PrintPath(path)
		}
		hashAlgo = fixedOutputHashAlgo(o.Hash)
		hashHex = o.Hash.Hash.Hex()
	case drv.CAFloatingOutput:
		hashAlgo = floatingHashAlgo(o)
	case drv.DeferredOutput:
	default:
		return "", "", "", Errorf(storepath.ErrProgrammer, "unreachable derivation output variant %T", out)
	}
	if maskOutputs {
		pathStr = ""
	}
	return pathStr, hashAlgo, hashHex, nil
}

// ReadDerivationWire parses the binary wire framing written by
// WriteDerivationWire.
func ReadDerivationWire(source storepath.Source, store storepath.Store) (*drv.Derivation, error) {
	outCount, err := readWireCount(source)
	if err != nil {
		return nil, err
	}
	outputs := make(drv.DerivationOutputs, outCount)
	for i := uint64(0); i < outCount; i++ {
		name, err := readWireString(source)
		if err != nil {
			return nil, err
		}
		pathStr, err := readWireString(source)
		if err != nil {
			return nil, err
		}
		hashAlgo, err := readWireString(source)
		if err != nil {
			return nil, err
		}
		hashHex, err := readWireString(source)
		if err != nil {
			return nil, err
		}
		variant, err := decodeWireOutputVariant(store, pathStr, hashAlgo, hashHex)
		if err != nil {
			return nil, err
		}
		if _, dup := outputs[name]; dup {
			return nil, Errorf(storepath.ErrParse, "duplicate output name %q in wire framing", name)
		}
		outputs[name] = variant
	}

	inputDrvCount, err := readWireCount(source)
	if err != nil {
		return nil, err
	}
	inputDrvs := make(drv.InputDerivations, inputDrvCount)
	for i := uint64(0); i < inputDrvCount; i++ {
		pathStr, err := readWireString(source)
		if err != nil {
			return nil, err
		}
		path, err := store.ParsePath(pathStr)
		if err != nil {
			return nil, err
		}
		nameCount, err := readWireCount(source)
		if err != nil {
			return nil, err
		}
		names := make([]string, nameCount)
		for j := range names {
			names[j], err = readWireString(source)
			if err != nil {
				return nil, err
			}
		}
		inputDrvs[path] = names
	}

	srcCount, err := readWireCount(source)
	if err != nil {
		return nil, err
	}
	inputSrcs := make([]storepath.StorePath, srcCount)
	for i := range inputSrcs {
		s, err := readWireString(source)
		if err != nil {
			return nil, err
		}
		inputSrcs[i], err = store.ParsePath(s)
		if err != nil {
			return nil, err
		}
	}

	platform, err := readWireString(source)
	if err != nil {
		return nil, err
	}
	builder, err := readWireString(source)
	if err != nil {
		return nil, err
	}

	argCount, err := readWireCount(source)
	if err != nil {
		return nil, err
	}
	args := make([]string, argCount)
	for i := range args {
		args[i], err = readWireString(source)
		if err != nil {
			return nil, err
		}
	}

	envCount, err := readWireCount(source)
	if err != nil {
		return nil, err
	}
	env := make(map[string]string, envCount)
	for i := uint64(0); i < envCount; i++ {
		k, err := readWireString(source)
		if err != nil {
			return nil, err
		}
		v, err := readWireString(source)
		if err != nil {
			return nil, err
		}
		env[k] = v
	}

	return &drv.Derivation{
		BasicDerivation: drv.BasicDerivation{
			Outputs:   outputs,
			InputSrcs: inputSrcs,
			Platform:  platform,
			Builder:   builder,
			Args:      args,
			Env:       env,
		},
		InputDrvs: inputDrvs,
	}, nil
}

func decodeWireOutputVariant(store storepath.Store, pathStr, hashAlgo, hashHex string) (drv.DerivationOutput, error) {
	switch {
	case hashAlgo == "" && hashHex == "":
		if pathStr == "" {
			return drv.DeferredOutput{}, nil
		}
		path, err := store.ParsePath(pathStr)
		if err != nil {
			return nil, err
		}
		return drv.InputAddressedOutput{Path: path}, nil
	case hashHex != "":
		method, algo := splitHashAlgo(hashAlgo)
		h, err := storepath.ParseHashHex(algo, hashHex)
		if err != nil {
			return nil, Errorf(storepath.ErrParse, "malformed fixed-output hash: %s", err)
		}
		return drv.CAFixedOutput{Hash: drv.FixedOutputHash{Method: method, Hash: h}}, nil
	default:
		method, algo := splitHashAlgo(hashAlgo)
		return drv.CAFloatingOutput{Method: method, HashType: algo}, nil
	}
}
