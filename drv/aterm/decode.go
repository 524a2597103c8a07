package aterm

import (
	"strings"

	"github.com/ztzg/nix/drv"
	"github.com/ztzg/nix/storepath"
)

// Decode parses the canonical textual form produced by Encode(...,
// maskOutputs=false) back into a Derivation.  It is not liberal: the
// literal token "Derive" must start at offset 0, fields must appear in
// the fixed positional order, and list entries must already be in
// ascending canonical order (non-ascending ordering is a parse error,
// per §4.3).
func Decode(store storepath.Store, s string) (*drv.Derivation, error) {
	p := &parser{s: s, store: store}

	if err := p.expectLiteral("Derive("); err != nil {
		return nil, err
	}

	outputs, err := p.parseOutputs()
	if err != nil {
		return nil, err
	}
	if err := p.expectByte(','); err != nil {
		return nil, err
	}

	inputDrvs, err := p.parseInputDrvs()
	if err != nil {
		return nil, err
	}
	if err := p.expectByte(','); err != nil {
		return nil, err
	}

	inputSrcs, err := p.parseStorePathList()
	if err != nil {
		return nil, err
	}
	if err := p.expectByte(','); err != nil {
		return nil, err
	}

	platform, err := p.parseQuoted()
	if err != nil {
		return nil, err
	}
	if err := p.expectByte(','); err != nil {
		return nil, err
	}

	builder, err := p.parseQuoted()
	if err != nil {
		return nil, err
	}
	if err := p.expectByte(','); err != nil {
		return nil, err
	}

	args, err := p.parseStringList()
	if err != nil {
		return nil, err
	}
	if err := p.expectByte(','); err != nil {
		return nil, err
	}

	env, err := p.parseEnv()
	if err != nil {
		return nil, err
	}
	if err := p.expectByte(')'); err != nil {
		return nil, err
	}

	d := &drv.Derivation{
		BasicDerivation: drv.BasicDerivation{
			Outputs:   outputs,
			InputSrcs: inputSrcs,
			Platform:  platform,
			Builder:   builder,
			Args:      args,
			Env:       env,
		},
		InputDrvs: inputDrvs,
	}
	return d, nil
}

type parser struct {
	s     string
	pos   int
	store storepath.Store
}

func (p *parser) expectLiteral(lit string) error {
	if !strings.HasPrefix(p.s[p.pos:], lit) {
		return errParseAt(p.pos, "expected %q", lit)
	}
	p.pos += len(lit)
	return nil
}

func (p *parser) expectByte(c byte) error {
	if p.pos >= len(p.s) || p.s[p.pos] != c {
		return errParseAt(p.pos, "expected %q", string(c))
	}
	p.pos++
	return nil
}

func (p *parser) parseQuoted() (string, error) {
	if err := p.expectByte('"'); err != nil {
		return "", err
	}
	s, next, err := unescapeString(p.s, p.pos)
	if err != nil {
		return "", err
	}
	p.pos = next
	return s, nil
}

// parseList calls elem repeatedly, separated by commas, until ']' is
// found.  elem is responsible for parsing exactly one element.
func (p *parser) parseList(elem func() error) error {
	if err := p.expectByte('['); err != nil {
		return err
	}
	if p.pos < len(p.s) && p.s[p.pos] == ']' {
		p.pos++
		return nil
	}
	for {
		if err := elem(); err != nil {
			return err
		}
		if p.pos < len(p.s) && p.s[p.pos] == ',' {
			p.pos++
			continue
		}
		break
	}
	return p.expectByte(']')
}

func (p *parser) parseStringList() ([]string, error) {
	var out []string
	err := p.parseList(func() error {
		s, err := p.parseQuoted()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

func (p *parser) parseStorePathList() ([]storepath.StorePath, error) {
	var out []storepath.StorePath
	last := ""
	err := p.parseList(func() error {
		s, err := p.parseQuoted()
		if err != nil {
			return err
		}
		if s < last {
			return errParseAt(p.pos, "store path list is not in ascending order")
		}
		last = s
		sp, err := p.store.ParsePath(s)
		if err != nil {
			return err
		}
		out = append(out, sp)
		return nil
	})
	return out, err
}

func (p *parser) parseEnv() (map[string]string, error) {
	out := make(map[string]string)
	last := ""
	err := p.parseList(func() error {
		if err := p.expectByte('('); err != nil {
			return err
		}
		key, err := p.parseQuoted()
		if err != nil {
			return err
		}
		if key < last {
			return errParseAt(p.pos, "env is not in ascending key order")
		}
		last = key
		if err := p.expectByte(','); err != nil {
			return err
		}
		val, err := p.parseQuoted()
		if err != nil {
			return err
		}
		if err := p.expectByte(')'); err != nil {
			return err
		}
		if _, dup := out[key]; dup {
			return errParseAt(p.pos, "duplicate env key %q", key)
		}
		out[key] = val
		return nil
	})
	return out, err
}

func (p *parser) parseInputDrvs() (drv.InputDerivations, error) {
	out := make(drv.InputDerivations)
	last := ""
	err := p.parseList(func() error {
		if err := p.expectByte('('); err != nil {
			return err
		}
		pathStr, err := p.parseQuoted()
		if err != nil {
			return err
		}
		if pathStr < last {
			return errParseAt(p.pos, "inputDrvs list is not in ascending order")
		}
		last = pathStr
		path, err := p.store.ParsePath(pathStr)
		if err != nil {
			return err
		}
		if err := p.expectByte(','); err != nil {
			return err
		}
		names, err := p.parseStringList()
		if err != nil {
			return err
		}
		for i := 1; i < len(names); i++ {
			if names[i] < names[i-1] {
				return errParseAt(p.pos, "inputDrvs output names are not in ascending order")
			}
		}
		if err := p.expectByte(')'); err != nil {
			return err
		}
		out[path] = names
		return nil
	})
	return out, err
}

func (p *parser) parseOutputs() (drv.DerivationOutputs, error) {
	out := make(drv.DerivationOutputs)
	last := ""
	err := p.parseList(func() error {
		if err := p.expectByte('('); err != nil {
			return err
		}
		name, err := p.parseQuoted()
		if err != nil {
			return err
		}
		if name <= last && last != "" {
			return errParseAt(p.pos, "outputs list is not in ascending order")
		}
		if _, dup := out[name]; dup {
			return errParseAt(p.pos, "duplicate output name %q", name)
		}
		last = name
		if err := p.expectByte(','); err != nil {
			return err
		}
		pathStr, err := p.parseQuoted()
		if err != nil {
			return err
		}
		if err := p.expectByte(','); err != nil {
			return err
		}
		hashAlgo, err := p.parseQuoted()
		if err != nil {
			return err
		}
		if err := p.expectByte(','); err != nil {
			return err
		}
		hashHex, err := p.parseQuoted()
		if err != nil {
			return err
		}
		if err := p.expectByte(')'); err != nil {
			return err
		}

		variant, err := p.decodeOutputVariant(pathStr, hashAlgo, hashHex)
		if err != nil {
			return err
		}
		out[name] = variant
		return nil
	})
	return out, err
}

// decodeOutputVariant reconstructs the tagged DerivationOutput variant
// from the four ATerm positional fields, per the rules laid out
// alongside Encode's writeOutput.
func (p *parser) decodeOutputVariant(pathStr, hashAlgo, hashHex string) (drv.DerivationOutput, error) {
	switch {
	case hashAlgo == "" && hashHex == "":
		if pathStr == "" {
			return drv.DeferredOutput{}, nil
		}
		path, err := p.store.ParsePath(pathStr)
		if err != nil {
			return nil, err
		}
		return drv.InputAddressedOutput{Path: path}, nil
	case hashHex != "":
		method, algo := splitHashAlgo(hashAlgo)
		h, err := storepath.ParseHashHex(algo, hashHex)
		if err != nil {
			return nil, errParseAt(p.pos, "malformed fixed-output hash: %s", err)
		}
		return drv.CAFixedOutput{Hash: drv.FixedOutputHash{Method: method, Hash: h}}, nil
	default:
		method, algo := splitHashAlgo(hashAlgo)
		return drv.CAFloatingOutput{Method: method, HashType: algo}, nil
	}
}

func splitHashAlgo(s string) (drv.FileIngestionMethod, storepath.Algo) {
	if strings.HasPrefix(s, "r:") {
		return drv.Recursive, storepath.Algo(s[2:])
	}
	return drv.Flat, storepath.Algo(s)
}
