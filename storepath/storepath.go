package storepath

import (
	"strings"

	. "github.com/warpfork/go-errcat"
)

// StorePath is a pair of (20-byte truncated-hash prefix, human name),
// rendered as "<base32-hash>-<name>" beneath a store root.  The store
// root itself is not part of the value; it's supplied by whichever
// Store is doing the rendering, via PrintPath.
type StorePath struct {
	Digest [20]byte
	Name   string
}

// String renders the path's local form, without the store root prefix:
// "<base32-hash>-<name>".
func (p StorePath) String() string {
	return EncodeBase32(p.Digest[:]) + "-" + p.Name
}

// ParseLocal parses a "<base32-hash>-<name>" string (without a store
// root prefix) back into a StorePath.
func ParseLocal(s string) (StorePath, error) {
	idx := strings.IndexByte(s, '-')
	if idx < 0 {
		return StorePath{}, Errorf(ErrStore, "malformed store path %q: missing '-' separator", s)
	}
	hashPart, name := s[:idx], s[idx+1:]
	if name == "" {
		return StorePath{}, Errorf(ErrStore, "malformed store path %q: empty name", s)
	}
	digest, err := decodeBase32Fixed(hashPart, 20)
	if err != nil {
		return StorePath{}, Errorf(ErrStore, "malformed store path %q: %s", s, err)
	}
	var p StorePath
	copy(p.Digest[:], digest)
	p.Name = name
	return p, nil
}

func decodeBase32Fixed(s string, outLen int) ([]byte, error) {
	want := (outLen*8-1)/5 + 1
	if len(s) != want {
		return nil, Errorf(ErrStore, "expected %d base32 characters, got %d", want, len(s))
	}
	lookup := make(map[byte]byte, len(base32Alphabet))
	for i := 0; i < len(base32Alphabet); i++ {
		lookup[base32Alphabet[i]] = byte(i)
	}
	out := make([]byte, outLen)
	for n := 0; n < len(s); n++ {
		c, ok := lookup[s[n]]
		if !ok {
			return nil, Errorf(ErrStore, "invalid base32 character %q", s[n])
		}
		b := (len(s) - 1 - n) * 5
		i := b / 8
		j := uint(b % 8)
		out[i] |= c << j
		if i+1 < outLen {
			out[i+1] |= c >> (8 - j)
		}
	}
	return out, nil
}

// Source is a blocking byte reader with exact-length reads, matching
// the wire-framing collaborator named in the external interfaces.
type Source interface {
	Read(p []byte) (int, error)
}

// Sink is a blocking byte writer.
type Sink interface {
	Write(p []byte) (int, error)
}

// Store is the external oracle that owns store-path construction and
// persistence.  Nothing in this module keeps file descriptors or
// network handles open on its own; every such resource belongs to
// whatever implements Store.
type Store interface {
	// Root is the store's path prefix, e.g. "/nix/store/"; it is folded
	// into fixed-output hash material the same way the store folds it
	// into input-addressed hash material.
	Root() string

	// PathFromHash constructs a StorePath from a digest (any length;
	// longer digests are compressed to 20 bytes first) and a name.
	PathFromHash(digest []byte, name string) (StorePath, error)

	// ReadFile and WriteFile persist and read back the byte contents of
	// a store object, typically a serialized .drv.  WriteFile with
	// repair=true may overwrite a damaged existing entry.
	ReadFile(path StorePath) ([]byte, error)
	WriteFile(path StorePath, data []byte, repair bool) error

	// PrintPath and ParsePath convert between a StorePath and its
	// textual form including the store root.
	PrintPath(path StorePath) string
	ParsePath(s string) (StorePath, error)

	// ResolveOutput looks up the realized output path of a build that
	// has already completed, for use by TryResolve.  ok is false if the
	// output isn't known yet (the referenced build hasn't happened, or
	// this output wasn't among its results).
	ResolveOutput(inputDrv StorePath, outputName string) (StorePath, bool, error)
}
