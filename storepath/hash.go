package storepath

/*
	Hash is an opaque cryptographic digest carrying its algorithm tag.

	sha256 is the canonical algorithm used for everything this module
	computes itself (store paths, fixed-output equivalence classes,
	modulo-hashes).  sha1, sha512, and md5 are accepted only when parsing
	legacy fixed-output declarations written by older tooling; nothing in
	this module ever produces them.
*/

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"

	. "github.com/warpfork/go-errcat"
)

type Algo string

const (
	SHA256 Algo = "sha256"
	SHA512 Algo = "sha512"
	SHA1   Algo = "sha1"
	MD5    Algo = "md5"
)

// Algos is the registry of accepted digest algorithms: sha256 is
// canonical, the rest are kept only so legacy fixed-output declarations
// parse.  A caller embedding this module in a context with its own
// legacy needs may add entries here at init time.
var Algos = map[Algo]func() hash.Hash{
	SHA256: sha256.New,
	SHA512: sha512.New,
	SHA1:   sha1.New,
	MD5:    md5.New,
}

func (a Algo) size() int {
	switch a {
	case SHA256:
		return sha256.Size
	case SHA512:
		return sha512.Size
	case SHA1:
		return sha1.Size
	case MD5:
		return md5.Size
	default:
		return -1
	}
}

// Hash is a digest plus the algorithm that produced it.  Equality is
// bytewise and only defined within the same algorithm.
type Hash struct {
	Algo  Algo
	Bytes []byte
}

func NewHash(algo Algo, raw []byte) (Hash, error) {
	if _, ok := Algos[algo]; !ok {
		return Hash{}, Errorf(ErrParse, "unknown hash algorithm %q", algo)
	}
	if n := algo.size(); n >= 0 && len(raw) != n {
		return Hash{}, Errorf(ErrParse, "hash algorithm %q expects %d bytes, got %d", algo, n, len(raw))
	}
	return Hash{Algo: algo, Bytes: raw}, nil
}

// ParseHashHex parses a lowercase hex string under the named algorithm.
func ParseHashHex(algo Algo, s string) (Hash, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, Errorf(ErrParse, "malformed hex in %s hash: %s", algo, err)
	}
	return NewHash(algo, raw)
}

// SumSHA256 computes the canonical digest used throughout this module:
// sha256 over the given bytes.
func SumSHA256(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash{Algo: SHA256, Bytes: sum[:]}
}

func (h Hash) Hex() string {
	return hex.EncodeToString(h.Bytes)
}

// Equal reports bytewise equality within the same algorithm; hashes
// computed under different algorithms are never equal to each other,
// even if coincidentally the same length.
func (h Hash) Equal(o Hash) bool {
	return h.Algo == o.Algo && bytes.Equal(h.Bytes, o.Bytes)
}

func (h Hash) IsZero() bool {
	return h.Algo == "" && len(h.Bytes) == 0
}
