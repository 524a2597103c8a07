package aterm

import (
	"github.com/ztzg/nix/drv"
	"github.com/ztzg/nix/storepath"
)

// WriteDerivation computes the store path drv.name + ".drv" would
// occupy, and -- unless readOnly is set -- persists its canonical
// serialization there through store.  repair is passed through to
// Store.WriteFile to let a damaged existing entry be overwritten.
func WriteDerivation(store storepath.Store, d *drv.Derivation, repair, readOnly bool) (storepath.StorePath, error) {
	text, err := Encode(store, d, false)
	if err != nil {
		return storepath.StorePath{}, err
	}

	name := d.Name + ".drv"
	digest := storepath.SumSHA256([]byte(text))
	path, err := store.PathFromHash(digest.Bytes, name)
	if err != nil {
		return storepath.StorePath{}, err
	}

	if readOnly {
		return path, nil
	}

	if err := store.WriteFile(path, []byte(text), repair); err != nil {
		return storepath.StorePath{}, err
	}
	return path, nil
}
