package buildup

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// tableFile is the on-disk shape of the buildup parameter table: a flat list
// of [[entry]] rows, one per (material_id, energy_keV) pair.
type tableFile struct {
	Entry []Entry `toml:"entry"`
}

// LoadFile decodes a single TOML buildup table and builds a DB from it.
func LoadFile(path string) (*DB, error) {
	var f tableFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("reading buildup table %q: %w", path, err)
	}
	return NewDB(f.Entry)
}
