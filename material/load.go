package material

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/arnegrid/collimeng/errs"
)

// LoadFile decodes one material data file: a header (id, name, symbol,
// z_effective, density_g_cm3, category, optional composition, optional
// edges_kev) plus a sorted [[point]] attenuation table, per spec.md §6.
func LoadFile(path string) (Material, error) {
	var m Material
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return Material{}, errs.New(errs.NotFound, "reading material file %q: %v", path, err)
	}
	if m.ID == "" {
		return Material{}, errs.New(errs.InvalidGeometry, "material file %q missing id", path)
	}
	if len(m.Points) == 0 {
		return Material{}, errs.New(errs.NumericalDegeneracy, "material %q has no attenuation points", m.ID).WithMaterial(m.ID)
	}
	if m.Category == "" {
		m.Category = PureElement
	}
	return m, nil
}

// LoadDir loads every *.toml file in dir as a material and builds a DB.
// Mirrors the teacher pack's directory-of-TOML-files convention
// (wildstyl3r-stmc's config.LoadConfig reads one TOML per invocation; here
// each material gets its own file so a host can add one without touching
// the others).
func LoadDir(dir string) (*DB, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading material directory %q: %w", dir, err)
	}
	var materials []Material
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".toml" {
			continue
		}
		m, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	return NewDB(materials)
}
