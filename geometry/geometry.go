// Package geometry is the declarative collimator geometry data model:
// stages, apertures, layers, source and detector placement, and the
// invariant checks that must hold before a geometry is handed to the ray
// tracer. Nothing here performs a physics calculation — see package
// raytracer and package beam for that.
package geometry

// CollimatorType selects the ray-angle generation strategy and how an
// Aperture's silhouette is interpreted (spec.md §3, §9 "tagged variants").
type CollimatorType string

const (
	FanBeam    CollimatorType = "fan_beam"
	PencilBeam CollimatorType = "pencil_beam"
	Slit       CollimatorType = "slit"
)

// ApertureKind is a closed sum of the supported opening shapes.
type ApertureKind string

const (
	ApertureSlit    ApertureKind = "slit"
	AperturePinhole ApertureKind = "pinhole"
	ApertureOpen    ApertureKind = "open"
)

// LayerPurpose documents the functional role of a shielding layer; the
// tracer treats every purpose identically, this is bookkeeping the host UI
// (an external collaborator) presents to the user.
type LayerPurpose string

const (
	PrimaryShielding   LayerPurpose = "primary_shielding"
	SecondaryShielding LayerPurpose = "secondary_shielding"
	StructuralLayer    LayerPurpose = "structural"
	FilterLayer        LayerPurpose = "filter"
)

// Point2D is a position in the beam-axis plane, in millimetres.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Source is the X-ray emission point. Energies are supplied per-run by
// SimulationConfig, not carried here — this keeps the source description
// purely geometric (position, focal spot) as spec.md's core scope excludes
// realistic bremsstrahlung spectrum modeling.
type Source struct {
	PositionMm      Point2D `json:"position_mm"`
	FocalSpotSizeMm float64 `json:"focal_spot_size_mm"`
}

// Aperture is one stage's single opening. EntryWidthMm/ExitWidthMm allow a
// linear taper along the stage depth; EntryHeightMm/ExitHeightMm are
// carried for a future 3-D extension and are not consumed by the 2-D
// tracer.
type Aperture struct {
	Kind          ApertureKind `json:"kind"`
	EntryWidthMm  float64      `json:"entry_width_mm"`
	ExitWidthMm   float64      `json:"exit_width_mm"`
	EntryHeightMm float64      `json:"entry_height_mm"`
	ExitHeightMm  float64      `json:"exit_height_mm"`
}

// Layer is one Z-slice of a stage's depth: solid material_id everywhere
// laterally except through the aperture, spanning ThicknessMm of the
// stage's depth.
type Layer struct {
	MaterialID  string       `json:"material_id"`
	ThicknessMm float64      `json:"thickness_mm"`
	Purpose     LayerPurpose `json:"purpose"`
}

// Stage is one collimator body along the beam axis: a solid block of
// material, pierced by a single (possibly tapered) aperture, subdivided in
// depth into an ordered sequence of Layers.
type Stage struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	ZPositionMm  float64  `json:"z_position_mm"` // front (entry) face
	DepthMm      float64  `json:"depth_mm"`
	OuterWidthMm float64  `json:"outer_width_mm"`
	Aperture     Aperture `json:"aperture"`
	Layers       []Layer  `json:"layers"`
	GapAfterMm   float64  `json:"gap_after_mm"` // vacuum gap before the next stage
}

// Detector is the scoring plane. Positioned at DetectorZMm along the beam
// axis, must lie beyond every stage's exit face.
type Detector struct {
	DetectorZMm float64 `json:"detector_z_mm"`
	WidthMm     float64 `json:"width_mm"`
}

// CollimatorGeometry is the complete, immutable input to a simulation:
// beam type, source, an ordered non-empty sequence of stages, and the
// detector plane.
type CollimatorGeometry struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Type     CollimatorType `json:"type"`
	Source   Source         `json:"source"`
	Stages   []Stage        `json:"stages"`
	Detector Detector       `json:"detector"`
}

// ExitZMm returns the Z position of a stage's exit (back) face.
func (s Stage) ExitZMm() float64 { return s.ZPositionMm + s.DepthMm }

// LastStage returns the geometry's final stage. Panics if Stages is empty;
// callers must Validate first.
func (g CollimatorGeometry) LastStage() Stage { return g.Stages[len(g.Stages)-1] }
