// Package errs defines the collimator engine's error taxonomy. Every public
// operation in the engine returns one of these kinds instead of an opaque
// error, so a host can render actionable messages without string matching.
package errs

import "fmt"

// Kind names a distinct, stable error category. Kinds never change name
// once shipped: hosts may match on them.
type Kind string

const (
	InvalidUnit         Kind = "invalid_unit"
	OutOfRange          Kind = "out_of_range"
	NotFound            Kind = "not_found"
	InvalidComposition  Kind = "invalid_composition"
	InvalidGeometry     Kind = "invalid_geometry"
	InvalidConfig       Kind = "invalid_config"
	Cancelled           Kind = "cancelled"
	NumericalDegeneracy Kind = "numerical_degeneracy"
)

// Error carries a Kind plus whatever context is relevant to render an
// actionable message: material, energy, stage index, ray index.
type Error struct {
	Kind       Kind
	Message    string
	Material   string
	EnergyKeV  float64
	HasEnergy  bool
	StageIndex int
	HasStage   bool
	RayIndex   int
	HasRay     bool
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Material != "" {
		msg += fmt.Sprintf(" (material=%s)", e.Material)
	}
	if e.HasEnergy {
		msg += fmt.Sprintf(" (energy_keV=%g)", e.EnergyKeV)
	}
	if e.HasStage {
		msg += fmt.Sprintf(" (stage=%d)", e.StageIndex)
	}
	if e.HasRay {
		msg += fmt.Sprintf(" (ray=%d)", e.RayIndex)
	}
	return msg
}

// New builds a bare Error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithMaterial attaches material context and returns the same error for
// chaining at the call site.
func (e *Error) WithMaterial(id string) *Error {
	e.Material = id
	return e
}

// WithEnergy attaches an energy (keV) context.
func (e *Error) WithEnergy(keV float64) *Error {
	e.EnergyKeV = keV
	e.HasEnergy = true
	return e
}

// WithStage attaches a stage-index context.
func (e *Error) WithStage(i int) *Error {
	e.StageIndex = i
	e.HasStage = true
	return e
}

// WithRay attaches a ray-index context.
func (e *Error) WithRay(i int) *Error {
	e.RayIndex = i
	e.HasRay = true
	return e
}

// Is reports whether err is an *Error of the given kind, so callers can
// use errors.Is-style checks without importing this package's internals.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
