package project

import (
	"time"

	"gopkg.in/mgo.v2/bson"

	"github.com/arnegrid/collimeng/beam"
	"github.com/arnegrid/collimeng/scatter"
)

// SimulationResultDoc is the persisted outcome of one version's simulation
// run: the beam result always present, the scatter result present only
// when the run had Compton tracing enabled.
type SimulationResultDoc struct {
	ID        bson.ObjectId   `json:"id" bson:"_id"`
	VersionID bson.ObjectId   `json:"versionId" bson:"versionId"`
	Beam      beam.Result     `json:"beam" bson:"beam"`
	Scatter   *scatter.Result `json:"scatter,omitempty" bson:"scatter,omitempty"`
	CreatedAt time.Time       `json:"createdAt" bson:"createdAt"`
}

// NewSimulationResultDoc wraps a completed beam.Result (and optional
// scatter.Result) for storage against versionID.
func NewSimulationResultDoc(versionID bson.ObjectId, beamResult beam.Result, scatterResult *scatter.Result) *SimulationResultDoc {
	return &SimulationResultDoc{
		ID:        bson.NewObjectId(),
		VersionID: versionID,
		Beam:      beamResult,
		Scatter:   scatterResult,
		CreatedAt: time.Now(),
	}
}
