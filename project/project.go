// Package project is the external-interface layer: the documents a host
// application persists across simulation runs (project, version, result),
// carrying gopkg.in/mgo.v2/bson tags exactly as the teacher pack's yaptide
// project model does, so a caller can store them in MongoDB or any
// bson-speaking store without this module depending on a live database.
package project

import (
	"time"

	"gopkg.in/mgo.v2/bson"

	"github.com/arnegrid/collimeng/errs"
)

// Project is a named collection of geometry versions belonging to one
// owner, mirroring yaptide's model.Project.
type Project struct {
	ID             bson.ObjectId `json:"id" bson:"_id,omitempty"`
	OwnerID        bson.ObjectId `json:"ownerId" bson:"ownerId"`
	ProjectDetails `bson:",inline"`
}

// ProjectDetails is the editable body of a Project, split out so a host can
// PATCH it without touching ID/OwnerID.
type ProjectDetails struct {
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description" bson:"description"`
	Versions    []Version `json:"versions" bson:"versions"`
}

// NewProject creates a project for ownerID with a single empty version.
func NewProject(ownerID bson.ObjectId, name string) *Project {
	return &Project{
		ID:      bson.NewObjectId(),
		OwnerID: ownerID,
		ProjectDetails: ProjectDetails{
			Name:     name,
			Versions: []Version{newVersion(bson.NewObjectId())},
		},
	}
}

// LatestVersion returns the highest-ID version, or false if the project has
// none (should not happen for a project built via NewProject).
func (p *Project) LatestVersion() (Version, bool) {
	if len(p.Versions) == 0 {
		return Version{}, false
	}
	latest := p.Versions[0]
	for _, v := range p.Versions[1:] {
		if v.ID > latest.ID {
			latest = v
		}
	}
	return latest, true
}

// AddVersion appends a new version in status New that references
// geometryID, numbered one past the highest existing version ID, and
// returns it.
func (p *Project) AddVersion(geometryID bson.ObjectId) Version {
	nextID := 0
	for _, v := range p.Versions {
		if v.ID >= nextID {
			nextID = v.ID + 1
		}
	}
	v := newVersion(geometryID)
	v.ID = nextID
	p.Versions = append(p.Versions, v)
	return v
}

// RestoreVersion appends a new version carrying version k's geometry, beam
// config, and notes, leaving every existing version untouched. This is the
// "restore" side of the version history: rolling back is never destructive,
// it only ever adds the restored state as the new latest version.
func (p *Project) RestoreVersion(k int) (Version, error) {
	var source Version
	found := false
	for _, v := range p.Versions {
		if v.ID == k {
			source = v
			found = true
			break
		}
	}
	if !found {
		return Version{}, errs.New(errs.NotFound, "version %d not found in project %s", k, p.ID.Hex())
	}

	nextID := 0
	for _, v := range p.Versions {
		if v.ID >= nextID {
			nextID = v.ID + 1
		}
	}
	restored := Version{
		ID:         nextID,
		Status:     New,
		GeometryID: source.GeometryID,
		BeamConfig: source.BeamConfig,
		Notes:      source.Notes,
		UpdatedAt:  time.Now(),
	}
	p.Versions = append(p.Versions, restored)
	return restored, nil
}
