package project

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/mgo.v2/bson"

	"github.com/arnegrid/collimeng/beam"
	"github.com/arnegrid/collimeng/errs"
)

// VersionStatus tracks a version through an asynchronous simulation run,
// grounded on the teacher pack's yaptide model/project_version.go lifecycle.
type VersionStatus int

const (
	Undefined VersionStatus = iota
	New
	Edited
	Running
	Pending
	Success
	Failure
	Interrupted
	Canceled
	Archived
)

var versionStatusToJSON = map[VersionStatus]string{
	Undefined:   "",
	New:         "new",
	Edited:      "edited",
	Running:     "running",
	Pending:     "pending",
	Success:     "success",
	Failure:     "failure",
	Interrupted: "interrupted",
	Canceled:    "canceled",
	Archived:    "archived",
}

var jsonToVersionStatus = map[string]VersionStatus{
	"":            Undefined,
	"new":         New,
	"edited":      Edited,
	"running":     Running,
	"pending":     Pending,
	"success":     Success,
	"failure":     Failure,
	"interrupted": Interrupted,
	"canceled":    Canceled,
	"archived":    Archived,
}

// String implements fmt.Stringer.
func (s VersionStatus) String() string {
	return versionStatusToJSON[s]
}

// IsValid reports whether s is a known, non-zero status.
func (s VersionStatus) IsValid() bool {
	return s != Undefined
}

// IsFinal reports whether a version in status s will never change again.
func (s VersionStatus) IsFinal() bool {
	return s == Success || s == Archived
}

// IsModifiable reports whether a version's geometry/config can still be
// edited: any known status that is not final (Success and Archived are
// final; Running and Pending versions remain modifiable).
func (s VersionStatus) IsModifiable() bool {
	return s.IsValid() && !s.IsFinal()
}

// IsRunnable reports whether RunSimulation can be started for this version.
func (s VersionStatus) IsRunnable() bool {
	return s.IsModifiable() && s != New
}

// MarshalJSON implements json.Marshaler.
func (s VersionStatus) MarshalJSON() ([]byte, error) {
	str, ok := versionStatusToJSON[s]
	if !ok {
		return nil, fmt.Errorf("VersionStatus.MarshalJSON: cannot convert %d to string", int(s))
	}
	return json.Marshal(str)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *VersionStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	status, ok := jsonToVersionStatus[str]
	if !ok {
		return fmt.Errorf("VersionStatus.UnmarshalJSON: cannot convert %q to VersionStatus", str)
	}
	*s = status
	return nil
}

// Version is one editable geometry/config snapshot within a Project, plus
// the lifecycle state of its most recent (or in-flight) simulation run.
type Version struct {
	ID          int           `json:"id" bson:"_id"`
	Status      VersionStatus `json:"status" bson:"status"`
	GeometryID  bson.ObjectId `json:"geometryId" bson:"geometryId"`
	BeamConfig  beam.Config   `json:"beamConfig" bson:"beamConfig"`
	ResultID    bson.ObjectId `json:"resultId,omitempty" bson:"resultId,omitempty"`
	Notes       string        `json:"notes" bson:"notes"`
	UpdatedAt   time.Time     `json:"updatedAt" bson:"updatedAt"`
}

// UpdateStatus transitions v to status, rejecting the change once v is in a
// final state or when asked to move backward into New.
func (v *Version) UpdateStatus(status VersionStatus) error {
	if v.Status.IsFinal() {
		return errs.New(errs.InvalidConfig, "version %d is in final status %s and cannot be updated", v.ID, v.Status)
	}
	if status == New {
		return errs.New(errs.InvalidConfig, "cannot change status of an existing version back to new")
	}
	v.Status = status
	return nil
}

// newVersion builds a version with ID 0 in status New that references
// geometryID. NewProject uses it for a project's first version; AddVersion
// renumbers it to the next free ID.
func newVersion(geometryID bson.ObjectId) Version {
	return Version{
		ID:         0,
		Status:     New,
		GeometryID: geometryID,
		UpdatedAt:  time.Now(),
	}
}
