package project

import (
	"encoding/json"
	"testing"

	"gopkg.in/mgo.v2/bson"

	"github.com/arnegrid/collimeng/beam"
)

func TestNewProjectHasOneNewVersion(t *testing.T) {
	owner := bson.NewObjectId()
	p := NewProject(owner, "test collimator")
	if p.OwnerID != owner {
		t.Fatalf("OwnerID = %v, want %v", p.OwnerID, owner)
	}
	if len(p.Versions) != 1 {
		t.Fatalf("expected exactly one version, got %d", len(p.Versions))
	}
	if p.Versions[0].Status != New {
		t.Fatalf("expected initial version status New, got %v", p.Versions[0].Status)
	}
}

func TestAddVersionAssignsIncrementingIDs(t *testing.T) {
	p := NewProject(bson.NewObjectId(), "test")
	v1 := p.AddVersion(bson.NewObjectId())
	v2 := p.AddVersion(bson.NewObjectId())
	if v1.ID != 1 || v2.ID != 2 {
		t.Fatalf("expected sequential version IDs 1,2; got %d,%d", v1.ID, v2.ID)
	}
	latest, ok := p.LatestVersion()
	if !ok || latest.ID != 2 {
		t.Fatalf("LatestVersion = %+v, %v; want ID 2", latest, ok)
	}
}

func TestRestoreVersionAppendsCopyWithNewID(t *testing.T) {
	p := NewProject(bson.NewObjectId(), "test")
	v0 := p.Versions[0]
	v0.BeamConfig = beam.Config{NumRays: 777, EnergyKeV: 500}
	v0.Notes = "known-good baseline"
	p.Versions[0] = v0
	p.AddVersion(bson.NewObjectId()) // v1, unrelated edits

	restored, err := p.RestoreVersion(0)
	if err != nil {
		t.Fatalf("RestoreVersion: %v", err)
	}
	if restored.ID != 2 {
		t.Fatalf("expected restored version to get the next id 2, got %d", restored.ID)
	}
	if restored.BeamConfig != v0.BeamConfig || restored.Notes != v0.Notes {
		t.Fatalf("restored version does not carry version 0's payload: %+v", restored)
	}
	if restored.GeometryID != v0.GeometryID {
		t.Fatalf("restored version geometry id = %v, want %v", restored.GeometryID, v0.GeometryID)
	}
	if len(p.Versions) != 3 {
		t.Fatalf("expected restore to append, not replace: got %d versions", len(p.Versions))
	}
	if p.Versions[0] != v0 {
		t.Fatalf("restore must not mutate the source version: got %+v", p.Versions[0])
	}
}

func TestRestoreVersionUnknownIDFails(t *testing.T) {
	p := NewProject(bson.NewObjectId(), "test")
	if _, err := p.RestoreVersion(99); err == nil {
		t.Fatalf("expected an error restoring a nonexistent version id")
	}
}

func TestLatestVersionEmptyProject(t *testing.T) {
	p := &Project{}
	if _, ok := p.LatestVersion(); ok {
		t.Fatalf("expected LatestVersion to report false for an empty project")
	}
}

func TestVersionUpdateStatusRejectsFinal(t *testing.T) {
	v := Version{ID: 0, Status: Success}
	if err := v.UpdateStatus(Running); err == nil {
		t.Fatalf("expected an error updating a final-status version")
	}
}

func TestVersionUpdateStatusRejectsRevertingToNew(t *testing.T) {
	v := Version{ID: 0, Status: Edited}
	if err := v.UpdateStatus(New); err == nil {
		t.Fatalf("expected an error reverting a version's status to New")
	}
}

func TestVersionUpdateStatusSucceeds(t *testing.T) {
	v := Version{ID: 0, Status: New}
	if err := v.UpdateStatus(Pending); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if v.Status != Pending {
		t.Fatalf("Status = %v, want Pending", v.Status)
	}
}

func TestVersionStatusJSONRoundTrip(t *testing.T) {
	for _, s := range []VersionStatus{New, Edited, Running, Pending, Success, Failure, Interrupted, Canceled, Archived} {
		b, err := json.Marshal(s)
		if err != nil {
			t.Fatalf("Marshal(%v): %v", s, err)
		}
		var got VersionStatus
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatalf("Unmarshal(%s): %v", b, err)
		}
		if got != s {
			t.Fatalf("round trip mismatch: %v -> %s -> %v", s, b, got)
		}
	}
}

func TestVersionStatusIsRunnable(t *testing.T) {
	cases := []struct {
		status VersionStatus
		want   bool
	}{
		{New, false},
		{Edited, true},
		{Pending, true},
		{Success, false},
		{Archived, false},
		{Undefined, false},
	}
	for _, c := range cases {
		if got := c.status.IsRunnable(); got != c.want {
			t.Errorf("IsRunnable(%v) = %v, want %v", c.status, got, c.want)
		}
	}
}

func TestStoreProjectRoundTrip(t *testing.T) {
	store := NewMemory()
	p := NewProject(bson.NewObjectId(), "roundtrip")
	if err := store.SaveProject(p); err != nil {
		t.Fatalf("SaveProject: %v", err)
	}
	loaded, err := store.LoadProject(p.ID)
	if err != nil {
		t.Fatalf("LoadProject: %v", err)
	}
	if loaded.Name != p.Name || loaded.ID != p.ID {
		t.Fatalf("loaded project mismatch: %+v vs %+v", loaded, p)
	}
	// mutating the loaded copy must not affect the stored copy
	loaded.Name = "mutated"
	reloaded, err := store.LoadProject(p.ID)
	if err != nil {
		t.Fatalf("LoadProject: %v", err)
	}
	if reloaded.Name != "roundtrip" {
		t.Fatalf("store did not isolate its internal copy: got name %q", reloaded.Name)
	}
}

func TestStoreLoadMissingProjectFails(t *testing.T) {
	store := NewMemory()
	if _, err := store.LoadProject(bson.NewObjectId()); err == nil {
		t.Fatalf("expected an error loading a nonexistent project")
	}
}

func TestStoreListProjectsFiltersByOwner(t *testing.T) {
	store := NewMemory()
	owner1 := bson.NewObjectId()
	owner2 := bson.NewObjectId()
	p1 := NewProject(owner1, "a")
	p2 := NewProject(owner1, "b")
	p3 := NewProject(owner2, "c")
	for _, p := range []*Project{p1, p2, p3} {
		if err := store.SaveProject(p); err != nil {
			t.Fatalf("SaveProject: %v", err)
		}
	}
	list, err := store.ListProjects(owner1)
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 projects for owner1, got %d", len(list))
	}
}

func TestStoreDeleteProject(t *testing.T) {
	store := NewMemory()
	p := NewProject(bson.NewObjectId(), "to delete")
	if err := store.SaveProject(p); err != nil {
		t.Fatalf("SaveProject: %v", err)
	}
	if err := store.DeleteProject(p.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if _, err := store.LoadProject(p.ID); err == nil {
		t.Fatalf("expected the project to be gone after delete")
	}
}

func TestStoreResultRoundTrip(t *testing.T) {
	store := NewMemory()
	versionID := bson.NewObjectId()
	doc := NewSimulationResultDoc(versionID, beam.Result{NumRays: 500}, nil)
	if err := store.SaveResult(doc); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	loaded, err := store.LoadResult(doc.ID)
	if err != nil {
		t.Fatalf("LoadResult: %v", err)
	}
	if loaded.VersionID != versionID || loaded.Beam.NumRays != 500 {
		t.Fatalf("loaded result mismatch: %+v", loaded)
	}
}
