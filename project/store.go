package project

import (
	"sync"

	"gopkg.in/mgo.v2/bson"

	"github.com/arnegrid/collimeng/errs"
)

// Store persists Projects and SimulationResultDocs. It is the interface a
// host binds to a real database; Memory below is an in-process reference
// implementation useful for tests and for hosts that don't need one.
type Store interface {
	SaveProject(p *Project) error
	LoadProject(id bson.ObjectId) (*Project, error)
	ListProjects(ownerID bson.ObjectId) ([]*Project, error)
	DeleteProject(id bson.ObjectId) error

	SaveResult(r *SimulationResultDoc) error
	LoadResult(id bson.ObjectId) (*SimulationResultDoc, error)
}

// Memory is a mutex-protected in-memory Store. Generalizes the teacher
// pack's per-request mongo.DB session provider (web/db_provider.go) down to
// a single long-lived map, since this module has no database dependency of
// its own — a host wanting real persistence supplies its own Store.
type Memory struct {
	mu       sync.RWMutex
	projects map[bson.ObjectId]*Project
	results  map[bson.ObjectId]*SimulationResultDoc
}

// NewMemory constructs an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		projects: make(map[bson.ObjectId]*Project),
		results:  make(map[bson.ObjectId]*SimulationResultDoc),
	}
}

func (m *Memory) SaveProject(p *Project) error {
	if p.ID == "" {
		return errs.New(errs.InvalidConfig, "project has no ID; construct via NewProject")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	cp.Versions = append([]Version(nil), p.Versions...)
	m.projects[p.ID] = &cp
	return nil
}

func (m *Memory) LoadProject(id bson.ObjectId) (*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, errs.New(errs.NotFound, "project %s not found", id.Hex())
	}
	cp := *p
	cp.Versions = append([]Version(nil), p.Versions...)
	return &cp, nil
}

func (m *Memory) ListProjects(ownerID bson.ObjectId) ([]*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Project
	for _, p := range m.projects {
		if p.OwnerID == ownerID {
			cp := *p
			cp.Versions = append([]Version(nil), p.Versions...)
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Memory) DeleteProject(id bson.ObjectId) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return errs.New(errs.NotFound, "project %s not found", id.Hex())
	}
	delete(m.projects, id)
	return nil
}

func (m *Memory) SaveResult(r *SimulationResultDoc) error {
	if r.ID == "" {
		return errs.New(errs.InvalidConfig, "result has no ID; construct via NewSimulationResultDoc")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.results[r.ID] = &cp
	return nil
}

func (m *Memory) LoadResult(id bson.ObjectId) (*SimulationResultDoc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[id]
	if !ok {
		return nil, errs.New(errs.NotFound, "result %s not found", id.Hex())
	}
	cp := *r
	return &cp, nil
}

var _ Store = (*Memory)(nil)
