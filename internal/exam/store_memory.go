package exam

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps the catalog, results and accounts in process memory.
// It backs offline mode and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	catalog Catalog
	modules map[string]Module
	groups  map[string]Group
	results []TestResult
	users   map[string]Participant
	hashes  map[string]string
}

func NewInMemoryStore() *MemoryStore {
	return &MemoryStore{
		modules: map[string]Module{},
		groups:  map[string]Group{},
		users:   map[string]Participant{},
		hashes:  map[string]string{},
	}
}

func (m *MemoryStore) PutCatalog(_ context.Context, c Catalog) error {
	c.Groups = append([]Group(nil), c.Groups...)
	c.LinkGroups()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalog = c
	m.modules = make(map[string]Module, len(c.Modules))
	for _, mod := range c.Modules {
		m.modules[mod.ID] = mod
	}
	m.groups = make(map[string]Group, len(c.Groups))
	for _, g := range c.Groups {
		m.groups[g.ID] = g
	}
	return nil
}

func (m *MemoryStore) Catalog(_ context.Context) (Catalog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := Catalog{
		Groups:    append([]Group(nil), m.catalog.Groups...),
		Subjects:  append([]Subject(nil), m.catalog.Subjects...),
		Modules:   append([]Module(nil), m.catalog.Modules...),
		Questions: append([]Question(nil), m.catalog.Questions...),
	}
	return c, nil
}

func (m *MemoryStore) GetModule(_ context.Context, id string) (Module, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mod, ok := m.modules[id]
	if !ok {
		return Module{}, ErrModuleNotFound
	}
	return mod, nil
}

func (m *MemoryStore) GetGroup(_ context.Context, id string) (Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[id]
	if !ok {
		return Group{}, ErrGroupNotFound
	}
	return g, nil
}

func (m *MemoryStore) SubjectPool(_ context.Context, subjectIDs []string) ([]Question, error) {
	want := toSet(subjectIDs)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Question
	for _, q := range m.catalog.Questions {
		if want[q.SubjectID] {
			out = append(out, cloneQuestion(q))
		}
	}
	return out, nil
}

func (m *MemoryStore) Questions(_ context.Context, ids []string) ([]Question, error) {
	want := toSet(ids)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Question
	for _, q := range m.catalog.Questions {
		if want[q.ID] {
			out = append(out, cloneQuestion(q))
		}
	}
	return out, nil
}

func (m *MemoryStore) InsertResult(_ context.Context, r TestResult) (TestResult, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.results {
		if existing.ParticipantID == r.ParticipantID && existing.ModuleID == r.ModuleID && existing.Date.Equal(r.Date) {
			return existing, false, nil
		}
	}
	m.results = append(m.results, r)
	return r, true, nil
}

func (m *MemoryStore) FindResult(_ context.Context, id string) (TestResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.results {
		if r.ID == id {
			return r, nil
		}
	}
	return TestResult{}, ErrResultNotFound
}

func (m *MemoryStore) ListResults(_ context.Context, f ResultFilter) ([]TestResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []TestResult{}
	for _, r := range m.results {
		if m.matches(r, f) {
			out = append(out, r)
		}
	}
	// newest first, same as the SQL store
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (m *MemoryStore) DeleteFailing(_ context.Context, f ResultFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.results[:0]
	removed := 0
	for _, r := range m.results {
		if !r.IsPassed && m.matches(r, f) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	m.results = kept
	return removed, nil
}

func (m *MemoryStore) matches(r TestResult, f ResultFilter) bool {
	if f.ParticipantID != "" && r.ParticipantID != f.ParticipantID {
		return false
	}
	if f.ModuleID != "" && r.ModuleID != f.ModuleID {
		return false
	}
	if f.GroupID != "" && r.GroupID != f.GroupID {
		return false
	}
	if f.ModuleIDs != nil && !toSet(f.ModuleIDs)[r.ModuleID] {
		return false
	}
	if f.FailedOnly && r.IsPassed {
		return false
	}
	if f.Kind != "" {
		mod, ok := m.modules[r.ModuleID]
		if !ok || mod.Kind != f.Kind {
			return false
		}
	}
	return true
}

func (m *MemoryStore) GetParticipant(_ context.Context, id string) (Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.users[id]
	if !ok {
		return Participant{}, ErrParticipantNotFound
	}
	return p, nil
}

func (m *MemoryStore) FindByUsername(_ context.Context, username string) (Participant, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.users {
		if p.Username == username {
			return p, m.hashes[p.ID], nil
		}
	}
	return Participant{}, "", ErrParticipantNotFound
}

func (m *MemoryStore) UpsertParticipants(_ context.Context, rows []ParticipantRow) (inserted, updated int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		if _, ok := m.users[r.ID]; ok {
			updated++
		} else {
			inserted++
		}
		m.users[r.ID] = r.Participant
		if r.PasswordHash != "" {
			m.hashes[r.ID] = r.PasswordHash
		}
	}
	return inserted, updated, nil
}

func (m *MemoryStore) ListParticipants(_ context.Context, role Role) ([]Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Participant{}
	for _, p := range m.users {
		if role == "" || p.Role == role {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *MemoryStore) SetPasswordHash(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrParticipantNotFound
	}
	m.hashes[id] = hash
	return nil
}

func cloneQuestion(q Question) Question {
	q.Options = append([]string(nil), q.Options...)
	return q
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
