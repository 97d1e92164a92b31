package registry

import (
	"errors"
	"slices"
)

var ErrClientNotFound = errors.New("client not found")

// ConnID identifies one live transport connection.
type ConnID string

type ClientRecord struct {
	ID            string
	Conn          ConnID
	AssignedAdmin string // empty means unassigned
}

type AdminRecord struct {
	ID   string
	Conn ConnID
}

// Registry owns presence and assignment state. It does no I/O and no
// locking: callers must serialize access (the gateway loop does).
//
// Presence records are deleted when their connection closes, but the last
// assignment per client id is remembered so a reconnecting client gets it
// back. The memory is capped; past the cap the least recently assigned
// absent client is forgotten first.
type Registry struct {
	clients     map[string]*ClientRecord
	admins      map[string]*AdminRecord
	adminOrder  []string
	assignments map[string]string
	assignOrder []string // assignment memory keys, least recently assigned first
	memoryLimit int
}

// DefaultAssignmentMemory is how many client ids keep their assignment by
// default.
const DefaultAssignmentMemory = 10000

type Option func(*Registry)

// WithAssignmentMemory caps the assignment memory at n client ids.
func WithAssignmentMemory(n int) Option {
	return func(r *Registry) { r.memoryLimit = n }
}

func New(opts ...Option) *Registry {
	r := &Registry{
		clients:     make(map[string]*ClientRecord),
		admins:      make(map[string]*AdminRecord),
		assignments: make(map[string]string),
		memoryLimit: DefaultAssignmentMemory,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) UpsertClient(id string, conn ConnID) ClientRecord {
	rec, ok := r.clients[id]
	if !ok {
		rec = &ClientRecord{ID: id, AssignedAdmin: r.assignments[id]}
		r.clients[id] = rec
	}
	rec.Conn = conn
	return *rec
}

func (r *Registry) UpsertAdmin(id string, conn ConnID) AdminRecord {
	rec, ok := r.admins[id]
	if !ok {
		rec = &AdminRecord{ID: id}
		r.admins[id] = rec
		r.adminOrder = append(r.adminOrder, id)
	}
	rec.Conn = conn
	return *rec
}

// Assign overwrites the client's assignment unconditionally. The admin id
// is not checked against admin presence.
func (r *Registry) Assign(clientID, adminID string) (ClientRecord, error) {
	rec, ok := r.clients[clientID]
	if !ok {
		return ClientRecord{}, ErrClientNotFound
	}
	rec.AssignedAdmin = adminID
	r.remember(clientID, adminID)
	return *rec, nil
}

func (r *Registry) RemoveClient(id string) {
	delete(r.clients, id)
	r.prune()
}

func (r *Registry) remember(clientID, adminID string) {
	if _, ok := r.assignments[clientID]; ok {
		if i := slices.Index(r.assignOrder, clientID); i >= 0 {
			r.assignOrder = slices.Delete(r.assignOrder, i, i+1)
		}
	}
	r.assignments[clientID] = adminID
	r.assignOrder = append(r.assignOrder, clientID)
	r.prune()
}

// prune forgets absent clients until the memory fits its cap. Present
// clients are skipped, so the memory can sit above the cap while they stay
// connected.
func (r *Registry) prune() {
	for len(r.assignments) > r.memoryLimit {
		i := slices.IndexFunc(r.assignOrder, func(id string) bool {
			_, present := r.clients[id]
			return !present
		})
		if i < 0 {
			return
		}
		delete(r.assignments, r.assignOrder[i])
		r.assignOrder = slices.Delete(r.assignOrder, i, i+1)
	}
}

func (r *Registry) RemoveAdmin(id string) {
	if _, ok := r.admins[id]; !ok {
		return
	}
	delete(r.admins, id)
	if i := slices.Index(r.adminOrder, id); i >= 0 {
		r.adminOrder = slices.Delete(r.adminOrder, i, i+1)
	}
}

func (r *Registry) Client(id string) (ClientRecord, bool) {
	rec, ok := r.clients[id]
	if !ok {
		return ClientRecord{}, false
	}
	return *rec, true
}

func (r *Registry) Admin(id string) (AdminRecord, bool) {
	rec, ok := r.admins[id]
	if !ok {
		return AdminRecord{}, false
	}
	return *rec, true
}

// SnapshotClients returns a copy keyed by client id.
func (r *Registry) SnapshotClients() map[string]ClientRecord {
	out := make(map[string]ClientRecord, len(r.clients))
	for id, rec := range r.clients {
		out[id] = *rec
	}
	return out
}

// SnapshotAdmins returns admins in the order they came online.
func (r *Registry) SnapshotAdmins() []AdminRecord {
	out := make([]AdminRecord, 0, len(r.adminOrder))
	for _, id := range r.adminOrder {
		out = append(out, *r.admins[id])
	}
	return out
}

func (r *Registry) Len() (clients, admins int) {
	return len(r.clients), len(r.admins)
}

func (r *Registry) Reset() {
	clear(r.clients)
	clear(r.admins)
	clear(r.assignments)
	r.adminOrder = nil
	r.assignOrder = nil
}
