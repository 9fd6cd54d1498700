// Package memory — in-memory реализация store.Store. Бэкенд по умолчанию
// (пустой DBURL) и основа для httptest-тестов API.
package memory

import (
	"context"
	"io"
	"math/rand"
	"sync"
	"time"

	"fabrika/internal/schema"
	"fabrika/internal/store"

	"github.com/oklog/ulid/v2"
)

type Memory struct {
	mu sync.RWMutex

	owners  map[string]store.Owner               // id -> owner
	byToken map[string]string                    // token -> owner id
	byLogin map[string]string                    // login -> owner id
	schemas map[string]map[string]*schema.Endpoint // owner id -> name -> endpoint
	docs    map[string]map[string]*store.Document  // endpoint id -> doc id -> doc

	entropy io.Reader
}

var _ store.Store = (*Memory)(nil)

func New() *Memory {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Memory{
		owners:  make(map[string]store.Owner),
		byToken: make(map[string]string),
		byLogin: make(map[string]string),
		schemas: make(map[string]map[string]*schema.Endpoint),
		docs:    make(map[string]map[string]*store.Document),
		entropy: ulid.Monotonic(src, 0),
	}
}

func (m *Memory) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), m.entropy).String()
}

func (m *Memory) Close() error { return nil }

// ---- владельцы ----

func (m *Memory) CreateOwner(_ context.Context, login string) (store.Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byLogin[login]; taken {
		return store.Owner{}, store.ErrExists
	}
	return m.insertOwnerLocked(login, store.NewToken())
}

// EnsureOwner идемпотентен: существующий логин возвращается как есть
// (bootstrap и seed зовут его на каждом старте).
func (m *Memory) EnsureOwner(_ context.Context, login, token string) (store.Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byLogin[login]; ok {
		if token == "" || m.owners[id].Token == token {
			return m.owners[id], nil
		}
		return store.Owner{}, store.ErrExists
	}
	if token == "" {
		token = store.NewToken()
	}
	return m.insertOwnerLocked(login, token)
}

func (m *Memory) insertOwnerLocked(login, token string) (store.Owner, error) {
	if _, taken := m.byToken[token]; taken {
		return store.Owner{}, store.ErrExists
	}

	o := store.Owner{
		ID:        m.newID(),
		Login:     login,
		Token:     token,
		CreatedAt: time.Now().UTC(),
	}
	m.owners[o.ID] = o
	m.byToken[o.Token] = o.ID
	m.byLogin[o.Login] = o.ID
	return o, nil
}

func (m *Memory) OwnerByToken(_ context.Context, token string) (store.Owner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byToken[token]
	if !ok {
		return store.Owner{}, store.ErrNotFound
	}
	return m.owners[id], nil
}

// ---- реестр схем ----

func (m *Memory) CreateEndpoint(_ context.Context, ep *schema.Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byName := m.schemas[ep.OwnerID]
	if byName == nil {
		byName = make(map[string]*schema.Endpoint)
		m.schemas[ep.OwnerID] = byName
	}
	if _, dup := byName[ep.Name]; dup {
		return store.ErrExists
	}
	if ep.ID == "" {
		ep.ID = m.newID()
	}
	for i := range ep.Fields {
		if ep.Fields[i].ID == "" {
			ep.Fields[i].ID = m.newID()
		}
		ep.Fields[i].EndpointID = ep.ID
	}
	byName[ep.Name] = cloneEndpoint(ep)
	return nil
}

func (m *Memory) UpdateEndpoint(_ context.Context, ownerID, name string, ep *schema.Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byName := m.schemas[ownerID]
	old, ok := byName[name]
	if !ok {
		return store.ErrNotFound
	}
	if ep.Name != name {
		if _, dup := byName[ep.Name]; dup {
			return store.ErrExists
		}
	}
	// идентичность endpoint'а неизменна; документы остаются привязанными к ней
	ep.ID = old.ID
	ep.OwnerID = ownerID
	for i := range ep.Fields {
		if ep.Fields[i].ID == "" {
			ep.Fields[i].ID = m.newID()
		}
		ep.Fields[i].EndpointID = ep.ID
	}
	delete(byName, name)
	byName[ep.Name] = cloneEndpoint(ep)
	return nil
}

func (m *Memory) DeleteEndpoint(_ context.Context, ownerID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byName := m.schemas[ownerID]
	ep, ok := byName[name]
	if !ok {
		return store.ErrNotFound
	}
	delete(byName, name)
	delete(m.docs, ep.ID) // каскад: документы уходят вместе с определением
	return nil
}

func (m *Memory) ListEndpoints(_ context.Context, ownerID string) ([]*schema.Endpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*schema.Endpoint, 0, len(m.schemas[ownerID]))
	for _, ep := range m.schemas[ownerID] {
		out = append(out, cloneEndpoint(ep))
	}
	return out, nil
}

func (m *Memory) ResolveEndpoint(_ context.Context, ownerID, name string) (*schema.Endpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ep, ok := m.schemas[ownerID][name]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneEndpoint(ep), nil
}

// ---- документы ----

func (m *Memory) CreateDocument(_ context.Context, endpointID string, payload map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.docs[endpointID] == nil {
		m.docs[endpointID] = make(map[string]*store.Document)
	}
	now := time.Now().UTC()
	id := m.newID()
	m.docs[endpointID][id] = &store.Document{
		ID:         id,
		EndpointID: endpointID,
		Payload:    clonePayload(payload),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return id, nil
}

func (m *Memory) ListDocuments(_ context.Context, endpointID string) ([]store.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byID := m.docs[endpointID]
	out := make([]store.Document, 0, len(byID))
	for _, d := range byID {
		cp := *d
		cp.Payload = clonePayload(d.Payload)
		out = append(out, cp)
	}
	return out, nil
}

func (m *Memory) GetDocument(_ context.Context, endpointID, id string) (store.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.docs[endpointID][id]
	if !ok {
		return store.Document{}, store.ErrNotFound
	}
	cp := *d
	cp.Payload = clonePayload(d.Payload)
	return cp, nil
}

func (m *Memory) ReplaceDocument(_ context.Context, endpointID, id string, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.docs[endpointID][id]
	if !ok {
		return store.ErrNotFound
	}
	// last-write-wins: версий и CAS нет, payload заменяется целиком
	d.Payload = clonePayload(payload)
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) DeleteDocument(_ context.Context, endpointID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[endpointID][id]; !ok {
		return store.ErrNotFound
	}
	delete(m.docs[endpointID], id)
	return nil
}

// ---- копирование (не отдаём наружу внутренние map'ы) ----

func cloneEndpoint(ep *schema.Endpoint) *schema.Endpoint {
	cp := *ep
	cp.Fields = append([]schema.Field(nil), ep.Fields...)
	return &cp
}

func clonePayload(p map[string]any) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
