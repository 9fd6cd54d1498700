package store

import (
	"context"
	"errors"
	"time"

	"fabrika/internal/schema"
)

var (
	// ErrNotFound — нет endpoint'а у этого владельца либо нет документа.
	ErrNotFound = errors.New("not found")
	// ErrExists — конфликт уникальности (имя endpoint'а, логин владельца).
	ErrExists = errors.New("already exists")
)

// Owner — арендатор. Все обращения к схемам и документам фильтруются его id.
type Owner struct {
	ID        string    `json:"owner_id"`
	Login     string    `json:"login"`
	Token     string    `json:"-"`
	CreatedAt time.Time `json:"-"`
}

// Document — одна запись endpoint'а. Payload хранится как непрозрачный blob:
// типизация применяется только на границе валидации при записи.
type Document struct {
	ID         string
	EndpointID string
	Payload    map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Store — персистентность владельцев, реестра схем и документов.
// Реализации: memory (по умолчанию) и pg.
type Store interface {
	// владельцы / токены
	CreateOwner(ctx context.Context, login string) (Owner, error)
	EnsureOwner(ctx context.Context, login, token string) (Owner, error)
	OwnerByToken(ctx context.Context, token string) (Owner, error)

	// реестр схем (пишет только административный API)
	CreateEndpoint(ctx context.Context, ep *schema.Endpoint) error
	UpdateEndpoint(ctx context.Context, ownerID, name string, ep *schema.Endpoint) error
	DeleteEndpoint(ctx context.Context, ownerID, name string) error
	ListEndpoints(ctx context.Context, ownerID string) ([]*schema.Endpoint, error)
	// ResolveEndpoint ищет ровно один endpoint по (owner, name); мимо владельца
	// ничего не видно — чужое имя неотличимо от несуществующего.
	ResolveEndpoint(ctx context.Context, ownerID, name string) (*schema.Endpoint, error)

	// документы (endpoint_id получен только через ResolveEndpoint)
	CreateDocument(ctx context.Context, endpointID string, payload map[string]any) (string, error)
	ListDocuments(ctx context.Context, endpointID string) ([]Document, error)
	GetDocument(ctx context.Context, endpointID, id string) (Document, error)
	// ReplaceDocument перезаписывает payload целиком (last-write-wins).
	ReplaceDocument(ctx context.Context, endpointID, id string, payload map[string]any) error
	DeleteDocument(ctx context.Context, endpointID, id string) error

	Close() error
}
