package pg

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"fabrika/internal/schema"
	"fabrika/internal/store"
)

// Интеграционный тест на реальном Postgres в контейнере. Без Docker — skip.
func startPostgres(t *testing.T) *PG {
	t.Helper()
	if testing.Short() {
		t.Skip("short mode: контейнерный тест пропущен")
	}
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("fabrika"),
		tcpostgres.WithUsername("fabrika"),
		tcpostgres.WithPassword("fabrika"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("контейнер Postgres недоступен: %v", err)
	}
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	p, err := Open(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	require.NoError(t, EnsureSchema(p.DB()))
	// повторное применение DDL — no-op, как и на рестарте сервера
	require.NoError(t, EnsureSchema(p.DB()))
	return p
}

func TestPostgresEndToEnd(t *testing.T) {
	p := startPostgres(t)
	ctx := context.Background()

	alice, err := p.CreateOwner(ctx, "alice")
	require.NoError(t, err)
	_, err = p.CreateOwner(ctx, "alice")
	assert.ErrorIs(t, err, store.ErrExists)

	got, err := p.OwnerByToken(ctx, alice.Token)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	bob, err := p.CreateOwner(ctx, "bob")
	require.NoError(t, err)

	ep := &schema.Endpoint{
		OwnerID: alice.ID,
		Name:    "users",
		Method:  "POST",
		Fields: []schema.Field{
			{Name: "name", Type: schema.TypeVarchar, Required: true},
			{Name: "status", Type: schema.TypeVarchar, Default: strp("active")},
		},
	}
	require.NoError(t, p.CreateEndpoint(ctx, ep))

	// дубликат имени у того же владельца
	err = p.CreateEndpoint(ctx, &schema.Endpoint{OwnerID: alice.ID, Name: "users"})
	assert.ErrorIs(t, err, store.ErrExists)
	// у другого владельца то же имя свободно
	require.NoError(t, p.CreateEndpoint(ctx, &schema.Endpoint{OwnerID: bob.ID, Name: "users"}))

	// резолв в рамках владельца, поля с дефолтом восстанавливаются
	resolved, err := p.ResolveEndpoint(ctx, alice.ID, "users")
	require.NoError(t, err)
	assert.Equal(t, ep.ID, resolved.ID)
	require.Len(t, resolved.Fields, 2)
	require.NotNil(t, resolved.Fields[1].Default)
	assert.Equal(t, "active", *resolved.Fields[1].Default)

	_, err = p.ResolveEndpoint(ctx, bob.ID, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// документы: jsonb round-trip
	id, err := p.CreateDocument(ctx, ep.ID, map[string]any{"name": "ann", "status": "active"})
	require.NoError(t, err)

	d, err := p.GetDocument(ctx, ep.ID, id)
	require.NoError(t, err)
	assert.Equal(t, "ann", d.Payload["name"])

	require.NoError(t, p.ReplaceDocument(ctx, ep.ID, id, map[string]any{"name": "ann", "status": "done"}))
	d, err = p.GetDocument(ctx, ep.ID, id)
	require.NoError(t, err)
	assert.Equal(t, "done", d.Payload["status"])

	list, err := p.ListDocuments(ctx, ep.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// переопределение схемы не трогает blob'ы
	next := &schema.Endpoint{
		Name:   "users",
		Method: "POST",
		Fields: []schema.Field{
			{Name: "name", Type: schema.TypeVarchar},
			{Name: "age", Type: schema.TypeInt},
		},
	}
	require.NoError(t, p.UpdateEndpoint(ctx, alice.ID, "users", next))
	d, err = p.GetDocument(ctx, ep.ID, id)
	require.NoError(t, err)
	assert.Equal(t, "ann", d.Payload["name"])

	// удаление endpoint'а каскадом забирает поля и документы
	require.NoError(t, p.DeleteEndpoint(ctx, alice.ID, "users"))
	_, err = p.GetDocument(ctx, ep.ID, id)
	assert.ErrorIs(t, err, store.ErrNotFound)
	err = p.DeleteEndpoint(ctx, alice.ID, "users")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func strp(s string) *string { return &s }
