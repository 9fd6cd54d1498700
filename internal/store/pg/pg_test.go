package pg

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fabrika/internal/schema"
	"fabrika/internal/store"
)

func newMock(t *testing.T) (*PG, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db), mock
}

func TestOwnerByToken(t *testing.T) {
	p, mock := newMock(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectQuery(`select id, login, token, created_at from owners where token = \$1`).
		WithArgs("fk_abc").
		WillReturnRows(sqlmock.NewRows([]string{"id", "login", "token", "created_at"}).
			AddRow("OWN1", "alice", "fk_abc", now))

	o, err := p.OwnerByToken(ctx, "fk_abc")
	require.NoError(t, err)
	assert.Equal(t, "alice", o.Login)

	mock.ExpectQuery(`select id, login, token, created_at from owners where token = \$1`).
		WithArgs("fk_nope").
		WillReturnRows(sqlmock.NewRows([]string{"id", "login", "token", "created_at"}))

	_, err = p.OwnerByToken(ctx, "fk_nope")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOwnerDuplicate(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectExec(`insert into owners`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := p.CreateOwner(context.Background(), "alice")
	assert.ErrorIs(t, err, store.ErrExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveEndpointOwnerScoped(t *testing.T) {
	p, mock := newMock(t)

	// резолв всегда с предикатом owner_id — чужие endpoint'ы недостижимы на уровне SQL
	mock.ExpectQuery(`select id, name, method from endpoints where owner_id = \$1 and name = \$2`).
		WithArgs("OWN1", "users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "method"}).
			AddRow("EP1", "users", "POST"))
	mock.ExpectQuery(`select id, name, type, required, default_value from fields`).
		WithArgs("EP1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "type", "required", "default_value"}).
			AddRow("F1", "name", "VARCHAR", true, nil).
			AddRow("F2", "status", "VARCHAR", false, "active"))

	ep, err := p.ResolveEndpoint(context.Background(), "OWN1", "users")
	require.NoError(t, err)
	assert.Equal(t, "EP1", ep.ID)
	require.Len(t, ep.Fields, 2)
	assert.Equal(t, schema.TypeVarchar, ep.Fields[0].Type)
	assert.Nil(t, ep.Fields[0].Default)
	require.NotNil(t, ep.Fields[1].Default)
	assert.Equal(t, "active", *ep.Fields[1].Default)

	mock.ExpectQuery(`select id, name, method from endpoints where owner_id = \$1 and name = \$2`).
		WithArgs("OWN2", "users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "method"}))

	_, err = p.ResolveEndpoint(context.Background(), "OWN2", "users")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEndpointTx(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`insert into endpoints`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`insert into fields`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ep := &schema.Endpoint{
		OwnerID: "OWN1",
		Name:    "users",
		Method:  "POST",
		Fields:  []schema.Field{{Name: "name", Type: schema.TypeVarchar}},
	}
	require.NoError(t, p.CreateEndpoint(context.Background(), ep))
	assert.NotEmpty(t, ep.ID)
	assert.Equal(t, ep.ID, ep.Fields[0].EndpointID)

	// дубликат имени в рамках владельца: unique-индекс, откат транзакции
	mock.ExpectBegin()
	mock.ExpectExec(`insert into endpoints`).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err := p.CreateEndpoint(context.Background(), &schema.Endpoint{OwnerID: "OWN1", Name: "users"})
	assert.ErrorIs(t, err, store.ErrExists)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteEndpointNotFound(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectExec(`delete from endpoints where owner_id = \$1 and name = \$2`).
		WithArgs("OWN1", "nope").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := p.DeleteEndpoint(context.Background(), "OWN1", "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRoundTrip(t *testing.T) {
	p, mock := newMock(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectExec(`insert into documents`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	id, err := p.CreateDocument(ctx, "EP1", map[string]any{"age": int64(30)})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	mock.ExpectQuery(`select id, payload, created_at, updated_at from documents`).
		WithArgs("EP1", id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "payload", "created_at", "updated_at"}).
			AddRow(id, []byte(`{"age":30}`), now, now))

	d, err := p.GetDocument(ctx, "EP1", id)
	require.NoError(t, err)
	assert.Equal(t, float64(30), d.Payload["age"]) // jsonb round-trip: числа приходят как float64

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceAndDeleteDocumentNotFound(t *testing.T) {
	p, mock := newMock(t)
	ctx := context.Background()

	// ноль затронутых строк — NotFound, не тихий успех
	mock.ExpectExec(`update documents set payload = \$1, updated_at = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := p.ReplaceDocument(ctx, "EP1", "nope", map[string]any{})
	assert.ErrorIs(t, err, store.ErrNotFound)

	mock.ExpectExec(`delete from documents where endpoint_id = \$1 and id = \$2`).
		WithArgs("EP1", "nope").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = p.DeleteDocument(ctx, "EP1", "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}
