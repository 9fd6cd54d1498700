// Package pg — Postgres-реализация store.Store (драйвер pgx через stdlib).
// Схемы и владельцы лежат в обычных колонках, payload документа — один
// непрозрачный jsonb-blob: пер-полевых колонок нет намеренно, схема
// пользовательская и изменяемая.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	"github.com/oklog/ulid/v2"

	"fabrika/internal/schema"
	"fabrika/internal/store"
)

type PG struct {
	db      *sql.DB
	entropy io.Reader
}

var _ store.Store = (*PG)(nil)

// Open подключается к Postgres и настраивает пул. Соединение берётся из пула
// на время конкретного запроса и возвращается на любом пути выхода —
// этим занимается database/sql.
func Open(url string) (*PG, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &PG{db: db, entropy: ulid.Monotonic(src, 0)}, nil
}

// NewWithDB оборачивает готовое соединение (тесты на sqlmock).
func NewWithDB(db *sql.DB) *PG {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &PG{db: db, entropy: ulid.Monotonic(src, 0)}
}

func (p *PG) Close() error { return p.db.Close() }

func (p *PG) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), p.entropy).String()
}

// isUniqueViolation — 23505 unique_violation
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ---- владельцы ----

func (p *PG) CreateOwner(ctx context.Context, login string) (store.Owner, error) {
	o := store.Owner{
		ID:        p.newID(),
		Login:     login,
		Token:     store.NewToken(),
		CreatedAt: time.Now().UTC(),
	}
	_, err := p.db.ExecContext(ctx,
		`insert into owners (id, login, token, created_at) values ($1, $2, $3, $4)`,
		o.ID, o.Login, o.Token, o.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.Owner{}, store.ErrExists
		}
		return store.Owner{}, err
	}
	return o, nil
}

// EnsureOwner идемпотентен: bootstrap и seed зовут его на каждом старте.
func (p *PG) EnsureOwner(ctx context.Context, login, token string) (store.Owner, error) {
	var o store.Owner
	err := p.db.QueryRowContext(ctx,
		`select id, login, token, created_at from owners where login = $1`, login).
		Scan(&o.ID, &o.Login, &o.Token, &o.CreatedAt)
	if err == nil {
		if token != "" && o.Token != token {
			return store.Owner{}, store.ErrExists
		}
		return o, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return store.Owner{}, err
	}

	if token == "" {
		token = store.NewToken()
	}
	o = store.Owner{
		ID:        p.newID(),
		Login:     login,
		Token:     token,
		CreatedAt: time.Now().UTC(),
	}
	_, err = p.db.ExecContext(ctx,
		`insert into owners (id, login, token, created_at) values ($1, $2, $3, $4)`,
		o.ID, o.Login, o.Token, o.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.Owner{}, store.ErrExists
		}
		return store.Owner{}, err
	}
	return o, nil
}

func (p *PG) OwnerByToken(ctx context.Context, token string) (store.Owner, error) {
	var o store.Owner
	err := p.db.QueryRowContext(ctx,
		`select id, login, token, created_at from owners where token = $1`, token).
		Scan(&o.ID, &o.Login, &o.Token, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Owner{}, store.ErrNotFound
	}
	if err != nil {
		return store.Owner{}, err
	}
	return o, nil
}

// ---- реестр схем ----

func (p *PG) CreateEndpoint(ctx context.Context, ep *schema.Endpoint) error {
	if ep.ID == "" {
		ep.ID = p.newID()
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`insert into endpoints (id, owner_id, name, method) values ($1, $2, $3, $4)`,
		ep.ID, ep.OwnerID, ep.Name, ep.Method)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrExists
		}
		return err
	}
	if err := p.insertFields(ctx, tx, ep); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PG) insertFields(ctx context.Context, tx *sql.Tx, ep *schema.Endpoint) error {
	for i := range ep.Fields {
		f := &ep.Fields[i]
		if f.ID == "" {
			f.ID = p.newID()
		}
		f.EndpointID = ep.ID
		var def sql.NullString
		if f.Default != nil {
			def = sql.NullString{String: *f.Default, Valid: true}
		}
		_, err := tx.ExecContext(ctx,
			`insert into fields (id, endpoint_id, name, type, required, default_value)
			 values ($1, $2, $3, $4, $5, $6)`,
			f.ID, f.EndpointID, f.Name, string(f.Type), f.Required, def)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrExists
			}
			return err
		}
	}
	return nil
}

func (p *PG) UpdateEndpoint(ctx context.Context, ownerID, name string, ep *schema.Endpoint) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx,
		`select id from endpoints where owner_id = $1 and name = $2`, ownerID, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	ep.ID = id
	ep.OwnerID = ownerID

	_, err = tx.ExecContext(ctx,
		`update endpoints set name = $1, method = $2 where id = $3`, ep.Name, ep.Method, id)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrExists
		}
		return err
	}
	// набор полей заменяется целиком; blob'ы документов не трогаем
	if _, err := tx.ExecContext(ctx, `delete from fields where endpoint_id = $1`, id); err != nil {
		return err
	}
	for i := range ep.Fields {
		ep.Fields[i].ID = ""
	}
	if err := p.insertFields(ctx, tx, ep); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PG) DeleteEndpoint(ctx context.Context, ownerID, name string) error {
	res, err := p.db.ExecContext(ctx,
		`delete from endpoints where owner_id = $1 and name = $2`, ownerID, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil // fields/documents уходят каскадом
}

func (p *PG) ListEndpoints(ctx context.Context, ownerID string) ([]*schema.Endpoint, error) {
	rows, err := p.db.QueryContext(ctx,
		`select id, name, method from endpoints where owner_id = $1 order by name`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*schema.Endpoint
	for rows.Next() {
		ep := &schema.Endpoint{OwnerID: ownerID}
		if err := rows.Scan(&ep.ID, &ep.Name, &ep.Method); err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, ep := range out {
		if ep.Fields, err = p.fieldsOf(ctx, ep.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *PG) ResolveEndpoint(ctx context.Context, ownerID, name string) (*schema.Endpoint, error) {
	ep := &schema.Endpoint{OwnerID: ownerID}
	err := p.db.QueryRowContext(ctx,
		`select id, name, method from endpoints where owner_id = $1 and name = $2`,
		ownerID, name).Scan(&ep.ID, &ep.Name, &ep.Method)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if ep.Fields, err = p.fieldsOf(ctx, ep.ID); err != nil {
		return nil, err
	}
	return ep, nil
}

func (p *PG) fieldsOf(ctx context.Context, endpointID string) ([]schema.Field, error) {
	rows, err := p.db.QueryContext(ctx,
		`select id, name, type, required, default_value from fields
		 where endpoint_id = $1 order by id`, endpointID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schema.Field
	for rows.Next() {
		f := schema.Field{EndpointID: endpointID}
		var typ string
		var def sql.NullString
		if err := rows.Scan(&f.ID, &f.Name, &typ, &f.Required, &def); err != nil {
			return nil, err
		}
		f.Type = schema.FieldType(typ)
		if def.Valid {
			f.Default = &def.String
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ---- документы ----

func (p *PG) CreateDocument(ctx context.Context, endpointID string, payload map[string]any) (string, error) {
	blob, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	id := p.newID()
	now := time.Now().UTC()
	_, err = p.db.ExecContext(ctx,
		`insert into documents (id, endpoint_id, payload, created_at, updated_at)
		 values ($1, $2, $3, $4, $4)`,
		id, endpointID, blob, now)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *PG) ListDocuments(ctx context.Context, endpointID string) ([]store.Document, error) {
	rows, err := p.db.QueryContext(ctx,
		`select id, payload, created_at, updated_at from documents
		 where endpoint_id = $1 order by id`, endpointID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Document
	for rows.Next() {
		d, err := scanDocument(rows, endpointID)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *PG) GetDocument(ctx context.Context, endpointID, id string) (store.Document, error) {
	row := p.db.QueryRowContext(ctx,
		`select id, payload, created_at, updated_at from documents
		 where endpoint_id = $1 and id = $2`, endpointID, id)
	d, err := scanDocument(row, endpointID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, store.ErrNotFound
	}
	return d, err
}

func (p *PG) ReplaceDocument(ctx context.Context, endpointID, id string, payload map[string]any) error {
	blob, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	// last-write-wins: никакого version-предиката в where
	res, err := p.db.ExecContext(ctx,
		`update documents set payload = $1, updated_at = $2
		 where endpoint_id = $3 and id = $4`,
		blob, time.Now().UTC(), endpointID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (p *PG) DeleteDocument(ctx context.Context, endpointID, id string) error {
	res, err := p.db.ExecContext(ctx,
		`delete from documents where endpoint_id = $1 and id = $2`, endpointID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// ноль строк — это NotFound, не тихий успех
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(r rowScanner, endpointID string) (store.Document, error) {
	d := store.Document{EndpointID: endpointID}
	var blob []byte
	if err := r.Scan(&d.ID, &blob, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return store.Document{}, err
	}
	if err := json.Unmarshal(blob, &d.Payload); err != nil {
		return store.Document{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	return d, nil
}
