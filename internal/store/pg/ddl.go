package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// фиксированная схема: payload документа — один jsonb-blob,
// пер-полевых колонок нет (схема пользовательская и изменяемая)
var ddl = []string{
	`create table if not exists owners (
  "id" text primary key,
  "login" text not null unique,
  "token" text not null unique,
  "created_at" timestamp with time zone not null
);`,
	`create table if not exists endpoints (
  "id" text primary key,
  "owner_id" text not null references owners(id),
  "name" text not null,
  "method" text not null default ''
);`,
	`create unique index if not exists endpoints_owner_name_uq on endpoints("owner_id", "name");`,
	`create table if not exists fields (
  "id" text primary key,
  "endpoint_id" text not null references endpoints(id) on delete cascade,
  "name" text not null,
  "type" text not null,
  "required" boolean not null default false,
  "default_value" text null
);`,
	`create unique index if not exists fields_endpoint_name_uq on fields("endpoint_id", "name");`,
	`create table if not exists documents (
  "id" text primary key,
  "endpoint_id" text not null references endpoints(id) on delete cascade,
  "payload" jsonb not null,
  "created_at" timestamp with time zone not null,
  "updated_at" timestamp with time zone not null
);`,
	`create index if not exists documents_endpoint_idx on documents("endpoint_id");`,
}

// EnsureSchema применяет idempotent DDL (create ... if not exists).
// duplicate_object (42710) не считаем ошибкой — повторный старт.
func EnsureSchema(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "42710" {
				log.Printf("DDL skipped (already exists): %s", strings.TrimSpace(pgErr.Message))
				continue
			}
			e := strings.ToLower(err.Error())
			if strings.Contains(e, "already exists") || strings.Contains(e, "duplicate") {
				log.Printf("DDL skipped (already exists): %v", err)
				continue
			}
			return fmt.Errorf("DDL apply failed: %w", err)
		}
	}
	return nil
}

// DB отдаёт пул наружу (миграция при старте в cmd/server).
func (p *PG) DB() *sql.DB { return p.db }
