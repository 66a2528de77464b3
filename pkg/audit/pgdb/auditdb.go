// Package pgdb provides a postgres backed audit.Store.
package pgdb

import (
	"context"
	_ "embed"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"code.uvattest.org/golang/pkg/audit"
)

// PGDB is implemented by pgx.Tx, pgx.Conn & pgxpool.Pool
// accessing a postgres database through this common interface simplifies testing
type PGDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AuditStore keeps the attestation trail in a postgres database.
type AuditStore struct {
	DB PGDB
}

//go:embed audit_schema.sql
var schemaScriptTpl string

// Migrate creates the audit journal schema inside the dbschema namespace.
func Migrate(pgconn *pgx.Conn, dbschema string) error {

	// render schema creation script
	schemaName := pgx.Identifier{dbschema}.Sanitize()
	schemaScript := strings.ReplaceAll(schemaScriptTpl, "${schema_name}", schemaName)

	_, err := pgconn.Exec(context.Background(), schemaScript)

	return wrapError(err, "Failed db schema initialization") // nil if err is nil...

}

// New returns an AuditStore backed by a pgxpool over dsn.
func New(ctx context.Context, dsn string) (*AuditStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if nil != err {
		return nil, wrapError(err, "failed connection pool creation")
	}

	return &AuditStore{DB: pool}, nil

}

// Append implements audit.Store.
func (self *AuditStore) Append(ctx context.Context, rec audit.Record) error {
	err := rec.Check()
	if nil != err {
		return wrapError(err, "invalid record")
	}
	_, err = self.DB.Exec(
		ctx,
		`INSERT INTO attestation_round(id, role, counter, verdict, at)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.Id,
		rec.Role,
		int64(rec.Counter),
		rec.Verdict,
		rec.At,
	)

	return wrapError(err, "failed journaling record") // nil if err is nil...
}

// List implements audit.Store.
func (self *AuditStore) List(ctx context.Context) ([]audit.Record, error) {
	rows, err := self.DB.Query(
		ctx,
		// columns are renamed to match audit.Record struct
		`SELECT
		   id as "Id",
		   role as "Role",
		   counter as "Counter",
		   verdict as "Verdict",
		   at as "At"
		 FROM
		   attestation_round
		 ORDER BY
		   seq
		`,
	)
	if nil != err {
		return nil, wrapError(err, "failed DB.Query")
	}
	recs, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[audit.Record])
	return recs, wrapError(err, "failed pgx.CollectRows") // nil if err is nil
}

// Count implements audit.Store.
func (self *AuditStore) Count(ctx context.Context) (int, error) {
	var rv int
	row := self.DB.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM attestation_round`,
	)
	err := row.Scan(&rv)
	if nil != err {
		return 0, wrapError(err, "failed count query")
	}

	return rv, nil
}

var _ audit.Store = &AuditStore{}
