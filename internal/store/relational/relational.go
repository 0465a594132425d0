// Package relational implements the Storage Schema component (spec.md §6)
// over database/sql: it is the point of truth for the SCD2 product rows and
// the catalog tables (projects, branches, revisions).
//
// Two dialects are supported, selected by Dialect: Postgres (via
// github.com/jackc/pgx/v5's stdlib driver) for production deployments, and
// SQLite (via modernc.org/sqlite, pure Go, no CGO) for tests and local
// development, mirroring the teacher's own split between a server-backed
// store and an embedded one.
package relational

import (
	"context"
	"database/sql"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the OTel tracer for relational-store spans, installed behind the
// global delegating provider the same way the teacher's doltTracer is: a
// no-op until telemetry.Init runs, real once it has.
var tracer = otel.Tracer("github.com/bimatlas/core/internal/store/relational")

// Dialect distinguishes the two supported database/sql backends.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Store wraps *sql.DB with the dialect-aware query rebinding the two
// backends need (Postgres uses $1,$2,... placeholders; SQLite uses ?).
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open returns a Store backed by db. Callers are responsible for opening db
// with the driver matching dialect (pgx's stdlib driver registers as
// "pgx", modernc.org/sqlite registers as "sqlite").
func Open(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB returns the underlying *sql.DB, for callers (migrations, tests) that
// need raw access.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the backend this Store is bound to.
func (s *Store) Dialect() Dialect { return s.dialect }

// Close closes the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// rebind rewrites a query written with $1, $2, ... placeholders into the
// dialect's native placeholder style. Postgres queries pass through
// unchanged; SQLite queries have $N replaced with ?, positionally, the same
// approach sqlx's Rebind takes.
func (s *Store) rebind(query string) string {
	if s.dialect == DialectPostgres {
		return query
	}
	out := make([]byte, 0, len(query))
	for i := 0; i < len(query); i++ {
		if query[i] == '$' && i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
			out = append(out, '?')
			i++
			for i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
				i++
			}
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}

// spanAttrs returns the fixed attributes shared by every span this store
// emits, mirroring the teacher's doltSpanAttrs.
func (s *Store) spanAttrs() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("db.system", string(s.dialect)),
	}
}

// spanSQL truncates a SQL string to keep spans readable, same bound the
// teacher's dolt store uses.
func spanSQL(q string) string {
	if len(q) > 300 {
		return q[:300] + "…"
	}
	return q
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (res sql.Result, err error) {
	ctx, span := tracer.Start(ctx, "relational.exec", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(s.spanAttrs(), attribute.String("db.statement", spanSQL(query)))...))
	defer func() { endSpan(span, err) }()
	res, err = s.db.ExecContext(ctx, s.rebind(query), args...)
	return res, err
}

func (s *Store) query(ctx context.Context, query string, args ...any) (rows *sql.Rows, err error) {
	ctx, span := tracer.Start(ctx, "relational.query", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(s.spanAttrs(), attribute.String("db.statement", spanSQL(query)))...))
	defer func() { endSpan(span, err) }()
	rows, err = s.db.QueryContext(ctx, s.rebind(query), args...)
	return rows, err
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	ctx, span := tracer.Start(ctx, "relational.query_row", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(s.spanAttrs(), attribute.String("db.statement", spanSQL(query)))...))
	defer span.End()
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on error or panic. Mirrors the teacher's transaction-scoped write
// pattern used throughout internal/storage/sqlite: every multi-statement
// mutation (revision creation, SCD2 row closure + insertion) goes through
// this single helper so commit/rollback handling is never duplicated.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	ctx, span := tracer.Start(ctx, "relational.tx", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(s.spanAttrs()...))
	defer func() { endSpan(span, err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	err = fn(tx)
	return err
}

func (s *Store) execTx(ctx context.Context, tx *sql.Tx, query string, args ...any) (res sql.Result, err error) {
	_, span := tracer.Start(ctx, "relational.exec_tx", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(s.spanAttrs(), attribute.String("db.statement", spanSQL(query)))...))
	defer func() { endSpan(span, err) }()
	res, err = tx.ExecContext(ctx, s.rebind(query), args...)
	return res, err
}

func (s *Store) queryRowTx(ctx context.Context, tx *sql.Tx, query string, args ...any) *sql.Row {
	_, span := tracer.Start(ctx, "relational.query_row_tx", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(s.spanAttrs(), attribute.String("db.statement", spanSQL(query)))...))
	defer span.End()
	return tx.QueryRowContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryTx(ctx context.Context, tx *sql.Tx, query string, args ...any) (rows *sql.Rows, err error) {
	_, span := tracer.Start(ctx, "relational.query_tx", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(s.spanAttrs(), attribute.String("db.statement", spanSQL(query)))...))
	defer func() { endSpan(span, err) }()
	rows, err = tx.QueryContext(ctx, s.rebind(query), args...)
	return rows, err
}
