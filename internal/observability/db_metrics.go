package observability

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes worth their own label; anything else is "pg_<code>".
var pgErrorClasses = map[string]string{
	"23505": "unique_violation",
	"23514": "check_violation",
	"22P02": "invalid_text_representation",
	"40001": "serialization_failure",
	"40P01": "deadlock",
	"57014": "query_canceled",
}

// ObserveDB times one store operation under op. A nil *Prom just runs fn.
func (p *Prom) ObserveDB(op string, fn func() error) error {
	if p == nil {
		return fn()
	}

	start := time.Now()
	err := fn()
	elapsed := time.Since(start).Seconds()

	// no rows is an answer, not a failure
	if err == nil || errors.Is(err, pgx.ErrNoRows) {
		p.DbQueryDuration.WithLabelValues(op, "ok").Observe(elapsed)
		return err
	}

	p.DbQueryDuration.WithLabelValues(op, "error").Observe(elapsed)
	p.DbErrorsTotal.WithLabelValues(op, ClassifyDBErr(err)).Inc()

	return err
}

// ClassifyDBErr turns a driver error into a low-cardinality label.
func ClassifyDBErr(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if class, ok := pgErrorClasses[pgErr.Code]; ok {
			return class
		}
		return "pg_" + pgErr.Code
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "timeout"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "connect"):
		return "connection"
	default:
		return "unknown"
	}
}
