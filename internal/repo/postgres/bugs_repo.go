package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/bugzapp/internal/domain/bug"
	"github.com/geocoder89/bugzapp/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// public columns, in scan order
const bugColumns = `id, title, description, severity, status, user_id, created_at`

type BugsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewBugsRepo(pool *pgxpool.Pool, prom *observability.Prom) *BugsRepo {
	return &BugsRepo{
		pool: pool,
		prom: prom,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBug(row rowScanner) (bug.BugReport, error) {
	var (
		b      bug.BugReport
		status string
	)

	err := row.Scan(&b.ID, &b.Title, &b.Description, &b.Severity, &status, &b.UserID, &b.CreatedAt)
	if err != nil {
		return bug.BugReport{}, err
	}

	b.Status = bug.Status(status)

	return b, nil
}

// ids that are not UUIDs cannot match a row; answering early keeps them from
// surfacing as a 22P02 cast error
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r *BugsRepo) List(ctx context.Context) ([]bug.BugReport, error) {
	out := make([]bug.BugReport, 0)

	err := r.prom.ObserveDB("bugs.list", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+bugColumns+` FROM bug_reports ORDER BY created_at DESC, id DESC`,
		)
		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			b, err := scanBug(rows)
			if err != nil {
				return err
			}

			out = append(out, b)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r *BugsRepo) GetByID(ctx context.Context, id string) (bug.BugReport, error) {
	if !validID(id) {
		return bug.BugReport{}, bug.ErrNotFound
	}

	var b bug.BugReport

	err := r.prom.ObserveDB("bugs.get", func() error {
		var err error
		b, err = scanBug(r.pool.QueryRow(ctx, `SELECT `+bugColumns+` FROM bug_reports WHERE id = $1`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return bug.BugReport{}, bug.ErrNotFound
		}
		return bug.BugReport{}, err
	}

	return b, nil
}

func (r *BugsRepo) Create(ctx context.Context, in bug.NewBug) (bug.BugReport, error) {
	var b bug.BugReport

	err := r.prom.ObserveDB("bugs.create", func() error {
		var err error
		b, err = scanBug(r.pool.QueryRow(ctx,
			`INSERT INTO bug_reports (title, description, severity, status, user_id)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING `+bugColumns,
			in.Title, in.Description, in.Severity, string(in.Status), in.UserID,
		))
		return err
	})

	if err != nil {
		return bug.BugReport{}, err
	}

	return b, nil
}

func (r *BugsRepo) UpdateStatus(ctx context.Context, id string, status bug.Status) (bug.BugReport, error) {
	return r.Update(ctx, id, bug.Patch{Status: &status})
}

// Update writes only the columns set on the patch. Absent fields bind as
// NULL and COALESCE keeps the stored value; $4 alone can null severity. The
// statement text never depends on the input.
func (r *BugsRepo) Update(ctx context.Context, id string, patch bug.Patch) (bug.BugReport, error) {
	if !validID(id) {
		return bug.BugReport{}, bug.ErrNotFound
	}

	var status *string
	if patch.Status != nil {
		s := string(*patch.Status)
		status = &s
	}

	var b bug.BugReport

	err := r.prom.ObserveDB("bugs.update", func() error {
		var err error
		b, err = scanBug(r.pool.QueryRow(ctx,
			`UPDATE bug_reports
			SET status = COALESCE($2, status),
				severity = CASE WHEN $4::boolean THEN NULL
					ELSE COALESCE($3::text, severity) END
			WHERE id = $1
			RETURNING `+bugColumns,
			id, status, patch.Severity, patch.ClearSeverity,
		))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return bug.BugReport{}, bug.ErrNotFound
		}
		return bug.BugReport{}, err
	}

	return b, nil
}

func (r *BugsRepo) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return bug.ErrNotFound
	}

	var affected int64

	err := r.prom.ObserveDB("bugs.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM bug_reports WHERE id = $1`, id)
		affected = tag.RowsAffected()
		return err
	})

	if err != nil {
		return err
	}

	// if no rows were deleted as a result return a not found error
	if affected == 0 {
		return bug.ErrNotFound
	}

	return nil
}
