package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	almalead "github.com/phbpx/almalead"
)

const leadColumns = `
		id,
		first_name,
		last_name,
		email,
		resume_key,
		state,
		created_at,
		updated_at`

type LeadRepository struct {
	db *sql.DB
}

func NewLeadRepository(db *sql.DB) almalead.LeadRepository {
	return &LeadRepository{
		db: db,
	}
}

func (lr LeadRepository) Create(ctx context.Context, lead almalead.Lead) error {
	tx, err := lr.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO leads (
		id, first_name, last_name, email, resume_key, state, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8
	)`

	_, err = tx.ExecContext(ctx, query,
		lead.ID,
		lead.FirstName,
		lead.LastName,
		lead.Email,
		lead.ResumeKey,
		lead.State,
		lead.CreatedAt,
		lead.UpdatedAt,
	)

	if err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (lr LeadRepository) GetByID(ctx context.Context, id string) (almalead.Lead, error) {
	query := `SELECT ` + leadColumns + `
	FROM leads
	WHERE id=$1`

	lead, err := scanLead(lr.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return lead, almalead.ErrLeadNotFound
		}
		return lead, err
	}

	return lead, nil
}

// List returns one page of leads, newest first, together with the number of
// leads matching the filter.
func (lr LeadRepository) List(ctx context.Context, filter almalead.ListFilter) ([]almalead.Lead, int, error) {
	where := ""
	args := []interface{}{}
	if filter.State != nil {
		where = "WHERE state=$1"
		args = append(args, *filter.State)
	}

	var total int
	countQuery := `SELECT count(*) FROM leads ` + where
	if err := lr.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count leads: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s
	FROM leads
	%s
	ORDER BY created_at DESC
	OFFSET $%d LIMIT $%d`, leadColumns, where, n+1, n+2)
	args = append(args, filter.Skip, filter.Limit)

	rows, err := lr.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("select leads: %w", err)
	}
	defer rows.Close()

	leads := []almalead.Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return leads, total, nil
}

// UpdateState is a single statement with no row lock; concurrent callers on
// the same lead resolve as last writer wins.
func (lr LeadRepository) UpdateState(ctx context.Context, id string, state almalead.State, updatedAt time.Time) (almalead.Lead, error) {
	query := `
	UPDATE leads
	SET state=$2, updated_at=$3
	WHERE id=$1
	RETURNING ` + leadColumns

	lead, err := scanLead(lr.db.QueryRowContext(ctx, query, id, state, updatedAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return lead, almalead.ErrLeadNotFound
		}
		return lead, err
	}

	return lead, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanLead(row scanner) (almalead.Lead, error) {
	lead := almalead.Lead{}
	err := row.Scan(
		&lead.ID,
		&lead.FirstName,
		&lead.LastName,
		&lead.Email,
		&lead.ResumeKey,
		&lead.State,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	return lead, err
}

func isUniqueViolation(err error) bool {
	var pqerr *pq.Error
	return errors.As(err, &pqerr) && pqerr.Code == uniqueViolation
}
