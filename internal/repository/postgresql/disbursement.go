package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/disbursement"
	"github.com/cmlabs-hris/payrun-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type disbursementRepository struct {
	db *database.DB
}

func NewDisbursementRepository(db *database.DB) disbursement.Repository {
	return &disbursementRepository{db: db}
}

const disbursementColumns = `run_id::text, employee_id::text, amount, status, reference, last_error, attempts, updated_at`

func scanDisbursement(row pgx.Row) (disbursement.Record, error) {
	var rec disbursement.Record
	var status string
	err := row.Scan(&rec.RunID, &rec.EmployeeID, &rec.Amount, &status, &rec.Reference, &rec.LastError, &rec.Attempts, &rec.UpdatedAt)
	rec.Status = disbursement.Status(status)
	return rec, err
}

// ListByRun implements disbursement.Repository.
func (r *disbursementRepository) ListByRun(ctx context.Context, runID string) ([]disbursement.Record, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `SELECT `+disbursementColumns+` FROM payroll_disbursements WHERE run_id = $1 ORDER BY employee_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list disbursements: %w", err)
	}
	defer rows.Close()

	var records []disbursement.Record
	for rows.Next() {
		rec, err := scanDisbursement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan disbursement: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Save implements disbursement.Repository.
// A succeeded row is left untouched and returned as stored.
func (r *disbursementRepository) Save(ctx context.Context, record disbursement.Record) (disbursement.Record, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO payroll_disbursements (run_id, employee_id, amount, status, reference, last_error, attempts, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1, NOW())
		ON CONFLICT (run_id, employee_id) DO UPDATE SET
			amount = EXCLUDED.amount,
			status = EXCLUDED.status,
			reference = EXCLUDED.reference,
			last_error = EXCLUDED.last_error,
			attempts = payroll_disbursements.attempts + 1,
			updated_at = NOW()
		WHERE payroll_disbursements.status <> 'succeeded'
		RETURNING ` + disbursementColumns

	saved, err := scanDisbursement(q.QueryRow(ctx, query,
		record.RunID, record.EmployeeID, record.Amount, string(record.Status), record.Reference, record.LastError,
	))
	if err == nil {
		return saved, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return disbursement.Record{}, fmt.Errorf("failed to save disbursement: %w", err)
	}

	// Conflict with a succeeded row
	existing, err := scanDisbursement(q.QueryRow(ctx,
		`SELECT `+disbursementColumns+` FROM payroll_disbursements WHERE run_id = $1 AND employee_id = $2`,
		record.RunID, record.EmployeeID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return disbursement.Record{}, disbursement.ErrRecordNotFound
		}
		return disbursement.Record{}, fmt.Errorf("failed to load disbursement: %w", err)
	}
	return existing, nil
}
