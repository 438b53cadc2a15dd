package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/payrun-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation      = "23505"
	activePeriodConstraint = "uk_payroll_runs_active_period"
)

type payrollRunRepository struct {
	db *database.DB
}

func NewPayrollRunRepository(db *database.DB) payroll.RunRepository {
	return &payrollRunRepository{db: db}
}

const runColumns = `
	r.id, r.periodicity, r.period_index, r.period_year, r.period_start, r.period_end,
	r.working_days, r.periods_per_year, r.status,
	r.total_employees, r.total_gross, r.total_deductions, r.total_net, r.total_employer_contribution,
	COALESCE(r.tax_configuration_id::text, ''), r.currency_code, r.is_locked, r.version,
	r.created_at, r.updated_at
`

func scanRun(row pgx.Row) (payroll.Run, error) {
	var run payroll.Run
	var periodicity, status string
	err := row.Scan(
		&run.ID, &periodicity, &run.Period.Index, &run.Period.Year, &run.Period.StartDate, &run.Period.EndDate,
		&run.Period.WorkingDays, &run.Period.PeriodsPerYear, &status,
		&run.Totals.EmployeeCount, &run.Totals.Gross, &run.Totals.Deductions, &run.Totals.Net, &run.Totals.EmployerContribution,
		&run.TaxConfigurationID, &run.CurrencyCode, &run.Locked, &run.Version,
		&run.CreatedAt, &run.UpdatedAt,
	)
	run.Period.Periodicity = payroll.Periodicity(periodicity)
	run.Status = payroll.RunStatus(status)
	return run, err
}

// ========== CREATE ==========

func (r *payrollRunRepository) Create(ctx context.Context, run payroll.Run) (payroll.Run, error) {
	err := WithTransaction(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		runQuery := `
			INSERT INTO payroll_runs (
				id, period_key, periodicity, period_index, period_year, period_start, period_end,
				working_days, periods_per_year, status,
				total_employees, total_gross, total_deductions, total_net, total_employer_contribution,
				tax_configuration_id, currency_code, is_locked, version, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NULLIF($16, '')::uuid, $17, $18, $19, $20, $20)
		`
		_, err := tx.Exec(ctx, runQuery,
			run.ID, run.Period.Key(), string(run.Period.Periodicity), run.Period.Index, run.Period.Year,
			run.Period.StartDate, run.Period.EndDate, run.Period.WorkingDays, run.Period.PeriodsPerYear, string(run.Status),
			run.Totals.EmployeeCount, run.Totals.Gross, run.Totals.Deductions, run.Totals.Net, run.Totals.EmployerContribution,
			run.TaxConfigurationID, run.CurrencyCode, run.Locked, run.Version, run.CreatedAt,
		)
		if err != nil {
			return mapRunWriteError(err)
		}

		batch := &pgx.Batch{}
		for _, item := range run.LineItems {
			allowances, err := json.Marshal(item.Allowances)
			if err != nil {
				return fmt.Errorf("failed to encode allowances for employee %s: %w", item.EmployeeCode, err)
			}
			batch.Queue(`
				INSERT INTO payroll_line_items (
					id, run_id, employee_id, employee_code, employee_name, department, is_resident,
					bank_code, bank_account_holder_name, bank_account_number,
					basic_salary, allowances, bonus,
					working_days, present_days, leave_days, unpaid_leave_days, late_occurrences, late_minutes, overtime_hours,
					overtime_pay, gross_earnings, taxable_income, tax, employee_contribution,
					unpaid_leave_deduction, late_deduction, other_deductions, total_deductions, net_pay, employer_contribution
				) VALUES (
					$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
					$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31
				)`,
				item.ID, run.ID, item.EmployeeID, item.EmployeeCode, item.EmployeeName, item.Department, item.Resident,
				item.BankCode, item.BankAccountHolderName, item.BankAccountNumber,
				item.BasicSalary, allowances, item.Bonus,
				item.Attendance.WorkingDays, item.Attendance.PresentDays, item.Attendance.LeaveDays,
				item.Attendance.UnpaidLeaveDays, item.Attendance.LateOccurrences, item.Attendance.LateMinutes, item.Attendance.OvertimeHours,
				item.OvertimePay, item.GrossEarnings, item.TaxableIncome, item.Tax, item.EmployeeContribution,
				item.UnpaidLeaveDeduction, item.LateDeduction, item.OtherDeductions, item.TotalDeductions, item.NetPay, item.EmployerContribution,
			)
		}

		results := tx.SendBatch(ctx, batch)
		for _, item := range run.LineItems {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("failed to insert line item for employee %s: %w", item.EmployeeCode, err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("failed to insert line items: %w", err)
		}

		for i := range run.Audit {
			id, err := insertAudit(ctx, GetQuerier(ctx, r.db), run.ID, run.Audit[i])
			if err != nil {
				return err
			}
			run.Audit[i].ID = id
			run.Audit[i].RunID = run.ID
		}
		return nil
	})
	if err != nil {
		return payroll.Run{}, err
	}

	run.UpdatedAt = run.CreatedAt
	return run, nil
}

func insertAudit(ctx context.Context, q database.Querier, runID string, entry payroll.AuditEntry) (int64, error) {
	query := `
		INSERT INTO payroll_run_audit (run_id, action, from_status, to_status, actor_id, actor_name, actor_role, remarks, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	var id int64
	err := q.QueryRow(ctx, query,
		runID, string(entry.Action), string(entry.FromStatus), string(entry.ToStatus),
		entry.ActorID, entry.ActorName, string(entry.ActorRole), entry.Remarks, entry.At,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to append audit entry: %w", err)
	}
	return id, nil
}

func mapRunWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == activePeriodConstraint {
		return payroll.ErrRunAlreadyExists
	}
	return fmt.Errorf("failed to create payroll run: %w", err)
}

// ========== READS ==========

func (r *payrollRunRepository) GetByID(ctx context.Context, id string) (payroll.Run, error) {
	q := GetQuerier(ctx, r.db)

	run, err := scanRun(q.QueryRow(ctx, `SELECT `+runColumns+` FROM payroll_runs r WHERE r.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.Run{}, payroll.ErrRunNotFound
		}
		return payroll.Run{}, fmt.Errorf("failed to get payroll run: %w", err)
	}

	run.Audit, err = r.listAudit(ctx, q, id)
	if err != nil {
		return payroll.Run{}, err
	}
	return run, nil
}

func (r *payrollRunRepository) GetDetail(ctx context.Context, id string) (payroll.Run, error) {
	run, err := r.GetByID(ctx, id)
	if err != nil {
		return payroll.Run{}, err
	}

	q := GetQuerier(ctx, r.db)
	rows, err := q.Query(ctx, `SELECT `+lineItemColumns+` FROM payroll_line_items li WHERE li.run_id = $1 ORDER BY li.employee_code`, id)
	if err != nil {
		return payroll.Run{}, fmt.Errorf("failed to list line items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanLineItem(rows)
		if err != nil {
			return payroll.Run{}, err
		}
		run.LineItems = append(run.LineItems, item)
	}
	if err := rows.Err(); err != nil {
		return payroll.Run{}, fmt.Errorf("failed to list line items: %w", err)
	}
	return run, nil
}

func (r *payrollRunRepository) listAudit(ctx context.Context, q database.Querier, runID string) ([]payroll.AuditEntry, error) {
	query := `
		SELECT id, run_id, action, from_status, to_status, actor_id, actor_name, actor_role, remarks, created_at
		FROM payroll_run_audit
		WHERE run_id = $1
		ORDER BY id
	`
	rows, err := q.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []payroll.AuditEntry
	for rows.Next() {
		var e payroll.AuditEntry
		var action, from, to, role string
		if err := rows.Scan(&e.ID, &e.RunID, &action, &from, &to, &e.ActorID, &e.ActorName, &role, &e.Remarks, &e.At); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Action = payroll.Action(action)
		e.FromStatus = payroll.RunStatus(from)
		e.ToStatus = payroll.RunStatus(to)
		e.ActorRole = user.Role(role)
		e.At = e.At.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *payrollRunRepository) FindActiveByPeriod(ctx context.Context, periodKey string) (payroll.Run, error) {
	q := GetQuerier(ctx, r.db)

	run, err := scanRun(q.QueryRow(ctx,
		`SELECT `+runColumns+` FROM payroll_runs r WHERE r.period_key = $1 AND r.status <> 'REJECTED'`, periodKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.Run{}, payroll.ErrRunNotFound
		}
		return payroll.Run{}, fmt.Errorf("failed to find active payroll run: %w", err)
	}
	return run, nil
}

func (r *payrollRunRepository) List(ctx context.Context, filter payroll.RunFilter) ([]payroll.Run, int64, error) {
	q := GetQuerier(ctx, r.db)

	baseQuery := ` FROM payroll_runs r WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.From != nil {
		baseQuery += fmt.Sprintf(" AND r.period_start >= $%d", argIdx)
		args = append(args, *filter.From)
		argIdx++
	}
	if filter.To != nil {
		baseQuery += fmt.Sprintf(" AND r.period_start <= $%d", argIdx)
		args = append(args, *filter.To)
		argIdx++
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		baseQuery += fmt.Sprintf(" AND r.status = ANY($%d)", argIdx)
		args = append(args, statuses)
		argIdx++
	}

	// Count query
	var totalCount int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*)"+baseQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count payroll runs: %w", err)
	}

	// Pagination
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	offset := (filter.Page - 1) * filter.Limit

	selectQuery := fmt.Sprintf(`SELECT %s %s ORDER BY r.created_at DESC LIMIT $%d OFFSET $%d`,
		runColumns, baseQuery, argIdx, argIdx+1)
	args = append(args, filter.Limit, offset)

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payroll runs: %w", err)
	}
	defer rows.Close()

	var runs []payroll.Run
	var ids []string
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan payroll run: %w", err)
		}
		runs = append(runs, run)
		ids = append(ids, run.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list payroll runs: %w", err)
	}

	if len(runs) > 0 {
		audits, err := r.listAuditForRuns(ctx, q, ids)
		if err != nil {
			return nil, 0, err
		}
		for i := range runs {
			runs[i].Audit = audits[runs[i].ID]
		}
	}

	return runs, totalCount, nil
}

func (r *payrollRunRepository) listAuditForRuns(ctx context.Context, q database.Querier, runIDs []string) (map[string][]payroll.AuditEntry, error) {
	query := `
		SELECT id, run_id, action, from_status, to_status, actor_id, actor_name, actor_role, remarks, created_at
		FROM payroll_run_audit
		WHERE run_id = ANY($1)
		ORDER BY run_id, id
	`
	rows, err := q.Query(ctx, query, runIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]payroll.AuditEntry, len(runIDs))
	for rows.Next() {
		var e payroll.AuditEntry
		var action, from, to, role string
		if err := rows.Scan(&e.ID, &e.RunID, &action, &from, &to, &e.ActorID, &e.ActorName, &role, &e.Remarks, &e.At); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Action = payroll.Action(action)
		e.FromStatus = payroll.RunStatus(from)
		e.ToStatus = payroll.RunStatus(to)
		e.ActorRole = user.Role(role)
		e.At = e.At.UTC()
		out[e.RunID] = append(out[e.RunID], e)
	}
	return out, rows.Err()
}

// ========== STATUS (compare-and-swap) ==========

func (r *payrollRunRepository) UpdateStatus(ctx context.Context, run payroll.Run, expectedVersion int64, entry payroll.AuditEntry) (payroll.Run, error) {
	var updated payroll.Run

	err := WithTransaction(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		query := `
			UPDATE payroll_runs AS r
			SET status = $3, is_locked = $4, version = r.version + 1, updated_at = $5, processing_until = NULL
			WHERE r.id = $1 AND r.version = $2 AND r.is_locked = FALSE
			RETURNING ` + runColumns

		row := tx.QueryRow(ctx, query, run.ID, expectedVersion, string(run.Status), run.Locked, entry.At)
		var err error
		updated, err = scanRun(row)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("failed to update payroll run status: %w", err)
			}
			return r.staleWriteError(ctx, run.ID, expectedVersion, entry.At)
		}

		entry.RunID = run.ID
		entry.ID, err = insertAudit(ctx, GetQuerier(ctx, r.db), run.ID, entry)
		return err
	})
	if err != nil {
		return payroll.Run{}, err
	}

	// run.Audit already ends with the unsaved entry when it came from the workflow
	audit := append([]payroll.AuditEntry(nil), run.Audit...)
	if n := len(audit); n > 0 && audit[n-1].ID == 0 {
		audit[n-1] = entry
	} else {
		audit = append(audit, entry)
	}
	updated.Audit = audit
	return updated, nil
}

func (r *payrollRunRepository) ClaimForProcessing(ctx context.Context, runID string, expectedVersion int64, now, until time.Time) (payroll.Run, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_runs AS r
		SET version = r.version + 1, processing_until = $4, updated_at = $3
		WHERE r.id = $1 AND r.version = $2 AND r.is_locked = FALSE
			AND (r.processing_until IS NULL OR r.processing_until <= $3)
		RETURNING ` + runColumns

	claimed, err := scanRun(q.QueryRow(ctx, query, runID, expectedVersion, now, until))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return payroll.Run{}, fmt.Errorf("failed to claim payroll run: %w", err)
		}
		return payroll.Run{}, r.staleWriteError(ctx, runID, expectedVersion, now)
	}

	audit, err := r.listAudit(ctx, q, runID)
	if err != nil {
		return payroll.Run{}, err
	}
	claimed.Audit = audit
	return claimed, nil
}

// staleWriteError explains why a guarded update matched no row
func (r *payrollRunRepository) staleWriteError(ctx context.Context, runID string, expectedVersion int64, now time.Time) error {
	var version int64
	var locked, claimed bool
	err := GetQuerier(ctx, r.db).QueryRow(ctx, `
		SELECT version, is_locked, COALESCE(processing_until > $2, FALSE)
		FROM payroll_runs WHERE id = $1
	`, runID, now).Scan(&version, &locked, &claimed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.ErrRunNotFound
		}
		return fmt.Errorf("failed to check payroll run: %w", err)
	}

	switch {
	case locked:
		return fmt.Errorf("%w: run %s", payroll.ErrRunLocked, runID)
	case version != expectedVersion:
		return fmt.Errorf("%w: version %d is stale", payroll.ErrConcurrentModification, expectedVersion)
	case claimed:
		return fmt.Errorf("%w: disbursement already in progress", payroll.ErrConcurrentModification)
	default:
		return fmt.Errorf("%w: version %d is stale", payroll.ErrConcurrentModification, expectedVersion)
	}
}

// ========== PAYSLIPS ==========

const lineItemColumns = `
	li.id, li.run_id, li.employee_id, li.employee_code, li.employee_name, li.department, li.is_resident,
	li.bank_code, li.bank_account_holder_name, li.bank_account_number,
	li.basic_salary, li.allowances, li.bonus,
	li.working_days, li.present_days, li.leave_days, li.unpaid_leave_days, li.late_occurrences, li.late_minutes, li.overtime_hours,
	li.overtime_pay, li.gross_earnings, li.taxable_income, li.tax, li.employee_contribution,
	li.unpaid_leave_deduction, li.late_deduction, li.other_deductions, li.total_deductions, li.net_pay, li.employer_contribution
`

func scanLineItem(row pgx.Row, extra ...interface{}) (payroll.LineItem, error) {
	var item payroll.LineItem
	var allowances []byte
	dest := []interface{}{
		&item.ID, &item.RunID, &item.EmployeeID, &item.EmployeeCode, &item.EmployeeName, &item.Department, &item.Resident,
		&item.BankCode, &item.BankAccountHolderName, &item.BankAccountNumber,
		&item.BasicSalary, &allowances, &item.Bonus,
		&item.Attendance.WorkingDays, &item.Attendance.PresentDays, &item.Attendance.LeaveDays,
		&item.Attendance.UnpaidLeaveDays, &item.Attendance.LateOccurrences, &item.Attendance.LateMinutes, &item.Attendance.OvertimeHours,
		&item.OvertimePay, &item.GrossEarnings, &item.TaxableIncome, &item.Tax, &item.EmployeeContribution,
		&item.UnpaidLeaveDeduction, &item.LateDeduction, &item.OtherDeductions, &item.TotalDeductions, &item.NetPay, &item.EmployerContribution,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return payroll.LineItem{}, fmt.Errorf("failed to scan line item: %w", err)
	}
	if len(allowances) > 0 {
		if err := json.Unmarshal(allowances, &item.Allowances); err != nil {
			return payroll.LineItem{}, fmt.Errorf("failed to decode allowances: %w", err)
		}
	}
	return item, nil
}

const payslipQuery = `
	SELECT ` + lineItemColumns + `,
		r.periodicity, r.period_index, r.period_year, r.period_start, r.period_end, r.working_days, r.periods_per_year,
		r.status, r.currency_code,
		(SELECT MAX(a.created_at) FROM payroll_run_audit a WHERE a.run_id = r.id AND a.to_status = 'PROCESSED')
	FROM payroll_line_items li
	JOIN payroll_runs r ON r.id = li.run_id
`

func scanPayslip(row pgx.Row) (payroll.Payslip, error) {
	var p payroll.Payslip
	var periodicity, status string
	var processedAt *time.Time
	item, err := scanLineItem(row,
		&periodicity, &p.Period.Index, &p.Period.Year, &p.Period.StartDate, &p.Period.EndDate,
		&p.Period.WorkingDays, &p.Period.PeriodsPerYear, &status, &p.CurrencyCode, &processedAt,
	)
	if err != nil {
		return payroll.Payslip{}, err
	}
	p.RunID = item.RunID
	p.LineItem = item
	p.Period.Periodicity = payroll.Periodicity(periodicity)
	p.Status = payroll.RunStatus(status)
	p.ProcessedAt = processedAt
	return p, nil
}

func (r *payrollRunRepository) GetPayslip(ctx context.Context, runID, employeeID string) (payroll.Payslip, error) {
	q := GetQuerier(ctx, r.db)

	p, err := scanPayslip(q.QueryRow(ctx, payslipQuery+` WHERE li.run_id = $1 AND li.employee_id = $2`, runID, employeeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.Payslip{}, payroll.ErrPayslipNotFound
		}
		return payroll.Payslip{}, fmt.Errorf("failed to get payslip: %w", err)
	}
	return p, nil
}

func (r *payrollRunRepository) ListPayslipsByEmployee(ctx context.Context, employeeID string) ([]payroll.Payslip, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, payslipQuery+`
		WHERE li.employee_id = $1 AND r.status = 'PROCESSED'
		ORDER BY r.period_start DESC
	`, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payslips: %w", err)
	}
	defer rows.Close()

	var payslips []payroll.Payslip
	for rows.Next() {
		p, err := scanPayslip(rows)
		if err != nil {
			return nil, err
		}
		payslips = append(payslips, p)
	}
	return payslips, rows.Err()
}
