package postgresql

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/payrun-backend-go/internal/pkg/database"
)

type employeeRepository struct {
	db *database.DB
}

func NewEmployeeRepository(db *database.DB) employee.RosterRepository {
	return &employeeRepository{db: db}
}

// ListActive implements employee.RosterRepository.
func (r *employeeRepository) ListActive(ctx context.Context) ([]employee.Employee, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT
			e.id::text, e.employee_code, e.full_name, e.department, e.employment_status, e.is_resident,
			e.bank_code, e.bank_account_holder_name, e.bank_account_number, e.base_salary,
			COALESCE((
				SELECT jsonb_agg(jsonb_build_object('name', a.name, 'amount', a.amount) ORDER BY a.name)
				FROM employee_allowances a
				WHERE a.employee_id = e.id AND a.is_active = TRUE
			), '[]'::jsonb) AS allowances
		FROM employees e
		WHERE e.employment_status = 'active'
		  AND e.deleted_at IS NULL
		ORDER BY e.employee_code
	`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active employees: %w", err)
	}
	defer rows.Close()

	var employees []employee.Employee
	for rows.Next() {
		var e employee.Employee
		var status string
		var allowances []byte
		if err := rows.Scan(
			&e.ID, &e.EmployeeCode, &e.FullName, &e.Department, &status, &e.Resident,
			&e.BankCode, &e.BankAccountHolderName, &e.BankAccountNumber, &e.BaseSalary,
			&allowances,
		); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		e.EmploymentStatus = employee.EmploymentStatus(status)
		if err := json.Unmarshal(allowances, &e.Allowances); err != nil {
			return nil, fmt.Errorf("%w for %s: %v", employee.ErrInvalidAllowanceSet, e.EmployeeCode, err)
		}
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list active employees: %w", err)
	}

	return employees, nil
}
