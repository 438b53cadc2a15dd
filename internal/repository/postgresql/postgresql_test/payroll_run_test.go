package postgresql_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/disbursement"
	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/tax"
	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/payrun-backend-go/internal/fixtures"
	"github.com/cmlabs-hris/payrun-backend-go/internal/repository/postgresql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testPeriod(index int) payroll.PayPeriod {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, (index-1)*14)
	return payroll.PayPeriod{
		Periodicity:    payroll.PeriodicityFortnightly,
		Index:          index,
		Year:           2025,
		StartDate:      start,
		EndDate:        start.AddDate(0, 0, 13),
		WorkingDays:    10,
		PeriodsPerYear: 26,
	}
}

func newTestRun(period payroll.PayPeriod, employeeIDs ...string) payroll.Run {
	now := time.Date(2025, time.April, 1, 9, 0, 0, 0, time.UTC)
	run := payroll.Run{
		ID:           uuid.NewString(),
		Period:       period,
		Status:       payroll.RunStatusComputed,
		CurrencyCode: "PGK",
		Version:      1,
		CreatedAt:    now,
	}

	for i, id := range employeeIDs {
		item := payroll.LineItem{
			ID:            uuid.NewString(),
			EmployeeID:    id,
			EmployeeCode:  fmt.Sprintf("EMP-%03d", i+1),
			EmployeeName:  fmt.Sprintf("Employee %d", i+1),
			Resident:      true,
			BasicSalary:   d("2000"),
			Allowances:    []employee.Allowance{{Name: "housing", Amount: d("100")}},
			Bonus:         decimal.Zero,
			Attendance:    payroll.AttendanceCounts{WorkingDays: 10, PresentDays: 10, OvertimeHours: decimal.Zero},
			OvertimePay:   decimal.Zero,
			GrossEarnings: d("2100"),
			TaxableIncome: d("2100"),
			Tax:           d("400"),

			EmployeeContribution: d("120"),
			UnpaidLeaveDeduction: decimal.Zero,
			LateDeduction:        decimal.Zero,
			OtherDeductions:      decimal.Zero,
			TotalDeductions:      d("520"),
			NetPay:               d("1580"),
			EmployerContribution: d("168"),
		}
		run.LineItems = append(run.LineItems, item)
		run.Totals.EmployeeCount++
		run.Totals.Gross = run.Totals.Gross.Add(item.GrossEarnings)
		run.Totals.Deductions = run.Totals.Deductions.Add(item.TotalDeductions)
		run.Totals.Net = run.Totals.Net.Add(item.NetPay)
		run.Totals.EmployerContribution = run.Totals.EmployerContribution.Add(item.EmployerContribution)
	}

	run.Audit = []payroll.AuditEntry{{
		Action:    payroll.ActionCompute,
		ToStatus:  payroll.RunStatusComputed,
		ActorID:   "officer-1",
		ActorName: "Officer",
		ActorRole: user.RolePayrollOfficer,
		At:        now,
	}}
	return run
}

func transition(run payroll.Run, action payroll.Action, to payroll.RunStatus, role user.Role) (payroll.Run, payroll.AuditEntry) {
	last, _ := run.LastAudit()
	entry := payroll.AuditEntry{
		Action:     action,
		FromStatus: run.Status,
		ToStatus:   to,
		ActorID:    string(role) + "-1",
		ActorRole:  role,
		At:         last.At.Add(time.Minute),
	}
	run.Status = to
	run.Locked = to == payroll.RunStatusProcessed
	run.Audit = append(append([]payroll.AuditEntry(nil), run.Audit...), entry)
	return run, entry
}

func TestPayrollRunRepository_CreateAndGetDetail(t *testing.T) {
	// Arrange
	setup := NewTestDatabase(t)
	repo := postgresql.NewPayrollRunRepository(setup.DB)
	ctx := context.Background()
	run := newTestRun(testPeriod(7), uuid.NewString(), uuid.NewString())

	// Act
	created, err := repo.Create(ctx, run)
	require.NoError(t, err)
	detail, err := repo.GetDetail(ctx, created.ID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, payroll.RunStatusComputed, detail.Status)
	assert.Equal(t, int64(1), detail.Version)
	assert.Equal(t, "fortnightly-2025-07", detail.Period.Key())
	assert.True(t, detail.Totals.Equal(run.Totals))
	require.Len(t, detail.LineItems, 2)
	assert.True(t, detail.LineItems[0].Balanced())
	assert.Equal(t, "housing", detail.LineItems[0].Allowances[0].Name)
	require.Len(t, detail.Audit, 1)
	assert.Equal(t, payroll.ActionCompute, detail.Audit[0].Action)
	assert.NotZero(t, detail.Audit[0].ID)
}

func TestPayrollRunRepository_Create_DuplicateActivePeriod(t *testing.T) {
	// Arrange
	setup := NewTestDatabase(t)
	repo := postgresql.NewPayrollRunRepository(setup.DB)
	ctx := context.Background()

	first, err := repo.Create(ctx, newTestRun(testPeriod(3), uuid.NewString()))
	require.NoError(t, err)

	// Act
	_, err = repo.Create(ctx, newTestRun(testPeriod(3), uuid.NewString()))

	// Assert
	assert.ErrorIs(t, err, payroll.ErrRunAlreadyExists)

	// A rejected run frees the period
	rejected, entry := transition(first, payroll.ActionCheckReject, payroll.RunStatusRejected, user.RolePayrollChecker)
	_, err = repo.UpdateStatus(ctx, rejected, first.Version, entry)
	require.NoError(t, err)

	_, err = repo.Create(ctx, newTestRun(testPeriod(3), uuid.NewString()))
	assert.NoError(t, err)
}

func TestPayrollRunRepository_UpdateStatus_CompareAndSwap(t *testing.T) {
	// Arrange
	setup := NewTestDatabase(t)
	repo := postgresql.NewPayrollRunRepository(setup.DB)
	ctx := context.Background()

	run, err := repo.Create(ctx, newTestRun(testPeriod(5), uuid.NewString()))
	require.NoError(t, err)
	checked, entry := transition(run, payroll.ActionCheckApprove, payroll.RunStatusChecked, user.RolePayrollChecker)

	// Act
	updated, err := repo.UpdateStatus(ctx, checked, run.Version, entry)
	require.NoError(t, err)
	_, staleErr := repo.UpdateStatus(ctx, checked, run.Version, entry)

	// Assert
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, payroll.RunStatusChecked, updated.Status)
	require.Len(t, updated.Audit, 2)
	assert.NotZero(t, updated.Audit[1].ID)
	assert.ErrorIs(t, staleErr, payroll.ErrConcurrentModification)

	stored, err := repo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Audit, 2)
}

func TestPayrollRunRepository_UpdateStatus_NotFound(t *testing.T) {
	setup := NewTestDatabase(t)
	repo := postgresql.NewPayrollRunRepository(setup.DB)

	run := newTestRun(testPeriod(1))
	next, entry := transition(run, payroll.ActionCheckApprove, payroll.RunStatusChecked, user.RolePayrollChecker)

	_, err := repo.UpdateStatus(context.Background(), next, 1, entry)
	assert.ErrorIs(t, err, payroll.ErrRunNotFound)
}

func TestPayrollRunRepository_ProcessedRunIsLocked(t *testing.T) {
	// Arrange
	setup := NewTestDatabase(t)
	repo := postgresql.NewPayrollRunRepository(setup.DB)
	ctx := context.Background()
	employeeID := uuid.NewString()

	run, err := repo.Create(ctx, newTestRun(testPeriod(9), employeeID))
	require.NoError(t, err)
	for _, step := range []struct {
		action payroll.Action
		to     payroll.RunStatus
		role   user.Role
	}{
		{payroll.ActionCheckApprove, payroll.RunStatusChecked, user.RolePayrollChecker},
		{payroll.ActionAuthorizeApprove, payroll.RunStatusAuthorized, user.RolePayrollAdmin},
		{payroll.ActionProcess, payroll.RunStatusProcessed, user.RolePayrollAdmin},
	} {
		next, entry := transition(run, step.action, step.to, step.role)
		run, err = repo.UpdateStatus(ctx, next, run.Version, entry)
		require.NoError(t, err)
	}

	// Act
	rejected, entry := transition(run, payroll.ActionAuthorizeReject, payroll.RunStatusRejected, user.RolePayrollAdmin)
	_, err = repo.UpdateStatus(ctx, rejected, run.Version, entry)

	// Assert
	assert.True(t, run.Locked)
	assert.ErrorIs(t, err, payroll.ErrRunLocked)

	payslip, err := repo.GetPayslip(ctx, run.ID, employeeID)
	require.NoError(t, err)
	assert.Equal(t, payroll.RunStatusProcessed, payslip.Status)
	require.NotNil(t, payslip.ProcessedAt)
	assert.True(t, payslip.LineItem.NetPay.Equal(d("1580")))

	payslips, err := repo.ListPayslipsByEmployee(ctx, employeeID)
	require.NoError(t, err)
	assert.Len(t, payslips, 1)

	_, err = repo.GetPayslip(ctx, run.ID, uuid.NewString())
	assert.ErrorIs(t, err, payroll.ErrPayslipNotFound)
}

func TestPayrollRunRepository_List_FiltersAndPaginates(t *testing.T) {
	// Arrange
	setup := NewTestDatabase(t)
	repo := postgresql.NewPayrollRunRepository(setup.DB)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := repo.Create(ctx, newTestRun(testPeriod(i), uuid.NewString()))
		require.NoError(t, err)
	}
	from := testPeriod(2).StartDate

	// Act
	runs, total, err := repo.List(ctx, payroll.RunFilter{
		From:     &from,
		Statuses: []payroll.RunStatus{payroll.RunStatusComputed},
		Page:     1,
		Limit:    1,
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, runs, 1)
	assert.Len(t, runs[0].Audit, 1)
}

func TestDisbursementRepository_NeverDowngradesSuccess(t *testing.T) {
	// Arrange
	setup := NewTestDatabase(t)
	runs := postgresql.NewPayrollRunRepository(setup.DB)
	repo := postgresql.NewDisbursementRepository(setup.DB)
	ctx := context.Background()
	employeeID := uuid.NewString()

	run, err := runs.Create(ctx, newTestRun(testPeriod(11), employeeID))
	require.NoError(t, err)

	failure := "bank timeout"
	reference := "payout-1"

	// Act
	first, err := repo.Save(ctx, disbursement.Record{RunID: run.ID, EmployeeID: employeeID, Amount: d("1580"), Status: disbursement.StatusFailed, LastError: &failure})
	require.NoError(t, err)
	second, err := repo.Save(ctx, disbursement.Record{RunID: run.ID, EmployeeID: employeeID, Amount: d("1580"), Status: disbursement.StatusSucceeded, Reference: &reference})
	require.NoError(t, err)
	third, err := repo.Save(ctx, disbursement.Record{RunID: run.ID, EmployeeID: employeeID, Amount: d("1580"), Status: disbursement.StatusFailed, LastError: &failure})
	require.NoError(t, err)

	// Assert
	assert.Equal(t, 1, first.Attempts)
	assert.Equal(t, 2, second.Attempts)
	assert.Equal(t, disbursement.StatusSucceeded, third.Status)
	require.NotNil(t, third.Reference)
	assert.Equal(t, reference, *third.Reference)

	records, err := repo.ListByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, disbursement.StatusSucceeded, records[0].Status)
}

func TestTaxConfigurationRepository_EnsureDefaultAndList(t *testing.T) {
	// Arrange
	setup := NewTestDatabase(t)
	repo := postgresql.NewTaxConfigurationRepository(setup.DB)
	ctx := context.Background()
	cfg := fixtures.GetDefaultTaxConfiguration(2025)

	// Act
	created, err := repo.EnsureDefault(ctx, cfg)
	require.NoError(t, err)
	again, err := repo.EnsureDefault(ctx, cfg)
	require.NoError(t, err)
	configs, err := repo.ListActive(ctx)

	// Assert
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, again)
	require.Len(t, configs, 1)
	assert.NoError(t, configs[0].Validate())
	assert.Len(t, configs[0].SlabsFor(tax.ResidencyResident), 5)
	assert.Len(t, configs[0].SlabsFor(tax.ResidencyNonResident), 1)
	assert.True(t, configs[0].Covers(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)))
}

func TestRosterAndAttendanceRepositories(t *testing.T) {
	// Arrange
	setup := NewTestDatabase(t)
	ctx := context.Background()

	var activeID string
	err := setup.DB.QueryRow(ctx, `
		INSERT INTO employees (employee_code, full_name, base_salary, bank_code, bank_account_number)
		VALUES ('EMP-001', 'Active Employee', 52000, 'BSP', '1000200030')
		RETURNING id::text
	`).Scan(&activeID)
	require.NoError(t, err)
	_, err = setup.DB.Exec(ctx, `
		INSERT INTO employees (employee_code, full_name, base_salary, employment_status)
		VALUES ('EMP-002', 'Former Employee', 40000, 'resigned')
	`)
	require.NoError(t, err)
	_, err = setup.DB.Exec(ctx, `INSERT INTO employee_allowances (employee_id, name, amount) VALUES ($1, 'housing', 2600)`, activeID)
	require.NoError(t, err)
	_, err = setup.DB.Exec(ctx, `
		INSERT INTO attendances (employee_id, date, status, late_minutes, overtime_minutes, overtime_approved) VALUES
			($1, '2025-03-31', 'present', 0, 90, TRUE),
			($1, '2025-04-01', 'late', 15, 60, FALSE),
			($1, '2025-04-02', 'unpaid_leave', 0, 0, FALSE),
			($1, '2025-04-03', 'leave', 0, 0, FALSE),
			($1, '2025-05-30', 'present', 0, 600, TRUE)
	`, activeID)
	require.NoError(t, err)

	roster := postgresql.NewEmployeeRepository(setup.DB)
	summaries := postgresql.NewAttendanceRepository(setup.DB)
	period := testPeriod(7)

	// Act
	employees, err := roster.ListActive(ctx)
	require.NoError(t, err)
	result, err := summaries.GetSummaries(ctx, []string{activeID, uuid.NewString()},
		attendance.Window{Start: period.StartDate, End: period.EndDate, WorkingDays: period.WorkingDays})

	// Assert
	require.NoError(t, err)
	require.Len(t, employees, 1)
	assert.Equal(t, "EMP-001", employees[0].EmployeeCode)
	assert.Nil(t, employees[0].Resident)
	require.Len(t, employees[0].Allowances, 1)
	assert.True(t, employees[0].TotalAllowances().Equal(d("2600")))

	require.Len(t, result, 1)
	s := result[activeID]
	assert.Equal(t, 10, s.WorkingDays)
	assert.Equal(t, 2, s.PresentDays)
	assert.Equal(t, 1, s.LeaveDays)
	assert.Equal(t, 1, s.UnpaidLeaveDays)
	assert.Equal(t, 1, s.LateOccurrences)
	assert.Equal(t, 15, s.LateMinutes)
	assert.True(t, s.OvertimeHours.Equal(d("1.5")), s.OvertimeHours.String())
}

func authorizedTestRun(t *testing.T, repo payroll.RunRepository) payroll.Run {
	t.Helper()
	ctx := context.Background()

	run, err := repo.Create(ctx, newTestRun(testPeriod(11), uuid.NewString()))
	require.NoError(t, err)
	next, entry := transition(run, payroll.ActionCheckApprove, payroll.RunStatusChecked, user.RolePayrollChecker)
	run, err = repo.UpdateStatus(ctx, next, run.Version, entry)
	require.NoError(t, err)
	next, entry = transition(run, payroll.ActionAuthorizeApprove, payroll.RunStatusAuthorized, user.RolePayrollAdmin)
	run, err = repo.UpdateStatus(ctx, next, run.Version, entry)
	require.NoError(t, err)
	return run
}

func TestPayrollRunRepository_ClaimForProcessing(t *testing.T) {
	// Arrange
	setup := NewTestDatabase(t)
	repo := postgresql.NewPayrollRunRepository(setup.DB)
	ctx := context.Background()
	run := authorizedTestRun(t, repo)
	now := time.Date(2025, time.April, 2, 9, 0, 0, 0, time.UTC)

	// Act
	claimed, err := repo.ClaimForProcessing(ctx, run.ID, run.Version, now, now.Add(15*time.Minute))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, run.Version+1, claimed.Version)
	assert.Equal(t, payroll.RunStatusAuthorized, claimed.Status)

	// Same version again: stale
	_, err = repo.ClaimForProcessing(ctx, run.ID, run.Version, now, now.Add(15*time.Minute))
	assert.ErrorIs(t, err, payroll.ErrConcurrentModification)

	// Current version while the claim is live: still refused
	_, err = repo.ClaimForProcessing(ctx, run.ID, claimed.Version, now.Add(time.Minute), now.Add(16*time.Minute))
	assert.ErrorIs(t, err, payroll.ErrConcurrentModification)
	assert.ErrorContains(t, err, "in progress")

	// An expired claim can be taken over
	taken, err := repo.ClaimForProcessing(ctx, run.ID, claimed.Version, now.Add(20*time.Minute), now.Add(35*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, claimed.Version+1, taken.Version)
}

func TestPayrollRunRepository_UpdateStatusReleasesClaim(t *testing.T) {
	// Arrange
	setup := NewTestDatabase(t)
	repo := postgresql.NewPayrollRunRepository(setup.DB)
	ctx := context.Background()
	run := authorizedTestRun(t, repo)
	now := time.Date(2025, time.April, 2, 9, 0, 0, 0, time.UTC)

	claimed, err := repo.ClaimForProcessing(ctx, run.ID, run.Version, now, now.Add(time.Hour))
	require.NoError(t, err)
	run.Version = claimed.Version

	// Act
	attempt, entry := transition(run, payroll.ActionProcessAttempt, payroll.RunStatusAuthorized, user.RolePayrollAdmin)
	released, err := repo.UpdateStatus(ctx, attempt, run.Version, entry)
	require.NoError(t, err)

	// Assert
	reclaimed, err := repo.ClaimForProcessing(ctx, run.ID, released.Version, now.Add(time.Minute), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, released.Version+1, reclaimed.Version)
}
