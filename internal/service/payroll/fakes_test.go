package payroll

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/disbursement"
	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/tax"
)

// ===== RUN REPOSITORY =====

type memoryRunRepository struct {
	mu          sync.Mutex
	runs        map[string]payroll.Run
	claims      map[string]time.Time // run ID -> claim expiry
	nextAuditID int64

	// getHook runs after GetByID has read the run, outside the lock
	getHook func()
}

func newMemoryRunRepository() *memoryRunRepository {
	return &memoryRunRepository{runs: make(map[string]payroll.Run), claims: make(map[string]time.Time)}
}

func cloneRun(run payroll.Run, withItems bool) payroll.Run {
	out := run
	out.Audit = append([]payroll.AuditEntry(nil), run.Audit...)
	if withItems {
		out.LineItems = append([]payroll.LineItem(nil), run.LineItems...)
	} else {
		out.LineItems = nil
	}
	return out
}

func (r *memoryRunRepository) Create(ctx context.Context, run payroll.Run) (payroll.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.runs {
		if existing.Period.Key() == run.Period.Key() && existing.Status != payroll.RunStatusRejected {
			return payroll.Run{}, payroll.ErrRunAlreadyExists
		}
	}

	stored := cloneRun(run, true)
	for i := range stored.Audit {
		r.nextAuditID++
		stored.Audit[i].ID = r.nextAuditID
	}
	stored.UpdatedAt = stored.CreatedAt
	r.runs[run.ID] = stored
	return cloneRun(stored, false), nil
}

func (r *memoryRunRepository) GetByID(ctx context.Context, id string) (payroll.Run, error) {
	r.mu.Lock()
	run, ok := r.runs[id]
	r.mu.Unlock()
	if !ok {
		return payroll.Run{}, payroll.ErrRunNotFound
	}
	if r.getHook != nil {
		r.getHook()
	}
	return cloneRun(run, false), nil
}

func (r *memoryRunRepository) GetDetail(ctx context.Context, id string) (payroll.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return payroll.Run{}, payroll.ErrRunNotFound
	}
	return cloneRun(run, true), nil
}

func (r *memoryRunRepository) FindActiveByPeriod(ctx context.Context, periodKey string) (payroll.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if run.Period.Key() == periodKey && run.Status != payroll.RunStatusRejected {
			return cloneRun(run, false), nil
		}
	}
	return payroll.Run{}, payroll.ErrRunNotFound
}

func (r *memoryRunRepository) List(ctx context.Context, filter payroll.RunFilter) ([]payroll.Run, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []payroll.Run
	for _, run := range r.runs {
		if len(filter.Statuses) > 0 {
			found := false
			for _, s := range filter.Statuses {
				if s == run.Status {
					found = true
				}
			}
			if !found {
				continue
			}
		}
		if filter.From != nil && run.Period.StartDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && run.Period.StartDate.After(*filter.To) {
			continue
		}
		matched = append(matched, cloneRun(run, false))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	start := (filter.Page - 1) * filter.Limit
	if start >= len(matched) {
		return []payroll.Run{}, total, nil
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *memoryRunRepository) UpdateStatus(ctx context.Context, run payroll.Run, expectedVersion int64, entry payroll.AuditEntry) (payroll.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.runs[run.ID]
	if !ok {
		return payroll.Run{}, payroll.ErrRunNotFound
	}
	if current.Locked {
		return payroll.Run{}, payroll.ErrRunLocked
	}
	if current.Version != expectedVersion {
		return payroll.Run{}, payroll.ErrConcurrentModification
	}
	delete(r.claims, run.ID)

	r.nextAuditID++
	entry.ID = r.nextAuditID

	updated := cloneRun(current, true)
	updated.Status = run.Status
	updated.Locked = run.Locked
	updated.Version = expectedVersion + 1
	updated.UpdatedAt = entry.At
	updated.Audit = append(updated.Audit, entry)
	r.runs[run.ID] = updated

	return cloneRun(updated, false), nil
}

func (r *memoryRunRepository) ClaimForProcessing(ctx context.Context, runID string, expectedVersion int64, now, until time.Time) (payroll.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.runs[runID]
	if !ok {
		return payroll.Run{}, payroll.ErrRunNotFound
	}
	if current.Locked {
		return payroll.Run{}, payroll.ErrRunLocked
	}
	if current.Version != expectedVersion {
		return payroll.Run{}, payroll.ErrConcurrentModification
	}
	if expiry, held := r.claims[runID]; held && expiry.After(now) {
		return payroll.Run{}, payroll.ErrConcurrentModification
	}

	r.claims[runID] = until
	current.Version++
	current.UpdatedAt = now
	r.runs[runID] = current
	return cloneRun(current, false), nil
}

func (r *memoryRunRepository) GetPayslip(ctx context.Context, runID, employeeID string) (payroll.Payslip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[runID]
	if !ok {
		return payroll.Payslip{}, payroll.ErrRunNotFound
	}
	for _, item := range run.LineItems {
		if item.EmployeeID == employeeID {
			return toPayslip(run, item), nil
		}
	}
	return payroll.Payslip{}, payroll.ErrPayslipNotFound
}

func (r *memoryRunRepository) ListPayslipsByEmployee(ctx context.Context, employeeID string) ([]payroll.Payslip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var payslips []payroll.Payslip
	for _, run := range r.runs {
		if run.Status != payroll.RunStatusProcessed {
			continue
		}
		for _, item := range run.LineItems {
			if item.EmployeeID == employeeID {
				payslips = append(payslips, toPayslip(run, item))
			}
		}
	}
	return payslips, nil
}

func (r *memoryRunRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

func toPayslip(run payroll.Run, item payroll.LineItem) payroll.Payslip {
	p := payroll.Payslip{
		RunID:        run.ID,
		Period:       run.Period,
		Status:       run.Status,
		CurrencyCode: run.CurrencyCode,
		LineItem:     item,
	}
	if entry, ok := run.AuditFor(payroll.RunStatusProcessed); ok {
		at := entry.At
		p.ProcessedAt = &at
	}
	return p
}

// ===== COLLABORATORS =====

type staticRoster struct {
	employees []employee.Employee
	err       error
}

func (s *staticRoster) ListActive(ctx context.Context) ([]employee.Employee, error) {
	return s.employees, s.err
}

type staticAttendance struct {
	summaries map[string]attendance.Summary
}

func (s *staticAttendance) GetSummaries(ctx context.Context, employeeIDs []string, window attendance.Window) (map[string]attendance.Summary, error) {
	out := make(map[string]attendance.Summary, len(employeeIDs))
	for _, id := range employeeIDs {
		if summary, ok := s.summaries[id]; ok {
			out[id] = summary
		}
	}
	return out, nil
}

type staticTaxSource struct {
	config tax.Configuration
	err    error
}

func (s *staticTaxSource) Select(ctx context.Context, date time.Time) (tax.Configuration, error) {
	if s.err != nil {
		return tax.Configuration{}, s.err
	}
	if !s.config.Covers(date) {
		return tax.Configuration{}, fmt.Errorf("%w: %s", tax.ErrNoActiveTaxConfiguration, date.Format("2006-01-02"))
	}
	return s.config, nil
}

// ===== DISBURSEMENT =====

type memoryLedger struct {
	mu      sync.Mutex
	records map[string]disbursement.Record
	saveErr error
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{records: make(map[string]disbursement.Record)}
}

func (l *memoryLedger) ListByRun(ctx context.Context, runID string) ([]disbursement.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []disbursement.Record
	for _, r := range l.records {
		if r.RunID == runID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (l *memoryLedger) Save(ctx context.Context, record disbursement.Record) (disbursement.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.saveErr != nil {
		return disbursement.Record{}, l.saveErr
	}
	key := disbursement.Key(record.RunID, record.EmployeeID)
	if existing, ok := l.records[key]; ok && existing.Status == disbursement.StatusSucceeded {
		return existing, nil
	}
	l.records[key] = record
	return record, nil
}

type fakeGateway struct {
	mu      sync.Mutex
	failFor map[string]bool // employee IDs
	calls   map[string]int  // by idempotency key

	// onDisburse runs once, before the first payout is recorded
	onDisburse func()
	hookOnce   sync.Once
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{failFor: make(map[string]bool), calls: make(map[string]int)}
}

func (g *fakeGateway) Disburse(ctx context.Context, in disbursement.Instruction) (string, error) {
	if g.onDisburse != nil {
		g.hookOnce.Do(g.onDisburse)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[in.IdempotencyKey]++
	if g.failFor[in.EmployeeID] {
		return "", fmt.Errorf("%w: account closed", disbursement.ErrGatewayRejected)
	}
	return "ref-" + in.IdempotencyKey, nil
}

func (g *fakeGateway) setFailing(employeeID string, failing bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failFor[employeeID] = failing
}

func (g *fakeGateway) callsFor(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[key]
}

func (g *fakeGateway) totalCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	total := 0
	for _, n := range g.calls {
		total += n
	}
	return total
}
