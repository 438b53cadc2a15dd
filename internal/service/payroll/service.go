package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/tax"
	"github.com/cmlabs-hris/payrun-backend-go/internal/pkg/sse"
	"github.com/cmlabs-hris/payrun-backend-go/internal/pkg/validator"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RunEventsTopic is the hub topic run state changes are published on
const RunEventsTopic = "payroll.runs"

const (
	pendingQueueLimit      = 100
	defaultProcessingLease = 15 * time.Minute
)

// TaxConfigurationSource selects the tax configuration for a date
type TaxConfigurationSource interface {
	Select(ctx context.Context, date time.Time) (tax.Configuration, error)
}

// Config tunes the service
type Config struct {
	WorkerPoolSize int
	// FortnightsPerYear is used only when the tax configuration does not set PeriodsPerYear
	FortnightsPerYear int
	// ProcessingLease bounds how long a process call holds a run while paying out
	ProcessingLease time.Duration
	Now             func() time.Time
}

type PayrollServiceImpl struct {
	runRepo        payroll.RunRepository
	rosterRepo     employee.RosterRepository
	attendanceRepo attendance.SummaryRepository
	taxConfigs     TaxConfigurationSource
	computer       *Computer
	workflow       *Workflow
	disburser      *Disburser
	hub            *sse.Hub

	workerPoolSize    int
	fortnightsPerYear int
	processingLease   time.Duration
	now               func() time.Time
}

func NewPayrollService(
	runRepo payroll.RunRepository,
	rosterRepo employee.RosterRepository,
	attendanceRepo attendance.SummaryRepository,
	taxConfigs TaxConfigurationSource,
	computer *Computer,
	workflow *Workflow,
	disburser *Disburser,
	hub *sse.Hub,
	cfg Config,
) payroll.Service {
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 8
	}
	if cfg.FortnightsPerYear <= 0 {
		cfg.FortnightsPerYear = 26
	}
	if cfg.ProcessingLease <= 0 {
		cfg.ProcessingLease = defaultProcessingLease
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &PayrollServiceImpl{
		runRepo:           runRepo,
		rosterRepo:        rosterRepo,
		attendanceRepo:    attendanceRepo,
		taxConfigs:        taxConfigs,
		computer:          computer,
		workflow:          workflow,
		disburser:         disburser,
		hub:               hub,
		workerPoolSize:    cfg.WorkerPoolSize,
		fortnightsPerYear: cfg.FortnightsPerYear,
		processingLease:   cfg.ProcessingLease,
		now:               cfg.Now,
	}
}

// resolveActor prefers the actor on the request and falls back to the context
func resolveActor(ctx context.Context, actor payroll.Actor) (payroll.Actor, error) {
	if actor.ID != "" {
		return actor, nil
	}
	if fromCtx, ok := payroll.ActorFromContext(ctx); ok {
		return fromCtx, nil
	}
	return payroll.Actor{}, fmt.Errorf("%w: no actor on request", payroll.ErrUnauthorized)
}

// ========== COMPUTE ==========

func (s *PayrollServiceImpl) ComputeRun(ctx context.Context, req payroll.ComputeRunRequest) (payroll.RunSummary, error) {
	if err := req.Validate(); err != nil {
		return payroll.RunSummary{}, err
	}

	actor, err := resolveActor(ctx, req.Actor)
	if err != nil {
		return payroll.RunSummary{}, err
	}
	if err := s.workflow.Authorize(payroll.ActionCompute, actor.Role); err != nil {
		return payroll.RunSummary{}, err
	}

	periodicity := payroll.Periodicity(req.Periodicity)
	start, err := PeriodStart(periodicity, req.Index, req.Year)
	if err != nil {
		return payroll.RunSummary{}, err
	}
	cfg, err := s.taxConfigs.Select(ctx, start)
	if err != nil {
		return payroll.RunSummary{}, err
	}

	// The configuration decides how many fortnights its year is split into
	fortnights := cfg.PeriodsPerYear
	if fortnights <= 0 {
		fortnights = s.fortnightsPerYear
	}
	period, err := NewPayPeriod(periodicity, req.Index, req.Year, fortnights)
	if err != nil {
		return payroll.RunSummary{}, err
	}

	// Fail fast; the unique index on the period is the real guard
	existing, err := s.runRepo.FindActiveByPeriod(ctx, period.Key())
	if err == nil {
		return payroll.RunSummary{}, fmt.Errorf("%w: run %s is %s", payroll.ErrRunAlreadyExists, existing.ID, existing.Status)
	}
	if !errors.Is(err, payroll.ErrRunNotFound) {
		return payroll.RunSummary{}, fmt.Errorf("failed to check active run for period: %w", err)
	}

	employees, err := s.activeEmployees(ctx)
	if err != nil {
		return payroll.RunSummary{}, err
	}
	if err := validateAdjustments(req, employees); err != nil {
		return payroll.RunSummary{}, err
	}

	items, err := s.computeLineItems(ctx, req, employees, period, cfg)
	if err != nil {
		slog.Error("Payroll computation aborted", "period", period.Key(), "error", err)
		return payroll.RunSummary{}, err
	}

	now := s.now()
	run := payroll.Run{
		ID:                 uuid.NewString(),
		Period:             period,
		Status:             payroll.RunStatusNone,
		TaxConfigurationID: cfg.ID,
		CurrencyCode:       cfg.CurrencyCode,
		Version:            1,
		CreatedAt:          now,
		LineItems:          items,
	}
	for i := range run.LineItems {
		run.LineItems[i].ID = uuid.NewString()
		run.LineItems[i].RunID = run.ID
	}
	run.Totals = Aggregate(run.LineItems)

	computed, _, err := s.workflow.Apply(run, Command{Action: payroll.ActionCompute, Actor: actor, Reason: req.Remarks}, now)
	if err != nil {
		return payroll.RunSummary{}, err
	}
	if err := VerifyTotals(computed); err != nil {
		return payroll.RunSummary{}, err
	}

	created, err := s.runRepo.Create(ctx, computed)
	if err != nil {
		return payroll.RunSummary{}, err
	}

	slog.Info("Payroll run computed",
		"run_id", created.ID,
		"period", period.Key(),
		"employees", created.Totals.EmployeeCount,
		"total_net", created.Totals.Net.String(),
		"actor_id", actor.ID,
	)
	s.publish(created, payroll.ActionCompute, actor)

	return toRunSummary(created), nil
}

func (s *PayrollServiceImpl) activeEmployees(ctx context.Context) ([]employee.Employee, error) {
	roster, err := s.rosterRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load employee roster: %w", err)
	}

	active := make([]employee.Employee, 0, len(roster))
	for _, emp := range roster {
		if emp.IsActive() {
			active = append(active, emp)
		}
	}
	if len(active) == 0 {
		return nil, payroll.ErrNoActiveEmployees
	}
	return active, nil
}

// validateAdjustments rejects bonuses or deductions addressed to employees outside the run
func validateAdjustments(req payroll.ComputeRunRequest, employees []employee.Employee) error {
	known := make(map[string]struct{}, len(employees))
	for _, emp := range employees {
		known[emp.ID] = struct{}{}
	}

	var errs validator.ValidationErrors
	for id := range req.Bonuses {
		if _, ok := known[id]; !ok {
			errs = append(errs, validator.ValidationError{Field: "bonuses." + id, Message: "employee is not in the active roster"})
		}
	}
	for id := range req.OtherDeductions {
		if _, ok := known[id]; !ok {
			errs = append(errs, validator.ValidationError{Field: "other_deductions." + id, Message: "employee is not in the active roster"})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// computeLineItems fans out over employees on a bounded pool. The first
// failure cancels the rest and nothing is returned.
func (s *PayrollServiceImpl) computeLineItems(
	ctx context.Context,
	req payroll.ComputeRunRequest,
	employees []employee.Employee,
	period payroll.PayPeriod,
	cfg tax.Configuration,
) ([]payroll.LineItem, error) {
	ids := make([]string, len(employees))
	for i, emp := range employees {
		ids[i] = emp.ID
	}

	summaries, err := s.attendanceRepo.GetSummaries(ctx, ids, attendance.Window{
		Start:       period.StartDate,
		End:         period.EndDate,
		WorkingDays: period.WorkingDays,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance summaries: %w", err)
	}

	items := make([]payroll.LineItem, len(employees))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workerPoolSize)

	for i, emp := range employees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			in := LineItemInput{
				Employee:        emp,
				Bonus:           req.Bonuses[emp.ID],
				OtherDeductions: req.OtherDeductions[emp.ID],
			}
			if summary, ok := summaries[emp.ID]; ok {
				in.Attendance = &summary
			}

			item, err := s.computer.Compute(in, period, cfg)
			if err != nil {
				return err
			}
			items[i] = item
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// ========== TRANSITIONS ==========

func (s *PayrollServiceImpl) TransitionRun(ctx context.Context, req payroll.TransitionRunRequest) (payroll.RunSummary, error) {
	if err := req.Validate(); err != nil {
		return payroll.RunSummary{}, err
	}

	actor, err := resolveActor(ctx, req.Actor)
	if err != nil {
		return payroll.RunSummary{}, err
	}

	action := payroll.Action(req.Action)
	if err := s.workflow.Authorize(action, actor.Role); err != nil {
		return payroll.RunSummary{}, err
	}

	run, err := s.runRepo.GetByID(ctx, req.RunID)
	if err != nil {
		return payroll.RunSummary{}, err
	}
	if req.ExpectedVersion != nil && *req.ExpectedVersion != run.Version {
		return payroll.RunSummary{}, fmt.Errorf("%w: expected version %d, current version %d",
			payroll.ErrConcurrentModification, *req.ExpectedVersion, run.Version)
	}

	// A chain is checked end to end before its first step is written
	if s.workflow.IsChain(action) {
		if _, err := s.workflow.Next(run.Status, action); err != nil {
			return payroll.RunSummary{}, err
		}
	}

	for _, step := range s.workflow.Steps(action) {
		cmd := Command{Action: step, Actor: actor, Reason: req.Reason}
		if step == payroll.ActionProcess {
			run, err = s.process(ctx, run, cmd)
		} else {
			run, err = s.advance(ctx, run, cmd)
		}
		if err != nil {
			return payroll.RunSummary{}, err
		}
	}

	return toRunSummary(run), nil
}

// advance applies a single non-process step and writes it with compare-and-swap
func (s *PayrollServiceImpl) advance(ctx context.Context, run payroll.Run, cmd Command) (payroll.Run, error) {
	next, entry, err := s.workflow.Apply(run, cmd, s.now())
	if err != nil {
		return payroll.Run{}, err
	}

	updated, err := s.runRepo.UpdateStatus(ctx, next, run.Version, entry)
	if err != nil {
		if errors.Is(err, payroll.ErrConcurrentModification) {
			slog.Warn("Payroll transition lost race", "run_id", run.ID, "action", cmd.Action, "version", run.Version)
		}
		return payroll.Run{}, err
	}

	slog.Info("Payroll run transitioned",
		"run_id", updated.ID,
		"action", cmd.Action,
		"from", run.Status,
		"to", updated.Status,
		"version", updated.Version,
		"actor_id", cmd.Actor.ID,
	)
	s.publish(updated, cmd.Action, cmd.Actor)
	return updated, nil
}

// process pays out every line item and moves the run to PROCESSED only when all
// payouts succeeded. The run is claimed before the first payout, so a concurrent
// process call fails with ErrConcurrentModification without reaching the gateway.
// On partial failure the run stays AUTHORIZED with a process-attempt audit entry
// and a *payroll.DisbursementError is returned.
func (s *PayrollServiceImpl) process(ctx context.Context, run payroll.Run, cmd Command) (payroll.Run, error) {
	if _, _, err := s.workflow.Apply(run, cmd, s.now()); err != nil {
		return payroll.Run{}, err
	}

	detail, err := s.runRepo.GetDetail(ctx, run.ID)
	if err != nil {
		return payroll.Run{}, err
	}
	if detail.Version != run.Version {
		return payroll.Run{}, fmt.Errorf("%w: run changed before disbursement", payroll.ErrConcurrentModification)
	}
	if err := VerifyTotals(detail); err != nil {
		return payroll.Run{}, err
	}

	now := s.now()
	claimed, err := s.runRepo.ClaimForProcessing(ctx, run.ID, run.Version, now, now.Add(s.processingLease))
	if err != nil {
		if errors.Is(err, payroll.ErrConcurrentModification) {
			slog.Warn("Payroll process lost race", "run_id", run.ID, "version", run.Version)
		}
		return payroll.Run{}, err
	}
	held := run
	held.Version = claimed.Version
	detail.Version = claimed.Version

	results, err := s.disburser.Disburse(ctx, detail)
	if err != nil {
		slog.Error("Payroll disbursement aborted", "run_id", run.ID, "error", err)
		// Release the claim even when the caller has gone away
		if _, recErr := s.recordAttempt(context.WithoutCancel(ctx), held, cmd.Actor, "disbursement aborted: "+err.Error()); recErr != nil {
			slog.Error("Failed to release payroll run claim", "run_id", run.ID, "error", recErr)
		}
		return payroll.Run{}, err
	}

	if failed := CountFailed(results); failed > 0 {
		remarks := fmt.Sprintf("%d of %d payouts failed", failed, len(results))
		updated, err := s.recordAttempt(ctx, held, cmd.Actor, remarks)
		if err != nil {
			return payroll.Run{}, err
		}

		slog.Warn("Payroll disbursement incomplete",
			"run_id", run.ID,
			"failed", failed,
			"total", len(results),
			"version", updated.Version,
		)
		return payroll.Run{}, &payroll.DisbursementError{RunID: run.ID, Results: results}
	}

	next, entry, err := s.workflow.Apply(held, cmd, s.now())
	if err != nil {
		return payroll.Run{}, err
	}
	updated, err := s.runRepo.UpdateStatus(ctx, next, held.Version, entry)
	if err != nil {
		return payroll.Run{}, err
	}

	slog.Info("Payroll run processed",
		"run_id", updated.ID,
		"period", updated.Period.Key(),
		"payouts", len(results),
		"total_net", updated.Totals.Net.String(),
		"actor_id", cmd.Actor.ID,
	)
	s.publish(updated, payroll.ActionProcess, cmd.Actor)
	return updated, nil
}

// recordAttempt writes a process-attempt entry, which keeps the status and releases the claim
func (s *PayrollServiceImpl) recordAttempt(ctx context.Context, run payroll.Run, actor payroll.Actor, remarks string) (payroll.Run, error) {
	attempted, entry := s.workflow.RecordAttempt(run, actor, remarks, s.now())
	updated, err := s.runRepo.UpdateStatus(ctx, attempted, run.Version, entry)
	if err != nil {
		return payroll.Run{}, err
	}
	s.publish(updated, payroll.ActionProcessAttempt, actor)
	return updated, nil
}

// ========== READS ==========

func (s *PayrollServiceImpl) GetRun(ctx context.Context, id string) (payroll.RunDetail, error) {
	if !validator.IsValidUUID(id) {
		return payroll.RunDetail{}, validator.ValidationErrors{{Field: "id", Message: "must be a valid UUID"}}
	}

	run, err := s.runRepo.GetDetail(ctx, id)
	if err != nil {
		return payroll.RunDetail{}, err
	}
	return toRunDetail(run), nil
}

func (s *PayrollServiceImpl) ListRuns(ctx context.Context, req payroll.ListRunsRequest) ([]payroll.RunSummary, int64, error) {
	if err := req.Validate(); err != nil {
		return nil, 0, err
	}

	filter := req.ToFilter()
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}

	runs, total, err := s.runRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]payroll.RunSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, toRunSummary(run))
	}
	return summaries, total, nil
}

func (s *PayrollServiceImpl) ListPending(ctx context.Context, stage payroll.Stage) ([]payroll.RunSummary, error) {
	switch stage {
	case payroll.StageCheck, payroll.StageAuthorize, payroll.StageProcess:
	default:
		return nil, validator.ValidationErrors{{Field: "stage", Message: "must be one of check, authorize, process"}}
	}

	statuses := s.workflow.PendingStatuses(stage)
	if len(statuses) == 0 {
		return []payroll.RunSummary{}, nil
	}

	runs, _, err := s.runRepo.List(ctx, payroll.RunFilter{Statuses: statuses, Page: 1, Limit: pendingQueueLimit})
	if err != nil {
		return nil, err
	}

	summaries := make([]payroll.RunSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, toRunSummary(run))
	}
	return summaries, nil
}

// ========== PAYSLIPS ==========

func (s *PayrollServiceImpl) GetPayslip(ctx context.Context, runID, employeeID string) (payroll.PayslipResponse, error) {
	var errs validator.ValidationErrors
	if !validator.IsValidUUID(runID) {
		errs = append(errs, validator.ValidationError{Field: "run_id", Message: "must be a valid UUID"})
	}
	if validator.IsEmpty(employeeID) {
		errs = append(errs, validator.ValidationError{Field: "employee_id", Message: "is required"})
	}
	if len(errs) > 0 {
		return payroll.PayslipResponse{}, errs
	}

	payslip, err := s.runRepo.GetPayslip(ctx, runID, employeeID)
	if err != nil {
		return payroll.PayslipResponse{}, err
	}
	if payslip.Status != payroll.RunStatusProcessed {
		return payroll.PayslipResponse{}, payroll.ErrPayslipNotAvailable
	}
	return toPayslipResponse(payslip), nil
}

func (s *PayrollServiceImpl) ListEmployeePayslips(ctx context.Context, employeeID string) ([]payroll.PayslipResponse, error) {
	if validator.IsEmpty(employeeID) {
		return nil, validator.ValidationErrors{{Field: "employee_id", Message: "is required"}}
	}

	payslips, err := s.runRepo.ListPayslipsByEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	responses := make([]payroll.PayslipResponse, 0, len(payslips))
	for _, p := range payslips {
		if p.Status != payroll.RunStatusProcessed {
			continue
		}
		responses = append(responses, toPayslipResponse(p))
	}
	return responses, nil
}

// ========== EVENTS ==========

func (s *PayrollServiceImpl) publish(run payroll.Run, action payroll.Action, actor payroll.Actor) {
	if s.hub == nil || s.hub.SubscriberCount(RunEventsTopic) == 0 {
		return
	}
	s.hub.Publish(RunEventsTopic, sse.Event{
		Name: "payroll.run." + string(action),
		Data: toRunEvent(run, action, actor),
	})
}

func (s *PayrollServiceImpl) Subscribe(ctx context.Context, subscriberID string) (<-chan payroll.RunEvent, func()) {
	out := make(chan payroll.RunEvent, 16)
	if s.hub == nil {
		close(out)
		return out, func() {}
	}

	events, cleanup := s.hub.Subscribe(RunEventsTopic)
	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			cleanup()
		})
	}

	slog.Debug("Run event subscriber connected", "subscriber_id", subscriberID)

	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				runEvent, ok := ev.Data.(payroll.RunEvent)
				if !ok {
					continue
				}
				select {
				case out <- runEvent:
				case <-done:
					return
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, stop
}
