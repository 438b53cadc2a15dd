package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/disbursement"
	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/payroll"
	"golang.org/x/sync/errgroup"
)

// Disburser pays out the line items of a run. It does not serialise callers:
// the service claims the run first so only one Disburse is in flight per run.
// Payouts are keyed by run and employee, so a retry only touches the
// employees that have not yet succeeded.
type Disburser struct {
	ledger      disbursement.Repository
	gateway     disbursement.Gateway
	concurrency int
	now         func() time.Time
}

func NewDisburser(ledger disbursement.Repository, gateway disbursement.Gateway, concurrency int) *Disburser {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Disburser{
		ledger:      ledger,
		gateway:     gateway,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Disburse issues payouts for run.LineItems and returns one result per item.
// Gateway failures are reported per employee; only ledger failures abort the call.
func (d *Disburser) Disburse(ctx context.Context, run payroll.Run) ([]disbursement.Result, error) {
	records, err := d.ledger.ListByRun(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load disbursement ledger: %w", err)
	}
	previous := make(map[string]disbursement.Record, len(records))
	for _, r := range records {
		previous[r.EmployeeID] = r
	}

	results := make([]disbursement.Result, len(run.LineItems))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for i, item := range run.LineItems {
		g.Go(func() error {
			result, err := d.disburseOne(gctx, run, item, previous[item.EmployeeID])
			results[i] = result
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (d *Disburser) disburseOne(ctx context.Context, run payroll.Run, item payroll.LineItem, prior disbursement.Record) (disbursement.Result, error) {
	result := disbursement.Result{
		EmployeeID:   item.EmployeeID,
		EmployeeCode: item.EmployeeCode,
		Amount:       item.NetPay,
	}

	if prior.Status == disbursement.StatusSucceeded {
		result.Status = disbursement.StatusSucceeded
		result.Skipped = true
		if prior.Reference != nil {
			result.Reference = *prior.Reference
		}
		return result, nil
	}

	// Nothing to pay
	if !item.NetPay.IsPositive() {
		result.Status = disbursement.StatusSucceeded
		result.Skipped = true
		return result, nil
	}

	record := disbursement.Record{
		RunID:      run.ID,
		EmployeeID: item.EmployeeID,
		Amount:     item.NetPay,
		Attempts:   prior.Attempts + 1,
		UpdatedAt:  d.now(),
	}

	reference, payErr := d.pay(ctx, run, item)
	if payErr != nil {
		// The caller's context ending is not a gateway verdict
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		msg := payErr.Error()
		record.Status = disbursement.StatusFailed
		record.LastError = &msg
		result.Status = disbursement.StatusFailed
		result.Error = msg
		slog.Warn("Payout failed", "run_id", run.ID, "employee_code", item.EmployeeCode, "attempt", record.Attempts, "error", payErr)
	} else {
		record.Status = disbursement.StatusSucceeded
		record.Reference = &reference
		result.Status = disbursement.StatusSucceeded
		result.Reference = reference
	}

	if _, err := d.ledger.Save(ctx, record); err != nil {
		return result, fmt.Errorf("failed to record disbursement for employee %s: %w", item.EmployeeCode, err)
	}
	return result, nil
}

func (d *Disburser) pay(ctx context.Context, run payroll.Run, item payroll.LineItem) (string, error) {
	if strings.TrimSpace(item.BankAccountNumber) == "" || strings.TrimSpace(item.BankCode) == "" {
		return "", disbursement.ErrMissingBankAccount
	}

	return d.gateway.Disburse(ctx, disbursement.Instruction{
		IdempotencyKey:        disbursement.Key(run.ID, item.EmployeeID),
		RunID:                 run.ID,
		EmployeeID:            item.EmployeeID,
		EmployeeCode:          item.EmployeeCode,
		BankCode:              item.BankCode,
		BankAccountNumber:     item.BankAccountNumber,
		BankAccountHolderName: item.BankAccountHolderName,
		Amount:                item.NetPay,
		CurrencyCode:          run.CurrencyCode,
		Description:           fmt.Sprintf("Payroll %s %s", run.Period.Key(), item.EmployeeCode),
	})
}

// CountFailed returns how many results did not succeed
func CountFailed(results []disbursement.Result) int {
	failed := 0
	for _, r := range results {
		if r.Status != disbursement.StatusSucceeded {
			failed++
		}
	}
	return failed
}

// ManualGateway records payouts for an offline bank transfer. The reference
// is derived from the idempotency key so retries resolve to the same payout.
type ManualGateway struct{}

func NewManualGateway() *ManualGateway {
	return &ManualGateway{}
}

func (g *ManualGateway) Disburse(ctx context.Context, instruction disbursement.Instruction) (string, error) {
	if instruction.IdempotencyKey == "" {
		return "", errors.New("idempotency key is required")
	}
	return "manual:" + instruction.IdempotencyKey, nil
}
