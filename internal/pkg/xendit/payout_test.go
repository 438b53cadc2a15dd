package xendit

import (
	"context"
	"errors"
	"testing"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/disbursement"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xendit/xendit-go/v7/payout"
)

func instruction() disbursement.Instruction {
	return disbursement.Instruction{
		IdempotencyKey:        "run-1:emp-1",
		RunID:                 "run-1",
		EmployeeID:            "emp-1",
		BankCode:              "png_bsp",
		BankAccountNumber:     "1000200030",
		BankAccountHolderName: "Jane Kila",
		Amount:                decimal.RequireFromString("1380.77"),
		Description:           "Salary fortnightly-2025-07",
	}
}

func TestPayoutGateway_Disburse_SendsIdempotentRequest(t *testing.T) {
	// Arrange
	var gotKey string
	var gotReq payout.CreatePayoutRequest
	g := &PayoutGateway{
		defaultCurrency: "PGK",
		send: func(ctx context.Context, key string, req payout.CreatePayoutRequest) (interface{}, error) {
			gotKey, gotReq = key, req
			return map[string]string{"id": "disb-123", "status": "ACCEPTED"}, nil
		},
	}

	// Act
	ref, err := g.Disburse(context.Background(), instruction())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "disb-123", ref)
	assert.Equal(t, "run-1:emp-1", gotKey)
	assert.Equal(t, "run-1:emp-1", gotReq.GetReferenceId())
	assert.Equal(t, "PNG_BSP", gotReq.GetChannelCode())
	assert.Equal(t, "PGK", gotReq.GetCurrency())
	assert.InDelta(t, 1380.77, float64(gotReq.GetAmount()), 0.01)
}

func TestPayoutGateway_Disburse_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*disbursement.Instruction)
		resp    interface{}
		sendErr error
		wantErr error
	}{
		{"no account", func(in *disbursement.Instruction) { in.BankAccountNumber = "" }, nil, nil, disbursement.ErrMissingBankAccount},
		{"zero amount", func(in *disbursement.Instruction) { in.Amount = decimal.Zero }, nil, nil, disbursement.ErrGatewayRejected},
		{"api error", nil, nil, &APIError{StatusCode: "400", ErrorCode: "INVALID_ACCOUNT", Message: "bad"}, disbursement.ErrGatewayRejected},
		{"failed status", nil, map[string]string{"id": "disb-9", "status": "FAILED"}, nil, disbursement.ErrGatewayRejected},
		{"missing id", nil, map[string]string{"status": "ACCEPTED"}, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &PayoutGateway{
				defaultCurrency: "PGK",
				send: func(ctx context.Context, key string, req payout.CreatePayoutRequest) (interface{}, error) {
					return tt.resp, tt.sendErr
				},
			}
			in := instruction()
			if tt.mutate != nil {
				tt.mutate(&in)
			}

			_, err := g.Disburse(context.Background(), in)

			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), err.Error())
			}
		})
	}
}

func TestPayoutGateway_Disburse_RefusesLossyAmount(t *testing.T) {
	// Arrange
	sent := false
	g := &PayoutGateway{
		defaultCurrency: "PGK",
		send: func(ctx context.Context, key string, req payout.CreatePayoutRequest) (interface{}, error) {
			sent = true
			return map[string]string{"id": "disb-1", "status": "ACCEPTED"}, nil
		},
	}
	in := instruction()
	in.Amount = decimal.RequireFromString("250000.01")

	// Act
	_, err := g.Disburse(context.Background(), in)

	// Assert
	assert.ErrorIs(t, err, disbursement.ErrGatewayRejected)
	assert.ErrorContains(t, err, "250000.01")
	assert.False(t, sent)
}

func TestPayoutAmount(t *testing.T) {
	tests := []struct {
		amount string
		ok     bool
	}{
		{"1380.77", true},
		{"0.01", true},
		{"99999.99", true},
		{"250000", true},
		{"250000.01", false},
		{"1234567.89", false},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got, err := payoutAmount(decimal.RequireFromString(tt.amount))
			if !tt.ok {
				assert.ErrorIs(t, err, disbursement.ErrGatewayRejected)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.NewFromFloat32(got).Equal(decimal.RequireFromString(tt.amount)))
		})
	}
}
