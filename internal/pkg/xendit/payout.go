package xendit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/disbursement"
	"github.com/shopspring/decimal"
	"github.com/xendit/xendit-go/v7/payout"
)

// payoutSender issues one payout request under an idempotency key and
// returns the raw provider response
type payoutSender func(ctx context.Context, idempotencyKey string, req payout.CreatePayoutRequest) (interface{}, error)

// PayoutGateway implements disbursement.Gateway on the Xendit Payouts API.
// The bank code on the line item is used as the Xendit channel code.
type PayoutGateway struct {
	send            payoutSender
	defaultCurrency string
}

func NewPayoutGateway(client *Client, defaultCurrency string) *PayoutGateway {
	return &PayoutGateway{
		send: func(ctx context.Context, idempotencyKey string, req payout.CreatePayoutRequest) (interface{}, error) {
			resp, _, sdkErr := client.payoutAPI.CreatePayout(ctx).
				IdempotencyKey(idempotencyKey).
				CreatePayoutRequest(req).
				Execute()
			if sdkErr != nil {
				return nil, &APIError{StatusCode: sdkErr.Status(), ErrorCode: sdkErr.ErrorCode(), Message: sdkErr.Error()}
			}
			return resp, nil
		},
		defaultCurrency: defaultCurrency,
	}
}

// payoutReference is the subset of the provider response we keep
type payoutReference struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Disburse implements disbursement.Gateway.
func (g *PayoutGateway) Disburse(ctx context.Context, in disbursement.Instruction) (string, error) {
	if in.BankCode == "" || in.BankAccountNumber == "" {
		return "", disbursement.ErrMissingBankAccount
	}
	if !in.Amount.IsPositive() {
		return "", fmt.Errorf("%w: amount must be positive", disbursement.ErrGatewayRejected)
	}

	currency := in.CurrencyCode
	if currency == "" {
		currency = g.defaultCurrency
	}

	properties := payout.NewDigitalPayoutChannelProperties(in.BankAccountNumber)
	if in.BankAccountHolderName != "" {
		properties.SetAccountHolderName(in.BankAccountHolderName)
	}

	amount, err := payoutAmount(in.Amount)
	if err != nil {
		return "", err
	}
	req := payout.NewCreatePayoutRequest(
		in.IdempotencyKey,
		strings.ToUpper(in.BankCode),
		*properties,
		amount,
		currency,
	)
	if in.Description != "" {
		req.SetDescription(in.Description)
	}

	resp, err := g.send(ctx, in.IdempotencyKey, *req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", disbursement.ErrGatewayRejected, err)
	}

	ref, err := decodeReference(resp)
	if err != nil {
		return "", err
	}
	if strings.EqualFold(ref.Status, "FAILED") || strings.EqualFold(ref.Status, "CANCELLED") {
		return "", fmt.Errorf("%w: payout %s is %s", disbursement.ErrGatewayRejected, ref.ID, ref.Status)
	}
	return ref.ID, nil
}

// payoutAmount converts to the float32 the SDK sends. Amounts that do not
// survive the conversion to the cent are refused rather than paid short.
func payoutAmount(amount decimal.Decimal) (float32, error) {
	f64, _ := amount.Float64()
	f32 := float32(f64)
	if !decimal.NewFromFloat32(f32).Equal(amount) {
		return 0, fmt.Errorf("%w: amount %s cannot be sent without losing precision", disbursement.ErrGatewayRejected, amount.String())
	}
	return f32, nil
}

func decodeReference(resp interface{}) (payoutReference, error) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return payoutReference{}, fmt.Errorf("failed to read payout response: %w", err)
	}
	var ref payoutReference
	if err := json.Unmarshal(raw, &ref); err != nil {
		return payoutReference{}, fmt.Errorf("failed to read payout response: %w", err)
	}
	if ref.ID == "" {
		return payoutReference{}, fmt.Errorf("failed to read payout response: missing id")
	}
	return ref, nil
}
