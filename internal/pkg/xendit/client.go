package xendit

import (
	"fmt"

	xenditSDK "github.com/xendit/xendit-go/v7"
	"github.com/xendit/xendit-go/v7/payout"
)

// Client wraps the official Xendit SDK
type Client struct {
	sdk       *xenditSDK.APIClient
	payoutAPI payout.PayoutApi
}

// NewClient creates a new Xendit client using the official SDK
func NewClient(secretKey string) *Client {
	sdk := xenditSDK.NewClient(secretKey)

	return &Client{
		sdk:       sdk,
		payoutAPI: sdk.PayoutApi,
	}
}

// APIError represents a Xendit API error
type APIError struct {
	StatusCode string
	ErrorCode  string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("xendit API error [%s] %s: %s", e.StatusCode, e.ErrorCode, e.Message)
}
