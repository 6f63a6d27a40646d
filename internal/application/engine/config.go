package engine

import "time"

// Config holds the engine's tunable timeouts and ceilings.
type Config struct {
	// Checkpoint 1: purchase approval.
	PurchaseDecisionTimeout time.Duration
	PurchaseEscalationAfter time.Duration

	// Checkpoint 2: payment assertion.
	PaymentDecisionTimeout time.Duration

	FollowUpInterval time.Duration
	FollowUpCeiling  int

	CancelCeiling       int
	WithdrawalThreshold float64

	InactivityCeiling time.Duration
	DuplicateLookback time.Duration
	VisibilityWindow  time.Duration

	// OperatorID is the operator address used for out-of-band alerts.
	OperatorID string
}

// DefaultConfig returns the standard negotiation timings.
func DefaultConfig() Config {
	return Config{
		PurchaseDecisionTimeout: 5 * time.Minute,
		PurchaseEscalationAfter: 3 * time.Minute,
		PaymentDecisionTimeout:  30 * time.Minute,
		FollowUpInterval:        90 * time.Second,
		FollowUpCeiling:         3,
		CancelCeiling:           2,
		WithdrawalThreshold:     0.7,
		InactivityCeiling:       10 * time.Minute,
		DuplicateLookback:       24 * time.Hour,
		VisibilityWindow:        10 * time.Minute,
	}
}
