package service

import (
	"errors"

	"github.com/iliyamo/slotta-engine/internal/lifecycle"
	"github.com/iliyamo/slotta-engine/internal/policy"
	"github.com/iliyamo/slotta-engine/internal/repository"
)

// Errors returned by the engine.  Lower layers' sentinels are re-exported
// so handlers only need this package to map failures to status codes.
var (
	ErrInvalidInput           = policy.ErrInvalidInput
	ErrInvalidTransition      = lifecycle.ErrInvalidTransition
	ErrRescheduleWindowClosed = lifecycle.ErrRescheduleWindowClosed
	ErrInvalidSchedule        = lifecycle.ErrInvalidSchedule
	ErrNotFound               = repository.ErrNotFound
	ErrForbidden              = repository.ErrForbidden
	ErrConflict               = repository.ErrConflict

	ErrPaymentAuthorizationFailed = errors.New("payment authorization failed")
	ErrPaymentCaptureFailed       = errors.New("payment capture failed")
	ErrPaymentReleaseFailed       = errors.New("payment release failed")
	ErrBelowMinimum               = errors.New("amount below payout minimum")
	ErrInsufficientBalance        = errors.New("insufficient balance")
	ErrPayoutFailed               = errors.New("payout failed")
	ErrPayoutPending              = errors.New("payout outcome unknown, retry with the same idempotency key")
	ErrPayoutAccountMissing       = errors.New("payout account not set")
	ErrServiceInactive            = errors.New("service is not bookable")
)
