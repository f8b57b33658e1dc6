package models

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrEmailTaken           = errors.New("user with this email already exists")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrInvalidResetToken    = errors.New("invalid or expired reset token")
	ErrNoSubscription       = errors.New("no subscription found")
	ErrNotScheduledToCancel = errors.New("subscription is not scheduled for cancellation")
	ErrPriceRequired        = errors.New("new price id is required")
	ErrUnknownPlan          = errors.New("invalid plan")
	ErrWorkflowNotFound     = errors.New("workflow not found")
	ErrConfirmationRequired = errors.New("account deletion must be confirmed")
	ErrNoCustomer           = errors.New("no billing account found")
)
