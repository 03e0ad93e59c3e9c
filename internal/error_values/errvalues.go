package errorvalues

import "errors"

var (
	ErrNoActiveRewards = errors.New("no active rewards to claim")
	ErrRewardNotFound  = errors.New("reward doesn't exist")
	ErrMemberNotFound  = errors.New("member streak doesn't exist")
	ErrCheckinExists   = errors.New("receipt already registered for this date")
	ErrFutureReceipt   = errors.New("receipt date is in the future")
	ErrStaleReceipt    = errors.New("receipt date predates the current week")
	ErrInvalidToken    = errors.New("invalid token")
)
