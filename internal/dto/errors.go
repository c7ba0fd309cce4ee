package dto

import "errors"

var (
	ErrNotTracked       = errors.New("symbol is not tracked")
	ErrAlreadyExited    = errors.New("position already exited")
	ErrInvalidConfig    = errors.New("invalid take-profit configuration")
	ErrExecutorTimeout  = errors.New("executor call timed out")
	ErrNoOpenPosition   = errors.New("no open position")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrMaxOpenPositions = errors.New("max open positions reached")
	ErrNoPrice          = errors.New("no price available")
	ErrUpstream         = errors.New("upstream returned an error")
	ErrJobNotFound      = errors.New("job not found")
	ErrJobRunning       = errors.New("job is already running")
)
