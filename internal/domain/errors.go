package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("insufficient privileges")
	ErrConflict         = errors.New("conflict")
	ErrNonceExpired     = errors.New("nonce expired")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrNotOwner         = errors.New("not the position owner")
	ErrNotSettled       = errors.New("position not settled")
	ErrAlreadyClaimed   = errors.New("winnings already claimed")
	ErrNotWinning       = errors.New("position did not win")
	ErrMarketClosed     = errors.New("market not open for staking")
	ErrRateLimited      = errors.New("rate limited")
)
