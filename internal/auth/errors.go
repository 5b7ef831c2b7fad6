package auth

import "errors"

// Token failure kinds. Every one of them ends the current request; none is
// retried and none affects other requests.
var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpiredToken     = errors.New("token expired")
	ErrWrongCategory    = errors.New("wrong token category")
	ErrMissingToken     = errors.New("missing token")
	ErrUnknownRole      = errors.New("unknown role")
)
