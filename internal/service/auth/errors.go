package auth

import "errors"

var (
	// ErrInvalidToken indicates the token is malformed, carries a bad
	// signature, or otherwise fails validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates the token's expiry has passed.
	ErrExpiredToken = errors.New("token expired")

	// ErrTokenNotYetValid indicates the token's not-before claim is in the
	// future.
	ErrTokenNotYetValid = errors.New("token not yet valid")

	// ErrWrongTokenType indicates a token of the wrong type was presented,
	// such as a refresh token where an access token is required.
	ErrWrongTokenType = errors.New("wrong token type")
)
