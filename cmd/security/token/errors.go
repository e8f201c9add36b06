package token

import "errors"

// Key policy errors, returned by HMACKeyFromEnv.
var (
	ErrHMACKeyMissing  = errors.New("token HMAC key missing")
	ErrHMACKeyTooShort = errors.New("token HMAC key too short")
)
