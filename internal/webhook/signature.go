// Package webhook verifies the authenticity of inbound gateway webhook
// deliveries using a shared-secret HMAC and an optional IP allow-list.
package webhook

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
)

var errHeaderRead = errors.New("failed to read signature header")

// SignatureHeader is the header carrying the hex HMAC-SHA512 digest of
// the raw request body.
const SignatureHeader = "X-Paystack-Signature"

// Rejection reasons returned by Verify. The HTTP boundary maps
// missing_signature, bad_signature and verification_error to 401, and
// ip_not_allowed to 403.
const (
	ReasonMissingSignature  = "missing_signature"
	ReasonBadSignature      = "bad_signature"
	ReasonIPNotAllowed      = "ip_not_allowed"
	ReasonVerificationError = "verification_error"
)

// HeaderGetter is the minimal request-header surface Verify needs.
// http.Header satisfies it.
type HeaderGetter interface {
	Get(key string) string
}

// Verify authenticates a webhook delivery.
//
// With a secret configured, the signature header must be the hex
// HMAC-SHA512 of the exact raw body bytes under that secret, compared in
// constant time. With no secret but an allow-list configured, the remote
// IP must be listed. With neither configured, every delivery is accepted
// (development mode).
func Verify(headers HeaderGetter, rawBody []byte, remoteIP, secret string, allowedIPs []string) (ok bool, reason string) {
	if secret != "" {
		sig, err := readSignature(headers)
		if err != nil {
			return false, ReasonVerificationError
		}
		if sig == "" {
			return false, ReasonMissingSignature
		}
		if !ValidSignature(rawBody, sig, secret) {
			return false, ReasonBadSignature
		}
		return true, ""
	}

	if len(allowedIPs) > 0 {
		for _, ip := range allowedIPs {
			if ip == remoteIP {
				return true, ""
			}
		}
		return false, ReasonIPNotAllowed
	}

	return true, ""
}

// ValidSignature reports whether signature is the hex HMAC-SHA512 digest
// of rawBody under secret.
func ValidSignature(rawBody []byte, signature, secret string) bool {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign returns the hex HMAC-SHA512 digest of body under secret. Used by
// tests and the simulation to produce valid deliveries.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func readSignature(headers HeaderGetter) (sig string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errHeaderRead
		}
	}()
	return headers.Get(SignatureHeader), nil
}
