// services/claim_token.go
package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Claim tokens ride inside partner QR codes as
//
//	base64url( taskID + "|" + issuedAtUnixSeconds + "|" + base64url(HMAC_SHA256(secret, taskID + "|" + issuedAtUnixSeconds)) )
//
// where base64url is standard base64 with '+'→'-' and '/'→'_'. The format
// is shared with already-printed QR codes, so the three-field pipe layout
// and the alphabet substitution are fixed.

var ErrMalformedToken = errors.New("malformed claim token")

var (
	b64ToURL   = strings.NewReplacer("+", "-", "/", "_")
	b64FromURL = strings.NewReplacer("-", "+", "_", "/")
)

func base64URLEncode(b []byte) string {
	return b64ToURL.Replace(base64.StdEncoding.EncodeToString(b))
}

func base64URLDecode(s string) ([]byte, error) {
	s = b64FromURL.Replace(s)
	// Some issuers strip padding; tolerate both.
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	return base64.StdEncoding.DecodeString(s)
}

func signClaimPayload(secret, payload string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}

// EncodeClaimToken issues a token binding taskID to the location secret at
// issuedAt. Used by the admin QR endpoint; the mobile scanner hands the
// same string back to Claim.
func EncodeClaimToken(secret, taskID string, issuedAt time.Time) string {
	payload := fmt.Sprintf("%s|%d", taskID, issuedAt.Unix())
	sig := base64URLEncode(signClaimPayload(secret, payload))
	return base64URLEncode([]byte(payload + "|" + sig))
}

// DecodeClaimToken splits a token into its fields without verifying the
// signature (the secret is only known after the task lookup).
func DecodeClaimToken(token string) (taskID string, issuedAt int64, sig []byte, err error) {
	raw, err := base64URLDecode(token)
	if err != nil {
		return "", 0, nil, ErrMalformedToken
	}

	parts := strings.Split(string(raw), "|")
	if len(parts) != 3 || parts[0] == "" {
		return "", 0, nil, ErrMalformedToken
	}

	issuedAt, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, nil, ErrMalformedToken
	}

	sig, err = base64URLDecode(parts[2])
	if err != nil || len(sig) == 0 {
		return "", 0, nil, ErrMalformedToken
	}

	return parts[0], issuedAt, sig, nil
}

// VerifyClaimSignature recomputes the HMAC over "taskID|issuedAt" and
// compares in constant time.
func VerifyClaimSignature(secret, taskID string, issuedAt int64, sig []byte) bool {
	expected := signClaimPayload(secret, fmt.Sprintf("%s|%d", taskID, issuedAt))
	return hmac.Equal(expected, sig)
}
