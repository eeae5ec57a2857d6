package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClaimTokenRoundTrip(t *testing.T) {
	issued := time.Unix(1735689600, 0) // 2025-01-01T00:00:00Z
	token := EncodeClaimToken("s3cret", "task-123", issued)

	taskID, issuedAt, sig, err := DecodeClaimToken(token)
	require.NoError(t, err)
	require.Equal(t, "task-123", taskID)
	require.Equal(t, issued.Unix(), issuedAt)
	require.True(t, VerifyClaimSignature("s3cret", taskID, issuedAt, sig))
}

func TestClaimTokenUsesURLSafeAlphabet(t *testing.T) {
	// Enough random-ish payloads that standard base64 would emit '+' or '/'
	for i := 0; i < 64; i++ {
		token := EncodeClaimToken("secret", strings.Repeat("ÿ~", i+1), time.Now())
		require.NotContains(t, token, "+")
		require.NotContains(t, token, "/")
	}
}

func TestClaimTokenWrongSecretFailsVerification(t *testing.T) {
	token := EncodeClaimToken("right-secret", "task-123", time.Now())

	taskID, issuedAt, sig, err := DecodeClaimToken(token)
	require.NoError(t, err)
	require.False(t, VerifyClaimSignature("wrong-secret", taskID, issuedAt, sig))
}

func TestDecodeClaimTokenMalformed(t *testing.T) {
	cases := map[string]string{
		"not base64":            "!!!not-base64!!!",
		"empty":                 "",
		"two fields":            base64URLEncode([]byte("task-123|1735689600")),
		"four fields":           base64URLEncode([]byte("task-123|1735689600|c2ln|extra")),
		"non-numeric timestamp": base64URLEncode([]byte("task-123|soon|c2ln")),
		"empty task id":         base64URLEncode([]byte("|1735689600|c2ln")),
		"unencoded signature":   base64URLEncode([]byte("task-123|1735689600|!!!")),
	}

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, _, err := DecodeClaimToken(token)
			require.ErrorIs(t, err, ErrMalformedToken)
		})
	}
}

func TestDecodeClaimTokenToleratesStrippedPadding(t *testing.T) {
	token := EncodeClaimToken("s3cret", "task-123", time.Now())
	stripped := strings.TrimRight(token, "=")

	taskID, issuedAt, sig, err := DecodeClaimToken(stripped)
	require.NoError(t, err)
	require.Equal(t, "task-123", taskID)
	require.True(t, VerifyClaimSignature("s3cret", taskID, issuedAt, sig))
}
