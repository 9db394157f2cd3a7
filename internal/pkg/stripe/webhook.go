package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance is the maximum accepted age of a signed webhook payload
const DefaultTolerance = 5 * time.Minute

// VerifySignature validates the Stripe-Signature header for a webhook payload.
// The header carries a timestamp and one or more v1 HMAC-SHA256 signatures of
// "<timestamp>.<payload>".
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration) bool {
	if secret == "" || header == "" {
		return false
	}

	var ts int64
	var signatures [][]byte
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			parsed, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return false
			}
			ts = parsed
		case "v1":
			sig, err := hex.DecodeString(kv[1])
			if err != nil {
				continue
			}
			signatures = append(signatures, sig)
		}
	}

	if ts == 0 || len(signatures) == 0 {
		return false
	}
	if tolerance > 0 && time.Since(time.Unix(ts, 0)) > tolerance {
		return false
	}

	expected := computeSignature(payload, ts, secret)
	for _, sig := range signatures {
		if hmac.Equal(sig, expected) {
			return true
		}
	}
	return false
}

// GenerateSignatureHeader builds a valid Stripe-Signature header, used in tests
func GenerateSignatureHeader(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(computeSignature(payload, ts, secret)))
}

func computeSignature(payload []byte, ts int64, secret string) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(h, "%d.", ts)
	h.Write(payload)
	return h.Sum(nil)
}
