package stripe

import (
	"testing"
	"time"
)

func TestVerifySignatureAcceptsValidHeader(t *testing.T) {
	payload := []byte(`{"type":"checkout.session.completed"}`)
	header := GenerateSignatureHeader(payload, "whsec_test", time.Now())

	if !VerifySignature(payload, header, "whsec_test", DefaultTolerance) {
		t.Fatal("expected valid signature to verify")
	}
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	payload := []byte(`{}`)
	header := GenerateSignatureHeader(payload, "whsec_test", time.Now())

	if VerifySignature(payload, header, "whsec_other", DefaultTolerance) {
		t.Fatal("expected signature with wrong secret to fail")
	}
}

func TestVerifySignatureRejectsTamperedPayload(t *testing.T) {
	payload := []byte(`{"amount":10}`)
	header := GenerateSignatureHeader(payload, "whsec_test", time.Now())

	if VerifySignature([]byte(`{"amount":1000}`), header, "whsec_test", DefaultTolerance) {
		t.Fatal("expected tampered payload to fail verification")
	}
}

func TestVerifySignatureRejectsStaleTimestamp(t *testing.T) {
	payload := []byte(`{}`)
	header := GenerateSignatureHeader(payload, "whsec_test", time.Now().Add(-10*time.Minute))

	if VerifySignature(payload, header, "whsec_test", DefaultTolerance) {
		t.Fatal("expected stale timestamp to fail verification")
	}
}

func TestVerifySignatureRejectsMalformedHeaders(t *testing.T) {
	payload := []byte(`{}`)

	for _, header := range []string{"", "t=abc,v1=00", "v1=00", "t=123"} {
		if VerifySignature(payload, header, "whsec_test", DefaultTolerance) {
			t.Fatalf("expected header %q to fail verification", header)
		}
	}
}
