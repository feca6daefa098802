package boardd

import "testing"

func TestTestTokenRoundTrip(t *testing.T) {
	auth := NewTestAuth("s3cret")
	tok, err := SignTestToken("s3cret", "alice")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	userID, err := auth.UserIDFromAuthHeader("Bearer " + tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if userID != "alice" {
		t.Fatalf("expected alice, got %q", userID)
	}
}

func TestRejectsWrongSecret(t *testing.T) {
	auth := NewTestAuth("s3cret")
	tok, err := SignTestToken("other", "alice")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.UserIDFromAuthHeader("Bearer " + tok); err == nil {
		t.Fatal("expected verification failure")
	}
}

func TestRejectsMalformedHeaders(t *testing.T) {
	auth := NewTestAuth("s3cret")
	for _, h := range []string{"", "Bearer", "Basic abc", "Bearer not-a-jwt"} {
		if _, err := auth.UserIDFromAuthHeader(h); err == nil {
			t.Fatalf("header %q accepted", h)
		}
	}
}
