package domain

import "testing"

func TestVerification_Matches(t *testing.T) {
	v := Verification{VerificationID: 1, BatchHash: "hash-1"}

	if !v.Matches("hash-1") {
		t.Error("expected bound hash to match itself")
	}
	if v.Matches("hash-2") {
		t.Error("expected different hash not to match")
	}
	if v.Matches("") {
		t.Error("expected empty hash not to match a bound record")
	}
}
