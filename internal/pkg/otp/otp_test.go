package otp

import (
	"errors"
	"testing"
	"time"
)

func TestIssue_SixDigitsAndExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	code, err := Issue(now, 10*time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(code.Value) != Length {
		t.Fatalf("expected %d digits, got %q", Length, code.Value)
	}
	for _, r := range code.Value {
		if r < '0' || r > '9' {
			t.Fatalf("non-digit in code %q", code.Value)
		}
	}
	if code.ExpiresAt == nil || !code.ExpiresAt.Equal(now.Add(10*time.Minute)) {
		t.Fatalf("unexpected expiry %v", code.ExpiresAt)
	}
}

func TestIssue_DefaultTTL(t *testing.T) {
	now := time.Now()
	code, err := Issue(now, 0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !code.ExpiresAt.Equal(now.Add(DefaultTTL)) {
		t.Fatalf("expected default ttl")
	}
}

func TestCheck(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	exp := now.Add(10 * time.Minute)
	code := Code{Value: "123456", ExpiresAt: &exp}

	if err := code.Check("123456", now); err != nil {
		t.Fatalf("expected valid code, got %v", err)
	}
	if err := code.Check("654321", now); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if err := code.Check("", now); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for empty code, got %v", err)
	}
	if err := code.Check("123456", exp); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired at expiry instant, got %v", err)
	}
	if err := code.Check("123456", exp.Add(time.Second)); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired after expiry, got %v", err)
	}
}

func TestConsume_SingleUse(t *testing.T) {
	now := time.Now()
	code, err := Issue(now, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	value := code.Value
	if err := code.Check(value, now); err != nil {
		t.Fatalf("first check: %v", err)
	}
	code.Consume()
	if code.Pending() {
		t.Fatalf("expected code cleared")
	}
	if err := code.Check(value, now); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected replay to fail, got %v", err)
	}
}

func TestFailedCheckKeepsCode(t *testing.T) {
	now := time.Now()
	code, _ := Issue(now, time.Minute)
	before := code
	_ = code.Check("not-it", now)
	if code.Value != before.Value || code.ExpiresAt != before.ExpiresAt {
		t.Fatalf("failed check must not mutate code")
	}
}

func TestReissueReplacesPrevious(t *testing.T) {
	now := time.Now()
	first, _ := Issue(now, time.Minute)
	second, _ := Issue(now, time.Minute)
	for first.Value == second.Value {
		second, _ = Issue(now, time.Minute)
	}
	stored := second
	if err := stored.Check(first.Value, now); !errors.Is(err, ErrInvalid) {
		t.Fatalf("old code must be invalid after reissue, got %v", err)
	}
}
