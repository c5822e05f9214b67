package loreforge

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestErrNotFound(t *testing.T) {
	err := &ErrNotFound{Kind: "campaign", ID: "abc"}
	if got := err.Error(); got != "campaign abc: not found" {
		t.Errorf("Error() = %q", got)
	}
	wrapped := fmt.Errorf("load: %w", err)
	var nf *ErrNotFound
	if !errors.As(wrapped, &nf) || nf.Kind != "campaign" {
		t.Error("ErrNotFound should survive wrapping")
	}
}

func TestErrConflict(t *testing.T) {
	err := &ErrConflict{Kind: "source", Detail: "already assigned"}
	if got := err.Error(); got != "source: already assigned" {
		t.Errorf("Error() = %q", got)
	}
}

func TestErrLLM(t *testing.T) {
	err := &ErrLLM{Provider: "gemini", Message: "rate limited"}
	if got := err.Error(); got != "gemini: rate limited" {
		t.Errorf("Error() = %q", got)
	}
}

func TestErrHTTP(t *testing.T) {
	err := &ErrHTTP{Status: 429, Body: "quota", RetryAfter: 3 * time.Second}
	if got := err.Error(); got != "http 429: quota" {
		t.Errorf("Error() = %q", got)
	}
	wrapped := fmt.Errorf("generate: %w", err)
	var he *ErrHTTP
	if !errors.As(wrapped, &he) || he.RetryAfter != 3*time.Second {
		t.Error("ErrHTTP should survive wrapping with RetryAfter intact")
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"0", 0},
		{"7", 7 * time.Second},
		{"120", 2 * time.Minute},
		{"-5", 0},
		{"soon", 0},
	}
	for _, tt := range tests {
		if got := ParseRetryAfter(tt.in); got != tt.want {
			t.Errorf("ParseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	// HTTP-date form.
	future := time.Now().Add(90 * time.Second).UTC().Format(http.TimeFormat)
	if got := ParseRetryAfter(future); got < 80*time.Second || got > 90*time.Second {
		t.Errorf("ParseRetryAfter(date) = %v, want about 90s", got)
	}
	past := time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)
	if got := ParseRetryAfter(past); got != 0 {
		t.Errorf("ParseRetryAfter(past date) = %v, want 0", got)
	}
}
