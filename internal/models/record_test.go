package models

import (
	"testing"
	"time"
)

func TestParseRecordKind(t *testing.T) {
	got, err := ParseRecordKind(" FILE ")
	if err != nil {
		t.Fatalf("parse kind: %v", err)
	}
	if got != KindFile {
		t.Fatalf("expected %q, got %q", KindFile, got)
	}

	got, err = ParseRecordKind("text")
	if err != nil {
		t.Fatalf("parse kind: %v", err)
	}
	if got != KindText {
		t.Fatalf("expected %q, got %q", KindText, got)
	}

	if _, err := ParseRecordKind("image"); err == nil {
		t.Fatal("expected invalid kind error")
	}
}

func TestParseMetadata(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantLen int
		wantErr bool
	}{
		{name: "empty", raw: "", wantLen: 0},
		{name: "whitespace", raw: "   ", wantLen: 0},
		{name: "object", raw: `{"author":"ana","tags":["a","b"]}`, wantLen: 2},
		{name: "null", raw: "null", wantLen: 0},
		{name: "array", raw: `[1,2]`, wantErr: true},
		{name: "garbage", raw: `{not json`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMetadata(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parse metadata: %v", err)
			}
			if got == nil {
				t.Fatal("expected non-nil metadata")
			}
			if len(got) != tt.wantLen {
				t.Fatalf("expected %d keys, got %d", tt.wantLen, len(got))
			}
		})
	}
}

func TestRecordExpired(t *testing.T) {
	now := time.Now().UTC()
	rec := Record{ExpiresAt: now.Add(time.Minute)}
	if rec.Expired(now) {
		t.Fatal("record should not be expired before expires_at")
	}
	if !rec.Expired(now.Add(time.Minute)) {
		t.Fatal("record should be expired at expires_at")
	}
	if (Record{}).Expired(now) {
		t.Fatal("record without expiry never expires")
	}
}
