package format

import (
	"bytes"
	"strings"
	"testing"
)

type sample struct {
	SeedCode string `json:"seed_code"`
	Size     int64  `json:"size_bytes,omitempty"`
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (JSONFormatter{}).Write(&buf, sample{SeedCode: "abc123"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != `{"seed_code":"abc123"}` {
		t.Fatalf("unexpected json %q", got)
	}
}

func TestYAMLFormatterUsesJSONNames(t *testing.T) {
	var buf bytes.Buffer
	if err := (YAMLFormatter{}).Write(&buf, sample{SeedCode: "abc123", Size: 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "seed_code: abc123") {
		t.Fatalf("expected seed_code key, got %q", out)
	}
	if !strings.Contains(out, "size_bytes: 3") {
		t.Fatalf("expected size_bytes key, got %q", out)
	}
}

func TestNew(t *testing.T) {
	for _, name := range []string{"json", "yaml"} {
		if _, err := New(name); err != nil {
			t.Fatalf("new %s: %v", name, err)
		}
	}
	if _, err := New("xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
