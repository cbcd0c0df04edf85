package store

import (
	"testing"
	"time"
)

func TestIntFromEnv(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{raw: "", want: 3},
		{raw: "4", want: 4},
		{raw: " 8 ", want: 8},
		{raw: "bad", want: 3},
		{raw: "0", want: 3},
		{raw: "-2", want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Setenv(maxOpenConnsEnvKey, tt.raw)
			if got := intFromEnv(maxOpenConnsEnvKey, 3); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestDurationFromEnv(t *testing.T) {
	def := 2 * time.Minute
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{raw: "", want: def},
		{raw: "45s", want: 45 * time.Second},
		{raw: "30", want: 30 * time.Second},
		{raw: "-5s", want: def},
		{raw: "invalid", want: def},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Setenv(connMaxLifetimeEnvKey, tt.raw)
			if got := durationFromEnv(connMaxLifetimeEnvKey, def); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestDSNHelpers(t *testing.T) {
	tests := []struct {
		dsn        string
		postgres   bool
		sqlitePath string
	}{
		{dsn: "postgres://u:p@db:5432/seeds", postgres: true},
		{dsn: "PostgreSQL://db/seeds", postgres: true},
		{dsn: "/var/lib/seedshare/seeds.db", sqlitePath: "/var/lib/seedshare/seeds.db"},
		{dsn: "sqlite:///tmp/seeds.db", sqlitePath: "/tmp/seeds.db"},
		{dsn: "file:seeds.db", sqlitePath: "seeds.db"},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			if got := IsPostgresDSN(tt.dsn); got != tt.postgres {
				t.Fatalf("expected postgres=%v, got %v", tt.postgres, got)
			}
			if tt.postgres {
				return
			}
			if got := SQLitePath(tt.dsn); got != tt.sqlitePath {
				t.Fatalf("expected path %q, got %q", tt.sqlitePath, got)
			}
		})
	}
}
