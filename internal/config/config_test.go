package config

import (
	"testing"
	"time"
)

// tallyEnvVars lists all env vars that must be cleared between tests.
var tallyEnvVars = []string{
	"TALLY_DATABASE_URL", "TALLY_HTTP_ADDR", "TALLY_NATS_URL",
	"TALLY_TENANTS_FILE", "TALLY_TENANT", "TALLY_SECRET",
	"TALLY_TRACKER_URL", "TALLY_TRACKER_TIMEOUT",
	"TALLY_PROPOSALS_URL", "TALLY_PROPOSALS_TIMEOUT",
	"TALLY_RESERVATION_TTL", "TALLY_RESERVATION_SWEEP",
	"TALLY_AGENT_WEIGHT",
	"TALLY_SYNC_INTERVAL", "TALLY_SYNC_S3_BUCKET", "TALLY_SYNC_S3_ENDPOINT",
	"TALLY_SYNC_S3_REGION", "TALLY_SYNC_S3_PREFIX", "TALLY_SYNC_GIT_REPO",
	"TALLY_SYNC_GIT_DIR", "TALLY_SYNC_GIT_BRANCH",
}

func clearAllEnv(t *testing.T) {
	t.Helper()
	for _, key := range tallyEnvVars {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	for _, tc := range []struct {
		name         string
		env          map[string]string
		wantErr      bool
		wantHTTPAddr string
		wantNATSURL  string
	}{
		{
			name:    "MissingDatabaseURL",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name:         "DefaultAddresses",
			env:          map[string]string{"TALLY_DATABASE_URL": "postgres://localhost/tally"},
			wantHTTPAddr: ":8080",
		},
		{
			name: "CustomAddresses",
			env: map[string]string{
				"TALLY_DATABASE_URL": "postgres://db:5432/tally",
				"TALLY_HTTP_ADDR":    ":3000",
				"TALLY_NATS_URL":     "nats://localhost:4222",
			},
			wantHTTPAddr: ":3000",
			wantNATSURL:  "nats://localhost:4222",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clearAllEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.DatabaseURL != tc.env["TALLY_DATABASE_URL"] {
				t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, tc.env["TALLY_DATABASE_URL"])
			}
			if cfg.HTTPAddr != tc.wantHTTPAddr {
				t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, tc.wantHTTPAddr)
			}
			if cfg.NATSURL != tc.wantNATSURL {
				t.Errorf("NATSURL = %q, want %q", cfg.NATSURL, tc.wantNATSURL)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("TALLY_DATABASE_URL", "postgres://localhost/tally")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TrackerTimeout != 10*time.Second {
		t.Errorf("TrackerTimeout = %v, want 10s", cfg.TrackerTimeout)
	}
	if cfg.ProposalsTimeout != 10*time.Second {
		t.Errorf("ProposalsTimeout = %v, want 10s", cfg.ProposalsTimeout)
	}
	if cfg.ReservationTTL != 2*time.Minute {
		t.Errorf("ReservationTTL = %v, want 2m", cfg.ReservationTTL)
	}
	if cfg.ReservationSweep != 60*time.Second {
		t.Errorf("ReservationSweep = %v, want 60s", cfg.ReservationSweep)
	}
	if cfg.AgentWeight != 0.6 {
		t.Errorf("AgentWeight = %v, want 0.6", cfg.AgentWeight)
	}
	if cfg.SyncInterval != 3*time.Minute {
		t.Errorf("SyncInterval = %v, want 3m", cfg.SyncInterval)
	}
	if cfg.SyncS3Region != "us-east-1" {
		t.Errorf("SyncS3Region = %q, want %q", cfg.SyncS3Region, "us-east-1")
	}
	if cfg.SyncS3Prefix != "tally" {
		t.Errorf("SyncS3Prefix = %q, want %q", cfg.SyncS3Prefix, "tally")
	}
	if cfg.SyncGitDir != "ledger" {
		t.Errorf("SyncGitDir = %q, want %q", cfg.SyncGitDir, "ledger")
	}
	if cfg.SyncGitBranch != "main" {
		t.Errorf("SyncGitBranch = %q, want %q", cfg.SyncGitBranch, "main")
	}
}

func TestLoadCustom(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("TALLY_DATABASE_URL", "postgres://localhost/tally")
	t.Setenv("TALLY_TRACKER_URL", "http://tracker:9000")
	t.Setenv("TALLY_TRACKER_TIMEOUT", "3s")
	t.Setenv("TALLY_RESERVATION_TTL", "5m")
	t.Setenv("TALLY_AGENT_WEIGHT", "0.75")
	t.Setenv("TALLY_SYNC_INTERVAL", "10m")
	t.Setenv("TALLY_SYNC_S3_BUCKET", "my-bucket")
	t.Setenv("TALLY_SYNC_S3_ENDPOINT", "http://minio:9000")
	t.Setenv("TALLY_SYNC_S3_REGION", "eu-west-1")
	t.Setenv("TALLY_SYNC_S3_PREFIX", "ledgers/prod")
	t.Setenv("TALLY_SYNC_GIT_REPO", "/tmp/repo")
	t.Setenv("TALLY_SYNC_GIT_DIR", "exports")
	t.Setenv("TALLY_SYNC_GIT_BRANCH", "backup")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TrackerURL != "http://tracker:9000" {
		t.Errorf("TrackerURL = %q", cfg.TrackerURL)
	}
	if cfg.TrackerTimeout != 3*time.Second {
		t.Errorf("TrackerTimeout = %v, want 3s", cfg.TrackerTimeout)
	}
	if cfg.ReservationTTL != 5*time.Minute {
		t.Errorf("ReservationTTL = %v, want 5m", cfg.ReservationTTL)
	}
	if cfg.AgentWeight != 0.75 {
		t.Errorf("AgentWeight = %v, want 0.75", cfg.AgentWeight)
	}
	if cfg.SyncInterval != 10*time.Minute {
		t.Errorf("SyncInterval = %v, want 10m", cfg.SyncInterval)
	}
	if cfg.SyncS3Bucket != "my-bucket" {
		t.Errorf("SyncS3Bucket = %q", cfg.SyncS3Bucket)
	}
	if cfg.SyncS3Endpoint != "http://minio:9000" {
		t.Errorf("SyncS3Endpoint = %q", cfg.SyncS3Endpoint)
	}
	if cfg.SyncS3Region != "eu-west-1" {
		t.Errorf("SyncS3Region = %q", cfg.SyncS3Region)
	}
	if cfg.SyncS3Prefix != "ledgers/prod" {
		t.Errorf("SyncS3Prefix = %q", cfg.SyncS3Prefix)
	}
	if cfg.SyncGitRepo != "/tmp/repo" {
		t.Errorf("SyncGitRepo = %q", cfg.SyncGitRepo)
	}
	if cfg.SyncGitDir != "exports" {
		t.Errorf("SyncGitDir = %q", cfg.SyncGitDir)
	}
	if cfg.SyncGitBranch != "backup" {
		t.Errorf("SyncGitBranch = %q", cfg.SyncGitBranch)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("TALLY_DATABASE_URL", "postgres://localhost/tally")
	t.Setenv("TALLY_SYNC_INTERVAL", "not-a-duration")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for invalid TALLY_SYNC_INTERVAL")
	}
}

func TestLoadInvalidAgentWeight(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("TALLY_DATABASE_URL", "postgres://localhost/tally")
	t.Setenv("TALLY_AGENT_WEIGHT", "heavy")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for invalid TALLY_AGENT_WEIGHT")
	}
}

func TestLoadSyncDisabled(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("TALLY_DATABASE_URL", "postgres://localhost/tally")
	t.Setenv("TALLY_SYNC_INTERVAL", "0s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SyncInterval != 0 {
		t.Errorf("SyncInterval = %v, want 0 (disabled)", cfg.SyncInterval)
	}
}

func TestEnvOrDefault(t *testing.T) {
	for _, tc := range []struct {
		name     string
		key      string
		envVal   string
		fallback string
		want     string
	}{
		{"EmptyUsesDefault", "TEST_ENVDEFAULT_EMPTY", "", "default-val", "default-val"},
		{"SetUsesEnv", "TEST_ENVDEFAULT_SET", "custom", "default-val", "custom"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.envVal)
			got := envOrDefault(tc.key, tc.fallback)
			if got != tc.want {
				t.Errorf("envOrDefault(%q, %q) = %q, want %q", tc.key, tc.fallback, got, tc.want)
			}
		})
	}
}
