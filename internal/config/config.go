package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL string // TALLY_DATABASE_URL (required)
	HTTPAddr    string // TALLY_HTTP_ADDR (default ":8080")
	NATSURL     string // TALLY_NATS_URL (optional, empty = no events)

	// Auth settings
	TenantsFile string // TALLY_TENANTS_FILE (TOML tenant -> secret map)
	Tenant      string // TALLY_TENANT (single-tenant dev fallback)
	Secret      string // TALLY_SECRET (single-tenant dev fallback)

	// External collaborators
	TrackerURL       string        // TALLY_TRACKER_URL (empty = no-op adapter)
	TrackerTimeout   time.Duration // TALLY_TRACKER_TIMEOUT (default 10s)
	ProposalsURL     string        // TALLY_PROPOSALS_URL (empty = proposals disabled)
	ProposalsTimeout time.Duration // TALLY_PROPOSALS_TIMEOUT (default 10s)

	// Idempotency reservation settings
	ReservationTTL   time.Duration // TALLY_RESERVATION_TTL (default 2m)
	ReservationSweep time.Duration // TALLY_RESERVATION_SWEEP (default 60s)

	// Attribution settings
	AgentWeight float64 // TALLY_AGENT_WEIGHT (default 0.6)

	// Sync settings
	SyncInterval   time.Duration // TALLY_SYNC_INTERVAL (default 3m; 0 = disabled)
	SyncS3Bucket   string        // TALLY_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // TALLY_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // TALLY_SYNC_S3_REGION (default "us-east-1")
	SyncS3Prefix   string        // TALLY_SYNC_S3_PREFIX (default "tally")
	SyncGitRepo    string        // TALLY_SYNC_GIT_REPO (enables git when set; path to clone)
	SyncGitDir     string        // TALLY_SYNC_GIT_DIR (default "ledger")
	SyncGitBranch  string        // TALLY_SYNC_GIT_BRANCH (default "main")
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:    os.Getenv("TALLY_DATABASE_URL"),
		HTTPAddr:       envOrDefault("TALLY_HTTP_ADDR", ":8080"),
		NATSURL:        os.Getenv("TALLY_NATS_URL"),
		TenantsFile:    os.Getenv("TALLY_TENANTS_FILE"),
		Tenant:         os.Getenv("TALLY_TENANT"),
		Secret:         os.Getenv("TALLY_SECRET"),
		TrackerURL:     os.Getenv("TALLY_TRACKER_URL"),
		ProposalsURL:   os.Getenv("TALLY_PROPOSALS_URL"),
		SyncS3Bucket:   os.Getenv("TALLY_SYNC_S3_BUCKET"),
		SyncS3Endpoint: os.Getenv("TALLY_SYNC_S3_ENDPOINT"),
		SyncS3Region:   envOrDefault("TALLY_SYNC_S3_REGION", "us-east-1"),
		SyncS3Prefix:   envOrDefault("TALLY_SYNC_S3_PREFIX", "tally"),
		SyncGitRepo:    os.Getenv("TALLY_SYNC_GIT_REPO"),
		SyncGitDir:     envOrDefault("TALLY_SYNC_GIT_DIR", "ledger"),
		SyncGitBranch:  envOrDefault("TALLY_SYNC_GIT_BRANCH", "main"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("TALLY_DATABASE_URL is required")
	}

	var err error
	if c.TrackerTimeout, err = durationEnv("TALLY_TRACKER_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if c.ProposalsTimeout, err = durationEnv("TALLY_PROPOSALS_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if c.ReservationTTL, err = durationEnv("TALLY_RESERVATION_TTL", "2m"); err != nil {
		return nil, err
	}
	if c.ReservationSweep, err = durationEnv("TALLY_RESERVATION_SWEEP", "60s"); err != nil {
		return nil, err
	}
	if c.SyncInterval, err = durationEnv("TALLY_SYNC_INTERVAL", "3m"); err != nil {
		return nil, err
	}

	weightStr := envOrDefault("TALLY_AGENT_WEIGHT", "0.6")
	w, err := strconv.ParseFloat(weightStr, 64)
	if err != nil {
		return nil, fmt.Errorf("TALLY_AGENT_WEIGHT: %w", err)
	}
	c.AgentWeight = w

	return c, nil
}

func durationEnv(key, fallback string) (time.Duration, error) {
	s := envOrDefault(key, fallback)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
