package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yungbote/socialfeed-backend/internal/testutil"
)

func TestLoadConfigFileDefaultsUnderEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "socialfeed.yaml")
	doc := []byte("queue_backend: redis\nconcurrent_jobs: 4\nprocess_interval_ms: 500\nfeed_algorithm_api_url: \"http://ranker:4044\"\n")
	if err := os.WriteFile(path, doc, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("QUEUE_BACKEND", "gcs")
	t.Setenv("CONCURRENT_JOBS", "")
	t.Setenv("PROCESS_INTERVAL_MS", "")
	t.Setenv("FEED_ALGORITHM_API_URL", "")

	cfg, err := LoadConfig(testutil.Logger(t))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.QueueBackend != "gcs" {
		t.Fatalf("env should win: got=%q want=gcs", cfg.QueueBackend)
	}
	if cfg.ConcurrentJobs != 4 {
		t.Fatalf("file default: got=%d want=4", cfg.ConcurrentJobs)
	}
	if cfg.ProcessInterval != 500*time.Millisecond {
		t.Fatalf("interval: got=%v want=500ms", cfg.ProcessInterval)
	}
	if cfg.RankingURL != "http://ranker:4044" {
		t.Fatalf("ranking url: got=%q", cfg.RankingURL)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"CONFIG_FILE", "QUEUE_BACKEND", "JOB_STUCK_TIMEOUT_SECONDS", "JOB_LEASE_SECONDS", "CONCURRENT_JOBS", "PROFILE_UPDATE_MODE"} {
		t.Setenv(k, "")
	}
	cfg, err := LoadConfig(testutil.Logger(t))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.QueueBackend != "postgres" {
		t.Fatalf("backend: got=%q want=postgres", cfg.QueueBackend)
	}
	if cfg.JobStuckTimeout != 5*time.Minute || cfg.JobLeaseTTL != cfg.JobStuckTimeout {
		t.Fatalf("stuck/lease: got=%v/%v want=5m/5m", cfg.JobStuckTimeout, cfg.JobLeaseTTL)
	}
	if cfg.ConcurrentJobs != 1 {
		t.Fatalf("concurrency: got=%d want=1", cfg.ConcurrentJobs)
	}
	if cfg.ProfileUpdateMode != "queued" {
		t.Fatalf("profile mode: got=%q want=queued", cfg.ProfileUpdateMode)
	}
}

func TestLoadConfigRejectsBadFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := LoadConfig(testutil.Logger(t)); err == nil {
		t.Fatalf("expected error for missing CONFIG_FILE")
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" http://a.test, ,http://b.test ")
	if len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
		t.Fatalf("splitList: got=%v", got)
	}
}
