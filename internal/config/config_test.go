package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Exam.PaperSize != 10 || cfg.Exam.PassThreshold != 0.6 || !cfg.Grading.CountUnresolved {
		t.Fatalf("expected defaults, got %+v", cfg.Exam)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  port: "9090"
exam:
  paper_size: 20
  timezone: Asia/Shanghai
grading:
  count_unresolved: false
judge:
  timeout: 2s
  allow: [fmt, strings]
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Exam.PaperSize != 20 || cfg.Grading.CountUnresolved {
		t.Fatalf("expected overrides, got %+v", cfg)
	}
	if cfg.Exam.TrendDays != 14 {
		t.Fatalf("expected untouched keys to keep defaults, got %d", cfg.Exam.TrendDays)
	}
	if TTLDuration(cfg.Judge.Timeout, 0) != 2*time.Second || len(cfg.Judge.Allow) != 2 {
		t.Fatalf("unexpected judge section %+v", cfg.Judge)
	}
	if cfg.Location().String() != "Asia/Shanghai" {
		t.Fatalf("expected Asia/Shanghai, got %s", cfg.Location())
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	_ = os.WriteFile(path, []byte("exam: [unterminated"), 0o600)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %v", got)
	}
	if got := TTLDuration("bogus", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for bad input, got %v", got)
	}
	if got := TTLDuration("90s", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %v", got)
	}
}
