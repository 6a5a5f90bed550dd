package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STMT_DATABASE_URL", "postgres://user:pw@localhost:5432/statements")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pipeline.BatchSize != 25 {
		t.Errorf("BatchSize = %d, want 25", cfg.Pipeline.BatchSize)
	}
	if cfg.Pipeline.MaxRetries != 1 {
		t.Errorf("MaxRetries = %d, want 1", cfg.Pipeline.MaxRetries)
	}
	if cfg.Pipeline.SampleHead != 20 || cfg.Pipeline.SampleMiddle != 10 || cfg.Pipeline.SampleTail != 20 {
		t.Errorf("sample spec = %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.HierarchyCacheTTL != 5*time.Minute {
		t.Errorf("HierarchyCacheTTL = %v, want 5m", cfg.Pipeline.HierarchyCacheTTL)
	}
	if cfg.Inference.Timeout != 2*time.Minute {
		t.Errorf("Inference.Timeout = %v, want 2m", cfg.Inference.Timeout)
	}
	if cfg.Export.Enabled {
		t.Error("export must be disabled by default")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STMT_DATABASE_URL", "postgres://user:pw@localhost:5432/statements")
	t.Setenv("STMT_PIPELINE_BATCH_SIZE", "50")
	t.Setenv("STMT_INFERENCE_MODEL", "gemini-2.5-pro")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pipeline.BatchSize != 50 {
		t.Errorf("BatchSize = %d, want 50", cfg.Pipeline.BatchSize)
	}
	if cfg.Inference.Model != "gemini-2.5-pro" {
		t.Errorf("Model = %q", cfg.Inference.Model)
	}
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("STMT_DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Error("Expected error without STMT_DATABASE_URL")
	}
}

func TestLoad_ExportRequiresProject(t *testing.T) {
	t.Setenv("STMT_DATABASE_URL", "postgres://user:pw@localhost:5432/statements")
	t.Setenv("STMT_EXPORT_ENABLED", "true")
	if _, err := Load(); err == nil {
		t.Error("Expected error when export is enabled without a project id")
	}
}
