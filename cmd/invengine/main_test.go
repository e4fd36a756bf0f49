package main

import (
	"testing"
	"time"

	"github.com/andresuchdata/invengine/internal/config"
	"github.com/andresuchdata/invengine/internal/service"
)

func TestRunOptions(t *testing.T) {
	opts, err := runOptions("2024-03-31", 26, true)
	if err != nil {
		t.Fatalf("runOptions: %v", err)
	}
	want := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	if !opts.AnalysisDate.Equal(want) || opts.ThresholdWeeks != 26 || !opts.ByLocation {
		t.Fatalf("unexpected options %+v", opts)
	}

	opts, err = runOptions("", 0, false)
	if err != nil || !opts.AnalysisDate.IsZero() {
		t.Fatalf("empty date should leave the analysis date unset, got %+v %v", opts, err)
	}

	if _, err := runOptions("31/03/2024", 12, false); err == nil {
		t.Fatal("expected error for a malformed date")
	}
}

func TestResolveSource(t *testing.T) {
	rt := &appState{cfg: &config.Config{
		App:     config.AppConfig{InputDir: t.TempDir()},
		Storage: config.StorageConfig{InputPrefix: "input/"},
	}}

	src, err := rt.resolveSource("", "")
	if err != nil || src.Name() != service.SourceCSV {
		t.Fatalf("empty source should default to csv, got %v %v", src, err)
	}

	tests := []struct {
		name   string
		source string
	}{
		{"storage without client", service.SourceStorage},
		{"postgres without db", service.SourcePostgres},
		{"drive without credentials", service.SourceDrive},
		{"unknown", "ftp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := rt.resolveSource(tt.source, ""); err == nil {
				t.Fatalf("expected error for source %q", tt.source)
			}
		})
	}
}

func TestOpenWithoutBackends(t *testing.T) {
	rt := &appState{cfg: &config.Config{
		App:    config.AppConfig{OutputDir: t.TempDir()},
		Engine: config.DefaultEngineConfig(),
	}}
	if err := rt.Open(t.Context(), false, ""); err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	if rt.service == nil || rt.db != nil || rt.store != nil {
		t.Fatalf("unexpected state %+v", rt)
	}
	if _, err := rt.service.Runs(t.Context(), 10); err == nil {
		t.Fatal("run history should be unavailable without a database")
	}
}
