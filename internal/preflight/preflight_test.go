package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"romlib/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDirectoryAccess_Unconfigured(t *testing.T) {
	result := CheckDirectoryAccess("test", "")
	if result.Passed || result.Detail != "not configured" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRunAll(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	results := RunAll(cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 directory checks, got %d: %+v", len(results), results)
	}
	for _, r := range results {
		if !r.Passed {
			t.Fatalf("expected %s to pass: %s", r.Name, r.Detail)
		}
	}

	cfg.StockConfigs.ByCRC = map[string]string{"0x00000001": "a.cfg"}
	results = RunAll(cfg)
	last := results[len(results)-1]
	if last.Name != "Stock configs" || last.Passed {
		t.Fatalf("expected missing stock dir to fail, got %+v", last)
	}
}

func TestRunAllNilConfig(t *testing.T) {
	if RunAll(nil) != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestCheckSystemDepsOptionalForChecksumModes(t *testing.T) {
	stub := filepath.Join(t.TempDir(), "convert-stub")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	cfg := testsupport.NewConfig(t, testsupport.WithComparisonMode("crc"))
	cfg.Converter.BinTool = stub
	cfg.Converter.RomTool = "clearly-not-present-binary"

	statuses := CheckSystemDeps(cfg)
	if len(statuses) != 2 {
		t.Fatalf("expected two statuses, got %d", len(statuses))
	}
	if !statuses[0].Available || statuses[1].Available {
		t.Fatalf("unexpected availability: %+v", statuses)
	}
	for _, s := range statuses {
		if !s.Optional {
			t.Fatalf("expected converters optional in crc mode: %+v", s)
		}
	}

	cfg.Comparison.Mode = "canonical"
	for _, s := range CheckSystemDeps(cfg) {
		if s.Optional {
			t.Fatalf("expected converters required in canonical mode: %+v", s)
		}
	}
}
