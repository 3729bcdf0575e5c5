package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"romlib/internal/config"
	"romlib/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	dataDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	cfg := testsupport.NewConfig(t)

	configPath := filepath.Join(base, "romlib.toml")
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	dataDir := filepath.Join(base, "library")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("mkdir library: %v", err)
	}
	return &cliTestEnv{cfg: cfg, configPath: configPath, dataDir: dataDir}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func decodeJSON(t *testing.T, data string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(data), v); err != nil {
		t.Fatalf("decode json: %v\n%s", err, data)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected error when config already exists")
	}

	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, env.configPath)
	requireContains(t, out, env.cfg.Paths.StagingDir)
}

func TestScanUpdatesCatalog(t *testing.T) {
	env := setupCLITestEnv(t)

	testsupport.WriteBytes(t, filepath.Join(env.dataDir, "alpha.bin"), testsupport.RawBinary(256, 1))
	testsupport.WriteBytes(t, filepath.Join(env.dataDir, "alpha.cfg"), []byte("[mapping]\n$0000 - $0FFF = $5000\n"))
	testsupport.WriteBytes(t, filepath.Join(env.dataDir, "beta.rom"), testsupport.NativeContainer(1, 2))
	testsupport.WriteBytes(t, filepath.Join(env.dataDir, "notes.txt"), []byte("not a program"))
	testsupport.WriteBytes(t, filepath.Join(env.dataDir, "bundle.zip"), testsupport.ZipBytes(t,
		testsupport.Member{Name: "gamma.bin", Data: testsupport.RawBinary(128, 3)},
	))

	out, _, err := runCLI(t, []string{"scan", "--json", "--catalog", env.dataDir}, env.configPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	var records []struct {
		Location  string `json:"location"`
		Format    string `json:"format"`
		Companion string `json:"companion"`
		CRC       uint32 `json:"primary_crc"`
	}
	decodeJSON(t, out, &records)
	if len(records) != 3 {
		t.Fatalf("expected 3 programs, got %+v", records)
	}
	byName := map[string]string{}
	for _, rec := range records {
		byName[filepath.Base(rec.Location)] = rec.Format
	}
	if byName["alpha.bin"] != "bin" || byName["beta.rom"] != "rom" || byName["bundle.zip!gamma.bin"] != "bin" {
		t.Fatalf("unexpected scan results: %+v", records)
	}

	out, _, err = runCLI(t, []string{"catalog", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("catalog list: %v", err)
	}
	requireContains(t, out, "alpha.bin")
	requireContains(t, out, "gamma.bin")

	out, _, err = runCLI(t, []string{"catalog", "lookup", filepath.Join(env.dataDir, "beta.rom")}, env.configPath)
	if err != nil {
		t.Fatalf("catalog lookup by path: %v", err)
	}
	requireContains(t, out, "beta.rom")

	if err := os.Remove(filepath.Join(env.dataDir, "alpha.bin")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	out, _, err = runCLI(t, []string{"catalog", "prune"}, env.configPath)
	if err != nil {
		t.Fatalf("catalog prune: %v", err)
	}
	requireContains(t, out, "Removed 1 stale records")
}

func TestCompareCRC(t *testing.T) {
	env := setupCLITestEnv(t)

	payload := testsupport.RawBinary(512, 9)
	a := filepath.Join(env.dataDir, "one", "game.bin")
	b := filepath.Join(env.dataDir, "two", "game.bin")
	c := filepath.Join(env.dataDir, "two", "other.bin")
	testsupport.WriteBytes(t, a, payload)
	testsupport.WriteBytes(t, b, payload)
	testsupport.WriteBytes(t, c, testsupport.RawBinary(512, 10))

	out, _, err := runCLI(t, []string{"compare", "--mode", "crc", a, b}, env.configPath)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	requireContains(t, out, "equivalent (crc)")

	out, _, err = runCLI(t, []string{"compare", "--json", "--mode", "strict", a, c}, env.configPath)
	if err != nil {
		t.Fatalf("compare strict: %v", err)
	}
	var result struct {
		Mode       string `json:"mode"`
		Equivalent bool   `json:"equivalent"`
	}
	decodeJSON(t, out, &result)
	if result.Mode != "strict" || result.Equivalent {
		t.Fatalf("unexpected compare result: %+v", result)
	}

	if _, _, err := runCLI(t, []string{"compare", "--mode", "fuzzy", a, b}, env.configPath); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestDuplicatesCRC(t *testing.T) {
	env := setupCLITestEnv(t)

	payload := testsupport.RawBinary(256, 4)
	testsupport.WriteBytes(t, filepath.Join(env.dataDir, "a", "first.bin"), payload)
	testsupport.WriteBytes(t, filepath.Join(env.dataDir, "b", "second.bin"), payload)
	testsupport.WriteBytes(t, filepath.Join(env.dataDir, "c", "unique.bin"), testsupport.RawBinary(256, 5))

	out, _, err := runCLI(t, []string{"duplicates", "--json", "--mode", "crc", env.dataDir}, env.configPath)
	if err != nil {
		t.Fatalf("duplicates: %v", err)
	}
	var result struct {
		Scanned int        `json:"scanned"`
		Groups  [][]string `json:"groups"`
	}
	decodeJSON(t, out, &result)
	if result.Scanned != 3 || len(result.Groups) != 1 || len(result.Groups[0]) != 2 {
		t.Fatalf("unexpected duplicates: %+v", result)
	}
}

func TestCacheStageStatusAndPurge(t *testing.T) {
	env := setupCLITestEnv(t)

	bin := filepath.Join(env.dataDir, "Game.bin")
	testsupport.WriteBytes(t, bin, testsupport.RawBinary(256, 6))
	testsupport.WriteBytes(t, filepath.Join(env.dataDir, "Game.cfg"), []byte("[vars]\n"))

	var status struct {
		Present bool `json:"present"`
		Changed bool `json:"changed"`
	}
	out, _, err := runCLI(t, []string{"cache", "status", "--json", bin}, env.configPath)
	if err != nil {
		t.Fatalf("cache status: %v", err)
	}
	decodeJSON(t, out, &status)
	if status.Present || !status.Changed {
		t.Fatalf("expected unstaged program, got %+v", status)
	}

	if _, _, err := runCLI(t, []string{"cache", "stage", bin}, env.configPath); err != nil {
		t.Fatalf("cache stage: %v", err)
	}

	out, _, err = runCLI(t, []string{"cache", "status", "--json", bin}, env.configPath)
	if err != nil {
		t.Fatalf("cache status after stage: %v", err)
	}
	decodeJSON(t, out, &status)
	if !status.Present || status.Changed {
		t.Fatalf("expected current staged copy, got %+v", status)
	}

	out, _, err = runCLI(t, []string{"cache", "stats", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("cache stats: %v", err)
	}
	var stats struct {
		Directories int `json:"directories"`
		Files       int `json:"files"`
	}
	decodeJSON(t, out, &stats)
	if stats.Directories != 1 || stats.Files != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	out, _, err = runCLI(t, []string{"cache", "purge"}, env.configPath)
	if err != nil {
		t.Fatalf("cache purge: %v", err)
	}
	requireContains(t, out, "Removed 1 staged directories")
}

func TestStagingListAndClean(t *testing.T) {
	env := setupCLITestEnv(t)

	stale := filepath.Join(env.cfg.Paths.TempDir, uuid.NewString())
	keep := filepath.Join(env.cfg.Paths.TempDir, "keep-me")
	for _, dir := range []string{stale, keep} {
		testsupport.WriteFile(t, filepath.Join(dir, "x.bin"), 16)
	}
	old := time.Now().Add(-48 * time.Hour)
	for _, dir := range []string{stale, keep} {
		if err := os.Chtimes(dir, old, old); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	out, _, err := runCLI(t, []string{"staging", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("staging list: %v", err)
	}
	requireContains(t, out, "keep-me")
	requireContains(t, out, "Total: 2 directories")

	out, _, err = runCLI(t, []string{"staging", "clean", "--max-age", "1h"}, env.configPath)
	if err != nil {
		t.Fatalf("staging clean: %v", err)
	}
	requireContains(t, out, "Removed 1 stale directories")
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale session dir removed, got %v", err)
	}
	if _, err := os.Stat(keep); err != nil {
		t.Fatalf("expected non-session dir kept: %v", err)
	}
}

func TestParseChecksumArg(t *testing.T) {
	cases := []struct {
		in   string
		want uint32
		ok   bool
	}{
		{"deadbeef", 0xdeadbeef, true},
		{"0xABC", 0xabc, true},
		{"game.bin", 0, false},
		{"/tmp/abc", 0, false},
		{"123456789", 0, false},
		{"xyz", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseChecksumArg(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("parseChecksumArg(%q) = %#x, %v; want %#x, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCheckReportsConverterTools(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err == nil {
		t.Fatal("expected failure when canonical mode converters are missing")
	}
	requireContains(t, out, "Staging directory")
	requireContains(t, out, "FAILED")
}
