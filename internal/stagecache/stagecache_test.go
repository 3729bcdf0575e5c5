package stagecache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"romlib/internal/location"
	"romlib/internal/logging"
	"romlib/internal/program"
	"romlib/internal/testsupport"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(filepath.Join(t.TempDir(), "staging"), logging.NewNop())
	m.statfs = func(string) (uint64, uint64, error) { return 1000, 400, nil }
	return m
}

func writeProgram(t *testing.T, dir, name string, withCfg bool) *program.Image {
	t.Helper()
	bin := filepath.Join(dir, name+".bin")
	testsupport.WriteBytes(t, bin, testsupport.RawBinary(512, 3))
	var companion location.Location
	if withCfg {
		cfg := filepath.Join(dir, name+".cfg")
		testsupport.WriteBytes(t, cfg, []byte("[mapping]\n$0000 - $0FFF = $5000\n"))
		companion = location.FromPath(cfg)
	}
	return program.NewImage(program.RawBinary, location.FromPath(bin), companion, false)
}

func assertCache(t *testing.T, m *Manager, img *program.Image, wantPresent, wantChanged bool) {
	t.Helper()
	present, changed, err := m.IsInCache(img)
	if err != nil {
		t.Fatalf("IsInCache: %v", err)
	}
	if present != wantPresent || changed != wantChanged {
		t.Fatalf("IsInCache = (%v, %v), want (%v, %v)", present, changed, wantPresent, wantChanged)
	}
}

func TestStageRoundTrip(t *testing.T) {
	m := newTestManager(t)
	img := writeProgram(t, t.TempDir(), "game", true)
	ctx := context.Background()

	assertCache(t, m, img, false, true)

	staged, err := m.Stage(ctx, img)
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	assertCache(t, m, img, true, false)
	if staged.Primary.Path != m.PrimaryPath(img) || staged.Companion.Path != m.CompanionPath(img) {
		t.Fatalf("unexpected staged image %s", staged)
	}

	// Source descriptor edited after staging.
	if err := os.WriteFile(img.Companion.Path, []byte("[mapping]\n$0000 - $1FFF = $5000\n"), 0o644); err != nil {
		t.Fatalf("rewrite cfg: %v", err)
	}
	assertCache(t, m, img, true, true)

	if _, err := m.Stage(ctx, img); err != nil {
		t.Fatalf("restage: %v", err)
	}
	assertCache(t, m, img, true, false)
}

func TestIsInCacheDetectsPrimaryChange(t *testing.T) {
	m := newTestManager(t)
	img := writeProgram(t, t.TempDir(), "game", false)
	if _, err := m.Stage(context.Background(), img); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	testsupport.WriteBytes(t, img.Primary.Path, testsupport.RawBinary(512, 9))
	assertCache(t, m, img, true, true)
}

func TestIsInCacheMissingStagedCompanion(t *testing.T) {
	m := newTestManager(t)
	img := writeProgram(t, t.TempDir(), "game", true)
	if _, err := m.Stage(context.Background(), img); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if err := os.Remove(m.CompanionPath(img)); err != nil {
		t.Fatalf("remove staged cfg: %v", err)
	}
	assertCache(t, m, img, false, true)
}

func TestLeftoverStagedCompanionCountsAsChange(t *testing.T) {
	m := newTestManager(t)
	dir := t.TempDir()
	img := writeProgram(t, dir, "game", true)
	if _, err := m.Stage(context.Background(), img); err != nil {
		t.Fatalf("Stage: %v", err)
	}

	bare := program.NewImage(program.RawBinary, img.Primary, location.Location{}, false)
	assertCache(t, m, bare, true, true)

	staged, err := m.Stage(context.Background(), bare)
	if err != nil {
		t.Fatalf("Stage bare: %v", err)
	}
	if staged.HasCompanion() {
		t.Fatal("staged image should not carry a companion")
	}
	if _, err := os.Stat(m.CompanionPath(bare)); !os.IsNotExist(err) {
		t.Fatalf("expected stale staged cfg to be removed, got %v", err)
	}
	assertCache(t, m, bare, true, false)
}

func TestStockCompanionUsesPrimaryName(t *testing.T) {
	m := newTestManager(t)
	dir := t.TempDir()
	stockDir := t.TempDir()
	stock := filepath.Join(stockDir, "4.cfg")
	testsupport.WriteBytes(t, stock, []byte("[mapping]\n"))
	bin := filepath.Join(dir, "Space Battle.int")
	testsupport.WriteBytes(t, bin, testsupport.RawBinary(256, 1))

	img := program.NewImage(program.RawBinary, location.FromPath(bin), location.FromPath(stock), true)
	if got := filepath.Base(m.CompanionPath(img)); got != "Space Battle.int.cfg" {
		t.Fatalf("unexpected stock companion path %q", got)
	}
	if got := filepath.Base(m.PrimaryPath(img)); got != "Space Battle.int.bin" {
		t.Fatalf("unexpected primary path %q", got)
	}

	own := program.NewImage(program.RawBinary, location.FromPath(bin), location.FromPath(filepath.Join(dir, "SPACE BATTLE.CFG")), false)
	if got := filepath.Base(m.CompanionPath(own)); got != "Space Battle.int.cfg" {
		t.Fatalf("unexpected own companion path %q", got)
	}
}

func TestStagedNamesAreUniquePerSource(t *testing.T) {
	m := newTestManager(t)
	dir := t.TempDir()
	sources := []struct {
		name   string
		format program.Format
	}{
		{"game.bin", program.RawBinary},
		{"game.int", program.RawBinary},
		{"game.rom", program.NativeContainer},
		{"Cafe.bin", program.RawBinary},
		{"Café.bin", program.RawBinary},
		{"a-b.bin", program.RawBinary},
		{"a:b.bin", program.RawBinary},
	}

	primaries := map[string]string{}
	canonicals := map[string]string{}
	companions := map[string]string{}
	for _, src := range sources {
		img := program.NewImage(src.format, location.FromPath(filepath.Join(dir, src.name)), location.Location{}, false)
		for _, seen := range []struct {
			paths map[string]string
			path  string
		}{
			{primaries, m.PrimaryPath(img)},
			{canonicals, m.CanonicalPath(img)},
			{companions, m.CompanionPath(img)},
		} {
			if other, ok := seen.paths[seen.path]; ok {
				t.Fatalf("%s and %s share staged path %s", other, src.name, seen.path)
			}
			seen.paths[seen.path] = src.name
		}
	}

	img := program.NewImage(program.NativeContainer, location.FromPath(filepath.Join(dir, "game.rom")), location.Location{}, false)
	if got := filepath.Base(m.CanonicalPath(img)); got != "game.rom.luigi" {
		t.Fatalf("unexpected canonical path %q", got)
	}
	if got := filepath.Base(m.PrimaryPath(img)); got != "game.rom.rom" {
		t.Fatalf("unexpected primary path %q", got)
	}
}

func TestStagedBase(t *testing.T) {
	if got := stagedBase("game.bin"); got != "game.bin" {
		t.Fatalf("stagedBase kept name = %q", got)
	}
	folded := stagedBase("Café.bin")
	if !strings.HasPrefix(folded, "Cafe.bin~") || len(folded) != len("Cafe.bin~")+8 {
		t.Fatalf("stagedBase folded name = %q", folded)
	}
	if stagedBase("Café.bin") != folded {
		t.Fatal("stagedBase should be deterministic")
	}
}

func TestSubdirIsPerDirectory(t *testing.T) {
	m := newTestManager(t)
	a := location.FromPath("/roms/a/one.bin")
	b := location.FromPath("/roms/a/two.bin")
	c := location.FromPath("/roms/c/one.bin")

	if m.Subdir(a) != m.Subdir(b) {
		t.Fatal("files in one directory should share a staging subdirectory")
	}
	if m.Subdir(a) == m.Subdir(c) {
		t.Fatal("different directories should not share a staging subdirectory")
	}
	if got := filepath.Base(m.Subdir(a)); len(got) != dirHashLen || got != HashDir("/roms/a") {
		t.Fatalf("unexpected subdirectory name %q", got)
	}
}

func TestNormalizeBase(t *testing.T) {
	cases := map[string]string{
		"Café: Déjà Vu?": "Cafe- Deja Vu",
		"plain":          "plain",
		"???":            "program",
		" ..dots.. ":     "dots",
	}
	for in, want := range cases {
		if got := normalizeBase(in); got != want {
			t.Errorf("normalizeBase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStatsAndPurge(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	if _, err := m.Stage(ctx, writeProgram(t, t.TempDir(), "one", true)); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if _, err := m.Stage(ctx, writeProgram(t, t.TempDir(), "two", false)); err != nil {
		t.Fatalf("Stage: %v", err)
	}

	stats, err := m.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Directories != 2 || stats.Files != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.FreeBytes != 400 || stats.TotalFSBytes != 1000 {
		t.Fatalf("unexpected fs stats: %+v", stats)
	}
	for _, e := range stats.Entries {
		if !strings.HasPrefix(e.Directory, m.Root()) {
			t.Fatalf("entry outside root: %s", e.Directory)
		}
	}

	removed, err := m.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 directories removed, got %d", removed)
	}
	stats, err = m.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats after purge: %v", err)
	}
	if stats.Directories != 0 {
		t.Fatalf("expected empty staging area, got %+v", stats)
	}
}

func TestNewManagerEmptyRoot(t *testing.T) {
	if NewManager("  ", nil) != nil {
		t.Fatal("expected nil manager for empty root")
	}
}
