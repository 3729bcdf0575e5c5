package program_test

import (
	"errors"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"

	"romlib/internal/location"
	"romlib/internal/logging"
	"romlib/internal/program"
	"romlib/internal/testsupport"
)

func TestHeaderEncodeParse(t *testing.T) {
	h := program.Header{
		Features: program.Features{Flags: 0x401, Extended: 0x2},
		UID:      program.NewUID(0xdeadbeef, 0x01020304),
		Origin:   program.RawBinary,
	}
	data := h.Encode()
	if len(data) != program.HeaderSize {
		t.Fatalf("unexpected header size %d", len(data))
	}
	parsed, err := program.ParseHeader(data)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if parsed.Version != program.CurrentVersion || !parsed.Features.Equal(h.Features) || parsed.Origin != program.RawBinary {
		t.Fatalf("unexpected header %+v", parsed)
	}
	primary, companion := parsed.OriginChecksums()
	if primary != 0xdeadbeef || companion != 0x01020304 {
		t.Fatalf("unexpected origin checksums %#x %#x", primary, companion)
	}
	if !parsed.Matches(program.RawBinary, 0xdeadbeef, 0x01020304) || parsed.Matches(program.NativeContainer, 0xdeadbeef, 0x01020304) {
		t.Fatal("Matches disagrees with origin")
	}

	data[5] ^= 0x10
	if _, err := program.ParseHeader(data); !errors.Is(err, program.ErrBadHeader) {
		t.Fatalf("expected ErrBadHeader after corruption, got %v", err)
	}
}

func TestFeatures(t *testing.T) {
	f := program.Features{Flags: 0x401, Extended: 0x2}
	if f.IsZero() || !(program.Features{}).IsZero() {
		t.Fatal("IsZero should report only the empty feature set")
	}
	masked := f.Mask(program.Features{Flags: 0x400, Extended: 0x2})
	if !masked.Equal(program.Features{Flags: 0x1}) {
		t.Fatalf("Mask = %+v", masked)
	}
	if masked.Equal(f) || !f.Equal(f) {
		t.Fatal("Equal should compare both bit groups")
	}
	if !f.Mask(f).IsZero() {
		t.Fatal("masking every bit should leave nothing")
	}
}

func TestCanonicalChecksumIgnoresOrigin(t *testing.T) {
	dir := t.TempDir()
	payload := testsupport.RawBinary(64, 5)

	write := func(name string, h program.Header) location.Location {
		path := filepath.Join(dir, name)
		testsupport.WriteBytes(t, path, testsupport.Canonical(h, payload))
		return location.FromPath(path)
	}
	a := write("a.luigi", program.Header{Features: program.Features{Flags: 0x1}, UID: program.NewUID(1, 2), Origin: program.RawBinary})
	b := write("b.luigi", program.Header{Features: program.Features{Flags: 0x1}, UID: program.NewUID(3, 0), Origin: program.NativeContainer})
	c := write("c.luigi", program.Header{Features: program.Features{Flags: 0x401}, UID: program.NewUID(1, 2), Origin: program.RawBinary})

	sum := func(loc location.Location, ignored program.Features) uint32 {
		t.Helper()
		crc, err := program.CanonicalChecksum(loc, ignored)
		if err != nil {
			t.Fatalf("CanonicalChecksum %s: %v", loc, err)
		}
		return crc
	}
	none := program.Features{}
	if sum(a, none) != sum(b, none) {
		t.Fatal("origin fields should not affect the canonical checksum")
	}
	if sum(a, none) == sum(c, none) {
		t.Fatal("feature bits should affect the canonical checksum")
	}
	ignored := program.Features{Flags: 0x400}
	if sum(a, ignored) != sum(c, ignored) {
		t.Fatal("ignored feature bits should not affect the canonical checksum")
	}
}

func TestParseNativeLayout(t *testing.T) {
	data := testsupport.NativeContainer(2, 7)
	layout, ok := program.ParseNativeLayout(data)
	if !ok || layout.Segments != 1 || layout.DataEnd != len(data) {
		t.Fatalf("unexpected layout %+v ok=%v", layout, ok)
	}
	if _, ok := program.ParseNativeLayout(append(data, 0xFF, 0xFF)); !ok {
		t.Fatal("trailing bytes should be accepted")
	}
	if _, ok := program.ParseNativeLayout(data[:len(data)-1]); ok {
		t.Fatal("truncated attribute table should be rejected")
	}
	bad := append([]byte(nil), data...)
	bad[2] = 0x00
	if _, ok := program.ParseNativeLayout(bad); ok {
		t.Fatal("bad count complement should be rejected")
	}
}

func TestClassify(t *testing.T) {
	dir := t.TempDir()
	canonical := testsupport.Canonical(program.Header{UID: program.NewUID(9, 0), Origin: program.RawBinary}, []byte{1, 2})
	files := map[string][]byte{
		"game.bin":       testsupport.RawBinary(128, 3),
		"game.rom":       testsupport.NativeContainer(1, 2),
		"native.bin":     testsupport.NativeContainer(1, 2),
		"game.luigi":     canonical,
		"renamed.dat":    canonical,
		"odd.bin":        {1, 2, 3},
		"empty.int":      {},
		"notes.txt":      []byte("hello!"),
		"broken.luigi":   append([]byte("LTO"), make([]byte, 40)...),
		"truncated.rom":  testsupport.NativeContainer(1, 2)[:100],
		"stock_game.itv": testsupport.RawBinary(64, 11),
	}
	for name, data := range files {
		testsupport.WriteBytes(t, filepath.Join(dir, name), data)
	}

	cases := map[string]program.Format{
		"game.bin":       program.RawBinary,
		"game.rom":       program.NativeContainer,
		"native.bin":     program.NativeContainer,
		"game.luigi":     program.CanonicalContainer,
		"renamed.dat":    program.CanonicalContainer,
		"odd.bin":        program.Unknown,
		"empty.int":      program.Unknown,
		"notes.txt":      program.Unknown,
		"broken.luigi":   program.Unknown,
		"truncated.rom":  program.Unknown,
		"stock_game.itv": program.RawBinary,
	}
	classifier := program.NewClassifier(program.StockConfigs{}, logging.NewNop())
	for name, want := range cases {
		img, err := classifier.Classify(location.FromPath(filepath.Join(dir, name)))
		if err != nil {
			t.Fatalf("Classify %s: %v", name, err)
		}
		if want == program.Unknown {
			if img != nil {
				t.Errorf("%s: expected no image, got %s", name, img)
			}
			continue
		}
		if img == nil || img.Format != want {
			t.Errorf("%s: got %v, want %s", name, img, want)
			continue
		}
		crc, err := img.PrimaryChecksum()
		if err != nil || crc != crc32.ChecksumIEEE(files[name]) {
			t.Errorf("%s: unexpected checksum %#x err=%v", name, crc, err)
		}
	}

	if _, err := classifier.Classify(location.FromPath(filepath.Join(dir, "missing.bin"))); err == nil {
		t.Fatal("expected I/O error for missing file")
	}
}

func TestClassifyFindsCompanion(t *testing.T) {
	dir := t.TempDir()
	stockDir := t.TempDir()
	data := testsupport.RawBinary(128, 3)
	testsupport.WriteBytes(t, filepath.Join(dir, "Game.bin"), data)
	testsupport.WriteBytes(t, filepath.Join(dir, "GAME.CFG"), []byte("[mapping]\n"))
	testsupport.WriteBytes(t, filepath.Join(dir, "lone.bin"), data)
	testsupport.WriteBytes(t, filepath.Join(dir, "other.bin"), testsupport.RawBinary(128, 5))
	testsupport.WriteBytes(t, filepath.Join(stockDir, "1.cfg"), []byte("[mapping]\n$0000 - $1FFF = $5000\n"))

	stock := program.StockConfigs{Dir: stockDir, ByCRC: map[uint32]string{crc32.ChecksumIEEE(data): "1.cfg"}}
	classifier := program.NewClassifier(stock, nil)

	img, err := classifier.Classify(location.FromPath(filepath.Join(dir, "Game.bin")))
	if err != nil || img == nil {
		t.Fatalf("Classify Game.bin: %v %v", img, err)
	}
	if img.Companion.Name() != "GAME.CFG" || img.StockCompanion {
		t.Fatalf("expected co-located companion, got %s stock=%v", img.Companion, img.StockCompanion)
	}

	lone, err := classifier.Classify(location.FromPath(filepath.Join(dir, "lone.bin")))
	if err != nil || lone == nil {
		t.Fatalf("Classify lone.bin: %v %v", lone, err)
	}
	if !lone.StockCompanion || lone.Companion.Path != filepath.Join(stockDir, "1.cfg") {
		t.Fatalf("expected stock companion, got %s stock=%v", lone.Companion, lone.StockCompanion)
	}
	companionCRC, err := lone.CompanionChecksum()
	if err != nil || companionCRC == 0 {
		t.Fatalf("unexpected companion checksum %#x err=%v", companionCRC, err)
	}

	other, err := classifier.Classify(location.FromPath(filepath.Join(dir, "other.bin")))
	if err != nil || other == nil {
		t.Fatalf("Classify other.bin: %v %v", other, err)
	}
	if other.HasCompanion() {
		t.Fatalf("unexpected companion %s", other.Companion)
	}
}

func TestClassifyArchiveMember(t *testing.T) {
	dir := t.TempDir()
	data := testsupport.RawBinary(64, 3)
	zipPath := filepath.Join(dir, "set.zip")
	testsupport.WriteBytes(t, zipPath, testsupport.ZipBytes(t,
		testsupport.Member{Name: "roms/game.bin", Data: data},
		testsupport.Member{Name: "roms/game.cfg", Data: []byte("[vars]\n")},
	))

	loc := location.FromPath(zipPath).Child("roms/game.bin")
	img, err := program.NewClassifier(program.StockConfigs{}, nil).Classify(loc)
	if err != nil || img == nil {
		t.Fatalf("Classify: %v %v", img, err)
	}
	if img.Companion.String() != zipPath+"!roms/game.cfg" {
		t.Fatalf("unexpected companion %s", img.Companion)
	}
}

func TestImageRefresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.bin")
	testsupport.WriteBytes(t, path, testsupport.RawBinary(64, 3))
	img := program.NewImage(program.RawBinary, location.FromPath(path), location.Location{}, false)

	first, err := img.PrimaryChecksum()
	if err != nil {
		t.Fatalf("PrimaryChecksum: %v", err)
	}
	if err := os.WriteFile(path, testsupport.RawBinary(64, 4), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if cached, _ := img.PrimaryChecksum(); cached != first {
		t.Fatal("checksum should be cached until refreshed")
	}
	if err := img.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if fresh, _ := img.PrimaryChecksum(); fresh == first {
		t.Fatal("Refresh should recompute the checksum")
	}
	if companion, _ := img.CompanionChecksum(); companion != 0 {
		t.Fatalf("companion checksum without companion should be 0, got %#x", companion)
	}
}
