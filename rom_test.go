package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func paddedROMBank(fill byte, signatures ...string) []byte {
	buf := bytes.Repeat([]byte{fill}, bankSize)
	offset := 10
	for _, s := range signatures {
		copy(buf[offset:], s)
		offset += len(s) + 4
	}
	return buf
}

func TestDetectROMBankOrderReordersMenuAndBasic(t *testing.T) {
	basic := paddedROMBank(0x11, "1982", "Sinclair Research")
	menu := paddedROMBank(0x22, "128", "128K")
	chunks := [][]byte{basic, menu} // merged image has BASIC first, menu second

	order := detectROMBankOrder(chunks)
	if order[0] != 1 || order[1] != 0 {
		t.Fatalf("order = %v, want [1 0] (menu first, BASIC second)", order)
	}
}

func TestDetectROMBankOrderDefaultsToIdentity(t *testing.T) {
	chunks := [][]byte{
		bytes.Repeat([]byte{0xAA}, bankSize),
		bytes.Repeat([]byte{0xBB}, bankSize),
	}
	order := detectROMBankOrder(chunks)
	if order[0] != 0 || order[1] != 1 {
		t.Fatalf("order = %v, want identity [0 1] when no signature matches", order)
	}
}

func TestLoadROMImageSingleBank(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "48.rom")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x77}, bankSize), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	mem := NewMemory(Model48K)
	if err := LoadROMImage(mem, path, 1); err != nil {
		t.Fatalf("LoadROMImage: %v", err)
	}
	if mem.ROMBank(0)[0] != 0x77 {
		t.Fatalf("ROM bank 0 not loaded correctly")
	}
}

func TestLoadROMImageCompanionFiles(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "128.rom")
	companion := filepath.Join(dir, "128-1.rom")
	if err := os.WriteFile(base, bytes.Repeat([]byte{0x01}, bankSize), 0o644); err != nil {
		t.Fatalf("WriteFile base: %v", err)
	}
	if err := os.WriteFile(companion, bytes.Repeat([]byte{0x02}, bankSize), 0o644); err != nil {
		t.Fatalf("WriteFile companion: %v", err)
	}

	mem := NewMemory(Model128K)
	if err := LoadROMImage(mem, base, 2); err != nil {
		t.Fatalf("LoadROMImage: %v", err)
	}
	if mem.ROMBank(0)[0] != 0x01 {
		t.Fatalf("ROM bank 0 = %#02x, want 0x01", mem.ROMBank(0)[0])
	}
	if mem.ROMBank(1)[0] != 0x02 {
		t.Fatalf("ROM bank 1 = %#02x, want 0x02", mem.ROMBank(1)[0])
	}
}

func TestLoadROMImageMissingCompanionFails(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "solo.rom")
	if err := os.WriteFile(base, bytes.Repeat([]byte{0x01}, bankSize), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	mem := NewMemory(Model128K)
	if err := LoadROMImage(mem, base, 2); err == nil {
		t.Fatalf("expected error for missing companion ROM bank")
	}
}
