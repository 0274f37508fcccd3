// rom.go - ROM image loading: single merged images, companion per-bank
// files loaded concurrently, and the 48K/128K signature heuristics spec.md
// §6 calls for when a user supplies one image covering multiple banks.

package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// romBankSignature are substrings known to appear at fixed, somewhat
// variable offsets within the standard Sinclair ROM images; presence is
// checked anywhere in the bank rather than at an exact offset since
// clones and re-dumps shift embedded string positions slightly.
var rom48KSignature = []string{"1982", "Sinclair Research"}

var rom128KMenuSignature = [][]string{
	{"128", "128K"},
	{"128", "1986"},
	{"128", "1985"},
	{"128", "AMSTRAD"},
	{"128", "MENU"},
}

// LoadROMImage loads path into Memory. If banksExpected > 1 and the file is
// exactly banksExpected*16KB, it is split and reordered by signature
// detection; otherwise it is loaded into bank 0 alone and companion files
// named "<stem>-N.rom" or "<stem>_N.rom" are loaded concurrently to fill
// the remaining banks.
func LoadROMImage(mem *Memory, path string, banksExpected int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("rom: read %s: %w", path, err)
	}

	if banksExpected > 1 && len(data) == banksExpected*bankSize {
		return loadMergedROMImage(mem, data, banksExpected)
	}

	if len(data) > bankSize {
		return fmt.Errorf("rom: %s is %d bytes, too large for a single 16K bank", path, len(data))
	}
	if err := mem.LoadROM(0, data); err != nil {
		return err
	}
	if banksExpected <= 1 {
		return nil
	}
	return loadCompanionROMs(mem, path, banksExpected)
}

// loadMergedROMImage splits a single banksExpected*16KB image into its
// constituent banks, using the 48K BASIC / 128K menu signatures to decide
// which 16K chunk is bank 0 (always-visible menu/BASIC ROM) versus bank 1.
func loadMergedROMImage(mem *Memory, data []byte, banksExpected int) error {
	chunks := make([][]byte, banksExpected)
	for i := range chunks {
		chunks[i] = data[i*bankSize : (i+1)*bankSize]
	}

	order := detectROMBankOrder(chunks)
	for dest, src := range order {
		if err := mem.LoadROM(dest, chunks[src]); err != nil {
			return err
		}
	}
	return nil
}

// detectROMBankOrder returns, for each destination bank index, which chunk
// of the merged image should be loaded there. Defaults to identity order
// when no signature matches (covers clones/AY-enhanced ROMs the heuristic
// doesn't recognise).
func detectROMBankOrder(chunks [][]byte) []int {
	order := make([]int, len(chunks))
	for i := range order {
		order[i] = i
	}

	menuIdx, menuFound := -1, false
	basicIdx, basicFound := -1, false
	for i, chunk := range chunks {
		if !menuFound && matchesAnySignature(chunk, rom128KMenuSignature) {
			menuIdx, menuFound = i, true
		}
		if !basicFound && containsAll(chunk, rom48KSignature) {
			basicIdx, basicFound = i, true
		}
	}

	// 128K machines expect bank 0 = 128K editor/menu, bank 1 = 48K BASIC.
	if menuFound && basicFound && len(chunks) >= 2 {
		order[0] = menuIdx
		order[1] = basicIdx
	}
	return order
}

func matchesAnySignature(data []byte, signatureSets [][]string) bool {
	for _, set := range signatureSets {
		if containsAll(data, set) {
			return true
		}
	}
	return false
}

func containsAll(data []byte, substrings []string) bool {
	for _, s := range substrings {
		if !bytes.Contains(data, []byte(s)) {
			return false
		}
	}
	return true
}

// loadCompanionROMs loads "<stem>-1.rom".."<stem>-(n-1).rom" (or the
// underscore variant) concurrently via errgroup, filling banks 1..n-1 of
// an image whose bank 0 was already loaded from the primary path.
func loadCompanionROMs(mem *Memory, primaryPath string, banksExpected int) error {
	dir := filepath.Dir(primaryPath)
	stem := strings.TrimSuffix(filepath.Base(primaryPath), filepath.Ext(primaryPath))

	var g errgroup.Group
	for bank := 1; bank < banksExpected && bank < romBanks; bank++ {
		bank := bank
		g.Go(func() error {
			data, err := readCompanionROM(dir, stem, bank)
			if err != nil {
				return err
			}
			return mem.LoadROM(bank, data)
		})
	}
	return g.Wait()
}

func readCompanionROM(dir, stem string, bank int) ([]byte, error) {
	candidates := []string{
		filepath.Join(dir, fmt.Sprintf("%s-%d.rom", stem, bank)),
		filepath.Join(dir, fmt.Sprintf("%s_%d.rom", stem, bank)),
	}
	var lastErr error
	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("rom: companion bank %d for %s not found: %w", bank, stem, lastErr)
}
