// memory.go - 64KB paged memory for the ZX Spectrum family.

package main

import (
	"fmt"
	"sync"
)

// MemoryPageKind tags what a 16KB slot currently maps to.
type MemoryPageKind byte

const (
	PageUnmapped MemoryPageKind = iota
	PageROM
	PageRAM
)

// MemoryPage is a single 16KB slot's mapping: which kind of bank, and which
// index of that kind. Four of these make up the visible 64KB address space.
type MemoryPage struct {
	Kind MemoryPageKind
	Bank byte
}

const (
	bankSize  = 0x4000
	slotCount = 4
	romBanks  = 4
	ramBanks  = 8
)

// Memory holds the ROM/RAM backing stores and the current 4-slot page map.
// A read from addr is always the byte at mapped-bank[addr & 0x3FFF]; there is
// no separate visible-window cache, so a remap or a RAM write is visible on
// the very next read with no extra bookkeeping to invalidate.
type Memory struct {
	mutex sync.RWMutex

	rom [romBanks][]byte
	ram [ramBanks][]byte

	pages [slotCount]MemoryPage

	paging PagingState
	model  MachineModel
}

// PagingState mirrors the two 128-family paging latches plus the derived
// values a host needs without re-decoding the ports each time.
type PagingState struct {
	Port7FFD     byte
	Port1FFD     byte
	PagingLocked bool
	ScreenBank   byte // always 5 or 7
	ROMPage      byte
	PagedBank    byte
}

func NewMemory(model MachineModel) *Memory {
	m := &Memory{model: model}
	for i := range m.rom {
		m.rom[i] = make([]byte, bankSize)
	}
	for i := range m.ram {
		m.ram[i] = make([]byte, bankSize)
	}
	m.ResetPaging()
	return m
}

// LoadROM installs the contents of ROM bank index (0-3, only banks valid for
// the current model are ever addressed by the page map).
func (m *Memory) LoadROM(index int, data []byte) error {
	if index < 0 || index >= romBanks {
		return fmt.Errorf("memory: rom bank %d out of range", index)
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	n := copy(m.rom[index], data)
	for i := n; i < bankSize; i++ {
		m.rom[index][i] = 0xFF
	}
	return nil
}

// ResetPaging restores the paging state a hardware reset or configure_model
// produces: ROM page 0 visible at slot 0, screen bank 5, lock cleared, and
// the 48K-style identity RAM map (slot n <- RAM bank n) for 128-family
// models too, since 0x7FFD/0x1FFD reset to zero.
func (m *Memory) ResetPaging() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.paging = PagingState{ScreenBank: 5}
	m.recomputePages()
}

// SetModel changes which model's paging/contention rules apply without
// reallocating ROM/RAM banks, for a snapshot load whose hardware-mode byte
// names a different model than the one the Machine was last configured as.
// Paging latches are left as-is; the snapshot loader's own Write7FFD/
// Write1FFD calls (if any) establish the loaded state immediately after.
func (m *Memory) SetModel(model MachineModel) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.model = model
	m.recomputePages()
}

func (m *Memory) Read(addr uint16) byte {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.readLocked(addr)
}

func (m *Memory) readLocked(addr uint16) byte {
	page := m.pages[addr>>14]
	offset := addr & (bankSize - 1)
	switch page.Kind {
	case PageROM:
		return m.rom[page.Bank][offset]
	case PageRAM:
		return m.ram[page.Bank][offset]
	default:
		return 0xFF
	}
}

func (m *Memory) Write(addr uint16, value byte) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	page := m.pages[addr>>14]
	if page.Kind != PageRAM {
		return
	}
	m.ram[page.Bank][addr&(bankSize-1)] = value
}

// RAMBank returns a direct reference to a RAM bank, for the ULA's screen
// reader (which must read bank 5 or 7 by index regardless of paging) and for
// snapshot loaders.
func (m *Memory) RAMBank(index int) []byte {
	return m.ram[index]
}

func (m *Memory) ROMBank(index int) []byte {
	return m.rom[index]
}

// Paging returns a copy of the current paging state for diagnostics/snapshot
// saving.
func (m *Memory) Paging() PagingState {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.paging
}

// Write7FFD applies a write to port 0x7FFD. 48K machines have no paging
// hardware at all and never route port 0xFE-adjacent decode here (the
// machine bus only calls this for 128-family models).
func (m *Memory) Write7FFD(value byte) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.paging.PagingLocked {
		return
	}
	m.paging.Port7FFD = value
	if value&0x20 != 0 {
		m.paging.PagingLocked = true
	}
	m.recomputePages()
}

// Write1FFD applies a write to port 0x1FFD (+2A/+3 only).
func (m *Memory) Write1FFD(value byte) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.paging.PagingLocked {
		return
	}
	m.paging.Port1FFD = value
	m.recomputePages()
}

// specialPagingTable is the four RAM-only configurations selected when bit 2
// of 0x1FFD is set, indexed by (Port1FFD>>0)&0x03.
var specialPagingTable = [4][slotCount]byte{
	{0, 1, 2, 3},
	{4, 5, 6, 7},
	{4, 5, 6, 3},
	{4, 7, 6, 3},
}

func (m *Memory) recomputePages() {
	p7 := m.paging.Port7FFD
	p1 := m.paging.Port1FFD

	pagedBank := p7 & 0x07
	screenBank := byte(5)
	if p7&0x08 != 0 {
		screenBank = 7
	}
	lowROM := (p7 >> 4) & 0x01

	m.paging.PagedBank = pagedBank
	m.paging.ScreenBank = screenBank

	is128Family := m.model != Model48K
	specialMode := is128Family && p1&0x04 != 0
	allRAM := is128Family && !specialMode && p1&0x02 != 0

	if specialMode {
		cfg := p1 & 0x03
		banks := specialPagingTable[cfg]
		for slot, bank := range banks {
			m.pages[slot] = MemoryPage{Kind: PageRAM, Bank: bank}
		}
		m.paging.ScreenBank = banks[1]
		return
	}

	highROM := byte(0)
	if is128Family {
		highROM = p1 & 0x01
	}
	romPage := lowROM | (highROM << 1)
	m.paging.ROMPage = romPage

	if allRAM {
		m.pages[0] = MemoryPage{Kind: PageRAM, Bank: 0}
	} else {
		m.pages[0] = MemoryPage{Kind: PageROM, Bank: romPage}
	}
	m.pages[1] = MemoryPage{Kind: PageRAM, Bank: 5}
	m.pages[2] = MemoryPage{Kind: PageRAM, Bank: 2}
	m.pages[3] = MemoryPage{Kind: PageRAM, Bank: pagedBank}
}
