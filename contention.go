// contention.go - ULA/DRAM shared-access wait states.

package main

const (
	tStatesPerFrame  = 69888
	contentionStart  = 14336
	contentionEnd    = 57344
	contentionPeriod = 8
)

// contentionPattern48K128K and contentionPatternPlus3 are indexed by
// phase & 7. +2A/+3 use a gate array that shifts the pattern by one
// position relative to 48K/128K.
var contentionPattern48K128K = [contentionPeriod]byte{6, 5, 4, 3, 2, 1, 0, 0}
var contentionPatternPlus3 = [contentionPeriod]byte{0, 6, 5, 4, 3, 2, 1, 0}

// bankContentionMask48K128K and friends name which RAM banks 0-7 are wired
// to the same DRAM the ULA reads from, and therefore incur contention when
// the CPU accesses them during the visible display window.
var bankContentionMask48K = [ramBanks]bool{false, false, false, false, false, true, false, false}
var bankContentionMask128K = [ramBanks]bool{false, true, false, true, false, true, false, true}
var bankContentionMaskPlus2A3 = [ramBanks]bool{false, false, false, false, true, true, true, true}

// Contention computes the wait-states model and t_state parameterise.
type Contention struct {
	model MachineModel
}

func NewContention(model MachineModel) *Contention {
	return &Contention{model: model}
}

func (c *Contention) bankMask() [ramBanks]bool {
	switch c.model {
	case Model48K:
		return bankContentionMask48K
	case Model128K:
		return bankContentionMask128K
	default:
		return bankContentionMaskPlus2A3
	}
}

func (c *Contention) pattern() [contentionPeriod]byte {
	if c.model == ModelPlus2A || c.model == ModelPlus3 {
		return contentionPatternPlus3
	}
	return contentionPattern48K128K
}

// BankContended reports whether RAM bank index is on contended DRAM for the
// current model.
func (c *Contention) BankContended(bank byte) bool {
	if int(bank) >= ramBanks {
		return false
	}
	return c.bankMask()[bank]
}

// phase maps an absolute T-state counter onto its position within the
// current 69888-T-state frame.
func phase(tState uint64) uint64 {
	return tState % tStatesPerFrame
}

// WaitStates returns the number of T-states a memory or port access at
// absolute T-state tState must stall for, given that the access targets
// contended hardware (a contended RAM bank, or a ULA-style port).
func (c *Contention) WaitStates(tState uint64) int {
	ph := phase(tState)
	if ph < contentionStart || ph >= contentionEnd {
		return 0
	}
	sub := ph & (contentionPeriod - 1)
	pattern := c.pattern()
	return int(pattern[sub])
}

// PortWaitStates applies the memory contention pattern to a port access when
// the port is ULA-style (A0 = 0), plus the +3's extra 3 T-states of
// peripheral wait on every ULA-port access regardless of phase.
func (c *Contention) PortWaitStates(port uint16, tState uint64) int {
	wait := 0
	if port&0x01 == 0 {
		wait += c.WaitStates(tState)
	}
	if c.model == ModelPlus3 && port&0x01 == 0 {
		wait += 3
	}
	return wait
}
