package main

import "testing"

func TestZ80DIAndEIDelay(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.resetAndLoad(0x0000, []byte{
		0xF3, // DI
		0xFB, // EI
		0x00, // NOP
		0x00, // NOP
	})
	rig.cpu.IFF1 = true
	rig.cpu.IFF2 = true

	rig.cpu.Step()
	if rig.cpu.IFF1 || rig.cpu.IFF2 {
		t.Fatalf("DI should clear IFF1/IFF2")
	}

	rig.cpu.Step()
	if rig.cpu.IFF1 || rig.cpu.IFF2 {
		t.Fatalf("EI should not enable interrupts immediately")
	}

	rig.cpu.Step()
	if !rig.cpu.IFF1 || !rig.cpu.IFF2 {
		t.Fatalf("EI should enable interrupts after one instruction")
	}

	rig.cpu.AcceptIRQ(0xFF)
	if rig.cpu.PC != 0x0038 {
		t.Fatalf("IRQ should jump to 0x0038, got 0x%04X", rig.cpu.PC)
	}
}

func TestZ80IM1Interrupt(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.resetAndLoad(0x1000, []byte{0x00})
	rig.cpu.PC = 0x1000
	rig.cpu.SP = 0xFF00
	rig.cpu.IM = 1
	rig.cpu.IFF1 = true
	rig.cpu.IFF2 = true

	cycles := rig.cpu.AcceptIRQ(0xFF)

	requireZ80EqualU16(t, "PC", rig.cpu.PC, 0x0038)
	if rig.cpu.SP != 0xFEFE {
		t.Fatalf("SP = 0x%04X, want 0xFEFE", rig.cpu.SP)
	}
	if rig.bus.mem[0xFEFE] != 0x00 || rig.bus.mem[0xFEFF] != 0x10 {
		t.Fatalf("stack push incorrect: %02X %02X", rig.bus.mem[0xFEFE], rig.bus.mem[0xFEFF])
	}
	if rig.cpu.IFF1 || rig.cpu.IFF2 {
		t.Fatalf("IRQ should clear IFF1/IFF2")
	}
	if cycles != 13 || rig.cpu.Cycles != 13 {
		t.Fatalf("Cycles = %d, want 13", rig.cpu.Cycles)
	}
}

func TestZ80NMIInterrupt(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.resetAndLoad(0x2000, []byte{0x00})
	rig.cpu.PC = 0x2000
	rig.cpu.SP = 0xFF00
	rig.cpu.IFF1 = true
	rig.cpu.IFF2 = true

	cycles := rig.cpu.AcceptNMI()

	requireZ80EqualU16(t, "PC", rig.cpu.PC, 0x0066)
	if rig.cpu.SP != 0xFEFE {
		t.Fatalf("SP = 0x%04X, want 0xFEFE", rig.cpu.SP)
	}
	if rig.bus.mem[0xFEFE] != 0x00 || rig.bus.mem[0xFEFF] != 0x20 {
		t.Fatalf("stack push incorrect: %02X %02X", rig.bus.mem[0xFEFE], rig.bus.mem[0xFEFF])
	}
	if rig.cpu.IFF1 {
		t.Fatalf("NMI should clear IFF1")
	}
	if !rig.cpu.IFF2 {
		t.Fatalf("NMI should save old IFF1 into IFF2")
	}
	if cycles != 11 || rig.cpu.Cycles != 11 {
		t.Fatalf("Cycles = %d, want 11", rig.cpu.Cycles)
	}
}

func TestZ80NMISavesIFF1IntoIFF2(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.cpu.SP = 0xC100
	rig.cpu.PC = 0x1234
	rig.cpu.IFF1 = true
	rig.cpu.IFF2 = false

	rig.cpu.AcceptNMI()

	if rig.cpu.PC != 0x0066 {
		t.Fatalf("PC = 0x%04X, want 0x0066", rig.cpu.PC)
	}
	if rig.cpu.SP != 0xC0FE {
		t.Fatalf("SP = 0x%04X, want 0xC0FE", rig.cpu.SP)
	}
	if rig.cpu.IFF1 {
		t.Fatalf("IFF1 should be cleared")
	}
	if !rig.cpu.IFF2 {
		t.Fatalf("IFF2 should carry the pre-NMI IFF1 value")
	}
	if rig.bus.mem[0xC0FE] != 0x34 || rig.bus.mem[0xC0FF] != 0x12 {
		t.Fatalf("stack push incorrect: %02X %02X", rig.bus.mem[0xC0FE], rig.bus.mem[0xC0FF])
	}

	rig.cpu.edOps[0x45](rig.cpu) // RETN
	requireZ80EqualU16(t, "PC", rig.cpu.PC, 0x1234)
	if rig.cpu.SP != 0xC100 {
		t.Fatalf("SP = 0x%04X, want 0xC100", rig.cpu.SP)
	}
	if !rig.cpu.IFF1 || !rig.cpu.IFF2 {
		t.Fatalf("RETN should restore IFF1 = IFF2 = 1")
	}
}

func TestZ80IM2InterruptVector(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.cpu.PC = 0x3000
	rig.cpu.SP = 0xFF00
	rig.cpu.IM = 2
	rig.cpu.I = 0x12
	rig.cpu.IFF1 = true
	rig.cpu.IFF2 = true
	rig.bus.mem[0x1234] = 0x78
	rig.bus.mem[0x1235] = 0x56

	rig.cpu.AcceptIRQ(0x34)

	requireZ80EqualU16(t, "PC", rig.cpu.PC, 0x5678)
	if rig.cpu.SP != 0xFEFE {
		t.Fatalf("SP = 0x%04X, want 0xFEFE", rig.cpu.SP)
	}
	if rig.cpu.WZ != 0x1235 {
		t.Fatalf("WZ = 0x%04X, want 0x1235", rig.cpu.WZ)
	}
}

func TestZ80IM2InterruptMatchesScenario(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.cpu.I = 0x80
	rig.cpu.IM = 2
	rig.cpu.SP = 0xFFFE
	rig.cpu.PC = 0x1234
	rig.cpu.IFF1 = true
	rig.bus.mem[0x80FF] = 0x78
	rig.bus.mem[0x8100] = 0x56

	cycles := rig.cpu.AcceptIRQ(0xFF)

	requireZ80EqualU16(t, "PC", rig.cpu.PC, 0x5678)
	if rig.cpu.SP != 0xFFFC {
		t.Fatalf("SP = 0x%04X, want 0xFFFC", rig.cpu.SP)
	}
	if rig.bus.mem[0xFFFC] != 0x34 || rig.bus.mem[0xFFFD] != 0x12 {
		t.Fatalf("stack push incorrect: %02X %02X", rig.bus.mem[0xFFFC], rig.bus.mem[0xFFFD])
	}
	if cycles != 19 {
		t.Fatalf("cycles = %d, want 19", cycles)
	}
}

func TestZ80IM0RSTVector(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.cpu.PC = 0x4000
	rig.cpu.SP = 0xFF00
	rig.cpu.IM = 0
	rig.cpu.IFF1 = true
	rig.cpu.IFF2 = true

	rig.cpu.AcceptIRQ(0xC7)

	requireZ80EqualU16(t, "PC", rig.cpu.PC, 0x0000)
}

func TestZ80HALTInterruptExit(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.cpu.PC = 0x5000
	rig.cpu.SP = 0xFF00
	rig.cpu.IM = 1
	rig.cpu.IFF1 = true
	rig.cpu.IFF2 = true
	rig.cpu.Halted = true

	rig.cpu.AcceptIRQ(0xFF)

	if rig.cpu.Halted {
		t.Fatalf("HALT should exit on interrupt")
	}
	requireZ80EqualU16(t, "PC", rig.cpu.PC, 0x0038)
}

func TestZ80AcceptIRQIgnoredWhenDisabled(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.cpu.PC = 0x6000
	rig.cpu.IFF1 = false

	cycles := rig.cpu.AcceptIRQ(0xFF)

	if cycles != 0 {
		t.Fatalf("cycles = %d, want 0 when IFF1 is clear", cycles)
	}
	if rig.cpu.PC != 0x6000 {
		t.Fatalf("PC should be untouched when the interrupt is masked")
	}
}
