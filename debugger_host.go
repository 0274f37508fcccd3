// debugger_host.go - interactive single-key debugger REPL. Grounded on
// terminal_host.go's raw-mode stdin handling, generalised from routing
// bytes into a TerminalMMIO device to dispatching single-key debugger
// commands against a Machine.

package main

import (
	"fmt"
	"os"

	"golang.design/x/clipboard"
	"golang.org/x/term"
)

// RunDebuggerSession puts stdin into raw mode and drives m one keypress at
// a time until 'q' or Ctrl-C. Registers are printed after every step so a
// user single-stepping frames always sees the machine's current state.
func RunDebuggerSession(m *Machine) error {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("debugger: failed to set raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	script := NewDebuggerScript()
	defer script.Close()
	var watchExpr string

	printDebuggerHelp()
	printRegisters(m)

	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil || n == 0 {
			return nil
		}
		switch buf[0] {
		case 'q', 0x03:
			fmt.Print("\r\nexiting\r\n")
			return nil
		case ' ':
			m.RunFrame()
			printRegisters(m)
		case 'c':
			runUntilStopOrWatch(m, script, watchExpr)
			printRegisters(m)
		case 'w':
			watchExpr = readLine(fd, oldState, "watch expr (e.g. pc == 0x8000 or peek(23624) ~= 0): ")
			if watchExpr == "" {
				fmt.Print("\r\nwatch cleared\r\n")
			} else {
				fmt.Printf("\r\nwatch set: %s\r\n", watchExpr)
			}
		case 's':
			path := readLine(fd, oldState, "screenshot path: ")
			if path == "" {
				path = "screenshot.bmp"
			}
			if err := SaveScreenshot(m, path); err != nil {
				fmt.Printf("\r\n%v\r\n", err)
			} else {
				fmt.Printf("\r\nwrote %s\r\n", path)
			}
		case 'r':
			printRegisters(m)
		case 'y':
			copyRegistersToClipboard(m)
		case 'd':
			printDisassembly(m)
		case '?', 'h':
			printDebuggerHelp()
		}
	}
}

// runUntilStopOrWatch free-runs m one frame at a time until either another
// key arrives or, when watchExpr is set, the expression evaluates truthy -
// a Lua-scripted conditional breakpoint checked once per frame.
func runUntilStopOrWatch(m *Machine, script *DebuggerScript, watchExpr string) {
	if watchExpr == "" {
		fmt.Print("\r\nrunning; press any key to stop\r\n")
	} else {
		fmt.Printf("\r\nrunning until %q; press any key to stop early\r\n", watchExpr)
	}

	stop := make(chan struct{})
	hit := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				m.RunFrame()
				if watchExpr != "" {
					ok, err := script.Eval(m.cpu, m.bus, watchExpr)
					if err != nil {
						fmt.Printf("\r\n%v\r\n", err)
						close(hit)
						return
					}
					if ok {
						close(hit)
						return
					}
				}
			}
		}
	}()

	keyPressed := make(chan struct{})
	go func() {
		buf := make([]byte, 1)
		os.Stdin.Read(buf)
		close(keyPressed)
	}()

	select {
	case <-hit:
		fmt.Print("\r\nwatch condition hit\r\n")
	case <-keyPressed:
	}
	close(stop)
}

// readLine temporarily restores the terminal's original (cooked) state to
// read a line of input with normal echo and line editing, then puts the
// terminal back into raw mode before returning.
func readLine(fd int, cookedState *term.State, prompt string) string {
	fmt.Printf("\r\n%s", prompt)

	term.Restore(fd, cookedState)
	defer term.MakeRaw(fd)

	var line string
	fmt.Scanln(&line)
	return line
}

func printDebuggerHelp() {
	fmt.Print("\r\nzxcore debugger: [space] step one frame  [c] run  [w] set watch expr  [s] screenshot  [r] registers  [d] disassemble at PC  [y] copy registers  [q] quit\r\n")
}

// printDisassembly decodes the 10 instructions starting at the CPU's
// current PC, marking branch targets.
func printDisassembly(m *Machine) {
	lines := disassembleZ80(m.bus, m.cpu.PC, 10)
	fmt.Print("\r\n")
	for _, l := range lines {
		branch := ""
		if l.IsBranch {
			branch = fmt.Sprintf("  -> %04X", l.BranchTarget)
		}
		fmt.Printf("%04X  %-11s %s%s\r\n", l.Address, l.HexBytes, l.Mnemonic, branch)
	}
}

func printRegisters(m *Machine) {
	cpu := m.cpu
	fmt.Printf("\r\n%s\r\n", formatRegisters(cpu))
}

func formatRegisters(cpu *CPU_Z80) string {
	return fmt.Sprintf(
		"PC=%04X SP=%04X AF=%02X%02X BC=%02X%02X DE=%02X%02X HL=%02X%02X IX=%04X IY=%04X IM=%d IFF1=%v",
		cpu.PC, cpu.SP, cpu.A, cpu.F, cpu.B, cpu.C, cpu.D, cpu.E, cpu.H, cpu.L, cpu.IX, cpu.IY, cpu.IM, cpu.IFF1,
	)
}

// copyRegistersToClipboard puts the formatted register line on the system
// clipboard, for pasting into a bug report. A clipboard that fails to
// initialise (headless CI, no display server) is reported but not fatal.
func copyRegistersToClipboard(m *Machine) {
	if err := clipboard.Init(); err != nil {
		fmt.Printf("\r\nclipboard unavailable: %v\r\n", err)
		return
	}
	<-clipboard.Write(clipboard.FmtText, []byte(formatRegisters(m.cpu)))
	fmt.Print("\r\nregisters copied to clipboard\r\n")
}
