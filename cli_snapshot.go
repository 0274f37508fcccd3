// cli_snapshot.go - dump-snapshot subcommand support.

package main

import "fmt"

// dumpSnapshot loads path into a throwaway Machine (reconfigured to match
// the snapshot's own detected model) and prints the resulting CPU register
// state and paging configuration.
func dumpSnapshot(path string) error {
	m := NewMachine(44100)
	if err := m.LoadSnapshot(path); err != nil {
		return err
	}

	fmt.Printf("model: %s\n", m.model)
	fmt.Println(formatRegisters(m.cpu))

	paging := m.bus.memory.Paging()
	fmt.Printf("paging: bank=%d screen=%d rom=%d locked=%v\n",
		paging.PagedBank, paging.ScreenBank, paging.ROMPage, paging.PagingLocked)
	return nil
}
