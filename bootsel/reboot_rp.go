//go:build tinygo && rp

package bootsel

import "machine"

func reboot() error {
	// Both boot interfaces enabled, no activity LED.
	machine.EnterBootloader()
	return nil
}
