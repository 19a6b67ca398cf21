// Package bootsel restarts the microcontroller into its USB mass storage
// bootloader, as if it were reset with the BOOTSEL button held.
//
// It is a maintenance entry point: a firmware calls Reboot only on explicit
// request, for example to accept a new image without physical access.
package bootsel

import "errors"

// ErrUnsupported is returned by Reboot on platforms without a USB
// bootloader.
var ErrUnsupported = errors.New("bootsel: USB bootloader not available on this platform")

// Reboot resets into the USB bootloader. On success it does not return.
func Reboot() error {
	return reboot()
}
