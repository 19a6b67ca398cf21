// Package st7789 controls a ST7789 TFT display over a serial bus generated
// by a PIO state machine.
//
// The ST7789 is a 262k color TFT controller supporting up to 240×320
// pixels. This driver runs it in 16 bits per pixel mode (RGB565) over its
// write-only 4-line serial interface.
//
// # Serial Engine
//
// The bus is produced by a two-instruction PIO program rather than an SPI
// peripheral:
//
//	out pins, 1  side 0 ; shift one bit out, clock low
//	nop          side 1 ; clock high, the display samples data
//
// The state machine refills its output shift register from the transmit
// FIFO every 8 bits, most significant bit first, and runs at the full
// system clock (one bit every two cycles). It is started once by New and
// never stopped. The CPU only queues bytes and waits for the FIFO to drain
// before moving the control pins.
//
// # Hardware Connection
//
//	Display Pin → System Pin
//	GND         → GND
//	VCC         → 3.3V
//	SDA         → Pins.Data (PIO driven)
//	SCL         → Pins.Clock (PIO driven)
//	CS          → Pins.CS
//	DC          → Pins.DC
//	RES         → Pins.RST (held high)
//	BLK         → Pins.Backlight
//
// # Framing
//
// Every command is framed with the DC and CS lines, with a 1µs settle time
// before and after each transition:
//
//	command byte:  DC low,  CS low
//	parameters:    DC high, CS low
//	idle:          DC high, CS high
//
// A memory write (RAMWR) instead leaves the display selected in data mode
// so that pixel data can stream without further framing.
//
// # Basic Usage
//
//	blk := piotest.NewBlock(sniffer.Data(), sniffer.Clock())
//	sm, _ := blk.StateMachine(3)
//	dev, _ := st7789.New(blk, sm, st7789.Pins{
//		Data:      sniffer.Data(),
//		Clock:     sniffer.Clock(),
//		CS:        cs,
//		DC:        dc,
//		RST:       rst,
//		Backlight: bl,
//	}, timer.NewMonotonic(), nil)
//	if err := dev.Init(); err != nil {
//		// ...
//	}
//
// On an RP2040 the block and state machine come from pio.NewRP2 instead.
// See examples/jukebox for a complete firmware.
//
// # Initialization
//
// Init sends software reset, sleep out, 16-bit color mode, memory access
// control, the column and row windows, inversion on, normal mode and
// display on, with the delays the controller requires. It then pushes the
// framebuffer and turns the backlight on.
//
// # Datasheet
//
// https://www.rhydolabz.com/documents/33/ST7789.pdf
package st7789
