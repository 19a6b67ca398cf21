package st7789

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"runtime"
	"time"

	"github.com/jukebox/st7789/image565"
	"github.com/jukebox/st7789/pio"
	"github.com/jukebox/st7789/timer"
	"github.com/rs/zerolog"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/pin"
)

// Controller commands.
const (
	SWRESET = 0x01 // Software reset
	SLPOUT  = 0x11 // Sleep out
	NORON   = 0x13 // Normal display mode on
	INVON   = 0x21 // Display inversion on
	DISPOFF = 0x28 // Display off
	DISPON  = 0x29 // Display on
	CASET   = 0x2A // Column address set
	RASET   = 0x2B // Row address set
	RAMWR   = 0x2C // Memory write
	MADCTL  = 0x36 // Memory data access control
	COLMOD  = 0x3A // Interface pixel format

	// COLMOD parameter selecting 65k colors at 16 bits per pixel.
	ColorMode16bit = 0x55
)

// Default display dimensions.
const (
	DefaultWidth  = 240
	DefaultHeight = 320
)

// Settle time around every control pin transition.
const settle = time.Microsecond

// testFill is transmitted for every pixel of the framebuffer.
const testFill image565.Color = 0xFFFF

// ErrHalted is returned by operations on a halted device.
var ErrHalted = errors.New("st7789: halted")

// Pins are the lines connecting the display.
type Pins struct {
	// Serial data and clock are driven by the PIO state machine; only
	// their numbers are used.
	Data  pin.Pin
	Clock pin.Pin

	CS        gpio.PinOut // Chip select, active low
	DC        gpio.PinOut // Low for commands, high for data
	RST       gpio.PinOut // Reset, held inactive high
	Backlight gpio.PinOut
}

// Opts is the configuration for the ST7789 display.
type Opts struct {
	// Display dimensions in pixels
	W int // Width (default: 240)
	H int // Height (default: 320)

	// Logger receives one debug event per command (default: disabled).
	Logger *zerolog.Logger
}

// Dev is the device handle for the ST7789 display.
type Dev struct {
	// Communication
	sm  pio.StateMachine
	cs  gpio.PinOut
	dc  gpio.PinOut
	rst gpio.PinOut
	bl  gpio.PinOut
	cd  timer.CountDown
	log zerolog.Logger

	// Display geometry
	rect image.Rectangle

	// Pixel buffer
	fb *image565.Image

	// State
	initialized bool
	halted      bool
}

var _ conn.Resource = (*Dev)(nil)

// Program returns the serial output program: each loop shifts one bit onto
// the data pin with the clock low, then raises the clock. The display
// samples data on the rising edge.
func Program() (pio.Program, error) {
	a := pio.NewAssembler(pio.SideSet{Bits: 1})
	wrapTarget := a.Label()
	wrapSource := a.Label()
	a.Bind(wrapTarget)
	a.Out(pio.OutPins, 1, 0)
	a.Nop(1)
	a.Bind(wrapSource)
	return a.AssembleWithWrap(wrapSource, wrapTarget)
}

// New creates a new ST7789 device driven through sm.
//
// The serial program is installed in blk and sm is configured and started
// on the data and clock pins. The state machine runs from then on and is
// never stopped. The control pins are set to backlight off, command mode,
// deselected and out of reset. The display is not initialized; call Init.
//
// cd provides every delay of the driver. opts can be nil to use defaults
// (240x320 display).
func New(blk pio.Block, sm pio.StateMachine, pins Pins, cd timer.CountDown, opts *Opts) (*Dev, error) {
	// Apply defaults and validate options
	if opts == nil {
		opts = &Opts{}
	}
	w, h := opts.W, opts.H
	if w == 0 {
		w = DefaultWidth
	}
	if h == 0 {
		h = DefaultHeight
	}
	if w < 0 || w > 0xFFFF {
		return nil, errors.New("st7789: width must be between 1 and 65535")
	}
	if h < 0 || h > 0xFFFF {
		return nil, errors.New("st7789: height must be between 1 and 65535")
	}
	if blk == nil || sm == nil {
		return nil, errors.New("st7789: PIO block and state machine are required")
	}
	if cd == nil {
		return nil, errors.New("st7789: countdown timer is required")
	}
	if err := pins.validate(); err != nil {
		return nil, err
	}

	d := &Dev{
		sm:   sm,
		cs:   pins.CS,
		dc:   pins.DC,
		rst:  pins.RST,
		bl:   pins.Backlight,
		cd:   cd,
		log:  zerolog.Nop(),
		rect: image.Rect(0, 0, w, h),
		fb:   image565.New(image.Rect(0, 0, w, h)),
	}
	if opts.Logger != nil {
		d.log = *opts.Logger
	}

	for _, o := range []struct {
		out gpio.PinOut
		l   gpio.Level
	}{
		{d.bl, gpio.Low},
		{d.dc, gpio.Low},
		{d.cs, gpio.High},
		{d.rst, gpio.High},
	} {
		if err := o.out.Out(o.l); err != nil {
			return nil, fmt.Errorf("st7789: failed to set %s %s: %w", o.out, o.l, err)
		}
	}

	if err := d.startEngine(blk, uint8(pins.Data.Number()), uint8(pins.Clock.Number())); err != nil {
		return nil, err
	}
	return d, nil
}

// startEngine installs the serial program and starts sm on data and clock.
func (d *Dev) startEngine(blk pio.Block, data, clock uint8) error {
	prog, err := Program()
	if err != nil {
		return fmt.Errorf("st7789: %w", err)
	}
	offset, err := blk.Install(prog)
	if err != nil {
		return fmt.Errorf("st7789: failed to install program: %w", err)
	}

	cfg := pio.DefaultConfig(offset, prog)
	cfg.OutBase = data
	cfg.OutCount = 1
	cfg.SidesetBase = clock
	cfg.FIFOMode = pio.FIFOJoinTX
	// Shift left and refill after every byte: a word carries one byte in
	// its top 8 bits.
	cfg.OutShiftRight = false
	cfg.Autopull = true
	cfg.PullThreshold = 8
	cfg.ClkDivInt, cfg.ClkDivFrac = 1, 0
	regs, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("st7789: %w", err)
	}

	if err := d.sm.Init(regs); err != nil {
		return fmt.Errorf("st7789: failed to configure state machine: %w", err)
	}
	if err := d.sm.SetPindirs(data, 1, true); err != nil {
		return fmt.Errorf("st7789: data pin: %w", err)
	}
	if err := d.sm.SetPindirs(clock, 1, true); err != nil {
		return fmt.Errorf("st7789: clock pin: %w", err)
	}
	d.sm.SetEnabled(true)
	return nil
}

func (p *Pins) validate() error {
	for _, r := range []struct {
		name    string
		missing bool
	}{
		{"data", p.Data == nil},
		{"clock", p.Clock == nil},
		{"CS", p.CS == nil},
		{"DC", p.DC == nil},
		{"RST", p.RST == nil},
		{"backlight", p.Backlight == nil},
	} {
		if r.missing {
			return fmt.Errorf("st7789: %s pin is required", r.name)
		}
	}
	roles := []struct {
		name string
		p    pin.Pin
	}{
		{"data", p.Data},
		{"clock", p.Clock},
		{"CS", p.CS},
		{"DC", p.DC},
		{"RST", p.RST},
		{"backlight", p.Backlight},
	}
	seen := make(map[int]string, len(roles))
	for _, r := range roles {
		n := r.p.Number()
		if other, ok := seen[n]; ok {
			return fmt.Errorf("st7789: %s and %s pins are both %s", other, r.name, r.p)
		}
		seen[n] = r.name
	}
	for _, r := range roles[:2] {
		if n := r.p.Number(); n < 0 || n > 31 {
			return fmt.Errorf("st7789: %s pin %d cannot be driven by PIO", r.name, n)
		}
	}
	return nil
}

// Init sends the initialization sequence, pushes the framebuffer and turns
// the backlight on. It can be called once.
func (d *Dev) Init() error {
	if d.halted {
		return ErrHalted
	}
	if d.initialized {
		return errors.New("st7789: already initialized")
	}
	w, h := d.rect.Dx(), d.rect.Dy()
	steps := []struct {
		cmd   []byte
		delay time.Duration
	}{
		{[]byte{SWRESET}, 100 * time.Millisecond},
		{[]byte{SLPOUT}, 50 * time.Millisecond},
		{[]byte{COLMOD, ColorMode16bit}, 10 * time.Millisecond},
		{[]byte{MADCTL, 0x00}, 0},
		{window(CASET, w), 0},
		{window(RASET, h), 0},
		{[]byte{INVON}, 10 * time.Millisecond},
		{[]byte{NORON}, 10 * time.Millisecond},
		{[]byte{DISPON}, 10 * time.Millisecond},
	}
	for _, s := range steps {
		d.log.Debug().Hex("cmd", s.cmd[:1]).Hex("params", s.cmd[1:]).Dur("delay", s.delay).Msg("st7789: command")
		if err := d.writeCmd(s.cmd); err != nil {
			return err
		}
		timer.Sleep(d.cd, s.delay)
	}
	if err := d.PushFramebuffer(); err != nil {
		return err
	}
	if err := d.BacklightOn(); err != nil {
		return err
	}
	d.initialized = true
	d.log.Info().Stringer("dev", d).Msg("st7789: display ready")
	return nil
}

// window returns an address set command for [0, n), each bound big-endian.
func window(cmd byte, n int) []byte {
	return []byte{cmd, 0x00, 0x00, byte(n >> 8), byte(n)}
}

// PushFramebuffer streams the framebuffer to display memory, rows top to
// bottom and pixels left to right, two bytes per pixel. Every pixel is
// currently sent as white; the stored values are not transmitted.
//
// The display stays selected in data mode afterwards.
func (d *Dev) PushFramebuffer() error {
	if d.halted {
		return ErrHalted
	}
	if err := d.startPixels(); err != nil {
		return err
	}
	hi, lo := testFill.Bytes()
	for y := d.fb.Rect.Min.Y; y < d.fb.Rect.Max.Y; y++ {
		for range d.fb.Row(y) {
			d.put(hi)
			d.put(lo)
		}
	}
	return nil
}

// Command sends a controller command with its parameters.
func (d *Dev) Command(opcode byte, params ...byte) error {
	if d.halted {
		return ErrHalted
	}
	d.log.Debug().Hex("cmd", []byte{opcode}).Hex("params", params).Msg("st7789: command")
	return d.writeCmd(append([]byte{opcode}, params...))
}

// BacklightOn turns the backlight on.
func (d *Dev) BacklightOn() error {
	if err := d.bl.Out(gpio.High); err != nil {
		return fmt.Errorf("st7789: failed to turn backlight on: %w", err)
	}
	return nil
}

// BacklightOff turns the backlight off.
func (d *Dev) BacklightOff() error {
	if err := d.bl.Out(gpio.Low); err != nil {
		return fmt.Errorf("st7789: failed to turn backlight off: %w", err)
	}
	return nil
}

// ColorModel returns the color model of the display.
func (d *Dev) ColorModel() color.Model {
	return image565.Model
}

// Bounds returns the image bounds of the display.
func (d *Dev) Bounds() image.Rectangle {
	return d.rect
}

// Framebuffer returns the framebuffer of the device. It must not be
// modified.
func (d *Dev) Framebuffer() *image565.Image {
	return d.fb
}

// String returns a human-readable description of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("st7789.Dev{%dx%d}", d.rect.Dx(), d.rect.Dy())
}

// Halt turns the display and its backlight off. The device cannot be used
// afterwards. The state machine keeps running.
func (d *Dev) Halt() error {
	if d.halted {
		return nil
	}
	if err := d.writeCmd([]byte{DISPOFF}); err != nil {
		return err
	}
	if err := d.BacklightOff(); err != nil {
		return err
	}
	d.halted = true
	return nil
}

// writeCmd sends cmd[0] as a command and the rest as its parameters. The
// display is deselected on return.
func (d *Dev) writeCmd(cmd []byte) error {
	if len(cmd) == 0 {
		return errors.New("st7789: empty command")
	}
	d.drain()
	if err := d.setDCCS(gpio.Low, gpio.Low); err != nil {
		return err
	}
	d.put(cmd[0])
	if len(cmd) > 1 {
		d.drain()
		if err := d.setDCCS(gpio.High, gpio.Low); err != nil {
			return err
		}
		for _, b := range cmd[1:] {
			d.put(b)
		}
	}
	d.drain()
	return d.setDCCS(gpio.High, gpio.High)
}

// startPixels starts a memory write and leaves the display selected in
// data mode.
func (d *Dev) startPixels() error {
	if err := d.writeCmd([]byte{RAMWR}); err != nil {
		return err
	}
	return d.setDCCS(gpio.High, gpio.Low)
}

func (d *Dev) setDCCS(dc, cs gpio.Level) error {
	timer.Sleep(d.cd, settle)
	if err := d.dc.Out(dc); err != nil {
		return fmt.Errorf("st7789: failed to set DC %s: %w", dc, err)
	}
	if err := d.cs.Out(cs); err != nil {
		return fmt.Errorf("st7789: failed to set CS %s: %w", cs, err)
	}
	timer.Sleep(d.cd, settle)
	return nil
}

// drain waits until every queued bit has been shifted out.
func (d *Dev) drain() {
	d.sm.ClearTxStall()
	for !d.sm.TxStalled() {
		runtime.Gosched()
	}
}

// put queues b for transmission, waiting for room in the FIFO.
func (d *Dev) put(b byte) {
	for !d.sm.TryPut(uint32(b) << 24) {
		runtime.Gosched()
	}
}
