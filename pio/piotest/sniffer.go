package piotest

import (
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// Sniffer decodes a clocked serial stream. It provides a data and a clock
// pin; the data level is sampled on every rising edge of the clock and
// assembled into bytes, most significant bit first.
type Sniffer struct {
	data  *snifferPin
	clock *snifferPin

	mu     sync.Mutex
	level  gpio.Level
	sclk   gpio.Level
	shift  byte
	nbits  int
	edges  int
	bytes  []byte
	onByte func(b byte)
}

// NewSniffer returns a sniffer with pins numbered dataPin and clockPin.
// If onByte is not nil, it is called with each completed byte instead of
// the byte being recorded. It is called from the goroutine driving the
// clock pin.
func NewSniffer(dataPin, clockPin int, onByte func(b byte)) *Sniffer {
	s := &Sniffer{onByte: onByte}
	s.data = &snifferPin{Pin: &gpiotest.Pin{N: "DATA", Num: dataPin}, s: s}
	s.clock = &snifferPin{Pin: &gpiotest.Pin{N: "CLK", Num: clockPin}, s: s, clock: true}
	return s
}

// Data returns the data pin.
func (s *Sniffer) Data() gpio.PinIO { return s.data }

// Clock returns the clock pin.
func (s *Sniffer) Clock() gpio.PinIO { return s.clock }

// Bytes returns a copy of the recorded bytes.
func (s *Sniffer) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.bytes...)
}

// Edges returns the number of rising clock edges seen.
func (s *Sniffer) Edges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.edges
}

// Pending returns the number of bits of an incomplete byte.
func (s *Sniffer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nbits
}

func (s *Sniffer) observe(clock bool, l gpio.Level) {
	s.mu.Lock()
	if !clock {
		s.level = l
		s.mu.Unlock()
		return
	}
	rising := l == gpio.High && s.sclk == gpio.Low
	s.sclk = l
	if !rising {
		s.mu.Unlock()
		return
	}
	s.edges++
	s.shift <<= 1
	if s.level == gpio.High {
		s.shift |= 1
	}
	s.nbits++
	if s.nbits < 8 {
		s.mu.Unlock()
		return
	}
	b := s.shift
	s.shift, s.nbits = 0, 0
	if s.onByte == nil {
		s.bytes = append(s.bytes, b)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.onByte(b)
}

type snifferPin struct {
	*gpiotest.Pin
	s     *Sniffer
	clock bool
}

func (p *snifferPin) Out(l gpio.Level) error {
	if err := p.Pin.Out(l); err != nil {
		return err
	}
	p.s.observe(p.clock, l)
	return nil
}
