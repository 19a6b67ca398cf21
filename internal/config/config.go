package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Pins struct {
	Data      int `yaml:"data"`  // PIO driven
	Clock     int `yaml:"clock"` // PIO driven
	CS        int `yaml:"cs"`
	DC        int `yaml:"dc"`
	RST       int `yaml:"rst"`
	Backlight int `yaml:"backlight"`
}

type Engine struct {
	Block        int `yaml:"block"`         // PIO block, 0 or 1
	StateMachine int `yaml:"state_machine"` // 0..3
}

type Screen struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Board describes how the display is wired to the microcontroller.
type Board struct {
	Pins     Pins   `yaml:"pins"`
	Engine   Engine `yaml:"engine"`
	Screen   Screen `yaml:"screen"`
	LogLevel string `yaml:"log_level"` // zerolog level name
}

// Default returns the JukeBox wiring.
func Default() *Board {
	return &Board{
		Pins: Pins{
			Data:      21,
			Clock:     20,
			CS:        19,
			DC:        18,
			RST:       17,
			Backlight: 16,
		},
		Engine:   Engine{Block: 1, StateMachine: 3},
		Screen:   Screen{Width: 240, Height: 320},
		LogLevel: "info",
	}
}

// Load reads a board from path. Fields missing from the file keep their
// default value.
func Load(path string) (*Board, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

func Save(path string, c *Board) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Validate checks that the pins are distinct GPIOs of the microcontroller
// and that the engine slot and geometry exist.
func (c *Board) Validate() error {
	seen := map[int]string{}
	for _, p := range []struct {
		name string
		n    int
	}{
		{"data", c.Pins.Data},
		{"clock", c.Pins.Clock},
		{"cs", c.Pins.CS},
		{"dc", c.Pins.DC},
		{"rst", c.Pins.RST},
		{"backlight", c.Pins.Backlight},
	} {
		if p.n < 0 || p.n > 29 {
			return fmt.Errorf("pin %s: GPIO%d does not exist", p.name, p.n)
		}
		if other, ok := seen[p.n]; ok {
			return fmt.Errorf("pins %s and %s are both GPIO%d", other, p.name, p.n)
		}
		seen[p.n] = p.name
	}
	if c.Engine.Block < 0 || c.Engine.Block > 1 {
		return fmt.Errorf("engine block %d does not exist", c.Engine.Block)
	}
	if c.Engine.StateMachine < 0 || c.Engine.StateMachine > 3 {
		return fmt.Errorf("engine state machine %d does not exist", c.Engine.StateMachine)
	}
	if c.Screen.Width < 1 || c.Screen.Width > 0xFFFF || c.Screen.Height < 1 || c.Screen.Height > 0xFFFF {
		return errors.New("screen dimensions must be between 1 and 65535")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the log level. An empty level is info.
func (c *Board) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	l, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}
