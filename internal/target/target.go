package target

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ByteOrder selects how multi-unit payloads are packed into words.
type ByteOrder string

const (
	LittleEndian ByteOrder = "le"
	BigEndian    ByteOrder = "be"
)

// Config describes the machine the lowering pass emits code for. The pass
// never inspects the host; everything width- or order-dependent comes from
// here.
type Config struct {
	PointerBits int       `yaml:"pointer_bits"` // 32 or 64
	SmiBits     int       `yaml:"smi_bits"`     // 31 or 32 payload bits
	ByteOrder   ByteOrder `yaml:"byte_order"`
}

// Default64 is the common 64-bit little-endian target with 31-bit small
// integers (pointer-compression style tagging).
func Default64() Config {
	return Config{PointerBits: 64, SmiBits: 31, ByteOrder: LittleEndian}
}

// Full64 is the 64-bit target whose small integers carry a full 32-bit
// payload, so numeric tagging of a word32 can never overflow.
func Full64() Config {
	return Config{PointerBits: 64, SmiBits: 32, ByteOrder: LittleEndian}
}

// Default32 is a 32-bit little-endian target. Small integers on 32-bit
// targets always have 31 payload bits.
func Default32() Config {
	return Config{PointerBits: 32, SmiBits: 31, ByteOrder: LittleEndian}
}

// Load reads a target description from a YAML file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read target config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse target config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the lowering pass cannot target.
func (c Config) Validate() error {
	switch c.PointerBits {
	case 32, 64:
	default:
		return fmt.Errorf("unsupported pointer width %d (want 32 or 64)", c.PointerBits)
	}
	switch c.SmiBits {
	case 31:
	case 32:
		if c.PointerBits != 64 {
			return fmt.Errorf("32-bit small integers need a 64-bit target")
		}
	default:
		return fmt.Errorf("unsupported smi payload width %d (want 31 or 32)", c.SmiBits)
	}
	switch c.ByteOrder {
	case LittleEndian, BigEndian:
	default:
		return fmt.Errorf("unsupported byte order %q", c.ByteOrder)
	}
	return nil
}

// Is64 reports whether pointers (and untagged machine words) are 64 bits.
func (c Config) Is64() bool { return c.PointerBits == 64 }

// SmiValuesAre32Bits reports whether the inline small-integer payload is a
// full 32-bit word. When true, tagging a word32 never overflows.
func (c Config) SmiValuesAre32Bits() bool { return c.SmiBits == 32 }

// SmiValuesAre31Bits is the complement of SmiValuesAre32Bits.
func (c Config) SmiValuesAre31Bits() bool { return c.SmiBits == 31 }

// SmiShift is the distance the payload is shifted into the tagged word.
func (c Config) SmiShift() int {
	if c.SmiValuesAre32Bits() {
		return 32
	}
	return 1
}

// SmiMaxValue is the largest value representable as an inline small integer.
func (c Config) SmiMaxValue() int64 {
	if c.SmiValuesAre32Bits() {
		return 1<<31 - 1
	}
	return 1<<30 - 1
}

// SmiMinValue is the smallest value representable as an inline small integer.
func (c Config) SmiMinValue() int64 {
	return -c.SmiMaxValue() - 1
}

func (c Config) String() string {
	return fmt.Sprintf("ptr%d smi%d %s", c.PointerBits, c.SmiBits, c.ByteOrder)
}
