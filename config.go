package framewire

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config holds the knobs enumerated in spec.md §6.5. It is the Go analogue
// of the teacher pack's TOML-driven GhostConfig/SeedNodeConfig
// (danmuck-edgectl/internal/config): a struct with `toml` tags, a
// Load function that applies defaults and validates, and a package-level
// default constructor.
type Config struct {
	ThreadSafe     bool `toml:"thread_safe"`
	MCUConstrained bool `toml:"mcu_constrained"`
	MaxFrameSize   int  `toml:"max_frame_size"`
	MaxWindowSize  int  `toml:"max_window_size"`
	RingBufSize    int  `toml:"ringbuf_size"`
	EnableCRC16    bool `toml:"enable_crc16"`
	EnableCRC32    bool `toml:"enable_crc32"`
	UseHWCRC       bool `toml:"use_hw_crc"`
	UseSSE42CRC    bool `toml:"use_sse42_crc"`
}

// DefaultConfig returns the spec.md §6.5 defaults (standard, non-MCU mode).
func DefaultConfig() Config {
	return Config{
		ThreadSafe:     true,
		MCUConstrained: false,
		MaxFrameSize:   1024,
		MaxWindowSize:  16,
		RingBufSize:    2048,
		EnableCRC16:    true,
		EnableCRC32:    true,
		UseHWCRC:       false,
		UseSSE42CRC:    hasSSE42(),
	}
}

// MCUConfig returns the resource-constrained defaults: halved buffers,
// compression/encryption disabled at the Message layer (spec.md §6.5).
func MCUConfig() Config {
	c := DefaultConfig()
	c.MCUConstrained = true
	c.MaxFrameSize = 256
	c.MaxWindowSize = 4
	c.RingBufSize = 512
	return c
}

// LoadConfig reads a TOML file into a Config seeded with DefaultConfig,
// mirroring danmuck-edgectl's LoadGhostConfig: defaults first, overlay from
// file, then validate.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, newErr(PLATFORM, "load config", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate clamps/rejects out-of-range knobs, matching spec.md's clamping
// language for window_size and MAX_FRAME_SIZE/MAX_WINDOW_SIZE invariants.
func (c *Config) Validate() error {
	if c.MaxFrameSize < headerSize {
		return newErr(INVALID, fmt.Sprintf("max_frame_size %d below header size %d", c.MaxFrameSize, headerSize), nil)
	}
	if c.MaxWindowSize < 1 {
		c.MaxWindowSize = 1
	}
	if c.MaxWindowSize > 32 {
		c.MaxWindowSize = 32
	}
	if c.RingBufSize < 2 {
		return newErr(INVALID, "ringbuf_size must be at least 2", nil)
	}
	return nil
}

// Apply pushes the CRC-related knobs into package-level dispatch state.
// EnableCRC16/EnableCRC32 are consulted by callers (the frame codec always
// computes payload_crc only "if enabled", per spec.md §4.2); the hardware
// toggles are applied immediately.
func (c *Config) Apply() {
	SetHWCRC32(c.UseHWCRC || c.UseSSE42CRC)
	SetMaxFrameSize(c.MaxFrameSize)
}

// WrapCompressed returns base wrapped with the Compressed decorator, unless
// c is MCU-constrained, in which case compression is disabled (spec.md
// §6.5: MCU_CONSTRAINED "halves defaults; disables compression/encryption")
// and base is returned unwrapped. Pipeline construction should build its
// Message chain through WrapCompressed/WrapEncrypted rather than calling
// NewCompressed/NewEncrypted directly whenever the chain is config-driven.
func (c *Config) WrapCompressed(base Message) Message {
	if c.MCUConstrained {
		return base
	}
	return NewCompressed(base)
}

// WrapEncrypted returns base wrapped with the Encrypted decorator, unless c
// is MCU-constrained, in which case encryption is disabled (spec.md §6.5)
// and base is returned unwrapped.
func (c *Config) WrapEncrypted(base Message) Message {
	if c.MCUConstrained {
		return base
	}
	return NewEncrypted(base)
}
