package framewire

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	c := DefaultConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("DefaultConfig should validate cleanly: %v", err)
	}
}

func TestMCUConfigSmallerThanDefault(t *testing.T) {
	d := DefaultConfig()
	m := MCUConfig()
	if m.MaxFrameSize >= d.MaxFrameSize || m.MaxWindowSize >= d.MaxWindowSize || m.RingBufSize >= d.RingBufSize {
		t.Fatal("MCUConfig should be strictly smaller than DefaultConfig across all three size knobs")
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("MCUConfig should validate cleanly: %v", err)
	}
}

func TestConfigValidateClampsWindowSize(t *testing.T) {
	c := DefaultConfig()
	c.MaxWindowSize = 999
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if c.MaxWindowSize != 32 {
		t.Fatalf("MaxWindowSize = %d, want clamped to 32", c.MaxWindowSize)
	}
	c.MaxWindowSize = 0
	c.Validate()
	if c.MaxWindowSize != 1 {
		t.Fatalf("MaxWindowSize = %d, want clamped to 1", c.MaxWindowSize)
	}
}

func TestConfigValidateRejectsUndersizedFrame(t *testing.T) {
	c := DefaultConfig()
	c.MaxFrameSize = 4
	if err := c.Validate(); err == nil {
		t.Fatal("Validate should reject a max_frame_size below the header size")
	}
}

func TestConfigValidateRejectsTinyRingBuf(t *testing.T) {
	c := DefaultConfig()
	c.RingBufSize = 1
	if err := c.Validate(); err == nil {
		t.Fatal("Validate should reject a ringbuf_size below 2")
	}
}

func TestLoadConfigFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "framewire.toml")
	contents := "max_frame_size = 2048\nmax_window_size = 8\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MaxFrameSize != 2048 || cfg.MaxWindowSize != 8 {
		t.Fatalf("cfg = %+v, want max_frame_size=2048 max_window_size=8", cfg)
	}
	// fields absent from the file should retain DefaultConfig's values
	if cfg.RingBufSize != DefaultConfig().RingBufSize {
		t.Fatalf("RingBufSize = %d, want the default %d to survive a partial overlay", cfg.RingBufSize, DefaultConfig().RingBufSize)
	}
}

func TestMCUConfigDisablesCompressionAndEncryption(t *testing.T) {
	c := MCUConfig()
	if wrapped := c.WrapCompressed(RawMessage{}); wrapped != (RawMessage{}) {
		t.Fatalf("WrapCompressed under an MCU-constrained config should return base unwrapped, got %T", wrapped)
	}
	if wrapped := c.WrapEncrypted(RawMessage{}); wrapped != (RawMessage{}) {
		t.Fatalf("WrapEncrypted under an MCU-constrained config should return base unwrapped, got %T", wrapped)
	}
}

func TestDefaultConfigWrapsCompressionAndEncryption(t *testing.T) {
	c := DefaultConfig()
	if _, ok := c.WrapCompressed(RawMessage{}).(*Compressed); !ok {
		t.Fatal("WrapCompressed under a non-MCU config should wrap base with Compressed")
	}
	if _, ok := c.WrapEncrypted(RawMessage{}).(*Encrypted); !ok {
		t.Fatal("WrapEncrypted under a non-MCU config should wrap base with Encrypted")
	}
}

func TestConfigApplyUpdatesPackageState(t *testing.T) {
	c := DefaultConfig()
	c.MaxFrameSize = 777
	c.Apply()
	defer func() { SetMaxFrameSize(defaultMaxFrameSize) }()
	if maxFrameSize != 777 {
		t.Fatalf("maxFrameSize = %d, want 777 after Apply", maxFrameSize)
	}
}
