package protocol

import "testing"

func TestDefaultEngineConfig(t *testing.T) {
	cfg := DefaultEngineConfig()
	if cfg.HandshakeRetries != 4 {
		t.Errorf("HandshakeRetries = %d, want 4", cfg.HandshakeRetries)
	}
	if cfg.FrameRetries != 100 {
		t.Errorf("FrameRetries = %d, want 100", cfg.FrameRetries)
	}
}

func TestLoadEngineConfigFillsDefaults(t *testing.T) {
	cfg, err := LoadEngineConfig([]byte(`{"handshake_retries": 2}`))
	if err != nil {
		t.Fatalf("LoadEngineConfig() error = %v", err)
	}
	if cfg.HandshakeRetries != 2 {
		t.Errorf("HandshakeRetries = %d, want 2 (explicit)", cfg.HandshakeRetries)
	}
	if cfg.FrameRetries != 100 {
		t.Errorf("FrameRetries = %d, want 100 (defaulted)", cfg.FrameRetries)
	}
}

func TestLoadEngineConfigRejectsMalformedJSON(t *testing.T) {
	if _, err := LoadEngineConfig([]byte(`not json`)); err == nil {
		t.Error("LoadEngineConfig() with malformed JSON should error")
	}
}
