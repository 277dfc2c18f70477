package protocol

import "encoding/json"

// EngineConfig holds the retry/timeout/batching parameters an Engine is
// constructed with: JSON-loadable, with zero-value fields filled in by
// applyDefaults.
type EngineConfig struct {
	// HandshakeRetries bounds how many handshake rounds OpenSerial/OpenTCP
	// attempt (each round sends the handshake token and polls four times,
	// 10ms apart) before giving up.
	HandshakeRetries int `json:"handshake_retries"`

	// FrameRetries bounds how many retryDelay polls the engine waits for a
	// reply frame (readResponse) during a normal command/response round
	// trip; it is also the budget Fetch's raw reads use.
	FrameRetries int64 `json:"frame_retries"`
}

// LoadEngineConfig parses a JSON configuration and applies defaults to any
// field left at its zero value.
func LoadEngineConfig(data []byte) (*EngineConfig, error) {
	var cfg EngineConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// DefaultEngineConfig returns the configuration OpenSerial/OpenTCP use
// when the caller doesn't supply one.
func DefaultEngineConfig() *EngineConfig {
	cfg := &EngineConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *EngineConfig) {
	if cfg.HandshakeRetries == 0 {
		cfg.HandshakeRetries = 4
	}
	if cfg.FrameRetries == 0 {
		cfg.FrameRetries = 100
	}
}
