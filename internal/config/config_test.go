package config

import "testing"

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.NATSStream != "bsky" {
		t.Errorf("expected stream bsky, got %s", cfg.NATSStream)
	}
	if cfg.FirehoseCheckpoint != 1000 {
		t.Errorf("expected checkpoint 1000, got %d", cfg.FirehoseCheckpoint)
	}
	if cfg.IndexerEnable {
		t.Error("indexer should be disabled by default")
	}
	if cfg.FARTKey != "" {
		t.Error("API key should default to empty (auth disabled)")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("NATS_URI", "nats://localhost:4222")
	t.Setenv("INDEXER_BATCH_SIZE", "250")
	t.Setenv("INDEXER_ENABLE", "1")

	cfg := FromEnv()

	if cfg.NATSURI != "nats://localhost:4222" {
		t.Errorf("NATS_URI not applied: %s", cfg.NATSURI)
	}
	if cfg.IndexerBatchSize != 250 {
		t.Errorf("INDEXER_BATCH_SIZE not applied: %d", cfg.IndexerBatchSize)
	}
	if !cfg.IndexerEnable {
		t.Error("INDEXER_ENABLE=1 should enable the indexer")
	}
}

func TestFromEnvInvalidIntKeepsDefault(t *testing.T) {
	t.Setenv("FART_PORT", "not-a-port")

	cfg := FromEnv()

	if cfg.FARTPort != 8000 {
		t.Errorf("invalid int should keep default, got %d", cfg.FARTPort)
	}
}

func TestEnvBoolParsing(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"one is true", "1", true},
		{"true is true", "true", true},
		{"mixed case true", "True", true},
		{"arbitrary value is true", "yes", true},
		{"zero is false", "0", false},
		{"false is false", "false", false},
		{"f is false", "f", false},
		{"uppercase F is false", "F", false},
		{"empty set value is false", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("INDEXER_ENABLE", tt.value)
			cfg := FromEnv()
			if cfg.IndexerEnable != tt.want {
				t.Errorf("INDEXER_ENABLE=%q: got %v, want %v", tt.value, cfg.IndexerEnable, tt.want)
			}
		})
	}
}
