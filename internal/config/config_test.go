package config

import (
	"os"
	"path/filepath"
	"testing"

	boterr "github.com/Velvet-Capital/SwarmDeFAI/internal/errors"
)

const testKeyHex = "4f0b3c9d2e8a716f5c4d3b2a19087e6d5c4b3a291807f6e5d4c3b2a190876e5d"

func TestLoadPrecedenceFlagsOverEnvOverFile(t *testing.T) {
	tmp := t.TempDir()
	configPath := filepath.Join(tmp, "config.yaml")
	data := "retries: 1\nchain:\n  rpc_url: https://file.example\n"
	if err := os.WriteFile(configPath, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("WALLET_ENCRYPTION_KEY", testKeyHex)
	t.Setenv("BASE_RPC_URL", "https://env.example")

	flags := GlobalFlags{ConfigPath: configPath, RPCURL: "https://flag.example", Retries: 5}
	settings, err := Load(flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.RPCURL != "https://flag.example" {
		t.Fatalf("expected flag to win, got rpc=%s", settings.RPCURL)
	}
	if settings.Retries != 5 {
		t.Fatalf("expected retries from flags, got %d", settings.Retries)
	}
}

func TestLoadRequiresBotToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("WALLET_ENCRYPTION_KEY", testKeyHex)
	_, err := Load(GlobalFlags{ConfigPath: filepath.Join(t.TempDir(), "none.yaml")})
	if !boterr.Is(err, boterr.CodeConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestLoadRejectsShortEncryptionKey(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("WALLET_ENCRYPTION_KEY", "deadbeef")
	_, err := Load(GlobalFlags{ConfigPath: filepath.Join(t.TempDir(), "none.yaml")})
	if !boterr.Is(err, boterr.CodeConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
