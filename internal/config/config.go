package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	stderrors "errors"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	boterr "github.com/Velvet-Capital/SwarmDeFAI/internal/errors"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/registry"
)

type GlobalFlags struct {
	ConfigPath string
	EnvPath    string
	RPCURL     string
	Timeout    string
	Retries    int
}

type Settings struct {
	BotToken       string
	WalletKeyHex   string
	RPCURL         string
	SolverURL      string
	OracleURL      string
	OracleKey      string
	LedgerURL      string
	LunarCrushURL  string
	LunarCrushKey  string
	PerplexityURL  string
	PerplexityKey  string
	OpenAIKey      string
	WalletDBPath   string
	WalletLockPath string
	Timeout        time.Duration
	Retries        int
}

type fileConfig struct {
	Timeout string `yaml:"timeout"`
	Retries *int   `yaml:"retries"`
	Chain   struct {
		RPCURL string `yaml:"rpc_url"`
	} `yaml:"chain"`
	Services struct {
		SolverURL     string `yaml:"solver_url"`
		OracleURL     string `yaml:"oracle_url"`
		LedgerURL     string `yaml:"ledger_url"`
		LunarCrushURL string `yaml:"lunarcrush_url"`
		PerplexityURL string `yaml:"perplexity_url"`
	} `yaml:"services"`
	Wallet struct {
		DBPath   string `yaml:"db_path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"wallet"`
}

var hexKeyPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// Load resolves settings from defaults, then the yaml config file, then the
// process environment, then command-line flags. Later layers win.
func Load(flags GlobalFlags) (Settings, error) {
	if path := strings.TrimSpace(flags.EnvPath); path != "" {
		if err := godotenv.Load(path); err != nil {
			return Settings{}, boterr.Wrap(boterr.CodeConfiguration, fmt.Sprintf("load env file %s", path), err)
		}
	} else {
		// Best effort; a missing .env is the normal production case.
		_ = godotenv.Load()
	}

	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, boterr.Wrap(boterr.CodeConfiguration, "resolve defaults", err)
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, boterr.Wrap(boterr.CodeConfiguration, "resolve config path", err)
	}

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.Timeout <= 0 {
		settings.Timeout = 15 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}

	if err := validate(settings); err != nil {
		return Settings{}, err
	}

	return settings, nil
}

func defaultSettings() (Settings, error) {
	dbPath, lockPath, err := defaultWalletPaths()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		RPCURL:         registry.DefaultRPCURL,
		SolverURL:      registry.DefaultSolverURL,
		OracleURL:      registry.DefaultOracleURL,
		LedgerURL:      registry.DefaultLedgerURL,
		LunarCrushURL:  "https://lunarcrush.com/api4/public",
		PerplexityURL:  "https://api.perplexity.ai",
		WalletDBPath:   dbPath,
		WalletLockPath: lockPath,
		Timeout:        15 * time.Second,
		Retries:        2,
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "velvetbot", "config.yaml"), nil
}

func defaultWalletPaths() (string, string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	dir := filepath.Join(base, "velvetbot")
	return filepath.Join(dir, "wallets.db"), filepath.Join(dir, "wallets.lock"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil
		}
		return boterr.Wrap(boterr.CodeConfiguration, "read config", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return boterr.Wrap(boterr.CodeConfiguration, "parse config yaml", err)
	}

	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return boterr.Wrap(boterr.CodeConfiguration, "config timeout", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.Chain.RPCURL != "" {
		settings.RPCURL = cfg.Chain.RPCURL
	}
	if cfg.Services.SolverURL != "" {
		settings.SolverURL = cfg.Services.SolverURL
	}
	if cfg.Services.OracleURL != "" {
		settings.OracleURL = cfg.Services.OracleURL
	}
	if cfg.Services.LedgerURL != "" {
		settings.LedgerURL = cfg.Services.LedgerURL
	}
	if cfg.Services.LunarCrushURL != "" {
		settings.LunarCrushURL = cfg.Services.LunarCrushURL
	}
	if cfg.Services.PerplexityURL != "" {
		settings.PerplexityURL = cfg.Services.PerplexityURL
	}
	if cfg.Wallet.DBPath != "" {
		settings.WalletDBPath = cfg.Wallet.DBPath
	}
	if cfg.Wallet.LockPath != "" {
		settings.WalletLockPath = cfg.Wallet.LockPath
	}

	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		settings.BotToken = v
	}
	if v := os.Getenv("WALLET_ENCRYPTION_KEY"); v != "" {
		settings.WalletKeyHex = v
	}
	if v := os.Getenv("BASE_RPC_URL"); v != "" {
		settings.RPCURL = v
	}
	if v := os.Getenv("SOLVER_URL"); v != "" {
		settings.SolverURL = v
	}
	if v := os.Getenv("ORACLE_URL"); v != "" {
		settings.OracleURL = v
	}
	if v := os.Getenv("CODEX_API_KEY"); v != "" {
		settings.OracleKey = v
	}
	if v := os.Getenv("LEDGER_URL"); v != "" {
		settings.LedgerURL = v
	}
	if v := os.Getenv("LUNARCRUSH_API_KEY"); v != "" {
		settings.LunarCrushKey = v
	}
	if v := os.Getenv("PERPLEXITY_API_KEY"); v != "" {
		settings.PerplexityKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		settings.OpenAIKey = v
	}
	if v := os.Getenv("WALLET_DB_PATH"); v != "" {
		settings.WalletDBPath = v
	}
	if v := os.Getenv("WALLET_LOCK_PATH"); v != "" {
		settings.WalletLockPath = v
	}
	if v := os.Getenv("BOT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("BOT_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if strings.TrimSpace(flags.RPCURL) != "" {
		settings.RPCURL = flags.RPCURL
	}
	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return boterr.Wrap(boterr.CodeConfiguration, "parse --timeout", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	return nil
}

func validate(settings Settings) error {
	if strings.TrimSpace(settings.BotToken) == "" {
		return boterr.New(boterr.CodeConfiguration, "TELEGRAM_BOT_TOKEN is required")
	}
	if !hexKeyPattern.MatchString(strings.TrimSpace(settings.WalletKeyHex)) {
		return boterr.New(boterr.CodeConfiguration, "WALLET_ENCRYPTION_KEY must be 64 hex characters")
	}
	if strings.TrimSpace(settings.RPCURL) == "" {
		return boterr.New(boterr.CodeConfiguration, "chain RPC URL is required")
	}
	return nil
}
