package infra

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"mpsol_restaking/internal/domain"
	"mpsol_restaking/pkg/quant"
)

// Config holds every application setting.
// After LoadConfig reads the file, environment variables override secrets and endpoints.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	RPC struct {
		URL        string `yaml:"url"`
		TimeoutSec int    `yaml:"timeout_sec"`
		// WSURL enables account subscriptions; polling stays as the fallback.
		WSURL string `yaml:"ws_url"`
	} `yaml:"rpc"`

	Storage struct {
		DBPath        string `yaml:"db_path"`
		SnapshotEvery uint64 `yaml:"snapshot_every"`
	} `yaml:"storage"`

	Pool PoolConfig `yaml:"pool"`

	Oracle struct {
		PollIntervalSec   int           `yaml:"poll_interval_sec"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
		MarinadeMint      string        `yaml:"marinade_mint"`
		MarinadePrograms  []string      `yaml:"marinade_programs"`
		SplStakePools     []string      `yaml:"spl_stake_pool_programs"`
		Vaults            []VaultConfig `yaml:"vaults"`
	} `yaml:"oracle"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // json or text
		Dir    string `yaml:"dir"`
	} `yaml:"logging"`
}

// PoolConfig describes the main vault created on first start.
type PoolConfig struct {
	MainState               string `yaml:"main_state"`
	Admin                   string `yaml:"admin"`
	Operator                string `yaml:"operator"`
	Rebalancer              string `yaml:"rebalancer"`
	PriceAuthority          string `yaml:"price_authority"`
	Treasury                string `yaml:"treasury"`
	DepositFeeBp            uint16 `yaml:"deposit_fee_bp"`
	PerformanceFeeBp        uint16 `yaml:"performance_fee_bp"`
	UnstakeWaitingPeriodSec uint64 `yaml:"unstake_waiting_period_sec"`
	MinMovementLamports     uint64 `yaml:"min_movement_lamports"`
	MaxPriceAgeSec          uint64 `yaml:"max_price_age_sec"`
}

// VaultConfig is one LST vault whose price the poller maintains.
type VaultConfig struct {
	LstMint            string `yaml:"lst_mint"`
	OracleStateAccount string `yaml:"oracle_state_account"`
	VaultLstAccount    string `yaml:"vault_lst_account"`
	DepositCap         uint64 `yaml:"deposit_cap"`
	DepositsDisabled   bool   `yaml:"deposits_disabled"`
	// FixedPrice replaces the oracle with a constant LST/SOL rate, e.g. "1.0".
	FixedPrice *decimal.Decimal `yaml:"fixed_price"`
}

// LoadConfig reads and parses the configuration file. A .env file next to
// the working directory is loaded first when present.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env", slog.Any("error", err))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.RPC.URL == "" || (!strings.HasPrefix(c.RPC.URL, "http://") && !strings.HasPrefix(c.RPC.URL, "https://")) {
		return invalid("rpc.url", c.RPC.URL, "must be an http(s) URL")
	}
	if c.RPC.WSURL != "" && !strings.HasPrefix(c.RPC.WSURL, "ws://") && !strings.HasPrefix(c.RPC.WSURL, "wss://") {
		return invalid("rpc.ws_url", c.RPC.WSURL, "must be a ws(s) URL")
	}

	for field, key := range map[string]string{"pool.main_state": c.Pool.MainState, "pool.admin": c.Pool.Admin} {
		if _, err := solana.PublicKeyFromBase58(key); err != nil {
			return invalid(field, key, err.Error())
		}
	}
	for field, key := range map[string]string{
		"pool.operator":        c.Pool.Operator,
		"pool.rebalancer":      c.Pool.Rebalancer,
		"pool.price_authority": c.Pool.PriceAuthority,
		"pool.treasury":        c.Pool.Treasury,
		"oracle.marinade_mint": c.Oracle.MarinadeMint,
	} {
		if key == "" {
			continue
		}
		if _, err := solana.PublicKeyFromBase58(key); err != nil {
			return invalid(field, key, err.Error())
		}
	}
	for _, key := range c.Oracle.SplStakePools {
		if _, err := solana.PublicKeyFromBase58(key); err != nil {
			return invalid("oracle.spl_stake_pool_programs", key, err.Error())
		}
	}
	for _, key := range c.Oracle.MarinadePrograms {
		if _, err := solana.PublicKeyFromBase58(key); err != nil {
			return invalid("oracle.marinade_programs", key, err.Error())
		}
	}

	if c.Pool.DepositFeeBp > quant.BasisPoints100 {
		return invalid("pool.deposit_fee_bp", fmt.Sprint(c.Pool.DepositFeeBp), "must be at most 10000")
	}
	if c.Pool.PerformanceFeeBp > quant.BasisPoints100 {
		return invalid("pool.performance_fee_bp", fmt.Sprint(c.Pool.PerformanceFeeBp), "must be at most 10000")
	}

	if c.Oracle.PollIntervalSec <= 0 {
		return invalid("oracle.poll_interval_sec", fmt.Sprint(c.Oracle.PollIntervalSec), "must be positive")
	}
	if c.Oracle.RequestsPerSecond < 0 {
		return invalid("oracle.requests_per_second", fmt.Sprint(c.Oracle.RequestsPerSecond), "must not be negative")
	}

	seen := make(map[string]bool, len(c.Oracle.Vaults))
	for _, v := range c.Oracle.Vaults {
		if _, err := solana.PublicKeyFromBase58(v.LstMint); err != nil {
			return invalid("oracle.vaults.lst_mint", v.LstMint, err.Error())
		}
		if seen[v.LstMint] {
			return invalid("oracle.vaults.lst_mint", v.LstMint, "duplicate vault")
		}
		seen[v.LstMint] = true
		if v.FixedPrice != nil {
			if v.FixedPrice.Sign() <= 0 {
				return invalid("oracle.vaults.fixed_price", v.FixedPrice.String(), "must be positive")
			}
			continue
		}
		if _, err := solana.PublicKeyFromBase58(v.OracleStateAccount); err != nil {
			return invalid("oracle.vaults.oracle_state_account", v.OracleStateAccount, err.Error())
		}
	}

	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return invalid("logging.format", c.Logging.Format, "must be json or text")
	}

	return nil
}

func invalid(field, value, reason string) error {
	return &domain.ConfigError{Field: field, Err: fmt.Errorf("%q %s", value, reason)}
}

// overrideWithEnv replaces settings with environment variables when set.
func overrideWithEnv(cfg *Config) {
	if url := os.Getenv("MPSOL_RPC_URL"); url != "" {
		cfg.RPC.URL = url
	}
	if url := os.Getenv("MPSOL_WS_URL"); url != "" {
		cfg.RPC.WSURL = url
	}
	if path := os.Getenv("MPSOL_DB_PATH"); path != "" {
		cfg.Storage.DBPath = path
	}
	if admin := os.Getenv("MPSOL_ADMIN"); admin != "" {
		cfg.Pool.Admin = admin
	}
	if level := os.Getenv("MPSOL_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

// MainVaultConfig converts the pool section into a domain configuration.
// Zero values keep the domain defaults. Validate must have passed.
func (p PoolConfig) MainVaultConfig() domain.MainVaultConfig {
	var cfg domain.MainVaultConfig
	cfg.DepositFeeBp = &p.DepositFeeBp
	cfg.PerformanceFeeBp = &p.PerformanceFeeBp
	if p.UnstakeWaitingPeriodSec > 0 {
		cfg.UnstakeTicketWaitingPeriod = &p.UnstakeWaitingPeriodSec
	}
	if p.MinMovementLamports > 0 {
		cfg.MinMovementLamports = &p.MinMovementLamports
	}
	if p.MaxPriceAgeSec > 0 {
		cfg.MaxPriceAge = &p.MaxPriceAgeSec
	}
	if p.Treasury != "" {
		treasury := solana.MustPublicKeyFromBase58(p.Treasury)
		cfg.TreasuryShareAccount = &treasury
	}
	if p.PriceAuthority != "" {
		authority := solana.MustPublicKeyFromBase58(p.PriceAuthority)
		cfg.PriceAuthority = &authority
	}
	return cfg
}

// PriceSigner is the key the price feeds submit as: the price authority,
// else the operator, else the admin.
func (p PoolConfig) PriceSigner() solana.PublicKey {
	for _, key := range []string{p.PriceAuthority, p.Operator} {
		if key != "" {
			return solana.MustPublicKeyFromBase58(key)
		}
	}
	return solana.MustPublicKeyFromBase58(p.Admin)
}
