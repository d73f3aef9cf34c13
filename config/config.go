package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/reckon/internal/entity"
)

const (
	defaultEpsilon      = "1.0"
	defaultLookbackDays = 7
)

var (
	defaultSettlement = []string{"USDT", "USDC", "USD"}
	defaultFunding    = []entity.AccountType{
		entity.AccountTypeFunding,
		entity.AccountTypeEarn,
		entity.AccountTypeSavings,
	}
)

// Config drives a reconciliation run.
type Config struct {
	Platform string

	// SettlementCurrencies are counted 1:1 as settlement units.
	SettlementCurrencies []string
	// SharedPoolEpsilon is the max absolute difference between two
	// subtotals still read as one shared pool.
	SharedPoolEpsilon decimal.Decimal
	// SharedPoolPrefer names the subtotal that wins when pools are
	// shared (spot or derivatives).
	SharedPoolPrefer entity.AccountType
	// LookbackDays bounds the fill aggregation window.
	LookbackDays int
	// FundingCandidates are probed in order until one yields a balance.
	FundingCandidates []entity.AccountType

	// WatchInterval > 0 keeps the process running and reconciling
	// periodically; zero means one-shot.
	WatchInterval time.Duration

	WebAddr    string
	WebDomains []string
	JournalDir string

	HyperliquidURL string

	// RunSetup launches the interactive wizard instead of reconciling.
	RunSetup bool
}

// ConfigTmp is the YAML shape of the config file; the setup wizard
// writes it and fromYaml reads it.
type ConfigTmp struct {
	Platform             string   `yaml:"platform"`
	SettlementCurrencies []string `yaml:"settlement_currencies,omitempty"`
	SharedPoolEpsilon    string   `yaml:"shared_pool_epsilon,omitempty"`
	SharedPoolPrefer     string   `yaml:"shared_pool_prefer,omitempty"`
	LookbackDays         int      `yaml:"lookback_days,omitempty"`
	FundingCandidates    []string `yaml:"funding_candidates,omitempty"`
	WatchInterval        string   `yaml:"watch_interval,omitempty"`
	WebAddr              string   `yaml:"web_addr,omitempty"`
	WebDomains           []string `yaml:"web_domains,omitempty"`
	JournalDir           string   `yaml:"journal_dir,omitempty"`
	HyperliquidURL       string   `yaml:"hyperliquid_url,omitempty"`
}

// Get loads configuration from a YAML file when --config is provided,
// otherwise from CLI flags.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	setup := flag.Bool("setup", false, "run the interactive configuration wizard")
	platform := flag.String("platform", "bybit", "venue: bybit, binance or hyperliquid")
	epsilon := flag.String("epsilon", defaultEpsilon, "shared-pool detection threshold in settlement units")
	prefer := flag.String("prefer", "derivatives", "subtotal that wins for a shared pool: derivatives or spot")
	lookback := flag.Int("lookback", defaultLookbackDays, "fill aggregation window in days")
	watch := flag.Duration("watch", 0, "reconcile repeatedly with this interval (0 = one-shot)")
	webAddr := flag.String("web", "", "serve diagnosis reports on this address (requires --watch)")
	journalDir := flag.String("journal", "", "directory for the diagnosis WAL journal")
	flag.Parse()

	if *setup {
		return Config{RunSetup: true}, nil
	}

	if *configPath != "" {
		return fromYaml(*configPath)
	}

	conf := Config{
		Platform:             strings.ToLower(*platform),
		SettlementCurrencies: defaultSettlement,
		LookbackDays:         *lookback,
		FundingCandidates:    defaultFunding,
		WatchInterval:        *watch,
		WebAddr:              *webAddr,
		JournalDir:           *journalDir,
	}

	var err error
	conf.SharedPoolEpsilon, err = decimal.NewFromString(*epsilon)
	if err != nil {
		return Config{}, fmt.Errorf("invalid --epsilon provided, --epsilon=%s", *epsilon)
	}
	conf.SharedPoolPrefer, err = parsePrefer(*prefer)
	if err != nil {
		return Config{}, err
	}

	return validate(conf)
}

func fromYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, err
	}

	conf := Config{
		Platform:             strings.ToLower(tmp.Platform),
		SettlementCurrencies: tmp.SettlementCurrencies,
		LookbackDays:         tmp.LookbackDays,
		WebAddr:              tmp.WebAddr,
		WebDomains:           tmp.WebDomains,
		JournalDir:           tmp.JournalDir,
		HyperliquidURL:       tmp.HyperliquidURL,
	}

	if len(conf.SettlementCurrencies) == 0 {
		conf.SettlementCurrencies = defaultSettlement
	}
	if conf.LookbackDays == 0 {
		conf.LookbackDays = defaultLookbackDays
	}

	eps := tmp.SharedPoolEpsilon
	if eps == "" {
		eps = defaultEpsilon
	}
	conf.SharedPoolEpsilon, err = decimal.NewFromString(eps)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'shared_pool_epsilon' param in yaml config: %s, error: %w", eps, err)
	}

	conf.SharedPoolPrefer, err = parsePrefer(tmp.SharedPoolPrefer)
	if err != nil {
		return Config{}, err
	}

	if len(tmp.FundingCandidates) == 0 {
		conf.FundingCandidates = defaultFunding
	} else {
		for _, c := range tmp.FundingCandidates {
			conf.FundingCandidates = append(conf.FundingCandidates, entity.AccountType(strings.ToLower(c)))
		}
	}

	if tmp.WatchInterval != "" {
		conf.WatchInterval, err = time.ParseDuration(tmp.WatchInterval)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'watch_interval' param in yaml config: %s, error: %w", tmp.WatchInterval, err)
		}
	}

	return validate(conf)
}

func parsePrefer(s string) (entity.AccountType, error) {
	switch strings.ToLower(s) {
	case "", "derivatives":
		return entity.AccountTypeDerivatives, nil
	case "spot":
		return entity.AccountTypeSpot, nil
	default:
		return "", fmt.Errorf("invalid shared-pool preference %q: must be derivatives or spot", s)
	}
}

func validate(conf Config) (Config, error) {
	switch conf.Platform {
	case "bybit", "binance", "hyperliquid":
	default:
		return Config{}, fmt.Errorf("unsupported platform %q", conf.Platform)
	}

	if conf.LookbackDays < 0 {
		return Config{}, fmt.Errorf("lookback days must not be negative, got %d", conf.LookbackDays)
	}

	if conf.SharedPoolEpsilon.LessThanOrEqual(decimal.Zero) {
		return Config{}, fmt.Errorf("shared-pool epsilon must be positive, got %s", conf.SharedPoolEpsilon)
	}

	return conf, nil
}
