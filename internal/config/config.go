package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	str2duration "github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"

	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

const envPrefix = "PAPER_"

var ErrInvalidSettings = errors.New("invalid settings")

type Mode string

const (
	ModeSpot    Mode = "spot"
	ModeFutures Mode = "futures"
)

// Duration accepts Go durations as well as day and week units such as "1d" or "2w".
type Duration time.Duration

func ParseDuration(s string) (Duration, error) {
	d, err := str2duration.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return Duration(d), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// String writes whole days as "Nd" and everything else in Go notation, both of which
// ParseDuration reads back.
func (d Duration) String() string {
	const day = 24 * time.Hour
	std := time.Duration(d)
	if std != 0 && std%day == 0 {
		return fmt.Sprintf("%dd", std/day)
	}
	return std.String()
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseDuration(node.Value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

type Settings struct {
	Mode                Mode                   `yaml:"mode"`
	QuoteCurrency       string                 `yaml:"quote_currency"`
	MakerFee            fixed.Point            `yaml:"maker_fee"`
	TakerFee            fixed.Point            `yaml:"taker_fee"`
	Leverage            fixed.Point            `yaml:"leverage"`
	InitialAccount      map[string]fixed.Point `yaml:"initial_account"`
	StrictAccountLookup bool                   `yaml:"strict_account_lookup"`
	MinSizeIncrement    fixed.Point            `yaml:"min_size_increment"`
	UsePrice            string                 `yaml:"use_price"`
	PollInterval        Duration               `yaml:"poll_interval"`
	FundingInterval     Duration               `yaml:"funding_interval"`
	FundingRates        map[string]fixed.Point `yaml:"funding_rates"`
	LogLevel            string                 `yaml:"log_level"`
	Production          bool                   `yaml:"production"`
	FeedURL             string                 `yaml:"feed_url"`
	FeedSymbols         []string               `yaml:"feed_symbols"`
	ListenAddr          string                 `yaml:"listen_addr"`
	DuckDBPath          string                 `yaml:"duckdb_path"`
	BasePeriod          Duration               `yaml:"base_period"`
	CacheDir            string                 `yaml:"cache_dir"`
	Resolution          Duration               `yaml:"resolution"`
	Lookback            Duration               `yaml:"lookback"`
	Start               string                 `yaml:"start"`
	Stop                string                 `yaml:"stop"`
}

func Default() Settings {
	return Settings{
		Mode:             ModeSpot,
		QuoteCurrency:    "USD",
		MakerFee:         fixed.Zero,
		TakerFee:         fixed.Zero,
		Leverage:         fixed.One,
		InitialAccount:   map[string]fixed.Point{"USD": fixed.FromInt(10000, 0)},
		MinSizeIncrement: fixed.FromInt(1, 8),
		UsePrice:         "open",
		PollInterval:     Duration(10 * time.Second),
		FundingInterval:  Duration(8 * time.Hour),
		LogLevel:         "info",
		FeedURL:          "wss://ws-feed.exchange.coinbase.com",
		ListenAddr:       ":8080",
		BasePeriod:       Duration(time.Minute),
		CacheDir:         "price_caches",
		Resolution:       Duration(time.Hour),
		Lookback:         Duration(30 * 24 * time.Hour),
	}
}

// Load reads settings from the optional .env file, the optional YAML file and the PAPER_*
// environment, in that order of increasing precedence, and validates the result.
func Load(path, envFile string) (Settings, error) {
	settings := Default()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return settings, fmt.Errorf("unable to load %s: %w", envFile, err)
		}
	}

	if path != "" {
		raw, err := os.ReadFile(path) // #nosec G304
		if err != nil {
			return settings, fmt.Errorf("unable to read settings: %w", err)
		}
		defaults := settings.InitialAccount
		settings.InitialAccount = nil
		if err := yaml.Unmarshal(raw, &settings); err != nil {
			return settings, fmt.Errorf("unable to parse %s: %w", path, err)
		}
		if settings.InitialAccount == nil {
			settings.InitialAccount = defaults
		}
	}

	if err := settings.applyEnv(os.LookupEnv); err != nil {
		return settings, err
	}
	if err := settings.Validate(); err != nil {
		return settings, err
	}
	return settings, nil
}

func (s *Settings) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = v
		}
	}
	point := func(key string, dst *fixed.Point) error {
		if v, ok := lookup(envPrefix + key); ok {
			parsed, err := fixed.Parse(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, key, err)
			}
			*dst = parsed
		}
		return nil
	}
	duration := func(key string, dst *Duration) error {
		if v, ok := lookup(envPrefix + key); ok {
			parsed, err := ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, key, err)
			}
			*dst = parsed
		}
		return nil
	}

	var mode string
	str("MODE", &mode)
	if mode != "" {
		s.Mode = Mode(mode)
	}
	str("QUOTE_CURRENCY", &s.QuoteCurrency)
	str("USE_PRICE", &s.UsePrice)
	str("LOG_LEVEL", &s.LogLevel)
	str("FEED_URL", &s.FeedURL)
	str("LISTEN_ADDR", &s.ListenAddr)
	str("DUCKDB_PATH", &s.DuckDBPath)
	str("CACHE_DIR", &s.CacheDir)
	str("START", &s.Start)
	str("STOP", &s.Stop)

	if v, ok := lookup(envPrefix + "FEED_SYMBOLS"); ok {
		s.FeedSymbols = splitList(v)
	}
	if v, ok := lookup(envPrefix + "STRICT_ACCOUNT_LOOKUP"); ok {
		strict, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sSTRICT_ACCOUNT_LOOKUP: %w", envPrefix, err)
		}
		s.StrictAccountLookup = strict
	}

	for key, dst := range map[string]*fixed.Point{
		"MAKER_FEE":          &s.MakerFee,
		"TAKER_FEE":          &s.TakerFee,
		"LEVERAGE":           &s.Leverage,
		"MIN_SIZE_INCREMENT": &s.MinSizeIncrement,
	} {
		if err := point(key, dst); err != nil {
			return err
		}
	}
	for key, dst := range map[string]*Duration{
		"POLL_INTERVAL":    &s.PollInterval,
		"FUNDING_INTERVAL": &s.FundingInterval,
		"BASE_PERIOD":      &s.BasePeriod,
		"RESOLUTION":       &s.Resolution,
		"LOOKBACK":         &s.Lookback,
	} {
		if err := duration(key, dst); err != nil {
			return err
		}
	}
	return nil
}

func (s *Settings) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidSettings}, args...)...))
	}

	s.QuoteCurrency = strings.ToUpper(strings.TrimSpace(s.QuoteCurrency))
	s.UsePrice = strings.ToLower(s.UsePrice)
	for i, symbol := range s.FeedSymbols {
		s.FeedSymbols[i] = strings.ToUpper(symbol)
	}

	if s.Mode != ModeSpot && s.Mode != ModeFutures {
		fail("mode must be spot or futures, got %q", s.Mode)
	}
	if s.QuoteCurrency == "" {
		fail("quote_currency is required")
	}
	if s.MakerFee.IsNeg() || s.TakerFee.IsNeg() {
		fail("fees must not be negative")
	}
	if !s.Leverage.IsPos() {
		fail("leverage must be positive")
	}
	if !s.MinSizeIncrement.IsPos() {
		fail("min_size_increment must be positive")
	}
	if s.UsePrice != "open" && s.UsePrice != "close" {
		fail("use_price must be open or close, got %q", s.UsePrice)
	}
	if s.PollInterval <= 0 || s.Resolution <= 0 || s.BasePeriod <= 0 {
		fail("poll_interval, resolution and base_period must be positive")
	}
	for asset, amount := range s.InitialAccount {
		if amount.IsNeg() {
			fail("initial_account %s must not be negative", asset)
		}
	}
	if _, _, err := s.Window(time.Now()); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Window resolves the backtest range. A missing stop means now and a missing start means
// stop minus lookback.
func (s *Settings) Window(now time.Time) (time.Time, time.Time, error) {
	stop := now.UTC()
	if s.Stop != "" {
		parsed, err := parseTime(s.Stop)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: stop: %w", ErrInvalidSettings, err)
		}
		stop = parsed
	}

	start := stop.Add(-s.Lookback.Std())
	if s.Start != "" {
		parsed, err := parseTime(s.Start)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: start: %w", ErrInvalidSettings, err)
		}
		start = parsed
	}

	if !start.Before(stop) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start %s is not before stop %s",
			ErrInvalidSettings, start.Format(time.RFC3339), stop.Format(time.RFC3339))
	}
	return start, stop, nil
}

// Assets returns the initial account with upper-case asset names.
func (s *Settings) Assets() map[string]fixed.Point {
	assets := make(map[string]fixed.Point, len(s.InitialAccount))
	for asset, amount := range s.InitialAccount {
		assets[strings.ToUpper(asset)] = amount
	}
	return assets
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time %q", s)
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
