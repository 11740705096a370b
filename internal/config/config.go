package config

import (
	"errors"
	"fmt"
	"latencysim/internal/latency"
	"latencysim/internal/tape"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Latency   LatencyConfig
	Columns   tape.ColumnRule
	Input     InputConfig
	Recorder  RecorderConfig
	Database  DatabaseConfig
	Exchanges map[string]ExchangeConfig
	Log       LogConfig
}

// LatencyConfig defines the latency values to sweep, in microseconds.
// SweepMicros wins over the start/stop/step range when set.
type LatencyConfig struct {
	SweepMicros []int64 `mapstructure:"sweep_micros"`
	StartMicros int64   `mapstructure:"start_micros"`
	StopMicros  int64   `mapstructure:"stop_micros"`
	StepMicros  int64   `mapstructure:"step_micros"`
	Workers     int     `mapstructure:"workers"`
}

// InputConfig selects where hits and the tape are read from.
type InputConfig struct {
	Source  string `mapstructure:"source"` // csv | postgres
	HitsCSV string `mapstructure:"hits_csv"`
	TapeCSV string `mapstructure:"tape_csv"`
	// FromMicros/ToMicros bound the epochs loaded from postgres; 0 means unbounded.
	FromMicros int64 `mapstructure:"from_micros"`
	ToMicros   int64 `mapstructure:"to_micros"`
}

// RecorderConfig defines the live tape recording settings.
type RecorderConfig struct {
	TradingPair string        `mapstructure:"trading_pair"`
	Exchanges   []string      `mapstructure:"exchanges"`
	Duration    time.Duration `mapstructure:"duration"`
	MaxTradeQty float64       `mapstructure:"max_trade_qty"`
}

// DatabaseConfig defines the database connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string `mapstructure:"sslmode"`
}

// ExchangeConfig defines settings for a specific exchange.
type ExchangeConfig struct {
	Symbol string `mapstructure:"symbol"`
	WSURL  string `mapstructure:"ws_url"`
}

// LogConfig controls log level and format.
type LogConfig struct {
	Level  string // debug | info | warn | error
	Format string // json | text
}

// Enabled reports whether a database host is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// DSN returns the postgres connection string.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.DBName,
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
	}
	return u.String()
}

// Latencies returns the configured sweep values.
func (l LatencyConfig) Latencies() ([]int64, error) {
	if len(l.SweepMicros) > 0 {
		for _, v := range l.SweepMicros {
			if v < 0 {
				return nil, fmt.Errorf("%w: %d", latency.ErrNegativeLatency, v)
			}
		}
		return l.SweepMicros, nil
	}
	return latency.Range(l.StartMicros, l.StopMicros, l.StepMicros)
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults and environment apply.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("LATENCYSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("latency.start_micros", 0)
	v.SetDefault("latency.stop_micros", 1000)
	v.SetDefault("latency.step_micros", 100)
	v.SetDefault("latency.workers", 4)

	v.SetDefault("columns.bid_marker", tape.DefaultBidMarker)
	v.SetDefault("columns.ask_marker", tape.DefaultAskMarker)
	v.SetDefault("columns.volume_marker", tape.DefaultVolumeMarker)

	v.SetDefault("input.source", "csv")
	v.SetDefault("input.hits_csv", "data/arbitrage_hits.csv")
	v.SetDefault("input.tape_csv", "data/consolidated_tape.csv")

	v.SetDefault("recorder.trading_pair", "BTC/EUR")
	v.SetDefault("recorder.exchanges", []string{"binance", "kraken"})
	v.SetDefault("recorder.duration", "5m")

	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
