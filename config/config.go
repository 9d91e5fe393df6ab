// Package config holds the settings of a run and loads them from flags, the
// environment, an optional .env file and an optional config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sarchlab/hotrace/throughput"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix is the prefix of the environment variables read by Load.
const EnvPrefix = "HOTRACE"

// Mobility trace formats.
const (
	FormatNS2 = "ns2"
	FormatFCD = "fcd"
)

// Config is the full configuration of a run. Times are in seconds.
type Config struct {
	StopTime            float64 `mapstructure:"stop-time"`
	SnapshotInterval    float64 `mapstructure:"snapshot-interval"`
	ThroughputStart     float64 `mapstructure:"throughput-start"`
	ThroughputInterval  float64 `mapstructure:"throughput-interval"`
	ThroughputMode      string  `mapstructure:"throughput-mode"`
	PreHandoverSnapshot bool    `mapstructure:"pre-handover-snapshot"`

	EventsFile     string `mapstructure:"events"`
	MobilityTrace  string `mapstructure:"mobility"`
	MobilityFormat string `mapstructure:"mobility-format"`
	IMSIOffset     uint64 `mapstructure:"imsi-offset"`

	Output     string `mapstructure:"output"`
	FlowOutput string `mapstructure:"flow-output"`
	SQLite     string `mapstructure:"sqlite"`

	Monitor     bool `mapstructure:"monitor"`
	MonitorPort int  `mapstructure:"monitor-port"`
	OpenBrowser bool `mapstructure:"open-browser"`

	LogLevel string `mapstructure:"log-level"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		StopTime:           100,
		SnapshotInterval:   1,
		ThroughputStart:    1,
		ThroughputInterval: 0.5,
		ThroughputMode:     throughput.ModeCumulative.String(),
		MobilityFormat:     FormatNS2,
		IMSIOffset:         1,
		Output:             "handover_dataset.csv",
		FlowOutput:         "flow_statistics.csv",
		LogLevel:           zerolog.InfoLevel.String(),
	}
}

// RegisterFlags adds one flag per setting to fs, with the defaults as
// default values.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()

	fs.Float64("stop-time", d.StopTime, "simulated time at which the run stops")
	fs.Float64("snapshot-interval", d.SnapshotInterval,
		"interval between two measurement snapshots")
	fs.Float64("throughput-start", d.ThroughputStart,
		"time of the first throughput sample")
	fs.Float64("throughput-interval", d.ThroughputInterval,
		"interval between two throughput samples")
	fs.String("throughput-mode", d.ThroughputMode,
		"throughput computation, cumulative or interval")
	fs.Bool("pre-handover-snapshot", d.PreHandoverSnapshot,
		"report the radio values seen at handover start in the _Old columns")
	fs.String("events", d.EventsFile, "notification log to replay (JSON Lines)")
	fs.String("mobility", d.MobilityTrace, "mobility trace file")
	fs.String("mobility-format", d.MobilityFormat,
		"format of the mobility trace, ns2 or fcd")
	fs.Uint64("imsi-offset", d.IMSIOffset,
		"added to a trace node index to get the UE id")
	fs.String("output", d.Output, "primary dataset CSV file")
	fs.String("flow-output", d.FlowOutput, "flow statistics CSV file")
	fs.String("sqlite", d.SQLite, "also write the datasets into this SQLite file")
	fs.Bool("monitor", d.Monitor, "serve the monitoring page during the run")
	fs.Int("monitor-port", d.MonitorPort, "port of the monitoring server")
	fs.Bool("open-browser", d.OpenBrowser, "open the monitoring page")
	fs.String("log-level", d.LogLevel, "log level")
}

// Load builds a Config. The priority is flags, environment, .env file,
// config file, defaults. An empty configFile skips the config file; a
// missing .env file is ignored.
func Load(flags *pflag.FlagSet, configFile string, envFiles ...string) (Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return Config{}, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", configFile, err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}

	return c, nil
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		err := godotenv.Load(f)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("stop-time", d.StopTime)
	v.SetDefault("snapshot-interval", d.SnapshotInterval)
	v.SetDefault("throughput-start", d.ThroughputStart)
	v.SetDefault("throughput-interval", d.ThroughputInterval)
	v.SetDefault("throughput-mode", d.ThroughputMode)
	v.SetDefault("pre-handover-snapshot", d.PreHandoverSnapshot)
	v.SetDefault("events", d.EventsFile)
	v.SetDefault("mobility", d.MobilityTrace)
	v.SetDefault("mobility-format", d.MobilityFormat)
	v.SetDefault("imsi-offset", d.IMSIOffset)
	v.SetDefault("output", d.Output)
	v.SetDefault("flow-output", d.FlowOutput)
	v.SetDefault("sqlite", d.SQLite)
	v.SetDefault("monitor", d.Monitor)
	v.SetDefault("monitor-port", d.MonitorPort)
	v.SetDefault("open-browser", d.OpenBrowser)
	v.SetDefault("log-level", d.LogLevel)
}

// Validate reports every problem of the configuration. All returned errors
// wrap ErrInvalid.
func (c Config) Validate() error {
	var errs []error

	invalid := func(format string, args ...any) {
		errs = append(errs,
			fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.StopTime <= 0 {
		invalid("stop time must be positive, got %g", c.StopTime)
	}

	if c.SnapshotInterval <= 0 {
		invalid("snapshot interval must be positive, got %g", c.SnapshotInterval)
	}

	if c.ThroughputInterval <= 0 {
		invalid("throughput interval must be positive, got %g",
			c.ThroughputInterval)
	}

	if c.ThroughputStart < 0 {
		invalid("throughput start must not be negative, got %g",
			c.ThroughputStart)
	}

	if _, err := throughput.ParseMode(c.ThroughputMode); err != nil {
		invalid("%v", err)
	}

	if c.MobilityFormat != FormatNS2 && c.MobilityFormat != FormatFCD {
		invalid("unknown mobility format %q", c.MobilityFormat)
	}

	if c.Output == "" {
		invalid("output file must be set")
	}

	if !c.Monitor && c.MonitorPort != 0 {
		invalid("monitor port cannot be set when monitoring is disabled")
	}

	if c.MonitorPort < 0 || c.MonitorPort > 65535 {
		invalid("monitor port %d out of range", c.MonitorPort)
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		invalid("%v", err)
	}

	return errors.Join(errs...)
}

// Mode returns the throughput mode. It must only be called on a valid
// Config.
func (c Config) Mode() throughput.Mode {
	m, _ := throughput.ParseMode(c.ThroughputMode)
	return m
}
