package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/code-payments/lottery-client/pkg/metrics"
	"github.com/code-payments/lottery-client/pkg/solana"
)

// Config is read from the Solana CLI configuration file, so the tool talks
// to the same cluster with the same payer as the solana command. The
// remaining settings are specific to this tool and usually come from the
// environment.
type Config struct {
	LogLevel string `mapstructure:"log_level"`

	AppName string `mapstructure:"app_name"`

	JSONRPCURL  string `mapstructure:"json_rpc_url"`
	KeypairPath string `mapstructure:"keypair_path"`
	Commitment  string `mapstructure:"commitment"`

	// Program is either a base58 address or the path of the program's
	// deploy keypair.
	Program            string `mapstructure:"program"`
	LotteryKeypairPath string `mapstructure:"lottery_keypair_path"`

	RPCRequestsPerSecond float64 `mapstructure:"rpc_requests_per_second"`

	NewRelicLicenseKey string `mapstructure:"new_relic_license_key"`
}

var defaultConfig = Config{
	LogLevel: "warn",

	AppName: "lottery-client",

	JSONRPCURL: string(solana.EnvironmentLocal),
	Commitment: "confirmed",

	Program:            filepath.Join("dist", "main-keypair.json"),
	LotteryKeypairPath: filepath.Join("dist", "lottery-keypair.json"),

	RPCRequestsPerSecond: 10,
}

var envBindings = map[string]string{
	"log_level":               "LOG_LEVEL",
	"app_name":                "APP_NAME",
	"json_rpc_url":            "SOLANA_RPC_URL",
	"keypair_path":            "PAYER_KEYPAIR_PATH",
	"commitment":              "LOTTERY_COMMITMENT",
	"program":                 "LOTTERY_PROGRAM_ID",
	"lottery_keypair_path":    "LOTTERY_KEYPAIR_PATH",
	"rpc_requests_per_second": "SOLANA_RPC_REQUESTS_PER_SECOND",
	"new_relic_license_key":   "NEW_RELIC_LICENSE_KEY",
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "solana", "cli", "config.yml")
}

// loadConfig reads the config file at configPath, if it exists, and applies
// environment overrides on top of it.
func loadConfig(configPath string) (*Config, error) {
	v := viper.New()
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	// viper only reports a missing file when it searches for one itself, so
	// an explicit path is checked here.
	if len(configPath) > 0 {
		configPath = expandPath(configPath)
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, errors.Wrapf(err, "failed to load config %s", configPath)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "failed to check if config exists")
		}
	}

	config := defaultConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	config.JSONRPCURL = string(solana.EnvironmentFromURL(config.JSONRPCURL))
	config.KeypairPath = expandPath(config.KeypairPath)
	config.LotteryKeypairPath = expandPath(config.LotteryKeypairPath)

	if _, err := solana.CommitmentFromString(config.Commitment); err != nil {
		return nil, err
	}

	return &config, nil
}

func newMetricsProvider(config *Config) (*newrelic.Application, error) {
	if len(config.NewRelicLicenseKey) == 0 {
		return nil, nil
	}

	return newrelic.NewApplication(
		newrelic.ConfigFromEnvironment(),
		newrelic.ConfigAppName(config.AppName),
		newrelic.ConfigLicense(config.NewRelicLicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
}

func configureLogger(config *Config, metricsProvider *newrelic.Application) {
	formatter := &logrus.TextFormatter{FullTimestamp: true}
	if metricsProvider != nil {
		logrus.SetFormatter(metrics.NewCustomNewRelicLogFormatter(metricsProvider, formatter))
	} else {
		logrus.SetFormatter(formatter)
	}

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", config.LogLevel).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(level)
	}

	// Command output goes to stdout
	logrus.SetOutput(os.Stderr)
}

func expandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
