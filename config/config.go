package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ardanlabs/conf"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultConfigPath = "config/config.toml"
	ConfigFileName    = "config.toml"
	ServiceName       = "tbdex"
	ConfigExtension   = ".toml"

	DefaultIONEndpoint = "https://ion.tbddev.org"

	// ConfigPathEnv names the environment variable that overrides DefaultConfigPath.
	ConfigPathEnv = "TBDEX_CONFIG_PATH"
)

// DefaultResolutionMethods are the DID methods resolvable without extra configuration.
var DefaultResolutionMethods = []string{"jwk", "web", "ion", "key"}

type TBDexConfig struct {
	conf.Version
	Log       LogConfig       `toml:"log"`
	Resolver  ResolverConfig  `toml:"resolver"`
	Keys      KeysConfig      `toml:"keys"`
	Exchanges ExchangesConfig `toml:"exchanges"`
	Tracing   TracingConfig   `toml:"tracing"`
}

// LogConfig represents configurable properties for logging
type LogConfig struct {
	Level    string `toml:"level" conf:"default:info"`
	Location string `toml:"location"`
	// Format is either text or json
	Format string `toml:"format" conf:"default:text"`
}

// ResolverConfig represents configurable properties for DID resolution
type ResolverConfig struct {
	Methods     []string      `toml:"methods" conf:"default:jwk;web;ion;key"`
	IONEndpoint string        `toml:"ion_endpoint" conf:"default:https://ion.tbddev.org"`
	HTTPTimeout time.Duration `toml:"http_timeout" conf:"default:10s"`
	UserAgent   string        `toml:"user_agent" conf:"default:tbdex-go"`
}

func (r *ResolverConfig) IsEmpty() bool {
	if r == nil {
		return true
	}
	return reflect.DeepEqual(r, &ResolverConfig{})
}

// KeysConfig represents configurable properties for the local key manager
type KeysConfig struct {
	Algorithm string `toml:"algorithm" conf:"default:EdDSA"`
	// Password enables encryption of keys at rest. It is stretched with argon2 before use.
	Password string `toml:"password" conf:"noprint"`
}

// ExchangesConfig represents configurable properties for the exchange store
type ExchangesConfig struct {
	// Storage is one of memory, bolt or redis
	Storage       string `toml:"storage" conf:"default:memory"`
	Path          string `toml:"path"`
	RedisAddress  string `toml:"redis_address"`
	RedisPassword string `toml:"redis_password" conf:"noprint"`
}

// TracingConfig represents configurable properties for exporting resolution traces
type TracingConfig struct {
	// JaegerEndpoint is the collector endpoint; tracing is disabled when empty
	JaegerEndpoint string `toml:"jaeger_endpoint"`
}

// LoadConfig attempts to load a TOML config file from the given path, and coerce it into our object model.
// Before loading, defaults are applied on certain properties, which are overwritten if specified in the TOML file.
// Environment variables prefixed with TBDEX_ and any args given are applied before the file is read.
func LoadConfig(path string, args ...string) (*TBDexConfig, error) {
	// no path, load default config
	defaultConfig := false
	if path == "" {
		logrus.Info("no config path provided, loading default config...")
		defaultConfig = true
	} else if filepath.Ext(path) != ConfigExtension {
		return nil, fmt.Errorf("path<%s> did not match the expected TOML format", path)
	}

	loadDotEnv()

	// create the config object
	var config TBDexConfig

	// parse and apply defaults
	if err := conf.Parse(args, ServiceName, &config); err != nil {
		switch {
		case errors.Is(err, conf.ErrHelpWanted):
			usage, err := conf.Usage(ServiceName, &config)
			if err != nil {
				return nil, errors.Wrap(err, "parsing config")
			}
			fmt.Println(usage)

			return nil, nil

		case errors.Is(err, conf.ErrVersionWanted):
			version, err := conf.VersionString(ServiceName, &config)
			if err != nil {
				return nil, errors.Wrap(err, "generating config version")
			}

			fmt.Println(version)
			return nil, nil
		}

		return nil, errors.Wrap(err, "parsing config")
	}

	if !defaultConfig {
		// load from TOML file
		if _, err := toml.DecodeFile(path, &config); err != nil {
			return nil, errors.Wrapf(err, "could not load config: %s", path)
		}
	}

	// apply defaults if not included in toml file
	if len(config.Resolver.Methods) == 0 {
		config.Resolver.Methods = DefaultResolutionMethods
	}
	if config.Resolver.IONEndpoint == "" {
		config.Resolver.IONEndpoint = DefaultIONEndpoint
	}

	return &config, nil
}

// loadDotEnv loads .env and .env.local when present. Variables already set in the environment win.
func loadDotEnv() {
	for _, file := range []string{".env", ".env.local"} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			logrus.WithError(err).Warnf("failed to load %s file", file)
		}
	}
}
