package accessflow

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. ACCESSFLOW_SERVER_ADDR.
	EnvPrefix = "ACCESSFLOW"
	// EnvFile names the variable that may carry a KEY=VALUE payload to load
	// into the process environment.
	EnvFile = "ENV_FILE"
)

// FlagKeys maps command line flag names to configuration keys.
var FlagKeys = map[string]string{
	"addr":       "server.addr",
	"log-level":  "log.level",
	"log-format": "log.format",
	"store":      "store.vendor",
	"db-driver":  "store.db.driver",
	"db-dsn":     "store.db.dsn",
	"audit":      "audit.vendor",
	"audit-path": "audit.path",
	"mode":       "policy.mode",
	"policy":     "policy_url",
	"users":      "identity.directory_url",
	"seed":       "seed",
	"tracing":    "tracing.enabled",
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// at path, ACCESSFLOW_* environment variables and changed flags, in
// increasing precedence.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	if err := LoadEnvFile(os.Getenv(EnvFile)); err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v, reflect.TypeOf(Config{}), ""); err != nil {
		return nil, err
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	if flags != nil {
		for name, key := range FlagKeys {
			flag := flags.Lookup(name)
			if flag == nil || !flag.Changed {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE lines of payload into the process
// environment; variables that are already set win.
func LoadEnvFile(payload string) error {
	if strings.TrimSpace(payload) == "" {
		return nil
	}
	v := viper.New()
	v.SetConfigType("env")
	if err := v.ReadConfig(strings.NewReader(payload)); err != nil {
		return fmt.Errorf("failed to parse %s: %w", EnvFile, err)
	}
	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if _, ok := os.LookupEnv(name); ok {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return err
		}
	}
	return nil
}

// bindEnv registers every scalar configuration key so that AutomaticEnv
// overrides reach Unmarshal.
func bindEnv(v *viper.Viper, t reflect.Type, prefix string) error {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := strings.Split(field.Tag.Get("mapstructure"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		fieldType := field.Type
		switch {
		case fieldType.Kind() == reflect.Struct:
			if err := bindEnv(v, fieldType, key); err != nil {
				return err
			}
		case fieldType.Kind() == reflect.Slice && fieldType.Elem().Kind() == reflect.Struct:
			// lists of records come from the config file only
		default:
			if err := v.BindEnv(key); err != nil {
				return err
			}
		}
	}
	return nil
}
