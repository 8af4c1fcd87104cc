package accessflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/viant/accessflow/api/rest"
	"github.com/viant/accessflow/policy"
	"github.com/viant/accessflow/service/approval"
	"github.com/viant/accessflow/service/dao/sqldb"
	svcidentity "github.com/viant/accessflow/service/identity"
	qmem "github.com/viant/accessflow/service/messaging/memory"
)

// Store and audit log vendors.
const (
	VendorMemory = "memory"
	VendorSQL    = "sql"
	VendorFS     = "fs"
)

// Provisioning providers.
const (
	ProviderNoop     = "noop"
	ProviderBigQuery = "bigquery"
)

// Config is a serialisable representation of the service configuration. It
// can be populated from YAML, environment variables and flags (see
// LoadConfig); the zero value of every nested field inherits its default.
type Config struct {
	Log       LogConfig       `json:"log" yaml:"log" mapstructure:"log"`
	Server    ServerConfig    `json:"server" yaml:"server" mapstructure:"server"`
	Store     StoreConfig     `json:"store" yaml:"store" mapstructure:"store"`
	Audit     AuditConfig     `json:"audit" yaml:"audit" mapstructure:"audit"`
	Policy    policy.Config   `json:"policy" yaml:"policy" mapstructure:"policy"`
	PolicyURL string          `json:"policyURL,omitempty" yaml:"policyURL,omitempty" mapstructure:"policy_url"`
	Identity  IdentityConfig  `json:"identity" yaml:"identity" mapstructure:"identity"`
	Provision ProvisionConfig `json:"provision" yaml:"provision" mapstructure:"provision"`
	Events    EventsConfig    `json:"events" yaml:"events" mapstructure:"events"`
	Tracing   TracingConfig   `json:"tracing" yaml:"tracing" mapstructure:"tracing"`
	// Seed creates a demo request when the store is empty.
	Seed bool `json:"seed,omitempty" yaml:"seed,omitempty" mapstructure:"seed"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"` // json | text
}

type ServerConfig struct {
	Addr            string               `json:"addr" yaml:"addr" mapstructure:"addr"`
	ReadTimeout     time.Duration        `json:"readTimeout" yaml:"readTimeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration        `json:"writeTimeout" yaml:"writeTimeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration        `json:"shutdownTimeout" yaml:"shutdownTimeout" mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string             `json:"allowedOrigins,omitempty" yaml:"allowedOrigins,omitempty" mapstructure:"allowed_origins"`
	RateLimit       rest.RateLimitConfig `json:"rateLimit" yaml:"rateLimit" mapstructure:"rate_limit"`
}

type StoreConfig struct {
	Vendor string       `json:"vendor" yaml:"vendor" mapstructure:"vendor"` // memory | sql
	DB     sqldb.Config `json:"db" yaml:"db" mapstructure:"db"`
}

type AuditConfig struct {
	Vendor   string `json:"vendor" yaml:"vendor" mapstructure:"vendor"` // memory | sql | fs
	Capacity int    `json:"capacity,omitempty" yaml:"capacity,omitempty" mapstructure:"capacity"`
	Path     string `json:"path,omitempty" yaml:"path,omitempty" mapstructure:"path"`
}

type IdentityConfig struct {
	Users           []svcidentity.User           `json:"users,omitempty" yaml:"users,omitempty" mapstructure:"users"`
	DirectoryURL    string                       `json:"directoryURL,omitempty" yaml:"directoryURL,omitempty" mapstructure:"directory_url"`
	DisableHeader   bool                         `json:"disableHeader,omitempty" yaml:"disableHeader,omitempty" mapstructure:"disable_header"`
	TokenKeyURL     string                       `json:"tokenKeyURL,omitempty" yaml:"tokenKeyURL,omitempty" mapstructure:"token_key_url"`
	TokenSecretKey  string                       `json:"tokenSecretKey,omitempty" yaml:"tokenSecretKey,omitempty" mapstructure:"token_secret_key"`
	TokenCacheSize  int                          `json:"tokenCacheSize,omitempty" yaml:"tokenCacheSize,omitempty" mapstructure:"token_cache_size"`
	TokenCacheTTL   time.Duration                `json:"tokenCacheTTL,omitempty" yaml:"tokenCacheTTL,omitempty" mapstructure:"token_cache_ttl"`
	ServiceAccounts []svcidentity.ServiceAccount `json:"serviceAccounts,omitempty" yaml:"serviceAccounts,omitempty" mapstructure:"service_accounts"`
}

type ProvisionConfig struct {
	Provider string        `json:"provider" yaml:"provider" mapstructure:"provider"` // noop | bigquery
	Timeout  time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

type EventsConfig struct {
	Queue qmem.Config `json:"queue" yaml:"queue" mapstructure:"queue"`
	// Log runs a listener that logs every published event.
	Log bool `json:"log" yaml:"log" mapstructure:"log"`
}

type TracingConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	ServiceName string `json:"serviceName,omitempty" yaml:"serviceName,omitempty" mapstructure:"service_name"`
	OutputFile  string `json:"outputFile,omitempty" yaml:"outputFile,omitempty" mapstructure:"output_file"`
}

// DefaultConfig returns a Config populated with the defaults used when a
// setting is left unset: in-memory store and audit log, two-role quorum,
// the built-in user directory.
func DefaultConfig() *Config {
	p := policy.ToConfig(policy.Default())
	return &Config{
		Log: LogConfig{Level: "info", Format: "json"},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       rest.RateLimitConfig{RequestsPerMinute: 60, Burst: 20},
		},
		Store:     StoreConfig{Vendor: VendorMemory, DB: sqldb.Config{Driver: sqldb.DriverSQLite, DSN: "accessflow.db"}},
		Audit:     AuditConfig{Vendor: VendorMemory},
		Policy:    *p,
		Identity:  IdentityConfig{TokenCacheTTL: 5 * time.Minute},
		Provision: ProvisionConfig{Provider: ProviderBigQuery, Timeout: approval.DefaultProvisionTimeout},
		Events:    EventsConfig{Queue: qmem.DefaultConfig(), Log: true},
		Tracing:   TracingConfig{ServiceName: "accessflow"},
	}
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var errs []error
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of json, text", c.Log.Format))
	}
	switch c.Store.Vendor {
	case "", VendorMemory, VendorSQL:
	default:
		errs = append(errs, fmt.Errorf("store.vendor %q is not one of memory, sql", c.Store.Vendor))
	}
	switch c.Audit.Vendor {
	case "", VendorMemory, VendorSQL:
	case VendorFS:
		if c.Audit.Path == "" {
			errs = append(errs, fmt.Errorf("audit.path is required for the fs audit log"))
		}
	default:
		errs = append(errs, fmt.Errorf("audit.vendor %q is not one of memory, sql, fs", c.Audit.Vendor))
	}
	if c.usesSQL() {
		switch c.Store.DB.Driver {
		case sqldb.DriverSQLite, sqldb.DriverPostgres, sqldb.DriverPgx:
		default:
			errs = append(errs, fmt.Errorf("store.db.driver %q is not one of sqlite, postgres, pgx", c.Store.DB.Driver))
		}
	}
	if c.PolicyURL == "" {
		if err := policy.FromConfig(&c.Policy).Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	switch c.Provision.Provider {
	case "", ProviderNoop, ProviderBigQuery:
	default:
		errs = append(errs, fmt.Errorf("provision.provider %q is not one of noop, bigquery", c.Provision.Provider))
	}
	if c.Provision.Timeout < 0 {
		errs = append(errs, fmt.Errorf("provision.timeout must be >= 0"))
	}
	if c.Identity.DisableHeader && c.Identity.TokenKeyURL == "" && len(c.Identity.ServiceAccounts) == 0 {
		errs = append(errs, fmt.Errorf("identity: no resolver left with the header resolver disabled"))
	}
	return errors.Join(errs...)
}

func (c *Config) usesSQL() bool {
	return c.Store.Vendor == VendorSQL || c.Audit.Vendor == VendorSQL
}
