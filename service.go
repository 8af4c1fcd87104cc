package accessflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/viant/afs"

	"github.com/viant/accessflow/api/rest"
	"github.com/viant/accessflow/model/access"
	"github.com/viant/accessflow/model/identity"
	"github.com/viant/accessflow/policy"
	"github.com/viant/accessflow/service/approval"
	"github.com/viant/accessflow/service/auditlog"
	auditfs "github.com/viant/accessflow/service/auditlog/fs"
	auditmem "github.com/viant/accessflow/service/auditlog/memory"
	auditsql "github.com/viant/accessflow/service/auditlog/sql"
	"github.com/viant/accessflow/service/dao/request"
	reqmem "github.com/viant/accessflow/service/dao/request/memory"
	reqsql "github.com/viant/accessflow/service/dao/request/sql"
	"github.com/viant/accessflow/service/dao/sqldb"
	svcidentity "github.com/viant/accessflow/service/identity"
	"github.com/viant/accessflow/service/messaging"
	qmem "github.com/viant/accessflow/service/messaging/memory"
	"github.com/viant/accessflow/service/provision"
	"github.com/viant/accessflow/tracing"
)

// Version is reported as the tracing service version.
const Version = "0.1.0"

// Seed request values.
const (
	SeedResource  = "//bigquery.googleapis.com/projects/demo/datasets/retail/tables/sales_daily_gold"
	SeedRequester = "viewer@company.com"
	SeedOwner     = "data.owner@company.com"
	SeedSteward   = "steward@company.com"
)

// Service wires the access request components described by Config.
type Service struct {
	config      *Config
	logger      *slog.Logger
	fs          afs.Service
	db          *sqlx.DB
	store       request.Store
	audit       auditlog.Log
	policy      *policy.Policy
	provisioner provision.Hook
	directory   *svcidentity.Directory
	token       *svcidentity.Token
	resolver    svcidentity.Resolver
	queue       messaging.Queue[approval.Event]
	approval    *approval.Engine
	handler     http.Handler
	tracing     bool
	initErrors  []error
}

// New builds a service from cfg; a nil cfg means DefaultConfig. Options
// replace the components the configuration would otherwise build.
func New(ctx context.Context, cfg *Config, options ...Option) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	ret := &Service{config: cfg}
	for _, option := range options {
		option(ret)
	}
	if len(ret.initErrors) > 0 {
		return nil, errors.Join(ret.initErrors...)
	}
	if err := ret.init(ctx); err != nil {
		_ = ret.Close()
		return nil, err
	}
	return ret, nil
}

func (s *Service) init(ctx context.Context) (err error) {
	cfg := s.config
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.fs == nil {
		s.fs = afs.New()
	}
	if cfg.Tracing.Enabled && !s.tracing {
		if err = tracing.Init(cfg.Tracing.ServiceName, Version, cfg.Tracing.OutputFile); err != nil {
			return err
		}
		s.tracing = true
	}
	if err = s.ensureStorage(ctx); err != nil {
		return err
	}
	if s.policy == nil {
		if s.policy, err = s.loadPolicy(ctx); err != nil {
			return err
		}
	}
	if s.resolver == nil {
		if s.resolver, err = s.buildResolver(ctx); err != nil {
			return err
		}
	}
	if s.provisioner == nil {
		s.provisioner = provision.BigQuery{}
		if cfg.Provision.Provider == ProviderNoop {
			s.provisioner = provision.Noop{}
		}
	}
	if s.queue == nil {
		s.queue = qmem.NewQueue[approval.Event](cfg.Events.Queue)
	}
	s.approval, err = approval.New(s.store, s.audit, s.policy,
		approval.WithProvisioner(s.provisioner),
		approval.WithProvisionTimeout(cfg.Provision.Timeout),
		approval.WithQueue(s.queue),
		approval.WithLogger(s.logger),
	)
	if err != nil {
		return err
	}
	limiter, err := rest.NewRateLimiter(cfg.Server.RateLimit)
	if err != nil {
		return err
	}
	s.handler = rest.NewRouter(rest.NewHandler(s.approval, s.logger), &rest.RouterOptions{
		Resolver:       s.resolver,
		RateLimiter:    limiter,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Tracing:        s.tracing,
		Logger:         s.logger,
	})
	if cfg.Seed {
		return s.seed(ctx)
	}
	return nil
}

func (s *Service) ensureStorage(ctx context.Context) (err error) {
	cfg := s.config
	needsDB := (s.store == nil && cfg.Store.Vendor == VendorSQL) || (s.audit == nil && cfg.Audit.Vendor == VendorSQL)
	if needsDB {
		if s.db, err = sqldb.Open(ctx, &cfg.Store.DB); err != nil {
			return err
		}
		if err = sqldb.Migrate(ctx, s.db); err != nil {
			return err
		}
	}
	if s.store == nil {
		switch cfg.Store.Vendor {
		case VendorSQL:
			s.store = reqsql.New(s.db)
		default:
			s.store = reqmem.New()
		}
	}
	if s.audit == nil {
		switch cfg.Audit.Vendor {
		case VendorSQL:
			s.audit = auditsql.New(s.db)
		case VendorFS:
			if s.audit, err = auditfs.New(ctx, cfg.Audit.Path, auditfs.WithLogger(s.logger), auditfs.WithFS(s.fs)); err != nil {
				return err
			}
		default:
			s.audit = auditmem.New(cfg.Audit.Capacity)
		}
	}
	return nil
}

func (s *Service) loadPolicy(ctx context.Context) (*policy.Policy, error) {
	if s.config.PolicyURL != "" {
		return policy.Load(ctx, s.fs, s.config.PolicyURL)
	}
	return policy.FromConfig(&s.config.Policy), nil
}

// buildResolver chains bearer tokens, API keys and the X-User-Email
// directory, in that order.
func (s *Service) buildResolver(ctx context.Context) (svcidentity.Resolver, error) {
	cfg := s.config.Identity
	var err error
	switch {
	case cfg.DirectoryURL != "":
		s.directory, err = svcidentity.LoadDirectory(ctx, s.fs, cfg.DirectoryURL)
	case len(cfg.Users) > 0:
		s.directory, err = svcidentity.NewDirectory(cfg.Users)
	default:
		s.directory, err = svcidentity.NewDirectory(svcidentity.DefaultUsers())
	}
	if err != nil {
		return nil, err
	}
	var chain svcidentity.Chain
	if cfg.TokenKeyURL != "" {
		key, err := svcidentity.LoadKey(ctx, cfg.TokenKeyURL, cfg.TokenSecretKey)
		if err != nil {
			return nil, err
		}
		tokenOptions := []svcidentity.TokenOption{svcidentity.WithTokenDirectory(s.directory)}
		if cfg.TokenCacheSize > 0 {
			tokenOptions = append(tokenOptions, svcidentity.WithTokenCache(cfg.TokenCacheSize, cfg.TokenCacheTTL))
		}
		if s.token, err = svcidentity.NewToken(key, tokenOptions...); err != nil {
			return nil, err
		}
		chain = append(chain, s.token)
	}
	if len(cfg.ServiceAccounts) > 0 {
		apiKey, err := svcidentity.NewAPIKey(cfg.ServiceAccounts)
		if err != nil {
			return nil, err
		}
		chain = append(chain, apiKey)
	}
	if !cfg.DisableHeader {
		chain = append(chain, s.directory)
	}
	return chain, nil
}

// seed creates the demo request when the store holds no pending request.
func (s *Service) seed(ctx context.Context) error {
	existing, err := s.store.List(ctx, &request.Filter{Limit: 1})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	requester := &identity.Identity{Email: SeedRequester, Role: identity.RoleViewer}
	created, err := s.approval.Create(ctx, requester, &approval.CreateInput{
		LinkedResource: SeedResource,
		AccessLevel:    string(access.AccessReader),
		Reason:         "Weekly revenue reporting",
		DataOwner:      SeedOwner,
		DataSteward:    SeedSteward,
	})
	if err != nil {
		return fmt.Errorf("failed to seed demo request: %w", err)
	}
	s.logger.Info("seeded demo request", "id", created.ID)
	return nil
}

// Listen logs published events until ctx is done.
func (s *Service) Listen(ctx context.Context) error {
	return messaging.Listen[approval.Event](ctx, s.queue, func(ctx context.Context, event *approval.Event) error {
		s.logger.Info("event", "topic", event.Topic, "request_id", event.RequestID)
		return nil
	}, s.logger)
}

// Approval returns the approval engine.
func (s *Service) Approval() *approval.Engine { return s.approval }

// Handler returns the HTTP handler serving the REST API.
func (s *Service) Handler() http.Handler { return s.handler }

// Directory returns the user directory backing the resolvers.
func (s *Service) Directory() *svcidentity.Directory { return s.directory }

// Token returns the bearer token resolver or nil when no signing key is
// configured.
func (s *Service) Token() *svcidentity.Token { return s.token }

// Config returns the effective configuration.
func (s *Service) Config() *Config { return s.config }

// Close releases the database and flushes traces.
func (s *Service) Close() error {
	var errs []error
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	if s.tracing {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, tracing.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
