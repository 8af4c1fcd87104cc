// Command accessflow serves the access request approval API.
//
//	accessflow [--config accessflow.yaml] [--addr :8080] [--store sql] ...
//	accessflow token --email viewer@company.com [--ttl 1h]
//	accessflow hash-key <api-key>
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/viant/accessflow"
	svcidentity "github.com/viant/accessflow/service/identity"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "token":
			return issueToken(args[1:])
		case "hash-key":
			return hashKey(args[1:])
		}
	}
	return serve(args)
}

func newFlagSet(name string) (*pflag.FlagSet, *string) {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", os.Getenv("ACCESSFLOW_CONFIG"), "path to a YAML configuration file")
	flags.String("addr", ":8080", "listen address")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "json", "log format: json, text")
	flags.String("store", accessflow.VendorMemory, "request store: memory, sql")
	flags.String("db-driver", "sqlite", "sql driver: sqlite, postgres, pgx")
	flags.String("db-dsn", "accessflow.db", "sql data source name")
	flags.String("audit", accessflow.VendorMemory, "audit log: memory, sql, fs")
	flags.String("audit-path", "", "fs audit log location")
	flags.String("mode", "quorum", "approval mode: single, quorum")
	flags.String("policy", "", "policy document URL")
	flags.String("users", "", "user directory document URL")
	flags.Bool("seed", false, "create a demo request when the store is empty")
	flags.Bool("tracing", false, "export OpenTelemetry spans")
	return flags, configPath
}

func serve(args []string) error {
	flags, configPath := newFlagSet("accessflow")
	if err := flags.Parse(args); err != nil {
		return err
	}
	cfg, err := accessflow.LoadConfig(*configPath, flags)
	if err != nil {
		return err
	}
	logger := accessflow.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := accessflow.New(ctx, cfg, accessflow.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Warn("failed to close service", "error", err)
		}
	}()

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("listening", "addr", cfg.Server.Addr, "store", cfg.Store.Vendor, "audit", cfg.Audit.Vendor, "mode", srv.Approval().Policy().Mode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.Events.Log {
		group.Go(func() error { return srv.Listen(groupCtx) })
	}
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

// issueToken prints a bearer token for a directory user; the signing key
// comes from identity.token_key_url.
func issueToken(args []string) error {
	flags, configPath := newFlagSet("token")
	email := flags.String("email", "", "directory user to issue the token for")
	ttl := flags.Duration("ttl", time.Hour, "token lifetime")
	if err := flags.Parse(args); err != nil {
		return err
	}
	cfg, err := accessflow.LoadConfig(*configPath, flags)
	if err != nil {
		return err
	}
	if cfg.Identity.TokenKeyURL == "" {
		return fmt.Errorf("identity.token_key_url is not configured")
	}
	cfg.Seed = false
	cfg.Tracing.Enabled = false
	cfg.Store.Vendor = accessflow.VendorMemory
	cfg.Audit.Vendor = accessflow.VendorMemory
	srv, err := accessflow.New(context.Background(), cfg, accessflow.WithLogger(accessflow.NewLogger(cfg.Log, os.Stderr)))
	if err != nil {
		return err
	}
	defer srv.Close()
	id, ok := srv.Directory().Lookup(*email)
	if !ok {
		return fmt.Errorf("user %q is not in the directory", *email)
	}
	token, err := srv.Token().Issue(id, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// hashKey prints the bcrypt hash to configure for a service account key.
func hashKey(args []string) error {
	flags := pflag.NewFlagSet("hash-key", pflag.ContinueOnError)
	cost := flags.Int("cost", 0, "bcrypt cost")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("usage: accessflow hash-key <api-key>")
	}
	hash, err := svcidentity.HashKey(flags.Arg(0), *cost)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
