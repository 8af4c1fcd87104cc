package accessflow

import (
	"log/slog"

	"github.com/viant/afs"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/viant/accessflow/policy"
	"github.com/viant/accessflow/service/approval"
	"github.com/viant/accessflow/service/auditlog"
	"github.com/viant/accessflow/service/dao/request"
	svcidentity "github.com/viant/accessflow/service/identity"
	"github.com/viant/accessflow/service/messaging"
	"github.com/viant/accessflow/service/provision"
	"github.com/viant/accessflow/tracing"
)

// Option customises Service.
type Option func(s *Service)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithStore replaces the configured request store.
func WithStore(store request.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithAuditLog replaces the configured audit log.
func WithAuditLog(log auditlog.Log) Option {
	return func(s *Service) { s.audit = log }
}

// WithPolicy replaces the configured authorization policy.
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithProvisioner replaces the configured provisioning hook.
func WithProvisioner(hook provision.Hook) Option {
	return func(s *Service) { s.provisioner = hook }
}

// WithResolver replaces the configured identity resolver chain.
func WithResolver(resolver svcidentity.Resolver) Option {
	return func(s *Service) { s.resolver = resolver }
}

// WithQueue sets the event queue.
func WithQueue(queue messaging.Queue[approval.Event]) Option {
	return func(s *Service) { s.queue = queue }
}

// WithFS sets the file system used for policy, directory and fs audit
// documents.
func WithFS(fs afs.Service) Option {
	return func(s *Service) { s.fs = fs }
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile is empty the
// stdout exporter is used; otherwise traces are written to the supplied file path. The first
// successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		if err := tracing.Init(serviceName, serviceVersion, outputFile); err != nil {
			s.initErrors = append(s.initErrors, err)
		}
		s.tracing = true
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom SpanExporter, for example
// OTLP, Jaeger or Zipkin. The first successful initialisation wins.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		if err := tracing.InitWithExporter(serviceName, serviceVersion, exporter); err != nil {
			s.initErrors = append(s.initErrors, err)
		}
		s.tracing = true
	}
}
