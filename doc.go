// Package accessflow wires an access request approval service: requesters
// ask for access to a data resource, designated approvers approve or reject,
// and approved requests are handed to a provisioning hook. Every change is
// recorded in an append-only audit log.
//
// The root package turns a Config into a running Service:
//
//	cfg, _ := accessflow.LoadConfig("accessflow.yaml", nil)
//	srv, _ := accessflow.New(ctx, cfg)
//	defer srv.Close()
//	http.ListenAndServe(cfg.Server.Addr, srv.Handler())
//
// Components can be replaced with options such as WithStore, WithAuditLog
// or WithResolver. See the service/approval package for the lifecycle.
package accessflow
