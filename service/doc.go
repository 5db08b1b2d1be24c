// Package service orchestrates the vision middleware's subsystems and
// serves its HTTP surface.
//
// # Lifecycle
//
// The Orchestrator brings subsystems up in dependency order (store,
// listener, producer, consumer, tap) and tears them down in reverse
// acceptance order (listener, tap, producer, consumer, store). Producer
// and tap are optional; when absent they stay NotStarted and never weigh
// into health.
//
// Start is all-or-nothing without rollback: the first failing subsystem
// marks itself and the service Failed, Start returns a *StartError, and
// the caller runs Stop to clean up whatever did start. Stop is
// best-effort; failures are collected as *StopError values and joined,
// never aborting the sequence.
//
// # Listener
//
// The Listener serves liveness (/healthz), readiness (/readyz),
// aggregated health (/health), subsystem states (/states), Prometheus
// metrics (/metrics), slot inspection (GET/DELETE
// /slots/{stream}/{frame}/{instance}) and the WebSocket event tap. TLS
// covers manual certificates and ACME issuance.
//
// The listener and the orchestrator reference each other, so wiring is
// two-phase:
//
//	listener, err := service.NewListener(cfg, store)
//	orch, err := service.NewOrchestrator(service.Subsystems{
//	    Store:    service.StoreSubsystem(store),
//	    Listener: listener,
//	    Consumer: service.Wrap("consumer", consumer.Start, consumer.Stop),
//	}, logger)
//	listener.BindLifecycle(orch)
//	err = orch.Start(ctx)
package service
