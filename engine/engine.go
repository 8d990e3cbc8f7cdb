// Package engine composes the fleet services: the typed routine store, the
// approved-set cache, the registrar, device reconciliation, the deployment
// orchestrator and the liveness poller, fanned together over a typed event
// bus that feeds the audit sink and the event outbox.
package engine

import (
	"context"
	"log"
	"time"

	"visionlink/audit"
	"visionlink/config"
	"visionlink/deploy"
	"visionlink/events"
	"visionlink/fleet"
	"visionlink/nodeclient"
	"visionlink/nodestate"
	"visionlink/poller"
	"visionlink/rpc"
	"visionlink/store"
)

type LogFunc func(format string, args ...any)

type Config struct {
	AppConfig  *config.Config
	Gateway    *rpc.Gateway
	Store      *store.Store
	NodeState  *nodestate.Manager
	Audit      *audit.Sink
	Outbox     *events.Outbox
	NodeClient *nodeclient.Client
	LogFunc    LogFunc
}

type Engine struct {
	cfg        *config.Config
	gateway    *rpc.Gateway
	store      *store.Store
	nodeState  *nodestate.Manager
	audit      *audit.Sink
	outbox     *events.Outbox
	nodeClient *nodeclient.Client

	registrar    *fleet.Registrar
	reconciler   *fleet.Reconciler
	orchestrator *deploy.Orchestrator
	poller       *poller.Poller

	Events *EventBus
	logFn  LogFunc
}

func New(c Config) *Engine {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	return &Engine{
		cfg:        c.AppConfig,
		gateway:    c.Gateway,
		store:      c.Store,
		nodeState:  c.NodeState,
		audit:      c.Audit,
		outbox:     c.Outbox,
		nodeClient: c.NodeClient,
		Events:     NewEventBus(),
		logFn:      logFn,
	}
}

func (e *Engine) Start() {
	re := &registrarEmitter{bus: e.Events}
	ce := &reconcilerEmitter{bus: e.Events}
	pe := &pollerEmitter{bus: e.Events}
	de := &deployEmitter{bus: e.Events}

	e.registrar = fleet.NewRegistrar(e.store, re)
	e.reconciler = fleet.NewReconciler(e.store, ce)
	e.orchestrator = deploy.New(e.store, e.nodeClient, de)
	e.poller = poller.New(
		poller.Config{
			Interval: e.cfg.Node.PollInterval.Std(),
			Attempts: e.cfg.Node.ProbeAttempts,
			Delay:    e.cfg.Node.ProbeDelay.Std(),
		},
		e.nodeState,
		e.nodeClient,
		e.store,
		e.reconciler,
		pe,
	)

	e.wireEventHandlers()
	e.poller.Start()

	e.logFn("engine: started")
}

func (e *Engine) Stop() {
	if e.poller != nil {
		e.poller.Stop()
	}
	e.logFn("engine: stopped")
}

// Accessors
func (e *Engine) AppConfig() *config.Config          { return e.cfg }
func (e *Engine) Store() *store.Store                { return e.store }
func (e *Engine) NodeState() *nodestate.Manager      { return e.nodeState }
func (e *Engine) Registrar() *fleet.Registrar        { return e.registrar }
func (e *Engine) Reconciler() *fleet.Reconciler      { return e.reconciler }
func (e *Engine) Orchestrator() *deploy.Orchestrator { return e.orchestrator }
func (e *Engine) Poller() *poller.Poller             { return e.poller }

// Health summarizes dependency status for the diagnostics endpoint.
func (e *Engine) Health(ctx context.Context) map[string]any {
	dbCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	dbOK := e.gateway.Ping(dbCtx) == nil

	pending := 0
	if e.outbox != nil {
		if n, err := e.outbox.PendingCount(); err == nil {
			pending = n
		}
	}

	return map[string]any{
		"status":         "ok",
		"database":       dbOK,
		"cache":          e.nodeState.CacheHealthy(ctx),
		"poller_cycles":  e.poller.Cycles(),
		"events_pending": pending,
	}
}
