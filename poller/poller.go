// Package poller runs the recurring liveness sweep over every approved node
// address. The loop re-arms itself only after a cycle completes, so a slow
// cycle delays the next by its own overrun and two sweeps never overlap.
package poller

import (
	"context"
	"log"
	"sync"
	"time"

	"visionlink/ipaddr"
	"visionlink/nodeclient"
	"visionlink/store"
)

// AddressSource yields the approved-node address list. Satisfied by
// *nodestate.Manager.
type AddressSource interface {
	ApprovedAddresses(ctx context.Context) ([]string, error)
}

// Prober is the outbound peer surface. Satisfied by *nodeclient.Client.
type Prober interface {
	Available(ctx context.Context, ip string) error
	Cameras(ctx context.Context, ip string) (*nodeclient.CameraReport, error)
}

// Store is the persisted surface for demoting unreachable nodes. Demotion is
// keyed by the stored address, not the normalized probe target.
type Store interface {
	UpdateNodeConnection(ctx context.Context, addr, status string) error
	NodeFromAddr(ctx context.Context, addr string) (*store.NodeRecord, error)
	DisconnectAllDevices(ctx context.Context, nodeID int64) error
}

// Reconciler consumes a reachable node's device report.
type Reconciler interface {
	Reconcile(ctx context.Context, nodeID int64, cameras []string) error
}

// Emitter receives per-address sweep outcomes.
type Emitter interface {
	EmitNodeUnreachable(addr string, nodeID int64)
	EmitNodeReachable(addr string)
}

type Config struct {
	Interval time.Duration
	Attempts int
	Delay    time.Duration
}

type Poller struct {
	cfg        Config
	addrs      AddressSource
	prober     Prober
	store      Store
	reconciler Reconciler
	emitter    Emitter

	cancel   context.CancelFunc
	stopChan chan struct{}
	done     chan struct{}

	mu     sync.Mutex
	cycles int64
}

func New(cfg Config, addrs AddressSource, prober Prober, st Store, rec Reconciler, em Emitter) *Poller {
	return &Poller{
		cfg:        cfg,
		addrs:      addrs,
		prober:     prober,
		store:      st,
		reconciler: rec,
		emitter:    em,
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (p *Poller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.loop(ctx)
}

func (p *Poller) Stop() {
	close(p.stopChan)
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

// Cycles reports completed sweep count. Used by diagnostics.
func (p *Poller) Cycles() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cycles
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)
	timer := time.NewTimer(0) // first sweep immediately
	defer timer.Stop()
	for {
		select {
		case <-p.stopChan:
			return
		case <-timer.C:
			p.RunCycle(ctx)
			timer.Reset(p.cfg.Interval)
		}
	}
}

// RunCycle performs one sweep. Errors are logged, never propagated: a failed
// cycle must not stop the loop.
func (p *Poller) RunCycle(ctx context.Context) {
	addrs, err := p.addrs.ApprovedAddresses(ctx)
	if err != nil {
		log.Printf("poller: fetch approved nodes: %v", err)
		return
	}

	var wg sync.WaitGroup
	unreachable := make(chan string, len(addrs))
	for _, addr := range addrs {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			if lost := p.pollAddress(ctx, addr); lost {
				unreachable <- addr
			}
		}(addr)
	}
	wg.Wait()
	close(unreachable)

	var failed []string
	for addr := range unreachable {
		failed = append(failed, addr)
	}
	if len(failed) > 0 {
		log.Printf("poller: unreachable addresses: %v", failed)
	}

	p.mu.Lock()
	p.cycles++
	p.mu.Unlock()
}

// pollAddress probes one approved address and reports whether it ended the
// sweep unreachable. Malformed addresses are skipped silently.
func (p *Poller) pollAddress(ctx context.Context, addr string) bool {
	target, ok := ipaddr.PollTarget(addr)
	if !ok {
		log.Printf("poller: invalid address format: %s", addr)
		return false
	}

	if !p.probe(ctx, target) {
		p.demote(ctx, addr)
		return true
	}

	report, err := p.prober.Cameras(ctx, target)
	if err != nil {
		// Only the availability probe demotes a node; a failed inventory
		// probe is a no-op for this cycle.
		log.Printf("poller: device probe %s: %v", target, err)
		return false
	}
	p.emitter.EmitNodeReachable(addr)

	nodeID := int64(report.NodeID)
	if err := p.reconciler.Reconcile(ctx, nodeID, report.Cameras); err != nil {
		log.Printf("poller: reconcile node %d: %v", nodeID, err)
	}
	return false
}

// probe attempts the liveness check up to cfg.Attempts times with cfg.Delay
// between attempts. The first success wins.
func (p *Poller) probe(ctx context.Context, target string) bool {
	for attempt := 1; attempt <= p.cfg.Attempts; attempt++ {
		if err := p.prober.Available(ctx, target); err == nil {
			return true
		} else {
			log.Printf("poller: attempt %d/%d for %s: %v", attempt, p.cfg.Attempts, target, err)
		}
		if attempt < p.cfg.Attempts {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(p.cfg.Delay):
			}
		}
	}
	return false
}

// demote marks the node and all its devices Disconnected. The node is assumed
// fully offline; no partial device state is attempted.
func (p *Poller) demote(ctx context.Context, addr string) {
	if err := p.store.UpdateNodeConnection(ctx, addr, store.StatusDisconnected); err != nil {
		log.Printf("poller: disconnect node %s: %v", addr, err)
		return
	}
	node, err := p.store.NodeFromAddr(ctx, addr)
	if err != nil {
		log.Printf("poller: resolve node for %s: %v", addr, err)
		return
	}
	if err := p.store.DisconnectAllDevices(ctx, node.NodeID.Int64()); err != nil {
		log.Printf("poller: disconnect devices for node %d: %v", node.NodeID.Int64(), err)
		return
	}
	p.emitter.EmitNodeUnreachable(addr, node.NodeID.Int64())
}
