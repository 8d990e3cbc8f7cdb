package events

import (
	"context"
	"log"
	"time"
)

const drainBatch = 50

// Drainer moves staged events from the outbox to the publisher. Failed
// publishes stay staged and retry on the next pass.
type Drainer struct {
	outbox   *Outbox
	pub      Publisher
	interval time.Duration
	stopChan chan struct{}
	done     chan struct{}
}

func NewDrainer(outbox *Outbox, pub Publisher, interval time.Duration) *Drainer {
	return &Drainer{
		outbox:   outbox,
		pub:      pub,
		interval: interval,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (d *Drainer) Start() {
	go d.loop()
}

func (d *Drainer) Stop() {
	close(d.stopChan)
	<-d.done
}

func (d *Drainer) loop() {
	defer close(d.done)
	timer := time.NewTimer(d.interval)
	defer timer.Stop()
	for {
		select {
		case <-d.stopChan:
			return
		case <-timer.C:
			d.drain()
			timer.Reset(d.interval)
		}
	}
}

func (d *Drainer) drain() {
	pending, err := d.outbox.pending(drainBatch)
	if err != nil {
		log.Printf("events: read outbox: %v", err)
		return
	}
	for _, e := range pending {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := d.pub.Publish(ctx, e.topic, e.payload)
		cancel()
		if err != nil {
			log.Printf("events: publish outbox %d: %v", e.id, err)
			return
		}
		if err := d.outbox.remove(e.id); err != nil {
			log.Printf("events: remove outbox %d: %v", e.id, err)
			return
		}
	}
}
