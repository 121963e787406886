// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"log"

	"github.com/relabs-tech/imu_subscriber/internal/output"
	"github.com/relabs-tech/imu_subscriber/internal/stream"
	"github.com/relabs-tech/imu_subscriber/internal/transport"
)

// PipelineStats counts what the pipeline has handled.
type PipelineStats struct {
	Opens    int
	Messages int
	Samples  int
	Errors   int // decode, sink and transport errors
	Closes   int
}

// Pipeline consumes a source's events one at a time: each message is split,
// decoded and emitted to every sink before the next event is taken.
type Pipeline struct {
	proc  *stream.Processor
	sinks []output.Sink
	stats PipelineStats
}

func NewPipeline(proc *stream.Processor, sinks ...output.Sink) *Pipeline {
	return &Pipeline{proc: proc, sinks: sinks}
}

// Consume handles events until the channel is closed or ctx is cancelled.
func (p *Pipeline) Consume(ctx context.Context, events <-chan transport.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.Handle(ev)
		}
	}
}

// Handle processes a single event.
func (p *Pipeline) Handle(ev transport.Event) {
	switch ev.Kind {
	case transport.EventOpen:
		p.stats.Opens++
		log.Println("subscriber: connection opened")

	case transport.EventMessage:
		p.stats.Messages++
		samples, err := p.proc.Process(ev.Data)
		if err != nil {
			p.stats.Errors++
			log.Printf("subscriber: decode error: %v", err)
		}
		for _, s := range samples {
			p.stats.Samples++
			for _, sink := range p.sinks {
				if err := sink.Emit(s); err != nil {
					p.stats.Errors++
					log.Printf("subscriber: sink error (%s): %v", s.Key(), err)
				}
			}
		}

	case transport.EventError:
		p.stats.Errors++
		log.Printf("subscriber: transport error: %v", ev.Err)

	case transport.EventClose:
		p.stats.Closes++
		log.Printf("subscriber: connection closed (code=%d %q)", ev.CloseCode, ev.CloseText)
	}
}

func (p *Pipeline) Stats() PipelineStats {
	return p.stats
}
