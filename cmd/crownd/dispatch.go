package main

import (
	"context"
	"log/slog"
)

// ============================================================================
// Dispatch Loop
// ============================================================================
// The dispatch loop drives the whole pipeline: it pulls raw reports from the
// device reader and runs decode -> classify -> resolve -> execute for each,
// sequentially and on a single goroutine. The only suspension point is the
// wait for the next report; everything downstream of it is CPU-only except
// process spawning, which the executor offloads.
// ============================================================================

// Pipeline bundles the per-report stages.
type Pipeline struct {
	logger     *slog.Logger
	decoder    *Decoder
	classifier *Classifier
	resolver   *Resolver
	executor   *Executor

	// feed broadcasts classified events to websocket clients; nil when the
	// event feed is disabled.
	feed *Hub

	// onConnect re-arms device state (ratchet mode) when the crown announces
	// a reconnect.
	onConnect func()
}

// HandleReport drives one raw report through the pipeline. Everything in here
// is locally recoverable; nothing aborts the loop.
func (p *Pipeline) HandleReport(r RawReport) {
	sig := p.decoder.Decode(r)
	if sig == nil {
		p.logger.Debug("report discarded", "len", len(r.Data), "discarded", p.decoder.Discarded())
		return
	}

	if _, ok := sig.(ConnectSignal); ok {
		p.logger.Info("crown announced connect")
		if p.onConnect != nil {
			p.onConnect()
		}
		return
	}

	for _, ev := range p.classifier.Classify(sig, r.At) {
		p.publish(ev)

		desc, ok := p.resolver.Resolve(ev)
		if !ok {
			// Unbound events are normal, not errors.
			p.logger.Debug("no binding", "event", ev.Kind, "modifier", ev.Modifier)
			continue
		}

		p.logger.Debug("dispatching action",
			"event", ev.Kind, "modifier", ev.Modifier, "action", desc.Name, "policy", desc.Policy)
		p.executor.Launch(desc)
	}
}

func (p *Pipeline) publish(ev LogicalEvent) {
	if p.feed == nil {
		return
	}
	msg, err := marshalEvent(ev)
	if err != nil {
		p.logger.Warn("event marshal failed", "event", ev.Kind, "error", err)
		return
	}
	p.feed.BroadcastBytes(msg)
}

// runDispatch runs the loop until shutdown or a fatal device error.
//
// Returns nil on clean shutdown (context canceled, or the device reader
// stopped because of it) and the device error otherwise. Already-classified
// events are fully dispatched before return because HandleReport is
// synchronous; a half-built ButtonDown state is discarded without a
// synthetic event.
func runDispatch(ctx context.Context, reports <-chan RawReport, devErr <-chan error, p *Pipeline) error {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("dispatch stopping (shutdown signal)")
			return nil

		case err := <-devErr:
			if err == nil {
				p.logger.Info("dispatch stopping (device reader done)")
				return nil
			}
			return err

		case r := <-reports:
			p.HandleReport(r)
		}
	}
}
