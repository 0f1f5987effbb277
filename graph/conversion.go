package graph

import (
	"context"
	"fmt"

	"github.com/wudi/colorkit/object"
	"github.com/wudi/colorkit/observability"
	"github.com/wudi/colorkit/recovery"
)

// DefaultMaxRetries bounds how often RunPixels re-issues a pull.
const DefaultMaxRetries = 8

// Conversion drives a graph from its output node.
type Conversion struct {
	Input  *Node
	Output *Node

	MaxRetries int
	Strategy   recovery.Strategy
	Metrics    *Metrics
	Tracer     observability.Tracer
}

// NewConversion returns a conversion with the default retry bound and a
// strict recovery strategy.
func NewConversion(in, out *Node) *Conversion {
	return &Conversion{
		Input:      in,
		Output:     out,
		MaxRetries: DefaultMaxRetries,
		Strategy:   recovery.NewStrictStrategy(),
		Tracer:     observability.NopTracer(),
	}
}

// RunPixels runs the output node for t until it is done, re-issuing the
// pull on Retry, and stores the array into the ticket output image. A
// failure goes to the recovery strategy; warn and skip leave the region
// of t as it is.
func (c *Conversion) RunPixels(ctx context.Context, t *Ticket) error {
	if c.Output == nil {
		return fmt.Errorf("%w: conversion has no output node", ErrIncompleteGraph)
	}
	if t.metrics == nil {
		t.metrics = c.Metrics
	}
	tracer := c.Tracer
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	ctx, span := tracer.StartSpan(ctx, "graph.run_pixels")
	defer span.Finish()
	span.SetTag("region", t.Region.String())

	log := c.Output.log()
	for attempt := 0; ; attempt++ {
		res, err := c.Output.Run(ctx, nil, t)
		if err != nil {
			span.SetError(err)
			return c.recover(ctx, log, err, t, attempt)
		}
		if res == Done {
			if t.Output != nil {
				return t.Output.WriteRegion(t.Array)
			}
			return nil
		}
		if attempt >= c.MaxRetries {
			return c.recover(ctx, log, fmt.Errorf("%w after %d attempts", ErrRetryLimit, attempt+1), t, attempt)
		}
		c.Metrics.retry()
		log.Debug("pull retried", observability.Int("attempt", attempt+1))
	}
}

func (c *Conversion) recover(ctx context.Context, log observability.Logger, err error, t *Ticket, attempt int) error {
	strategy := c.Strategy
	if strategy == nil {
		return err
	}
	loc := recovery.Location{
		NodeID:       int64(c.Output.ID()),
		Registration: c.Output.filter.Registration,
		Region:       t.Region,
		Attempt:      attempt,
	}
	switch action := strategy.OnError(ctx, err, loc); action {
	case recovery.ActionWarn:
		log.Warn("region skipped", observability.Error("error", err), observability.String("location", loc.String()))
		c.Output.Env().Message(object.SeverityWarn, c.Output, "%s: %v", loc, err)
		return nil
	case recovery.ActionSkip:
		return nil
	default:
		log.Error("conversion failed", observability.Error("error", err))
		return err
	}
}

// Run converts the whole output extent into a new image.
func (c *Conversion) Run(ctx context.Context) (*Image, error) {
	if c.Output == nil {
		return nil, fmt.Errorf("%w: conversion has no output node", ErrIncompleteGraph)
	}
	bounds, layout, err := c.Output.Extent()
	if err != nil {
		return nil, err
	}
	out := NewImage(c.Output.Env(), bounds.Dx(), bounds.Dy(), layout)
	t := NewTicket(c.Output.Env(), out, out.Bounds())
	defer t.Release()
	if err := c.RunPixels(ctx, t); err != nil {
		out.Release()
		return nil, err
	}
	return out, nil
}
