package main

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wudi/colorkit/filters"
	"github.com/wudi/colorkit/graph"
	"github.com/wudi/colorkit/object"
	"github.com/wudi/colorkit/observability"
	"github.com/wudi/colorkit/option"
	"github.com/wudi/colorkit/value"
)

// pipeline is a linear graph from a read node to a write node.
type pipeline struct {
	env   *object.Env
	nodes []*graph.Node
	conv  *graph.Conversion
}

// newPipeline builds read, the named filters in order, then write.
func newPipeline(env *object.Env, reg *graph.Registry, steps ...string) (*pipeline, error) {
	names := append(append([]string{"read"}, steps...), "write")
	p := &pipeline{env: env}
	for _, name := range names {
		n, err := reg.NewNode(env, "filter/"+name)
		if err != nil {
			p.Release()
			return nil, err
		}
		if len(p.nodes) > 0 {
			if err := graph.Connect(p.nodes[len(p.nodes)-1], 0, n, 0); err != nil {
				n.Release()
				p.Release()
				return nil, err
			}
		}
		p.nodes = append(p.nodes, n)
	}
	p.conv = graph.NewConversion(p.nodes[0], p.nodes[len(p.nodes)-1])
	return p, nil
}

// fullPath expands a path relative to the filter prefix.
func fullPath(path string) string {
	if strings.HasPrefix(path, filters.Prefix+option.Separator) {
		return path
	}
	return filters.Prefix + option.Separator + strings.TrimPrefix(path, option.Separator)
}

// node returns the pipeline node owning a full option path.
func (p *pipeline) node(path string) *graph.Node {
	for _, n := range p.nodes {
		if strings.HasPrefix(path, n.Filter().Registration+option.Separator) {
			return n
		}
	}
	return nil
}

// set stores one option on its node as a user override.
func (p *pipeline) set(path string, v value.Value) error {
	set := option.NewSet(p.env)
	defer set.Release()
	if err := set.SetFromValue(fullPath(path), v, option.SetCreate); err != nil {
		return err
	}
	_, err := p.apply(set, option.SourceUserOverride)
	return err
}

// apply overwrites node options with the options of set, stamped with
// src. Options for filters outside the pipeline are skipped and counted.
func (p *pipeline) apply(set *option.Set, src option.Source) (skipped int, err error) {
	for _, o := range set.Options() {
		path := fullPath(o.Registration())
		n := p.node(path)
		if n == nil {
			p.env.Log().Warn("option ignored", observability.String("path", o.Registration()))
			skipped++
			continue
		}
		c := o.Copy(p.env)
		if err := c.SetRegistration(path); err != nil {
			c.Release()
			return skipped, err
		}
		c.SetFlags(option.FlagEdited)
		c.SetSource(src)
		err := n.Options().Set(c, -1, option.Share)
		c.Release()
		if err != nil {
			return skipped, err
		}
	}
	return skipped, nil
}

// instrument attaches fresh collectors registered on reg.
func (p *pipeline) instrument(reg prometheus.Registerer) {
	p.conv.Metrics = graph.NewMetrics(reg)
}

// run converts once and returns the output extent.
func (p *pipeline) run(ctx context.Context) (*graph.Image, error) {
	return p.conv.Run(ctx)
}

// Release drops the pipeline's node references.
func (p *pipeline) Release() {
	for i := len(p.nodes) - 1; i >= 0; i-- {
		p.nodes[i].Release()
	}
	p.nodes = nil
}
