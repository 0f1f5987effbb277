package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/wudi/colorkit/observability"
	"github.com/wudi/colorkit/option"
	"github.com/wudi/colorkit/value"
)

// convertFlags are shared by convert and watch.
type convertFlags struct {
	in, out       string
	src, dst      string
	intent        string
	scale         float64
	interpolation string
	curve         string
	scope         string
	metrics       string
	sets          []string
}

var convertOpts convertFlags

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert an image file",
	Long: `Reads --in, optionally transforms its colors, scales it and applies a
tone curve, then writes --out. The output format follows the extension.`,
	Example: `  colorctl convert --in photo.jpg --out gray.png --dst gray
  colorctl convert --in a.png --out b.tiff --scale 0.5 --curve "Math.pow(v, 1/2.2)"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return convertOpts.convert(cmd.Context())
	},
}

func (f *convertFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.in, "in", "", "input image (png, jpeg, tiff, bmp)")
	fl.StringVar(&f.out, "out", "", "output image")
	fl.StringVar(&f.src, "src", "", "source space or ICC profile (default: from the image)")
	fl.StringVar(&f.dst, "dst", "", "destination space or ICC profile")
	fl.StringVar(&f.intent, "intent", "", "rendering intent (default from config)")
	fl.Float64Var(&f.scale, "scale", 1, "scale factor")
	fl.StringVar(&f.interpolation, "interpolation", "bilinear", "nearest, bilinear or catmull-rom")
	fl.StringVar(&f.curve, "curve", "", "tone curve expression of v")
	fl.StringVar(&f.scope, "scope", "", "persisted option scope to apply first")
	fl.StringVar(&f.metrics, "metrics", "", "write graph metrics to this file")
	fl.StringArrayVar(&f.sets, "set", nil, "extra option as path=value, repeatable")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
}

func init() {
	convertOpts.register(convertCmd)
}

// steps lists the filters between read and write.
func (f *convertFlags) steps() []string {
	var steps []string
	if f.dst != "" || f.src != "" {
		steps = append(steps, "icc")
	}
	if f.scale != 1 {
		steps = append(steps, "scale")
	}
	if f.curve != "" {
		steps = append(steps, "curve")
	}
	return steps
}

// build creates the pipeline and applies options in provenance order:
// persisted scope, then flags.
func (f *convertFlags) build(a *app, extra ...string) (*pipeline, error) {
	p, err := newPipeline(a.env, a.registry, append(f.steps(), extra...)...)
	if err != nil {
		return nil, err
	}
	p.conv.MaxRetries = a.cfg.Convert.MaxRetries
	p.conv.Strategy = a.cfg.Strategy()
	if err := f.configure(a, p); err != nil {
		p.Release()
		return nil, err
	}
	return p, nil
}

func (f *convertFlags) configure(a *app, p *pipeline) error {
	scope := f.scope
	if scope == "" {
		scope = a.cfg.Store.Scope
	}
	if scope != "" {
		st, err := a.openStore()
		if err != nil {
			return err
		}
		set, err := st.Load(a.env, scope)
		st.Close()
		if err != nil {
			return err
		}
		_, err = p.apply(set, option.SourcePersistedConfig)
		set.Release()
		if err != nil {
			return err
		}
	}

	intent := f.intent
	if intent == "" {
		intent = a.cfg.Convert.Intent
	}
	pairs := [][2]string{
		{"read/filename", f.in},
		{"write/filename", f.out},
	}
	if p.node(fullPath("icc/dst_space")) != nil {
		pairs = append(pairs, [2]string{"icc/rendering_intent", intent})
		if f.dst != "" {
			pairs = append(pairs, [2]string{"icc/dst_space", f.dst})
		}
		if f.src != "" {
			pairs = append(pairs, [2]string{"icc/src_space", f.src})
		}
	}
	if p.node(fullPath("scale/factor")) != nil {
		if err := p.set("scale/factor", value.Float(f.scale)); err != nil {
			return err
		}
		pairs = append(pairs, [2]string{"scale/interpolation", f.interpolation})
	}
	if f.curve != "" {
		pairs = append(pairs, [2]string{"curve/expression", f.curve})
	}
	for _, kv := range pairs {
		if err := p.set(kv[0], value.Str(kv[1])); err != nil {
			return err
		}
	}
	for _, s := range f.sets {
		path, text, ok := strings.Cut(s, "=")
		if !ok || path == "" {
			return fmt.Errorf("--set %q: want path=value", s)
		}
		if p.node(fullPath(path)) == nil {
			return fmt.Errorf("--set %s: no such filter in the pipeline", path)
		}
		v, err := value.ParseLiteral(text)
		if err != nil {
			return fmt.Errorf("--set %s: %w", path, err)
		}
		if err := p.set(path, v); err != nil {
			return err
		}
	}
	return nil
}

func (f *convertFlags) convert(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	p, err := f.build(&state)
	if err != nil {
		return err
	}
	defer p.Release()
	reg := prometheus.NewRegistry()
	p.instrument(reg)

	img, err := p.run(ctx)
	if err != nil {
		return err
	}
	b := img.Bounds()
	state.env.Log().Info("converted",
		observability.String("out", f.out),
		observability.Int("width", b.Dx()),
		observability.Int("height", b.Dy()),
		observability.String("layout", img.Layout().String()))
	img.Release()

	if f.metrics != "" {
		if err := os.MkdirAll(filepath.Dir(f.metrics), 0o755); err != nil {
			return err
		}
		if err := prometheus.WriteToTextfile(f.metrics, reg); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}
	return nil
}
