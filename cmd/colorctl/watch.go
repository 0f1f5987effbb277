package main

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/wudi/colorkit/filters"
	"github.com/wudi/colorkit/observability"
	"github.com/wudi/colorkit/option"
)

const watchDebounce = 150 * time.Millisecond

var (
	watchOpts    convertFlags
	watchOptions string

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Convert again whenever the input or an options file changes",
		Long: `Runs the conversion once, then watches --in and --options. Changed
option values invalidate only the nodes downstream of the filter they
belong to, so unchanged work stays cached between runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return watch(cmd.Context(), &watchOpts, watchOptions)
		},
	}
)

func init() {
	watchOpts.register(watchCmd)
	watchCmd.Flags().StringVar(&watchOptions, "options", "", "options file (kv, xml, json or yaml)")
}

// stepsOf returns the filters named by options paths that a linear
// pipeline can host, in pipeline order.
func stepsOf(set *option.Set) []string {
	named := map[string]bool{}
	for _, o := range set.Options() {
		rest := strings.TrimPrefix(fullPath(o.Registration()), filters.Prefix+option.Separator)
		nick, _, _ := strings.Cut(rest, option.Separator)
		named[nick] = true
	}
	var steps []string
	for _, s := range []string{"icc", "scale", "curve"} {
		if named[s] {
			steps = append(steps, s)
		}
	}
	return steps
}

// watcher reruns a pipeline on file changes.
type watcher struct {
	p       *pipeline
	options string
}

func (w *watcher) reload() error {
	if w.options == "" {
		return nil
	}
	set, err := readOptionsFile(w.p.env, w.options)
	if err != nil {
		return err
	}
	defer set.Release()
	_, err = w.p.apply(set, option.SourceUserOverride)
	return err
}

func (w *watcher) run(ctx context.Context) {
	start := time.Now()
	img, err := w.p.run(ctx)
	if err != nil {
		w.p.env.Log().Error("conversion failed", observability.Error("error", err))
		return
	}
	img.Release()
	w.p.env.Log().Info("converted", observability.Int64("ms", time.Since(start).Milliseconds()))
}

func watch(ctx context.Context, f *convertFlags, optionsFile string) error {
	var extra []string
	if optionsFile != "" {
		set, err := readOptionsFile(state.env, optionsFile)
		if err != nil {
			return err
		}
		for _, s := range stepsOf(set) {
			if !slices.Contains(f.steps(), s) {
				extra = append(extra, s)
			}
		}
		set.Release()
	}
	p, err := f.build(&state, extra...)
	if err != nil {
		return err
	}
	defer p.Release()
	w := &watcher{p: p, options: optionsFile}
	if err := w.reload(); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	watched := map[string]bool{}
	var optionsAbs string
	for _, path := range []string{f.in, optionsFile} {
		if path == "" {
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if path == optionsFile {
			optionsAbs = abs
		}
		watched[abs] = true
		// Editors replace files, so the directory is watched.
		if err := fw.Add(filepath.Dir(abs)); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}

	w.run(ctx)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	var inputChanged, optionsChanged bool
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !watched[ev.Name] || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if ev.Name == optionsAbs {
				optionsChanged = true
			} else {
				inputChanged = true
			}
			timer.Reset(watchDebounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			p.env.Log().Warn("watch error", observability.Error("error", err))
		case <-timer.C:
			if optionsChanged {
				if err := w.reload(); err != nil {
					p.env.Log().Error("options not applied", observability.Error("error", err))
					optionsChanged = false
					continue
				}
			}
			if inputChanged {
				p.nodes[0].Invalidate(nil)
			}
			inputChanged, optionsChanged = false, false
			w.run(ctx)
		}
	}
}
