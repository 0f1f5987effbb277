// Command colorctl converts images through a filter graph and manages
// persisted option sets.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wudi/colorkit/config"
	"github.com/wudi/colorkit/filters"
	"github.com/wudi/colorkit/graph"
	"github.com/wudi/colorkit/object"
	"github.com/wudi/colorkit/observer"
	"github.com/wudi/colorkit/store"
)

// app is the state shared by all subcommands once the config is loaded.
type app struct {
	cfg      *config.Config
	env      *object.Env
	registry *graph.Registry
}

var (
	configPath string
	logLevel   string
	state      app

	rootCmd = &cobra.Command{
		Use:           "colorctl",
		Short:         "Color conversion through a pull-driven filter graph",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return state.init()
		},
	}
)

func (a *app) init() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg
	a.env = observer.NewEnv(cfg.Logger(os.Stderr))
	a.registry = graph.NewRegistry()
	return filters.Register(a.registry)
}

func (a *app) openStore() (*store.Store, error) {
	return store.Open(a.cfg.Store.Path, a.cfg.Store.InMemory, store.WithLogger(a.env.Log()))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "configuration file (default $"+config.EnvVar+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
	rootCmd.AddCommand(convertCmd, optionsCmd, watchCmd, profileCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "colorctl:", err)
		os.Exit(1)
	}
}
