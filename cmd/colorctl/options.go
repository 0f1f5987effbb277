package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wudi/colorkit/graph"
	"github.com/wudi/colorkit/object"
	"github.com/wudi/colorkit/option"
	"github.com/wudi/colorkit/store"
	"github.com/wudi/colorkit/value"
)

var (
	optScope   string
	dumpFormat string
	docFormat  string

	optionsCmd = &cobra.Command{
		Use:   "options",
		Short: "Manage persisted option scopes",
	}
	optionsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List stored scopes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(st *store.Store) error {
				scopes, err := st.Scopes()
				if err != nil {
					return err
				}
				for _, s := range scopes {
					fmt.Fprintln(cmd.OutOrStdout(), s)
				}
				return nil
			})
		},
	}
	optionsDumpCmd = &cobra.Command{
		Use:   "dump",
		Short: "Print a scope as xml, kv, json, yaml, markdown or html",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScope(func(st *store.Store, scope string) error {
				set, err := st.Load(state.env, scope)
				if err != nil {
					return err
				}
				defer set.Release()
				return render(cmd.OutOrStdout(), set, dumpFormat)
			})
		},
	}
	optionsGetCmd = &cobra.Command{
		Use:   "get <path>",
		Short: "Print one option value of a scope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScope(func(st *store.Store, scope string) error {
				set, err := st.Load(state.env, scope)
				if err != nil {
					return err
				}
				defer set.Release()
				v, err := set.FindValue(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v.Literal())
				value.Clear(&v)
				return nil
			})
		},
	}
	optionsSetCmd = &cobra.Command{
		Use:   "set <path> <value>",
		Short: "Store one option in a scope, creating the scope if needed",
		Long: `Paths not starting with the filter prefix are taken relative to it, so
"scale/factor" stores org/colorkit/filter/scale/factor. Values are JSON
literals; anything else is stored as a string.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := value.ParseLiteral(args[1])
			if err != nil {
				return err
			}
			return withScope(func(st *store.Store, scope string) error {
				return update(st, scope, func(set *option.Set) error {
					return set.SetFromValue(fullPath(args[0]), v, option.SetCreate)
				})
			})
		},
	}
	optionsDeleteCmd = &cobra.Command{
		Use:   "delete [path]",
		Short: "Delete a scope, or one option of it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScope(func(st *store.Store, scope string) error {
				if len(args) == 0 {
					return st.Delete(scope)
				}
				return update(st, scope, func(set *option.Set) error {
					if !set.Remove(fullPath(args[0])) {
						return fmt.Errorf("%w: %s", option.ErrNotFound, args[0])
					}
					return nil
				})
			})
		},
	}
	optionsImportCmd = &cobra.Command{
		Use:   "import <file>",
		Short: "Replace a scope with the options of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := readOptionsFile(state.env, args[0])
			if err != nil {
				return err
			}
			defer set.Release()
			return withScope(func(st *store.Store, scope string) error {
				return st.Save(scope, set)
			})
		},
	}
	optionsDocCmd = &cobra.Command{
		Use:   "doc",
		Short: "Document the default options of every filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := defaults(state.env, state.registry)
			if err != nil {
				return err
			}
			defer set.Release()
			return render(cmd.OutOrStdout(), set, docFormat)
		},
	}
)

func init() {
	optionsCmd.PersistentFlags().StringVar(&optScope, "scope", "", "scope name (default store.scope from the config)")
	optionsDumpCmd.Flags().StringVar(&dumpFormat, "format", "kv", "output format")
	optionsDocCmd.Flags().StringVar(&docFormat, "format", "markdown", "output format")
	optionsCmd.AddCommand(optionsListCmd, optionsDumpCmd, optionsGetCmd, optionsSetCmd,
		optionsDeleteCmd, optionsImportCmd, optionsDocCmd)
}

var errNoScope = errors.New("a scope is required (--scope or store.scope in the config)")

func withStore(fn func(st *store.Store) error) error {
	st, err := state.openStore()
	if err != nil {
		return err
	}
	if err := fn(st); err != nil {
		st.Close()
		return err
	}
	return st.Close()
}

func withScope(fn func(st *store.Store, scope string) error) error {
	scope := optScope
	if scope == "" {
		scope = state.cfg.Store.Scope
	}
	if scope == "" {
		return errNoScope
	}
	return withStore(func(st *store.Store) error { return fn(st, scope) })
}

// update loads scope, or starts it empty, applies fn and saves.
func update(st *store.Store, scope string, fn func(set *option.Set) error) error {
	set, err := st.Load(state.env, scope)
	if errors.Is(err, store.ErrNotFound) {
		set, err = option.NewSet(state.env), nil
	}
	if err != nil {
		return err
	}
	defer set.Release()
	if err := fn(set); err != nil {
		return err
	}
	return st.Save(scope, set)
}

func render(w io.Writer, set *option.Set, format string) error {
	var (
		out []byte
		err error
	)
	switch strings.ToLower(format) {
	case "html":
		out, err = set.ToHTML()
	case "markdown", "md":
		out = []byte(set.Markdown())
	default:
		f, perr := option.ParseFormat(format)
		if perr != nil {
			return perr
		}
		out, err = set.ToText(f)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// formatOf picks a text format from a file extension.
func formatOf(path string) (option.Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" || ext == "txt" || ext == "conf" {
		return option.FormatKeyValue, nil
	}
	return option.ParseFormat(ext)
}

func readOptionsFile(env *object.Env, path string) (*option.Set, error) {
	f, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return option.FromText(env, data, f)
}

// defaults collects the default options of every registered filter.
func defaults(env *object.Env, reg *graph.Registry) (*option.Set, error) {
	all := option.NewSet(env)
	for _, f := range reg.Filters() {
		n, err := graph.NewNode(env, f)
		if err != nil {
			all.Release()
			return nil, err
		}
		for _, o := range n.Options().Options() {
			if _, err := all.Add(o, -1, option.Duplicate); err != nil {
				n.Release()
				all.Release()
				return nil, err
			}
		}
		n.Release()
	}
	return all, nil
}
