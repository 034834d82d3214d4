package main

import (
	"encoding/json"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/adhit-r/fairmind-sub003/internal/config"
	"github.com/adhit-r/fairmind-sub003/internal/remote"
)

// globals are the flags shared by every subcommand.
type globals struct {
	apiBase string
	verbose bool
	cfg     config.Config
}

func newRootCmd() *cobra.Command {
	g := &globals{cfg: config.Load()}

	root := &cobra.Command{
		Use:           "fairmindctl",
		Short:         "Run fairness simulations against a FairMind evaluation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.apiBase, "api", g.cfg.APIBase, "evaluation service base URL")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "write debug logs to stderr")

	root.AddCommand(newRunCmd(g), newHistoryCmd(g), newEnginesCmd())
	return root
}

func (g *globals) client() *remote.Client {
	return remote.NewClient(g.apiBase, remote.WithTimeout(g.cfg.HTTPTimeout))
}

func (g *globals) logger(cmd *cobra.Command) *slog.Logger {
	if !g.verbose {
		return config.NewLogger(io.Discard, slog.LevelError)
	}
	return config.NewLogger(cmd.ErrOrStderr(), slog.LevelDebug)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
