package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pokedex/catalog/internal/config"
	"pokedex/catalog/internal/container"
	"pokedex/catalog/internal/domain"
	"pokedex/catalog/internal/loader"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pokedex",
		Short: "In-memory Pokédex catalog backed by PokeAPI",
		Long: `Pokédex keeps an ordered in-memory catalog of Pokémon fetched from PokeAPI.

It warms the catalog in fixed windows, serves pages of it, and answers
name searches without going back to the network.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newWarmCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newPageCmd())

	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Warm the catalog in the background and serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			return c.Run(cmd.Context())
		},
	}
}

func newWarmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "warm",
		Short: "Load the full catalog once and report its size",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Warm(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d entries loaded\n", c.Cache.Size())
			return nil
		},
	}
}

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Warm the catalog and list entries whose name contains query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Warm(cmd.Context()); err != nil {
				return err
			}

			printEntries(cmd, c.Index.Search(args[0]))
			return nil
		},
	}
}

func newPageCmd() *cobra.Command {
	var pages int

	cmd := &cobra.Command{
		Use:   "page",
		Short: "Load the catalog one batch at a time and print each batch",
		Long: `Load the catalog one batch at a time and print each batch.

Stops early when the remote catalog is exhausted. A batch in which nothing
could be fetched is reported as an error so the command can be retried.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			return loadPages(cmd, c.Loader, pages)
		},
	}

	cmd.Flags().IntVarP(&pages, "pages", "n", 1, "Number of batches to load")

	return cmd
}

func loadPages(cmd *cobra.Command, bl *loader.BatchLoader, pages int) error {
	out := cmd.OutOrStdout()
	for n := 0; n < pages; n++ {
		entries, err := bl.LoadNextBatch(cmd.Context(), bl.BatchSize())
		if errors.Is(err, domain.ErrTransient) {
			return fmt.Errorf("remote unavailable at position %d, try again later: %w", bl.Cursor(), err)
		}
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(out, "remote catalog exhausted")
			return nil
		}
		fmt.Fprintf(out, "--- page %d ---\n", n+1)
		printEntries(cmd, entries)
	}
	return nil
}

func setup(ctx context.Context) (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	log.SetLevel(level)
	log.Debug("Configuration loaded successfully")

	return container.New(ctx, cfg)
}

func printEntries(cmd *cobra.Command, entries []domain.Entry) {
	out := cmd.OutOrStdout()
	for _, e := range entries {
		fmt.Fprintf(out, "#%04d  %-16s %s\n", e.ID(), e.Name, strings.Join(e.Types, "/"))
	}
}
