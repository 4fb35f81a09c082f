package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v2"

	"github.com/slicegraph/slicegraph/internal/adapter"
	"github.com/slicegraph/slicegraph/internal/config"
	"github.com/slicegraph/slicegraph/internal/indexing"
	"github.com/slicegraph/slicegraph/internal/ledger"
	"github.com/slicegraph/slicegraph/internal/mcpglue"
	"github.com/slicegraph/slicegraph/internal/resolver"
	"github.com/slicegraph/slicegraph/internal/slicer"
	"github.com/slicegraph/slicegraph/internal/storage"
	"github.com/slicegraph/slicegraph/internal/types"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

var theLedger *ledger.Ledger

// loadLedger loads the config document at c.String("config") (falling back
// to config.Default() when no path was given), opens the store it names,
// and wires it into a Ledger. Mirrors the teacher's loadConfigWithOverrides
// + lazy indexer construction in cmd/lci/main.go's Before hook.
func loadLedger(c *cli.Context) (*ledger.Ledger, error) {
	var cfg config.Config
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadKDL(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", cfg.DBPath, err)
	}

	return ledger.New(store, adapter.NewRegistry(), cfg), nil
}

func before(c *cli.Context) error {
	l, err := loadLedger(c)
	if err != nil {
		return err
	}
	theLedger = l
	return nil
}

func after(c *cli.Context) error {
	if theLedger != nil {
		return theLedger.Store.Close()
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	app := &cli.App{
		Name:                   "slicegraph",
		Usage:                  "Token-budgeted code slices for AI coding assistants",
		Version:                Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the ledger's KDL config document (default: in-memory defaults)",
			},
		},
		Before: before,
		After:  after,
		Commands: []*cli.Command{
			indexCommand,
			sliceCommand,
			cardCommand,
			searchCommand,
			spilloverCommand,
			mcpCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "slicegraph:", err)
		os.Exit(1)
	}
}

var indexCommand = &cli.Command{
	Name:      "index",
	Usage:     "index (or re-index) a configured repository",
	ArgsUsage: "<repo-id>",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "full", Usage: "force a full re-index instead of incremental"},
	},
	Action: func(c *cli.Context) error {
		repoID := c.Args().First()
		if repoID == "" {
			return fmt.Errorf("index requires a repo id")
		}

		var repoCfg config.RepoConfig
		found := false
		for _, rc := range theLedger.Config.Repos {
			if rc.RepoID == repoID {
				repoCfg = rc
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("repo %q is not in the loaded config", repoID)
		}

		mode := indexing.ModeIncremental
		if c.Bool("full") {
			mode = indexing.ModeFull
		}

		stats, err := theLedger.IndexRepo(c.Context, repoCfg, mode, func(ev indexing.ProgressEvent) {
			if ev.FilesTotal > 0 {
				fmt.Fprintf(os.Stderr, "\rindexing %s: %d/%d files", repoID, ev.FilesProcessed, ev.FilesTotal)
			}
		})
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}

var sliceCommand = &cli.Command{
	Name:  "slice",
	Usage: "build a token-budgeted slice from a set of entry symbols",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "repo", Required: true},
		&cli.StringSliceFlag{Name: "symbol", Usage: "entry symbol id (repeatable)"},
		&cli.StringFlag{Name: "task", Usage: "free-text task description to resolve seeds from"},
		&cli.StringFlag{Name: "detail", Value: "compact", Usage: "minimal|signature|deps|compact|full"},
		&cli.StringFlag{Name: "wire-format", Value: "v1"},
		&cli.IntFlag{Name: "max-cards"},
		&cli.IntFlag{Name: "max-tokens"},
	},
	Action: func(c *cli.Context) error {
		symbols := c.StringSlice("symbol")
		entries := make([]types.SymbolID, 0, len(symbols))
		for _, s := range symbols {
			entries = append(entries, types.SymbolID(s))
		}

		result, err := theLedger.BuildSlice(c.Context, ledger.BuildSliceRequest{
			RepoID: types.RepoID(c.String("repo")),
			Input: resolver.Input{
				EntrySymbols: entries,
				TaskText:     c.String("task"),
			},
			DetailLevel: types.ParseDetailLevel(c.String("detail")),
			WireFormat:  ledger.WireFormat(c.String("wire-format")),
			Budget:      slicer.Budget{MaxCards: c.Int("max-cards"), MaxEstimatedTokens: c.Int("max-tokens")},
		})
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var cardCommand = &cli.Command{
	Name:      "card",
	Usage:     "fetch a single symbol's card at full detail",
	ArgsUsage: "<repo-id> <symbol-id>",
	Action: func(c *cli.Context) error {
		if c.Args().Len() < 2 {
			return fmt.Errorf("card requires a repo id and a symbol id")
		}
		c0, notModified, err := theLedger.GetCard(c.Context, types.RepoID(c.Args().Get(0)), types.SymbolID(c.Args().Get(1)), "")
		if err != nil {
			return err
		}
		if notModified != nil {
			return printJSON(notModified)
		}
		return printJSON(c0)
	},
}

var searchCommand = &cli.Command{
	Name:      "search",
	Usage:     "search a repo's indexed symbols by name",
	ArgsUsage: "<repo-id> <query>",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "limit", Value: 20},
	},
	Action: func(c *cli.Context) error {
		if c.Args().Len() < 2 {
			return fmt.Errorf("search requires a repo id and a query")
		}
		symbols, err := theLedger.SearchSymbols(c.Context, types.RepoID(c.Args().Get(0)), c.Args().Get(1), c.Int("limit"))
		if err != nil {
			return err
		}
		return printJSON(symbols)
	},
}

var spilloverCommand = &cli.Command{
	Name:      "spillover",
	Usage:     "page through a truncated slice's dropped frontier symbols",
	ArgsUsage: "<spillover-handle>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "cursor"},
		&cli.IntFlag{Name: "page-size", Value: 20},
	},
	Action: func(c *cli.Context) error {
		if c.Args().Len() < 1 {
			return fmt.Errorf("spillover requires a spillover handle")
		}
		page, err := theLedger.GetSpillover(c.Args().First(), c.String("cursor"), c.Int("page-size"))
		if err != nil {
			return err
		}
		return printJSON(page)
	},
}

// mcpCommand starts the MCP server over stdio, mirroring the teacher's
// mcpCommand signal-handling and graceful/forced-shutdown shape in
// cmd/lci/main.go, reduced to what stdio transport actually needs here
// (no shared index RPC server, no pprof knob).
var mcpCommand = &cli.Command{
	Name:  "mcp",
	Usage: "run the MCP server over stdio",
	Action: func(c *cli.Context) error {
		server := mcpglue.New(theLedger)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		errChan := make(chan error, 1)
		go func() {
			errChan <- server.Server().Run(ctx, &mcp.StdioTransport{})
		}()

		select {
		case err := <-errChan:
			return err
		case sig := <-sigChan:
			fmt.Fprintf(os.Stderr, "slicegraph: received %v, shutting down\n", sig)
			cancel()

			shutdownTimer := time.NewTimer(2 * time.Second)
			defer shutdownTimer.Stop()

			select {
			case err := <-errChan:
				return err
			case <-shutdownTimer.C:
				// Force stdin closed to unblock the transport's read loop.
				os.Stdin.Close()

				forceTimer := time.NewTimer(500 * time.Millisecond)
				defer forceTimer.Stop()

				select {
				case err := <-errChan:
					return err
				case <-forceTimer.C:
					return nil
				}
			}
		}
	},
}
