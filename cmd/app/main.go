package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/mimir/internal"
	"github.com/starford/mimir/internal/mcpserver"
	"github.com/starford/mimir/internal/promote"
	pkgconfig "github.com/starford/mimir/pkg/config"
)

// loadConfig reads the YAML config. When the default path is absent
// and no explicit path was given, the built-in defaults apply.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	path := cmd.String("config")

	load := pkgconfig.LoadIfPresent[internal.Config]
	if cmd.IsSet("config") {
		load = pkgconfig.Load[internal.Config]
	}
	if err := load(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// quietLogger keeps one-shot commands from interleaving log lines with
// their JSON output.
func quietLogger(cmd *cli.Command) *slog.Logger {
	level := slog.LevelWarn
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func buildApp(cmd *cli.Command) (*internal.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return internal.Build(cfg, quietLogger(cmd))
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func runMCP(_ context.Context, cmd *cli.Command) error {
	app, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := mcpserver.New(app.Service, mcpserver.Defaults{
		DaysBack:      app.Config.Promotion.DaysBack,
		MinConfidence: app.Config.Promotion.MinConfidence,
		DaysToKeep:    app.Config.Promotion.DaysToKeep,
		SearchK:       app.Config.Search.K,
	})
	return srv.ServeStdio()
}

func runPromote(ctx context.Context, cmd *cli.Command) error {
	app, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	p := promote.Params{
		DaysBack:      app.Config.Promotion.DaysBack,
		MinConfidence: app.Config.Promotion.MinConfidence,
		DryRun:        cmd.Bool("dry-run"),
	}
	if cmd.IsSet("days-back") {
		p.DaysBack = int(cmd.Int("days-back"))
	}
	if cmd.IsSet("min-confidence") {
		p.MinConfidence = cmd.Float("min-confidence")
	}

	res, err := app.Service.Promote(ctx, p)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runCleanup(ctx context.Context, cmd *cli.Command) error {
	app, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	days := app.Config.Promotion.DaysToKeep
	if cmd.IsSet("days-to-keep") {
		days = int(cmd.Int("days-to-keep"))
	}

	removed, err := app.Service.Cleanup(ctx, days)
	if err != nil {
		return err
	}
	return printJSON(map[string]int{"removed_entries": removed})
}

func runReindex(ctx context.Context, cmd *cli.Command) error {
	app, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	stats, err := app.Service.Reindex(ctx)
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func runSearch(ctx context.Context, cmd *cli.Command) error {
	app, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	query := cmd.Args().First()
	if query == "" {
		return fmt.Errorf("usage: search <query>")
	}
	k := app.Config.Search.K
	if cmd.IsSet("top-k") {
		k = int(cmd.Int("top-k"))
	}

	hits, err := app.Service.Search(ctx, query, k)
	if err != nil {
		return err
	}
	return printJSON(hits)
}

func runMaintain(ctx context.Context, cmd *cli.Command) error {
	app, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.Service.Maintain(ctx, promote.Params{
		DaysBack:      app.Config.Promotion.DaysBack,
		MinConfidence: app.Config.Promotion.MinConfidence,
		DryRun:        cmd.Bool("dry-run"),
	})
	if res != nil {
		if perr := printJSON(res); perr != nil {
			return perr
		}
	}
	return err
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("MIMIR_CONFIG_FILE"),
	}
	verboseFlag := &cli.BoolFlag{
		Name:  "verbose",
		Usage: "Enable debug logging",
	}
	dryRunFlag := &cli.BoolFlag{
		Name:  "dry-run",
		Usage: "Report what would change without writing",
	}

	cmd := &cli.Command{
		Name:  "mimir",
		Usage: "Personal long-term memory store with keyword promotion and semantic search over Markdown logs",
		Flags: []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API server with the corpus watcher",
				Flags:  []cli.Flag{configFlag},
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Run the MCP server over stdio",
				Flags:  []cli.Flag{configFlag, verboseFlag},
				Action: runMCP,
			},
			{
				Name:  "promote",
				Usage: "Promote significant daily-log entries into the summary",
				Flags: []cli.Flag{
					configFlag,
					verboseFlag,
					dryRunFlag,
					&cli.IntFlag{Name: "days-back", Usage: "How many days of logs to scan"},
					&cli.FloatFlag{Name: "min-confidence", Usage: "Minimum confidence for promotion"},
				},
				Action: runPromote,
			},
			{
				Name:  "cleanup",
				Usage: "Expire old auto-promoted entries from the summary",
				Flags: []cli.Flag{
					configFlag,
					verboseFlag,
					&cli.IntFlag{Name: "days-to-keep", Usage: "Retention window in days"},
				},
				Action: runCleanup,
			},
			{
				Name:   "reindex",
				Usage:  "Rebuild the vector index from the corpus",
				Flags:  []cli.Flag{configFlag, verboseFlag},
				Action: runReindex,
			},
			{
				Name:      "search",
				Usage:     "Semantic search over indexed chunks",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					configFlag,
					verboseFlag,
					&cli.IntFlag{Name: "top-k", Aliases: []string{"k"}, Usage: "Number of results"},
				},
				Action: runSearch,
			},
			{
				Name:   "maintain",
				Usage:  "Run the daily maintenance flow: promote, then reindex",
				Flags:  []cli.Flag{configFlag, verboseFlag, dryRunFlag},
				Action: runMaintain,
			},
		},
		Action: serve,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
