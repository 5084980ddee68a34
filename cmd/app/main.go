package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/ferry/internal"
	pkgconfig "github.com/starford/ferry/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cmd *cli.Command) error {
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

func once(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	report, err := internal.RunOnce(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if printErr := printJSON(report); printErr != nil {
		return printErr
	}
	if err != nil {
		return fmt.Errorf("scan error: %w", err)
	}
	return nil
}

func route(ctx context.Context, cmd *cli.Command) error {
	file := cmd.Args().First()
	if file == "" {
		return errors.New("usage: ferry route <file name>")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	key, out, err := internal.Route(ctx, file, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return fmt.Errorf("route %s (pattern %s): %w", key.Filename, key.Pattern, err)
	}
	return printJSON(map[string]any{"key": key, "outcome": out})
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, internal.WithConfig(cfg))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	cmd := &cli.Command{
		Name:   "ferry",
		Usage:  "Watches a folder and moves each file to the destination listed in a reference spreadsheet",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Watch the folder until interrupted (default)",
				Action: run,
			},
			{
				Name:   "once",
				Usage:  "Scan the folder a single time and print a summary",
				Action: once,
			},
			{
				Name:      "route",
				Usage:     "Show where a file would be moved, without moving it",
				ArgsUsage: "<file name>",
				Action:    route,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the routing tools over MCP stdio",
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
