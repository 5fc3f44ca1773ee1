package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/folio/internal"
	pkgconfig "github.com/starford/folio/pkg/config"
)

func loadOptions(cmd *cli.Command) ([]internal.Option, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}
	if cmd.Bool("memory") {
		opts = append(opts, internal.WithMemoryStore())
	}
	return opts, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, opts...)
}

func status(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	return internal.PrintStatus(ctx, opts...)
}

func initRepo(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	return internal.InitRepository(ctx, cmd.String("template"), opts...)
}

func memoryFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "memory",
		Usage: "Use an in-memory repository instead of GitHub (nothing is published)",
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "folio",
		Usage:  "Edit markdown articles locally and publish them to a GitHub branch in atomic commits",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			memoryFlag(),
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, event stream and mirror watcher",
				Flags:  []cli.Flag{memoryFlag()},
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Flags:  []cli.Flag{memoryFlag()},
				Action: mcp,
			},
			{
				Name:   "status",
				Usage:  "Print the branch head and the article index",
				Action: status,
			},
			{
				Name:  "init",
				Usage: "Bootstrap an uninitialized repository",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "template",
						Usage: "Article page template to store (default: built-in page)",
					},
				},
				Action: initRepo,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
