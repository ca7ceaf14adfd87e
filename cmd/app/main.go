package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/studyai/internal"
	"github.com/starford/studyai/internal/models"
	pkgconfig "github.com/starford/studyai/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func paste(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var body []byte
	if path := cmd.Args().First(); path != "" && path != "-" {
		body, err = os.ReadFile(path)
	} else {
		body, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	cp := models.Capture{
		Title:       cmd.String("title"),
		Body:        string(body),
		Source:      models.SourceText,
		SummaryType: cmd.String("summary-type"),
	}
	if cmd.Bool("voice") {
		cp.Source = models.SourceVoice
	}
	saved, err := internal.SubmitText(ctx, cp, !cmd.Bool("short"), internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}
	return printJSON(saved)
}

func pdf(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("pdf: file path is required")
	}
	saved, err := internal.SubmitPDF(ctx, path, cmd.String("title"), cmd.String("summary-type"),
		internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}
	return printJSON(saved)
}

func reconcile(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	n, err := internal.Reconcile(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}
	fmt.Printf("applied %d mirror jobs\n", n)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func summaryTypeFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "summary-type",
		Usage: "Summary style requested from the backend (overrides backend.summary_type)",
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "studyai",
		Usage:  "Capture notes, summarize them through the study backend and review flashcards",
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
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, inbox watcher and mirror worker (default)",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools over stdio",
				Action: mcp,
			},
			{
				Name:      "paste",
				Usage:     "Summarize text read from a file or stdin",
				ArgsUsage: "[file|-]",
				Action:    paste,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Note title", Required: true},
					&cli.BoolFlag{Name: "voice", Usage: "Mark the text as a voice transcript"},
					&cli.BoolFlag{Name: "short", Usage: "Skip the 300 character minimum for typed notes"},
					summaryTypeFlag(),
				},
			},
			{
				Name:      "pdf",
				Usage:     "Import and summarize a PDF file",
				ArgsUsage: "<file.pdf>",
				Action:    pdf,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Note title (defaults to the file name)"},
					summaryTypeFlag(),
				},
			},
			{
				Name:   "reconcile",
				Usage:  "Retry parked mirror writes and drain the outbox",
				Action: reconcile,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
