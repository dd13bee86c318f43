package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"respreport/internal/config"
	"respreport/internal/extract"
	"respreport/internal/google"
	"respreport/internal/models"
	"respreport/internal/runner"
	"respreport/internal/scheduler"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "respreport",
		Usage: "Collect training invitation responses into a cumulative attendance report.",
		Commands: []*cli.Command{
			reportCommand(),
			showCommand(),
			authCommand(),
		},
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Path to a YAML config file."}
}

func sinkFlags() []cli.Flag {
	return []cli.Flag{
		configFlag(),
		&cli.StringFlag{Name: "sink-type", Usage: "Report storage: xlsx, sqlite, postgres or sheets."},
		&cli.StringFlag{Name: "sink-path", Usage: "Workbook or database file for the xlsx and sqlite sinks."},
	}
}

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Extract responses from the source and merge them into the report.",
		Flags: append(sinkFlags(),
			&cli.StringFlag{Name: "source-type", Usage: "Item source: jsonl, ics or caldav."},
			&cli.StringFlag{Name: "source-path", Usage: "Export file or directory for the jsonl and ics sources."},
			&cli.BoolFlag{Name: "dry-run", Usage: "Log what would be written without saving the report."},
			&cli.StringFlag{Name: "schedule", Usage: "Cron spec; run repeatedly until interrupted."},
		),
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"), config.Overrides{
				SourceType: c.String("source-type"),
				SourcePath: c.String("source-path"),
				SinkType:   c.String("sink-type"),
				SinkPath:   c.String("sink-path"),
				Schedule:   c.String("schedule"),
			})
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logger := setupLogger(cfg.LogLevel)

			if c.Bool("dry-run") {
				logger.Info("Performing a dry run. The report will not be saved.")
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			src, err := newSource(logger, cfg)
			if err != nil {
				return err
			}
			sink, closeSink, err := newSink(ctx, logger, cfg)
			if err != nil {
				return err
			}
			defer closeSink()

			r := runner.NewRunner(logger, src, extract.New(cfg.ExtractorConfig()), sink, c.Bool("dry-run"))

			if cfg.Schedule == "" {
				logger.Info("Running a single report cycle.")
				if _, err := r.Run(ctx); err != nil {
					return fmt.Errorf("report run failed: %w", err)
				}
				return nil
			}

			s, err := scheduler.New(logger, cfg.Schedule, cfg.Location(), 0, func(ctx context.Context) error {
				_, err := r.Run(ctx)
				return err
			})
			if err != nil {
				return err
			}
			return s.Run(ctx)
		},
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Print the stored report as tab-separated text.",
		Flags: sinkFlags(),
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadSink(c.String("config"), config.Overrides{
				SinkType: c.String("sink-type"),
				SinkPath: c.String("sink-path"),
			})
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logger := setupLogger(cfg.LogLevel)

			sink, closeSink, err := newSink(c.Context, logger, cfg)
			if err != nil {
				return err
			}
			defer closeSink()

			table, err := sink.Load(c.Context)
			if err != nil {
				return fmt.Errorf("failed to load report: %w", err)
			}
			return printTable(c.App.Writer, table)
		},
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to get a Sheets API token.",
		Flags: []cli.Flag{configFlag()},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadSink(c.String("config"), config.Overrides{})
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logger := setupLogger(cfg.LogLevel)
			logger.Info("Starting Google authentication flow.")

			oauthConfig, err := google.OAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret)
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Fprintf(c.App.Writer, "Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Fprint(c.App.Writer, "Enter Authorization Code: ")
			reader := bufio.NewReader(c.App.Reader)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(c.Context, oauthConfig, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			if err := google.SaveToken(cfg.Google.TokenPath, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", cfg.Google.TokenPath)
			return nil
		},
	}
}

func printTable(w io.Writer, table *models.Table) error {
	if table == nil {
		_, err := fmt.Fprintln(w, "No report found.")
		return err
	}
	for _, cells := range table.Cells() {
		if _, err := fmt.Fprintln(w, strings.Join(cells, "\t")); err != nil {
			return err
		}
	}
	return nil
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
