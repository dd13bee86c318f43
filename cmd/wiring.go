package main

import (
	"context"
	"fmt"
	"log/slog"

	"respreport/internal/caldav"
	"respreport/internal/config"
	"respreport/internal/google"
	"respreport/internal/report"
	"respreport/internal/sink"
	"respreport/internal/source"
)

func newSource(logger *slog.Logger, cfg *config.Config) (source.Source, error) {
	switch cfg.Source.Type {
	case config.SourceJSONL:
		return source.NewJSONLSource(cfg.Source.Path), nil
	case config.SourceICS:
		return source.NewICSSource(cfg.Source.Path, cfg.Location()), nil
	case config.SourceCalDAV:
		src, err := caldav.NewSource(logger, cfg.CalDAV.URL, cfg.CalDAV.Username, cfg.CalDAV.Password, cfg.CalDAV.Calendar, cfg.Location())
		if err != nil {
			return nil, fmt.Errorf("failed to create caldav source: %w", err)
		}
		return src, nil
	}
	return nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
}

// newSink opens the configured sink. The returned func releases it.
func newSink(ctx context.Context, logger *slog.Logger, cfg *config.Config) (report.Sink, func(), error) {
	noop := func() {}
	switch cfg.Sink.Type {
	case config.SinkXLSX:
		return sink.NewXLSXSink(cfg.Sink.Path, cfg.Sink.Sheet), noop, nil
	case config.SinkSQLite:
		s, err := sink.OpenSQLite(cfg.Sink.Path, cfg.Sink.Table)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite sink: %w", err)
		}
		return s, func() { s.Close() }, nil
	case config.SinkPostgres:
		s, err := sink.OpenPostgres(cfg.Postgres.DSN, cfg.Sink.Table)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres sink: %w", err)
		}
		return s, func() { s.Close() }, nil
	case config.SinkSheets:
		oauthConfig, err := google.OAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get google oauth config: %w", err)
		}
		s, err := google.NewSheetsSink(ctx, logger, oauthConfig, cfg.Google.TokenPath, cfg.Google.SpreadsheetID, cfg.Sink.Sheet)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	}
	return nil, nil, fmt.Errorf("unknown sink type %q", cfg.Sink.Type)
}
