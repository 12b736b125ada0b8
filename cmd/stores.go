package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/curator-cli/internal/lineage"
	"github.com/sells-group/curator-cli/internal/model"
	"github.com/sells-group/curator-cli/internal/pipeline"
	"github.com/sells-group/curator-cli/internal/source"
	"github.com/sells-group/curator-cli/internal/store"
)

func openEventStore(ctx context.Context) (source.EventStore, error) {
	switch cfg.Events.Driver {
	case "sqlite":
		dsn := cfg.Events.DatabaseURL
		if dsn == "" {
			dsn = "curator.db"
		}
		return source.NewSQLite(dsn)
	case "postgres":
		return source.NewPostgres(ctx, cfg.Events.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported events driver: %s", cfg.Events.Driver)
	}
}

func openVersionStore(ctx context.Context) (store.VersionStore, error) {
	switch cfg.Versions.Driver {
	case "sqlite":
		dsn := cfg.Versions.DatabaseURL
		if dsn == "" {
			dsn = "curator.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Versions.DatabaseURL)
	case "fs":
		return store.NewFS(cfg.Versions.Dir), nil
	default:
		return nil, eris.Errorf("unsupported versions driver: %s", cfg.Versions.Driver)
	}
}

// newLineage returns the configured lineage publisher, or nil when lineage is
// not configured.
func newLineage() pipeline.LineagePublisher {
	if cfg.Lineage.NotionToken == "" || cfg.Lineage.DatabaseID == "" {
		return nil
	}
	client := lineage.NewClient(cfg.Lineage.NotionToken)
	return lineage.NewPublisher(client, cfg.Lineage.DatabaseID)
}

// defaultRunParams copies the configured pipeline defaults into explicit
// per-run parameters.
func defaultRunParams() model.RunParams {
	return model.RunParams{
		ConfidenceThreshold: cfg.Pipeline.ConfidenceThreshold,
		LogicVersion:        cfg.Pipeline.LogicVersion,
		WindowField:         model.WindowField(cfg.Pipeline.WindowField),
		Partitions:          cfg.Pipeline.Partitions,
		ConfigRef:           cfg.Pipeline.ConfigRef,
	}
}

// parseTimeFlag accepts RFC3339 or plain dates; empty input is the zero time.
func parseTimeFlag(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, eris.Errorf("unrecognized timestamp %q (want RFC3339 or YYYY-MM-DD)", raw)
}

// parseWindowFlags builds a time range from the start/end flags; both empty
// means all history.
func parseWindowFlags(start, end string) (*model.TimeRange, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	s, err := parseTimeFlag(start)
	if err != nil {
		return nil, eris.Wrap(err, "parse window start")
	}
	e, err := parseTimeFlag(end)
	if err != nil {
		return nil, eris.Wrap(err, "parse window end")
	}
	return &model.TimeRange{Start: s, End: e}, nil
}
