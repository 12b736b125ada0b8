package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/curator-cli/internal/fetcher"
	"github.com/sells-group/curator-cli/internal/model"
	"github.com/sells-group/curator-cli/internal/source"
)

var (
	importSource    string
	importFormat    string
	importDelimiter string
	importSheet     string
)

const importBatchSize = 500

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import an annotation export into the event store",
	Long:  "Reads a CSV or XLSX annotation export from a local path, HTTP URL, or FTP URL and appends its events to the event store.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openEventStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate event store")
		}

		imported, skipped, err := importEvents(ctx, st, importSource)
		if err != nil {
			return eris.Wrap(err, "import")
		}

		zap.L().Info("import complete",
			zap.String("source", importSource),
			zap.Int("imported", imported),
			zap.Int("skipped", skipped),
		)
		return nil
	},
}

func importEvents(ctx context.Context, st source.EventStore, src string) (imported, skipped int, err error) {
	format := importFormat
	if format == "" {
		format = formatFromPath(src)
	}

	var rowCh <-chan []string
	var errCh <-chan error
	headerCh := make(chan []string, 1)

	switch format {
	case "csv":
		r, cleanup, err := openSource(ctx, src)
		if err != nil {
			return 0, 0, err
		}
		defer cleanup()

		delim := ','
		if importDelimiter != "" {
			delim = rune(importDelimiter[0])
		}
		rowCh, errCh = fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
			Delimiter: delim,
			HasHeader: true,
			HeaderCh:  headerCh,
			TrimSpace: true,
		})
	case "xlsx":
		path, cleanup, err := localPath(ctx, src)
		if err != nil {
			return 0, 0, err
		}
		defer cleanup()

		rowCh, errCh = fetcher.StreamXLSX(ctx, path, fetcher.XLSXOptions{
			SheetName: importSheet,
			HasHeader: true,
			HeaderCh:  headerCh,
		})
	default:
		return 0, 0, eris.Errorf("unsupported format %q (want csv or xlsx)", format)
	}

	var mapper *fetcher.EventMapper
	select {
	case header := <-headerCh:
		if mapper, err = fetcher.NewEventMapper(header); err != nil {
			return 0, 0, err
		}
	case streamErr := <-errCh:
		if streamErr != nil {
			return 0, 0, streamErr
		}
		return 0, 0, eris.New("export is empty")
	case <-ctx.Done():
		return 0, 0, eris.Wrap(ctx.Err(), "waiting for header")
	}

	batch := make([]model.AnnotationEvent, 0, importBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := st.AppendEvents(ctx, batch)
		if err != nil {
			return err
		}
		imported += n
		batch = batch[:0]
		return nil
	}

	for row := range rowCh {
		ev, err := mapper.Event(row)
		if err != nil {
			skipped++
			zap.L().Warn("import: skipping row",
				zap.String("item_id", ev.ItemID),
				zap.Error(err),
			)
			continue
		}
		batch = append(batch, ev)
		if len(batch) >= importBatchSize {
			if err := flush(); err != nil {
				return imported, skipped, err
			}
		}
	}
	if streamErr := <-errCh; streamErr != nil {
		return imported, skipped, streamErr
	}

	return imported, skipped, flush()
}

func formatFromPath(src string) string {
	switch strings.ToLower(filepath.Ext(strings.TrimSuffix(src, "/"))) {
	case ".xlsx":
		return "xlsx"
	default:
		return "csv"
	}
}

// openSource returns a reader over the export, from disk or a remote drop.
func openSource(ctx context.Context, src string) (io.Reader, func(), error) {
	switch {
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent: cfg.Import.UserAgent,
			Timeout:   time.Duration(cfg.Import.HTTPTimeoutSecs) * time.Second,
			RateLimit: cfg.Import.RateLimit,
		})
		body, err := f.Download(ctx, src)
		if err != nil {
			return nil, nil, err
		}
		return body, func() { _ = body.Close() }, nil
	case strings.HasPrefix(src, "ftp://"):
		f := fetcher.NewFTPFetcher(fetcher.FTPOptions{
			Timeout: time.Duration(cfg.Import.FTPTimeoutSecs) * time.Second,
		})
		body, err := f.Download(ctx, src)
		if err != nil {
			return nil, nil, err
		}
		return body, func() { _ = body.Close() }, nil
	default:
		f, err := os.Open(src)
		if err != nil {
			return nil, nil, eris.Wrap(err, "open export file")
		}
		return f, func() { _ = f.Close() }, nil
	}
}

// localPath materializes the export on disk; xlsx parsing needs a file path.
func localPath(ctx context.Context, src string) (string, func(), error) {
	if !strings.Contains(src, "://") {
		return src, func() {}, nil
	}

	r, cleanup, err := openSource(ctx, src)
	if err != nil {
		return "", nil, err
	}
	defer cleanup()

	tmp, err := os.CreateTemp("", "curator-import-*.xlsx")
	if err != nil {
		return "", nil, eris.Wrap(err, "create temp file")
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, eris.Wrap(err, "download export")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, eris.Wrap(err, "close temp file")
	}
	return tmp.Name(), func() { _ = os.Remove(tmp.Name()) }, nil
}

func init() {
	importCmd.Flags().StringVar(&importSource, "source", "", "export path or URL (required)")
	importCmd.Flags().StringVar(&importFormat, "format", "", "export format: csv or xlsx (default from extension)")
	importCmd.Flags().StringVar(&importDelimiter, "delimiter", "", "CSV delimiter (default ',')")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "XLSX sheet name (default first sheet)")
	_ = importCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(importCmd)
}
