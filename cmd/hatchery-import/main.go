// Command hatchery-import runs one spreadsheet import against the hatchery
// store: it loads the sheet, executes the reconciliation run for the chosen
// variant, prints the audit log, and archives the sheet and log to the
// configured blob store.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"hatcherycore/internal/blob"
	"hatcherycore/internal/core"
	"hatcherycore/internal/importer"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		file      = flag.String("file", "", "path to the sheet to import (xlsx or csv)")
		variant   = flag.String("variant", "", "sheet variant: mactaquac-electrofishing, coldbrook-electrofishing, tank-movement")
		eventID   = flag.String("event", "", "id of the event the rows belong to")
		eventName = flag.String("event-name", "", "create a new event with this name instead of -event")
		format    = flag.String("format", "", "sheet format, xlsx or csv (default: from file extension)")
		seed      = flag.Bool("seed", false, "seed the fixed reference codes before importing")
		marks     = flag.String("marks", "", "comma-separated program-group mark names to seed with -seed")
		metricsAt = flag.String("metrics-listen", "", "serve prometheus metrics on this address during the run")
	)
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		return 2
	}
	defer logger.Sync()

	if *file == "" || *variant == "" {
		logger.Error("missing required flags", zap.String("usage", "-file and -variant are required"))
		return 2
	}
	cfg, err := importer.ConfigByVariant(*variant)
	if err != nil {
		logger.Error("bad variant", zap.Error(err))
		return 2
	}

	sheetFormat := importer.Format(*format)
	if sheetFormat == "" {
		switch strings.ToLower(filepath.Ext(*file)) {
		case ".csv":
			sheetFormat = importer.FormatCSV
		default:
			sheetFormat = importer.FormatXLSX
		}
	}

	ctx := context.Background()

	engine := core.NewDefaultRulesEngine()
	store, err := core.OpenPersistentStore(engine)
	if err != nil {
		logger.Error("open store", zap.Error(err))
		return 2
	}

	registry := prometheus.NewRegistry()
	recorder, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		logger.Error("init metrics", zap.Error(err))
		return 2
	}
	if *metricsAt != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			if serr := http.ListenAndServe(*metricsAt, mux); serr != nil {
				logger.Warn("metrics listener stopped", zap.Error(serr))
			}
		}()
	}

	svc := core.NewService(store).WithMetrics(recorder)
	if *seed {
		var markNames []string
		for _, m := range strings.Split(*marks, ",") {
			if m = strings.TrimSpace(m); m != "" {
				markNames = append(markNames, m)
			}
		}
		if err := svc.SeedReferenceCodes(ctx, markNames); err != nil {
			logger.Error("seed reference codes", zap.Error(err))
			return 2
		}
		logger.Info("reference codes seeded", zap.Int("marks", len(markNames)))
	}

	event, err := resolveEvent(ctx, svc, *eventID, *eventName)
	if err != nil {
		logger.Error("resolve event", zap.Error(err))
		return 2
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		logger.Error("read sheet", zap.Error(err))
		return 2
	}

	runner := importer.NewRunner(store).WithMetrics(recorder)
	result := runner.Run(ctx, event, cfg, bytes.NewReader(data), sheetFormat)

	fmt.Print(result.Log)
	logger.Info("import finished",
		zap.Bool("success", result.Success),
		zap.String("event", event.ID),
		zap.String("variant", cfg.Variant),
		zap.Int("rows_total", result.RowsTotal),
		zap.Int("rows_parsed", result.RowsParsed),
		zap.Int("rows_entered", result.RowsEntered),
	)

	archive(ctx, logger, *file, data, result, sheetFormat)

	if !result.Success {
		return 1
	}
	return 0
}

func resolveEvent(ctx context.Context, svc *core.Service, id, name string) (core.Event, error) {
	if id != "" {
		return svc.GetEvent(id)
	}
	if name == "" {
		return core.Event{}, fmt.Errorf("either -event or -event-name is required")
	}
	event, _, err := svc.CreateEvent(ctx, core.Event{
		Name:    name,
		StartAt: time.Now().UTC(),
	})
	return event, err
}

// archive stores the original sheet and the audit log side by side in the
// blob store. Archiving is best effort: a failure is logged but never
// changes the import outcome.
func archive(ctx context.Context, logger *zap.Logger, path string, data []byte, result importer.RunResult, format importer.Format) {
	store, err := blob.Open(ctx)
	if err != nil {
		logger.Warn("blob store unavailable, skipping archive", zap.Error(err))
		return
	}
	stamp := time.Now().UTC().Format("20060102T150405Z")
	base := filepath.Base(path)
	prefix := "imports/" + stamp + "/" + base

	contentType := "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	if format == importer.FormatCSV {
		contentType = "text/csv"
	}
	if _, err := store.Put(ctx, prefix, bytes.NewReader(data), blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"success": fmt.Sprintf("%t", result.Success)},
	}); err != nil {
		logger.Warn("archive sheet", zap.Error(err))
		return
	}
	if _, err := store.Put(ctx, prefix+".log.txt", strings.NewReader(result.Log), blob.PutOptions{
		ContentType: "text/plain; charset=utf-8",
	}); err != nil {
		logger.Warn("archive audit log", zap.Error(err))
		return
	}
	logger.Info("sheet archived", zap.String("key", prefix), zap.String("driver", string(store.Driver())))
}
