// Package scan implements the scan subcommand, the main ingestion entry
// point.
package scan

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jiangyuyi/feather-trace/internal/archive"
	"github.com/jiangyuyi/feather-trace/internal/conf"
	"github.com/jiangyuyi/feather-trace/internal/datastore"
	"github.com/jiangyuyi/feather-trace/internal/detection"
	"github.com/jiangyuyi/feather-trace/internal/logging"
	"github.com/jiangyuyi/feather-trace/internal/observability"
	"github.com/jiangyuyi/feather-trace/internal/pipeline"
	"github.com/jiangyuyi/feather-trace/internal/recognition"
	"github.com/jiangyuyi/feather-trace/internal/storage"
	"github.com/jiangyuyi/feather-trace/internal/taxonomy"
)

// Command creates the scan subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	var startDate, endDate string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan sources and archive identified photos",
		Long: "Walk the configured source directories, identify the photographed " +
			"species and move each photo into the archive layout.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(settings, startDate, endDate)
		},
	}

	cmd.Flags().StringVar(&startDate, "start", viper.GetString("scan.start"), "Only ingest photos taken on or after this date (YYYYMMDD)")
	cmd.Flags().StringVar(&endDate, "end", viper.GetString("scan.end"), "Only ingest photos taken on or before this date (YYYYMMDD)")

	return cmd
}

// runScan wires the runtime together and executes one ingestion run.
// SIGINT/SIGTERM cancel the run cooperatively; in-flight batches are
// drained and the run is recorded as cancelled.
func runScan(settings *conf.Settings, startDate, endDate string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ds := datastore.New(settings)
	if ds == nil {
		return fmt.Errorf("no datastore enabled in configuration")
	}
	if err := ds.Open(); err != nil {
		return err
	}
	defer func() {
		if err := ds.Close(); err != nil {
			logging.ForService("scan").Error("closing datastore", "error", err)
		}
	}()

	provider, err := storage.NewLocalProvider(allowedRoots(settings))
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	writer := archive.NewMetadataWriter()
	defer func() {
		if err := writer.Close(); err != nil {
			logging.ForService("scan").Warn("closing tag writer", "error", err)
		}
	}()

	archiver := archive.NewArchiver(
		provider,
		ds,
		taxonomy.NewLookup(ds),
		writer,
		archive.NewPathGenerator(settings.Output.Template, settings.Output.Root),
		metrics,
		settings.Recognition.AlternativesThreshold,
		settings.Recognition.LowConfidenceThreshold,
	)

	coordinator := recognition.NewCoordinator(
		settings.Processing.BatchSize,
		settings.Recognition.TopK,
		func() (recognition.Recognizer, error) {
			return recognition.NewServiceRecognizer(settings.Recognition.ServiceURL), nil
		},
		archiver.HandleResult,
		metrics,
	)

	detector := detection.NewServiceDetector(
		settings.Recognition.ServiceURL,
		settings.Processing.DetectionConfidence,
		settings.Recognition.Device,
	)

	return pipeline.New(settings, ds, provider, detector, coordinator, metrics).
		Run(ctx, startDate, endDate)
}

// allowedRoots confines filesystem access to the configured trees.
func allowedRoots(settings *conf.Settings) []string {
	roots := make([]string, 0, len(settings.Sources)+2)
	for _, src := range settings.Sources {
		roots = append(roots, src.Path)
	}
	roots = append(roots, settings.Output.Root)
	// Crops are staged under the temp workspace before the final move.
	if settings.Processing.TempDir != "" {
		roots = append(roots, settings.Processing.TempDir)
	} else {
		roots = append(roots, os.TempDir())
	}
	return roots
}
