package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/withobsrvr/stackctl/internal/emitter"
	"github.com/withobsrvr/stackctl/internal/metrics"
	"github.com/withobsrvr/stackctl/internal/output"
	"github.com/withobsrvr/stackctl/internal/storage"
	"github.com/withobsrvr/stackctl/internal/translator"
	"github.com/withobsrvr/stackctl/internal/utils/logger"
	"github.com/withobsrvr/stackctl/internal/watcher"
)

var generateOpts struct {
	file   string
	dryRun bool
	watch  bool
}

var generateCmd = &cobra.Command{
	Use:   "generate -f <stack-file>",
	Short: "Generate deployment configuration for a stack",
	Long: `Generate deployment configuration for every requested format. Each format
gets its own subdirectory of the output directory. A format that fails does
not stop the others, but the command exits non-zero.

Examples:
  # Generate Kubernetes manifests and a Compose file into ./out
  stackctl generate -f stack.yaml -t kubernetes,docker-compose

  # Generate a Helm chart, failing on anything Helm cannot express
  stackctl generate -f stack.yaml -t helm --strict -o deploy

  # Regenerate whenever the declaration changes
  stackctl generate -f stack.yaml -t kustomize --watch`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVarP(&generateOpts.file, "file", "f", "", "stack declaration (.yaml, .json or .cue)")
	generateCmd.Flags().StringP("output-dir", "o", "", "directory receiving the generated formats")
	generateCmd.Flags().String("metrics-textfile", "", "write generation metrics in Prometheus text format to this file")
	generateCmd.Flags().Bool("history", true, "record emissions and prune files a previous run wrote")
	generateCmd.Flags().BoolVar(&generateOpts.dryRun, "dry-run", false, "generate without writing files")
	generateCmd.Flags().BoolVarP(&generateOpts.watch, "watch", "w", false, "regenerate when the declaration changes")

	viper.BindPFlag("output_dir", generateCmd.Flags().Lookup("output-dir"))
	viper.BindPFlag("metrics.textfile", generateCmd.Flags().Lookup("metrics-textfile"))
	viper.BindPFlag("history.enabled", generateCmd.Flags().Lookup("history"))
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if generateOpts.file == "" {
		logger.Error("Missing stack file", zap.String("command", "generate"))
		return fmt.Errorf("stack file is required. Use -f to specify a file")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reg := metrics.NewRegistry()
	opts := []translator.Option{translator.WithMetrics(reg)}

	if cfg.History.Enabled && !generateOpts.dryRun {
		ledger := storage.NewBoltDBStorage(&storage.BoltOptions{Path: cfg.History.Path})
		if err := ledger.Open(); err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer ledger.Close()
		opts = append(opts, translator.WithEmitter(emitter.New(emitter.WithLedger(ledger))))
	}

	t := translator.New(opts...)
	p := output.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outputDir := cfg.OutputDir
	if generateOpts.dryRun {
		outputDir = ""
	}

	generate := func(path string) error {
		g, req, err := loadStack(cfg, path, outputDir)
		if err != nil {
			return err
		}

		logger.Info("Generating stack",
			zap.String("file", path),
			zap.String("graph", g.Name),
			zap.Int("formats", len(req.Formats)))

		result, err := t.Generate(ctx, g, req)
		if err != nil {
			return err
		}
		genErr := report(p, result)

		if cfg.Metrics.Textfile != "" {
			if err := reg.WriteTextfile(cfg.Metrics.Textfile); err != nil {
				logger.Warn("Failed to write metrics textfile",
					zap.String("path", cfg.Metrics.Textfile),
					zap.Error(err))
			}
		}
		return genErr
	}

	err = generate(generateOpts.file)
	if !generateOpts.watch {
		return err
	}
	if err != nil {
		p.Failure("%v", err)
	}

	return watchStack(ctx, p, generateOpts.file, generate)
}

// watchStack regenerates on every change of path until ctx is done
func watchStack(ctx context.Context, p *output.Printer, path string, generate func(string) error) error {
	w, err := watcher.NewWatcher(func(changed string) error {
		if err := generate(changed); err != nil {
			p.Failure("%v", err)
			return err
		}
		return nil
	}, watcher.DefaultDebounce)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Watch(path); err != nil {
		return err
	}

	p.Println("Watching", output.Noun(path), "for changes. Press Ctrl+C to stop.")
	<-ctx.Done()
	return nil
}
