package translator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/withobsrvr/stackctl/internal/capability"
	"github.com/withobsrvr/stackctl/internal/core"
	"github.com/withobsrvr/stackctl/internal/document"
	"github.com/withobsrvr/stackctl/internal/emitter"
	"github.com/withobsrvr/stackctl/internal/generator"
	"github.com/withobsrvr/stackctl/internal/ir"
	"github.com/withobsrvr/stackctl/internal/metrics"
	"github.com/withobsrvr/stackctl/internal/model"
	"github.com/withobsrvr/stackctl/internal/utils/logger"
)

// Request describes one generation
type Request struct {
	Formats []model.Format
	Options model.TranslationOptions
	// Strict turns capability warnings into per-format errors
	Strict bool
	// OutputDir receives the emitted trees. Empty skips emission.
	OutputDir string
}

// FormatResult is the outcome for one format
type FormatResult struct {
	Format   model.Format
	Warnings []capability.Warning
	Tree     *document.Tree
	Emitted  *emitter.Result
	Err      error
	Duration time.Duration
}

// Result is the outcome of a generation. Formats follow the request order.
type Result struct {
	RequestID string
	Records   []ir.Record
	Warnings  []capability.Warning
	Formats   []*FormatResult
}

// Format returns the result of one format
func (r *Result) Format(format model.Format) (*FormatResult, bool) {
	for _, fr := range r.Formats {
		if fr.Format == format {
			return fr, true
		}
	}
	return nil, false
}

// Err joins the errors of every failed format
func (r *Result) Err() error {
	var errs []error
	for _, fr := range r.Formats {
		if fr.Err != nil {
			errs = append(errs, fr.Err)
		}
	}
	return errors.Join(errs...)
}

// Translator runs the generation pipeline: resolve, build the IR, then
// validate, generate and emit each requested format
type Translator struct {
	emitter *emitter.Emitter
	metrics *metrics.Registry
}

// Option configures a Translator
type Option func(*Translator)

// WithEmitter sets the emitter used when a request has an output directory
func WithEmitter(e *emitter.Emitter) Option {
	return func(t *Translator) {
		t.emitter = e
	}
}

// WithMetrics records generation metrics into r
func WithMetrics(r *metrics.Registry) Option {
	return func(t *Translator) {
		t.metrics = r
	}
}

// New creates a Translator
func New(opts ...Option) *Translator {
	t := &Translator{}
	for _, opt := range opts {
		opt(t)
	}
	if t.emitter == nil {
		t.emitter = emitter.New()
	}
	return t
}

// Generate translates g into every requested format. Graph-level failures
// (cycles, dangling references) abort all formats and are returned as the
// error. Failures of a single format are reported in its FormatResult and
// do not affect the others.
func (t *Translator) Generate(ctx context.Context, g *model.Graph, req Request) (*Result, error) {
	return t.run(ctx, g, req, true)
}

// Validate runs everything Generate does except generation and emission
func (t *Translator) Validate(ctx context.Context, g *model.Graph, req Request) (*Result, error) {
	return t.run(ctx, g, req, false)
}

func (t *Translator) run(ctx context.Context, g *model.Graph, req Request, generate bool) (*Result, error) {
	if len(req.Formats) == 0 {
		return nil, fmt.Errorf("no output formats requested")
	}

	result := &Result{RequestID: uuid.NewString()}
	log := logger.With(zap.String("request_id", result.RequestID))
	log.Debug("Starting generation",
		zap.String("graph", g.Name),
		zap.Int("nodes", g.Len()),
		zap.Int("formats", len(req.Formats)))

	order, err := core.Resolve(g)
	if err != nil {
		return nil, err
	}
	built, err := ir.Build(g, order)
	if err != nil {
		return nil, err
	}
	result.Records = built.Records()
	if t.metrics != nil {
		for _, rec := range result.Records {
			t.metrics.RecordRecord(string(rec.Kind))
		}
	}
	log.Debug("Built IR", zap.Int("records", len(result.Records)))

	report, err := capability.Validate(result.Records, req.Formats, capability.Options{Strict: req.Strict})
	if err != nil {
		return nil, err
	}
	result.Warnings = report.Warnings

	result.Formats = make([]*FormatResult, len(req.Formats))
	for i, format := range req.Formats {
		result.Formats[i] = &FormatResult{
			Format:   format,
			Warnings: report.WarningsFor(format),
			Err:      report.Err(format),
		}
		if t.metrics != nil {
			t.metrics.RecordWarnings(string(format), len(result.Formats[i].Warnings))
		}
	}
	if !generate {
		return result, nil
	}

	opts := req.Options.WithDefaults()
	ctx = emitter.WithRequestID(ctx, result.RequestID)

	eg, egCtx := errgroup.WithContext(ctx)
	for _, fr := range result.Formats {
		fr := fr
		eg.Go(func() error {
			start := time.Now()
			if fr.Err == nil {
				fr.Err = t.generateFormat(egCtx, log, fr, result.Records, report.Exclusions[fr.Format], opts, req.OutputDir)
			}
			fr.Duration = time.Since(start)
			if t.metrics != nil {
				t.metrics.RecordGeneration(string(fr.Format), fr.Err, fr.Duration)
			}
			// only cancellation stops the other formats
			if errors.Is(fr.Err, context.Canceled) || errors.Is(fr.Err, context.DeadlineExceeded) {
				return fr.Err
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return result, err
	}

	log.Debug("Finished generation", zap.Int("warnings", len(result.Warnings)))
	return result, nil
}

func (t *Translator) generateFormat(ctx context.Context, log *zap.Logger, fr *FormatResult, records []ir.Record, exclusions ir.Exclusions, opts model.TranslationOptions, outputDir string) error {
	gen, err := generator.ForFormat(fr.Format)
	if err != nil {
		return err
	}
	tree, err := gen.Generate(records, exclusions, opts)
	if err != nil {
		return fmt.Errorf("generate %s: %w", fr.Format, err)
	}
	fr.Tree = tree
	log.Debug("Generated tree",
		zap.String("format", string(fr.Format)),
		zap.Int("files", len(tree.Files)))

	if outputDir == "" {
		return nil
	}
	emitted, err := t.emitter.Emit(ctx, tree, outputDir)
	if err != nil {
		return err
	}
	fr.Emitted = emitted
	if t.metrics != nil {
		t.metrics.RecordFilesWritten(string(fr.Format), len(emitted.Written))
	}
	return nil
}
