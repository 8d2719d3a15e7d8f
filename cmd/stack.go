package cmd

import (
	"fmt"

	"github.com/withobsrvr/stackctl/internal/capability"
	"github.com/withobsrvr/stackctl/internal/config"
	"github.com/withobsrvr/stackctl/internal/model"
	"github.com/withobsrvr/stackctl/internal/output"
	"github.com/withobsrvr/stackctl/internal/translator"
	"github.com/withobsrvr/stackctl/internal/translator/parsers"
)

// loadStack parses a declaration file into a graph and the request that
// generates it with the current configuration
func loadStack(cfg *config.Config, path, outputDir string) (*model.Graph, translator.Request, error) {
	g, decl, err := parsers.LoadGraph(path)
	if err != nil {
		return nil, translator.Request{}, err
	}

	formats, err := cfg.OutputFormats()
	if err != nil {
		return nil, translator.Request{}, err
	}
	if len(formats) == 0 {
		return nil, translator.Request{}, fmt.Errorf("no output formats configured. Use -t to specify one")
	}

	req := translator.Request{
		Formats:   formats,
		Options:   cfg.TranslationOptions(decl.Metadata.Name, decl.Metadata.Labels),
		Strict:    cfg.Strict,
		OutputDir: outputDir,
	}
	return g, req, nil
}

// report prints warnings and the outcome of every format. It returns the
// joined errors of the formats that failed.
func report(p *output.Printer, result *translator.Result) error {
	p.Warnings(result.Warnings)

	for _, fr := range result.Formats {
		if fr.Err != nil {
			p.Failure("%s: %v", fr.Format, fr.Err)
			continue
		}
		switch {
		case fr.Emitted != nil:
			p.Success("%s: %d written, %d unchanged, %d pruned in %s",
				output.Noun(string(fr.Format)),
				len(fr.Emitted.Written), len(fr.Emitted.Unchanged), len(fr.Emitted.Pruned),
				fr.Emitted.Dir)
		case fr.Tree != nil:
			p.Success("%s: %d files", output.Noun(string(fr.Format)), len(fr.Tree.Files))
		default:
			p.Success("%s: %s", output.Noun(string(fr.Format)), warningSummary(fr.Warnings))
		}
	}

	if err := result.Err(); err != nil {
		return fmt.Errorf("one or more formats failed: %w", err)
	}
	return nil
}

func warningSummary(warnings []capability.Warning) string {
	switch len(warnings) {
	case 0:
		return "fully supported"
	case 1:
		return "1 warning"
	}
	return fmt.Sprintf("%d warnings", len(warnings))
}
