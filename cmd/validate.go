package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/withobsrvr/stackctl/internal/output"
	"github.com/withobsrvr/stackctl/internal/translator"
	"github.com/withobsrvr/stackctl/internal/utils/logger"
	"github.com/withobsrvr/stackctl/internal/validator"
)

var validateOpts struct {
	file string
}

var validateCmd = &cobra.Command{
	Use:   "validate -f <stack-file>",
	Short: "Validate a stack declaration",
	Long: `Validate a stack declaration without generating anything.

This command checks:
- declaration structure and required fields
- component properties against their kind's schema
- dangling and duplicate references
- dependency cycles
- what each requested format can and cannot express
- host port conflicts, unpinned images and unattached secrets

Examples:
  # Validate against the configured formats
  stackctl validate -f stack.yaml

  # Check that Docker Compose can express everything
  stackctl validate -f stack.yaml -t docker-compose --strict`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := validateOpts.file
		if len(args) > 0 {
			file = args[0]
		}
		if file == "" {
			logger.Error("Missing stack file", zap.String("command", "validate"))
			return fmt.Errorf("stack file is required. Use -f to specify a file")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		g, req, err := loadStack(cfg, file, "")
		if err != nil {
			return err
		}

		result, err := translator.New().Validate(cmd.Context(), g, req)
		if err != nil {
			return err
		}

		logger.Debug("Validated stack",
			zap.String("file", file),
			zap.Int("records", len(result.Records)))

		p := output.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr())
		p.Println(fmt.Sprintf("%s: %d components, %d resources", output.Noun(g.Name), g.Len(), len(result.Records)))
		if err := report(p, result); err != nil {
			return err
		}

		lint := validator.NewValidator(result.Records).Validate()
		fmt.Fprint(cmd.OutOrStdout(), lint.Format())
		if !lint.Valid {
			return fmt.Errorf("stack lint failed with %d error(s)", len(lint.Errors))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVarP(&validateOpts.file, "file", "f", "", "stack declaration (.yaml, .json or .cue)")
}
