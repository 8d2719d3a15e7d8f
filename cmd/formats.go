package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/withobsrvr/stackctl/internal/capability"
	"github.com/withobsrvr/stackctl/internal/model"
	"github.com/withobsrvr/stackctl/internal/output"
)

var formatDescriptions = map[model.Format]string{
	model.Kubernetes:    "plain manifests, one file or one file per object",
	model.DockerCompose: "a Compose file with services, volumes and networks",
	model.Helm:          "a chart with templates and values.yaml",
	model.Kustomize:     "a base kustomization plus optional overlays",
	model.Terraform:     "a module using the kubernetes provider",
}

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List supported output formats",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tbl := output.NewTable("FORMAT", "DESCRIPTION", "UNSUPPORTED")
		for _, f := range model.AllFormats {
			tbl.Row(string(f), formatDescriptions[f], fmt.Sprint(len(capability.Descriptors(f))))
		}
		fmt.Fprintln(cmd.OutOrStdout(), tbl.String())
		return nil
	},
}

var capabilitiesOpts struct {
	format string
}

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "Show which formats can express each resource kind and field",
	Long: `Show the capability matrix used to validate stacks. Each row names a
resource kind or one of its fields and the formats that can render it.

Examples:
  # Show the whole matrix
  stackctl capabilities

  # Show only what Docker Compose cannot express
  stackctl capabilities --format compose`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var format model.Format
		if capabilitiesOpts.format != "" {
			f, err := model.ParseFormat(capabilitiesOpts.format)
			if err != nil {
				return err
			}
			format = f
		}

		tbl := output.NewTable("PATH", "FORMATS", "RECOMMENDATION")
		for _, d := range capability.Descriptors(format) {
			tbl.Row(d.FieldPath, d.FormatNames(), d.Recommendation)
		}
		if tbl.Len() == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s can express every resource kind and field\n", format)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), tbl.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(formatsCmd)
	rootCmd.AddCommand(capabilitiesCmd)
	capabilitiesCmd.Flags().StringVar(&capabilitiesOpts.format, "format", "", "only show what this format cannot express")
}
