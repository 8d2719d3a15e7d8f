package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/withobsrvr/stackctl/cmd/version"
	"github.com/withobsrvr/stackctl/internal/config"
	"github.com/withobsrvr/stackctl/internal/utils/logger"
)

var (
	cfgFile  string
	logLevel string
	formats  []string
	strict   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stackctl",
	Short: "Generate deployment configuration from a stack declaration",
	Long: `stackctl turns a declarative stack of components and their relationships
into deployment configuration for Kubernetes, Docker Compose, Helm, Kustomize
and Terraform. Every format is generated from the same validated model, and
fields a format cannot express are reported as warnings.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	defer logger.Sync()

	if err := rootCmd.Execute(); err != nil {
		logger.Error("Command execution failed", zap.Error(err))
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/stackctl/stackctl.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringSliceVarP(&formats, "to", "t", nil, "output formats (kubernetes, docker-compose, helm, kustomize, terraform)")
	rootCmd.PersistentFlags().BoolVar(&strict, "strict", false, "treat capability warnings as errors")

	// Bind flags to viper
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("formats", rootCmd.PersistentFlags().Lookup("to"))
	viper.BindPFlag("strict", rootCmd.PersistentFlags().Lookup("strict"))

	rootCmd.AddCommand(version.NewCommand())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	config.Configure(viper.GetViper())

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(config.Dir())
		viper.SetConfigType("yaml")
		viper.SetConfigName("stackctl")
	}

	// If a config file is found, read it in.
	readErr := viper.ReadInConfig()

	// Initialize the logger
	if err := logger.Init(viper.GetString("log_level")); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if readErr == nil {
		logger.Debug("Using config file", zap.String("file", viper.ConfigFileUsed()))
	} else if cfgFile != "" {
		logger.Warn("Failed to read config file", zap.String("file", cfgFile), zap.Error(readErr))
	}
}

// loadConfig decodes the merged configuration
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
