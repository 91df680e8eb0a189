package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/veracity/internal/logging"
	"github.com/ppiankov/veracity/internal/model"
)

// Version is overridden at build time with -ldflags
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "veracity",
	Short: "Veracity - multi-source claim verification",
	Long: `Veracity verifies factual claims against several independent evidence
sources at once: AI models, fact-check databases, encyclopedias and web search.

Each claim is decomposed into sub-claims, evidence is gathered in parallel,
linked into a citation graph and scored through a seven-layer consensus.
The result is a calibrated verdict with the evidence and reasoning behind it.

Veracity reports how well a claim is supported. It is not an authority.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command; SIGINT and SIGTERM cancel the command context
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of Veracity.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "veracity %s\n", Version)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.veracity/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

// keyDelim replaces viper's "." so domain names can be map keys
const keyDelim = "::"

// readConfig layers the built-in defaults, the config file and VERACITY_*
// environment variables. An explicit path must exist; the default location
// is optional.
func readConfig(path string) (*viper.Viper, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelim))
	v.SetConfigType("yaml")

	defaults, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("marshal defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".veracity"))
		v.SetConfigName("config")
	}

	// VERACITY_CACHE_BACKEND overrides cache.backend
	v.SetEnvPrefix("VERACITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelim, "_"))
	v.AutomaticEnv()

	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// loadConfig returns the validated engine configuration and the config file
// it came from, if any
func loadConfig(path string) (*model.Config, string, error) {
	v, err := readConfig(path)
	if err != nil {
		return nil, "", err
	}
	cfg := &model.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, "", fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, v.ConfigFileUsed(), nil
}

// newLogger builds the CLI logger; --verbose forces debug level
func newLogger(cfg *model.Config) *zap.Logger {
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	return logging.Must(level, cfg.Logging.Format)
}
