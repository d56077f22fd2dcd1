package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// settings merges flags, the config file and MOONFLOW_* environment
// variables. Commands read every option through it.
var settings = viper.New()

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "moonflow",
	Short: "Normalizing flow enhanced MCMC with evidence estimation",
	Long: `moonflow samples the dual moon density with a flow enhanced MCMC sampler.
Among other features:

  - MALA local steps with RealNVP global proposals retrained every loop
  - Learned harmonic mean evidence with a kernel density or hypersphere model
  - A brute force grid integration cross-check for 2D targets
  - Diagnostic and corner plots
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadSettings(cmd)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "", "config file (default is $HOME/.moonflow.yaml)")
	pf.BoolP("verbose", "v", false, "Verbose logging (default is much more parsimonious)")
	pf.StringP("trace", "t", "", "Trace file: one JSON line per sampler loop and result")
	pf.Int64P("seed", "r", 42, "Random seed to use")
	pf.String("monitor", "", "Address for the HTTP monitor (e.g. :8000); empty disables it")
	pf.StringP("target", "d", "dualmoon", "Target density: dualmoon or gaussian")
	pf.Int("dim", 2, "Dimension of the target")
	pf.Bool("smear-second", false, "Add the term that smears the dual moon along the second coordinate")
}

// loadSettings binds the flags of the running command and then reads the
// config file and environment.
func loadSettings(cmd *cobra.Command) error {
	if err := settings.BindPFlags(cmd.Flags()); err != nil {
		return errors.Wrap(err, "Could not bind flags")
	}

	settings.SetEnvPrefix("MOONFLOW")
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()

	cfgFile := settings.GetString("config")
	if cfgFile != "" {
		settings.SetConfigFile(cfgFile)
		if err := settings.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "Could not read config file %s", cfgFile)
		}
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil // no home, no default config
	}
	defaultCfg := filepath.Join(home, ".moonflow.yaml")
	if _, err := os.Stat(defaultCfg); err != nil {
		return nil
	}
	settings.SetConfigFile(defaultCfg)
	if err := settings.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "Could not read config file %s", defaultCfg)
	}
	return nil
}

// Execute runs the command line. This is called by main.main(). It only
// needs to happen once.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
