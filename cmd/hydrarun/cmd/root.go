package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/proxsoc/hydra-runner/internal/config"
)

var (
	cfgFile      string
	outputFormat string

	// exitCode carries the orchestrator's exit code out through main.
	// Startup failures are reported as errors and exit 1 instead.
	exitCode int
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "hydrarun",
	Short: "Cron-safe runner for the Hydra asset sync pipeline",
	Long: `hydrarun wraps the external Hydra orchestrator with single-instance
locking, dual-sink audit logging (cron log + syslog) and run history.

Scheduled runs take a non-blocking advisory lock so overlapping cron
triggers skip cleanly; interactive runs (-i) attach to your terminal and
bypass the lock entirely.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and returns the process exit code
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return exitCode
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.hydrarun/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table or json")
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(filepath.Join(home, ".hydrarun"))
		viper.AddConfigPath("/etc/hydrarun")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("HYDRA")
	viper.AutomaticEnv()

	defaults := config.Default()
	viper.SetDefault("project_dir", defaults.ProjectDir)
	viper.SetDefault("lock_path", defaults.LockPath)
	viper.SetDefault("module", defaults.Module)
	viper.SetDefault("syslog_tag", defaults.SyslogTag)
	viper.SetDefault("log_level", defaults.LogLevel)
	viper.SetDefault("db_type", defaults.DBType)

	// Missing config file is fine: defaults plus env cover the cron case
	_ = viper.ReadInConfig()
}

// loadConfig materializes the effective runner configuration
func loadConfig() (config.Config, error) {
	cfg := config.Config{
		ProjectDir:      viper.GetString("project_dir"),
		LogDir:          viper.GetString("log_dir"),
		LockPath:        viper.GetString("lock_path"),
		Python:          viper.GetString("python"),
		Module:          viper.GetString("module"),
		SyslogTag:       viper.GetString("syslog_tag"),
		MetricsTextfile: viper.GetString("metrics_textfile"),
		LogLevel:        viper.GetString("log_level"),
		DBType:          viper.GetString("db_type"),
		DBPath:          viper.GetString("db_path"),
		DBDSN:           viper.GetString("db_dsn"),
	}
	if err := cfg.Normalize(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// IsJSONOutput returns true if JSON output is requested
func IsJSONOutput() bool {
	return outputFormat == "json"
}
