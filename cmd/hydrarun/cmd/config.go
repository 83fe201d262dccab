package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/proxsoc/hydra-runner/internal/profile"
	"github.com/proxsoc/hydra-runner/pkg/logging"
	"github.com/proxsoc/hydra-runner/pkg/models"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective runner configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration after defaults and overrides",
	RunE:  runConfigShow,
}

var configLogrotateCmd = &cobra.Command{
	Use:   "logrotate",
	Short: "Print a logrotate(8) stanza for the pipeline logs",
	Long: `Print a logrotate(8) configuration covering the cron audit log,
the captured pipeline output and the runner's own log. Install it with:

  hydrarun config logrotate | sudo tee /etc/logrotate.d/hydra-pipeline`,
	RunE: runConfigLogrotate,
}

var configProfilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the argument profiles defined in profiles.yaml",
	RunE:  runConfigProfiles,
}

var configShowFormat string

func init() {
	configShowCmd.Flags().StringVarP(&configShowFormat, "format", "f", "yaml", "output format: yaml, json or table")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configLogrotateCmd)
	configCmd.AddCommand(configProfilesCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	switch configShowFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(cfg)
	case "table":
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Setting", "Value")
		table.Append([]string{"Project dir", cfg.ProjectDir})
		table.Append([]string{"Log dir", cfg.LogDir})
		table.Append([]string{"Lock path", cfg.LockPath})
		table.Append([]string{"Cron log", cfg.CronLogPath()})
		table.Append([]string{"Pipeline log", cfg.PipelineLogPath()})
		table.Append([]string{"Profiles file", cfg.ProfilesPath()})
		if cfg.Python != "" {
			table.Append([]string{"Python override", cfg.Python})
		}
		table.Append([]string{"Module", cfg.Module})
		table.Append([]string{"Syslog tag", cfg.SyslogTag})
		if cfg.MetricsTextfile != "" {
			table.Append([]string{"Metrics textfile", cfg.MetricsTextfile})
		}
		table.Append([]string{"Log level", cfg.LogLevel})
		table.Append([]string{"History DB", cfg.DBType})
		return table.Render()
	default:
		return fmt.Errorf("unknown format %q (want yaml, json or table)", configShowFormat)
	}
}

func runConfigLogrotate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Print(logging.GenerateLogrotateConfig(cfg.LogDir))
	return nil
}

func runConfigProfiles(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	profiles, err := profile.Load(cfg.ProfilesPath())
	if err != nil {
		return err
	}

	names := profiles.Names()
	if len(names) == 0 {
		fmt.Printf("No profiles defined in %s\n", cfg.ProfilesPath())
		return nil
	}

	if IsJSONOutput() {
		out := make(map[string][]string, len(names))
		for _, name := range names {
			args, _ := profiles.Expand(name)
			out[name] = args
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Profile", "Arguments")
	for _, name := range names {
		args, _ := profiles.Expand(name)
		table.Append(name, models.FormatArgs(args))
	}
	return table.Render()
}
