package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ifgstack/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the ifgstack configuration",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool
	var toStdout bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write the sample configuration",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if toStdout {
				_, err := fmt.Fprint(out, config.SampleConfig())
				return err
			}

			target, err := configTarget(targetPath)
			if err != nil {
				return err
			}
			if _, err := os.Stat(target); err == nil && !overwrite {
				return fmt.Errorf("%s already exists; pass --overwrite to replace it or --stdout to print the sample", target)
			} else if err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("check config path: %w", err)
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Point [filter].command at the interferogram filter and [stages] at the stack wrappers,")
			fmt.Fprintln(out, "then run `ifgstack check` from a working directory.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing configuration file")
	cmd.Flags().BoolVar(&toStdout, "stdout", false, "Print the sample instead of writing it")
	return cmd
}

func configTarget(flagValue string) (string, error) {
	target := strings.TrimSpace(flagValue)
	if target == "" {
		path, err := config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("determine default config path: %w", err)
		}
		return path, nil
	}
	path, err := config.ExpandPath(target)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return path, nil
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Load the configuration and print the settings a run would use",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, resolved, exists, err := config.Load(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			source := resolved
			if !exists {
				source = resolved + " (not found; built-in defaults)"
			}
			fmt.Fprintf(out, "Config: %s\n\n", source)
			writeTable(out, []string{"Setting", "Value"}, effectiveSettings(cfg), nil)
			fmt.Fprintln(out, "\nConfiguration valid")
			return nil
		},
	}
}

// effectiveSettings lists the resolved values that shape a run.
func effectiveSettings(cfg *config.Config) [][]string {
	catalogTarget := cfg.Catalog.SQLitePath
	if cfg.Catalog.Backend == config.CatalogHTTP {
		catalogTarget = cfg.Catalog.URL + " index " + cfg.Catalog.Index
	}
	publishTarget := "disabled"
	if cfg.Publish.Enabled {
		publishTarget = fmt.Sprintf("%s/%s/%s", cfg.Publish.Endpoint, cfg.Publish.Bucket, cfg.Publish.Prefix)
	}
	stageTimeout := "none"
	if d := cfg.StageTimeout(); d > 0 {
		stageTimeout = d.String()
	}
	prefix := cfg.Bundle.IDPrefix
	if prefix == "" {
		prefix = "(none)"
	}
	return [][]string{
		{"State directory", cfg.Paths.StateDir},
		{"Catalog", cfg.Catalog.Backend + ": " + catalogTarget},
		{"Filter", strings.Join(cfg.Filter.Command, " ")},
		{"Python", cfg.Stages.Python},
		{"Raw stack", cfg.Stages.PrepStackCommand},
		{"Processed stack", cfg.Stages.ProcessStackCommand},
		{"Stage timeout", stageTimeout},
		{"Identity prefix", prefix},
		{"Time axis reader", cfg.Bundle.TimeAxisCommand},
		{"Publish", publishTarget},
	}
}
