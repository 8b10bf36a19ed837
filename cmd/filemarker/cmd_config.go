package main

import (
	"fmt"
	"os"

	"filemarker/internal/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configCmd groups config subcommands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage .filemarker.yaml",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default .filemarker.yaml into the workspace",
	Args:  noArgs,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  noArgs,
	RunE:  runConfigShow,
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	ws, err := workspaceDir()
	if err != nil {
		return err
	}
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath(ws)
	}
	if _, err := os.Stat(path); err == nil && !configForce {
		return &exitError{code: ExitUsage, err: fmt.Errorf("%s already exists (use --force to overwrite)", path)}
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(s.cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Print(string(data))
	return nil
}
