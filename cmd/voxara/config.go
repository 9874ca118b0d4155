package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pureportal/voxara/pkg/voxara/config"
	"github.com/pureportal/voxara/pkg/voxara/logging"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View the resolved voxara configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration directory",
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// runConfigShow prints the resolved configuration.
func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Printf("default_path: %s\n", cfg.DefaultPath)
	fmt.Printf("scan:\n")
	fmt.Printf("  priority: %s\n", cfg.Scan.Priority)
	fmt.Printf("  throttle: %s\n", cfg.Scan.Throttle)
	fmt.Printf("  exclude: [%s]\n", strings.Join(cfg.Scan.Exclude, ", "))
	fmt.Printf("agent:\n")
	fmt.Printf("  bind: %s\n", cfg.Agent.Bind)
	fmt.Printf("  max_conns: %d\n", cfg.Agent.MaxConns)
	fmt.Printf("  token: %s\n", maskToken(cfg.Agent.Token))
	fmt.Printf("remote:\n")
	fmt.Printf("  address: %s\n", cfg.Remote.Address)
	fmt.Printf("  token: %s\n", maskToken(cfg.Remote.Token))
	fmt.Printf("logging:\n")
	fmt.Printf("  level: %s\n", cfg.Logging.Level)
	logPath := cfg.Logging.Path
	if logPath == "" {
		logPath = logging.DefaultLogPath()
	}
	fmt.Printf("  path: %s\n", logPath)
	fmt.Printf("store: %s\n", config.DataDir())
	return nil
}

// runConfigPath prints where the config file is looked up.
func runConfigPath(cmd *cobra.Command, args []string) error {
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	fmt.Println(dir)
	return nil
}

// maskToken hides all but the length of a configured token.
func maskToken(token string) string {
	if token == "" {
		return "(none)"
	}
	return strings.Repeat("*", len(token))
}
