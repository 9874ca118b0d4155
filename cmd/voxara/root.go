package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pureportal/voxara/pkg/voxara/config"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "voxara [path]",
		Short: "Analyze where disk space goes",
		Long: `Voxara scans directories, aggregates sizes into a tree, and reports
the largest subdirectories and files. Scans run locally or on a remote
voxarad agent over TCP.

Examples:
  voxara                          # Scan current directory
  voxara ~/Downloads              # Scan specific directory
  voxara -q "ext:mov size>1gb" .  # Filter the report with a query
  voxara --remote nas:7474 /srv   # Scan on a remote agent
  voxara --watch ~/Downloads      # Re-scan when the directory changes
  voxara history                  # Recently scanned paths`,
		Args: cobra.MaximumNArgs(1),
		RunE: runScan,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/voxara/config.yaml)")
	rootCmd.PersistentFlags().StringP("remote", "r", "", "remote agent address (host:port)")
	rootCmd.PersistentFlags().String("token", "", "shared auth token for the remote agent")
	rootCmd.PersistentFlags().BoolP("quiet", "Q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")

	// Scan flags
	rootCmd.Flags().StringP("priority", "p", "", "scan priority (performance, balanced, low)")
	rootCmd.Flags().StringP("throttle", "t", "", "scan throttle (off, low, medium, high)")
	rootCmd.Flags().StringSliceP("exclude", "e", nil, "exclude glob patterns (repeatable)")
	rootCmd.Flags().String("include-ext", "", "comma-separated extensions to include")
	rootCmd.Flags().String("exclude-ext", "", "comma-separated extensions to exclude")
	rootCmd.Flags().String("include-name", "", "comma-separated name substrings to include")
	rootCmd.Flags().String("exclude-name", "", "comma-separated name substrings to exclude")
	rootCmd.Flags().StringP("min-size", "s", "", "minimum file size (e.g., 100M, 1G)")
	rootCmd.Flags().String("max-size", "", "maximum file size")
	rootCmd.Flags().String("include-regex", "", "regex paths must match")
	rootCmd.Flags().String("exclude-regex", "", "regex paths must not match")
	rootCmd.Flags().StringP("search", "q", "", "result query (name:, path:, ext:, regex:, size<>, free text)")
	rootCmd.Flags().StringP("output", "o", "pretty", "output format (pretty, plain, json, jsonl)")
	rootCmd.Flags().BoolP("watch", "w", false, "keep running and re-scan when the directory changes")

	_ = viper.BindPFlag("remote.address", rootCmd.PersistentFlags().Lookup("remote"))
	_ = viper.BindPFlag("remote.token", rootCmd.PersistentFlags().Lookup("token"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	_ = viper.BindPFlag("scan.priority", rootCmd.Flags().Lookup("priority"))
	_ = viper.BindPFlag("scan.throttle", rootCmd.Flags().Lookup("throttle"))
	_ = viper.BindPFlag("scan.exclude", rootCmd.Flags().Lookup("exclude"))
	_ = viper.BindPFlag("scan.include_ext", rootCmd.Flags().Lookup("include-ext"))
	_ = viper.BindPFlag("scan.exclude_ext", rootCmd.Flags().Lookup("exclude-ext"))
	_ = viper.BindPFlag("scan.include_name", rootCmd.Flags().Lookup("include-name"))
	_ = viper.BindPFlag("scan.exclude_name", rootCmd.Flags().Lookup("exclude-name"))
	_ = viper.BindPFlag("scan.min_size", rootCmd.Flags().Lookup("min-size"))
	_ = viper.BindPFlag("scan.max_size", rootCmd.Flags().Lookup("max-size"))
	_ = viper.BindPFlag("scan.include_regex", rootCmd.Flags().Lookup("include-regex"))
	_ = viper.BindPFlag("scan.exclude_regex", rootCmd.Flags().Lookup("exclude-regex"))
	_ = viper.BindPFlag("search", rootCmd.Flags().Lookup("search"))
	_ = viper.BindPFlag("output", rootCmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("watch", rootCmd.Flags().Lookup("watch"))
}

// initConfig reads in config file and environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")

		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			viper.AddConfigPath(filepath.Join(xdgConfigHome, "voxara"))
		}
		homeDir, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(homeDir, ".config", "voxara"))
		}
	}

	viper.SetEnvPrefix("VOXARA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("default_path", config.DefaultPath)
	viper.SetDefault("scan.priority", "balanced")
	viper.SetDefault("scan.throttle", "off")
	viper.SetDefault("scan.exclude", config.DefaultExclusions)
	viper.SetDefault("agent.bind", config.DefaultAgentBind)
	viper.SetDefault("logging.level", "info")

	// Read config file (ignore if not found)
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...any) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...any) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}
