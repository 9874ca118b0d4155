// Package main provides the entry point for voxarad, the headless
// voxara remote agent.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pureportal/voxara/pkg/agent"
	"github.com/pureportal/voxara/pkg/voxara/config"
	"github.com/pureportal/voxara/pkg/voxara/logging"
)

var (
	bindAddr string
	token    string
	maxConns int
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "voxarad",
	Short: "Headless voxara remote agent",
	Long: `Voxarad serves directory listings, disk info, and scans to voxara
clients over TCP. Scan results stream to every connected client, so a
viewer that reconnects mid-scan picks the stream back up.

Examples:
  voxarad                              # Listen on the configured bind address
  voxarad --bind 0.0.0.0:7474          # Listen on all interfaces
  voxarad --token s3cret               # Require a shared token`,
	RunE: runAgent,
}

func init() {
	rootCmd.Flags().StringVar(&bindAddr, "bind", "", "listen address (default from config)")
	rootCmd.Flags().StringVar(&token, "token", "", "shared auth token (empty disables auth)")
	rootCmd.Flags().IntVar(&maxConns, "max-conns", 0, "max simultaneous clients (default from config)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

func runAgent(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	if err := logging.Init(logging.Config{
		Level:      level,
		Path:       cfg.Logging.Path,
		Components: cfg.Logging.Components,
		Console:    true,
	}); err != nil {
		return err
	}
	defer logging.Close()

	agentCfg := agent.Config{
		Bind:     cfg.Agent.Bind,
		Token:    cfg.Agent.Token,
		MaxConns: cfg.Agent.MaxConns,
		Headless: true,
		Exclude:  cfg.Scan.Exclude,
	}
	if bindAddr != "" {
		agentCfg.Bind = bindAddr
	}
	if token != "" {
		agentCfg.Token = token
	}
	if maxConns > 0 {
		agentCfg.MaxConns = maxConns
	}

	done := make(chan struct{})
	srv, err := agent.NewServer(agentCfg, func() { close(done) })
	if err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigs:
			logging.Get("agent").Info("shutting down", "signal", sig)
			srv.Close()
		case <-done:
		}
	}()

	fmt.Printf("voxarad listening on %s\n", srv.Addr())
	return srv.Serve()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
