package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pureportal/voxara/pkg/remote"
	"github.com/pureportal/voxara/pkg/voxara/types"
)

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Interact with a voxarad agent",
	Long: `Query a running voxarad agent directly: list directories, check
disk usage, fetch small files, or stop a headless agent.

The agent address comes from --remote, VOXARA_REMOTE_ADDRESS, or the
config file.

Examples:
  voxara remote -r nas:7474 ls /srv
  voxara remote -r nas:7474 disk /srv
  voxara remote -r nas:7474 read /srv/notes.txt
  voxara remote -r nas:7474 shutdown`,
}

var remoteLsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List remote directories",
	Long:  `List the subdirectories of a remote path. Without a path, lists the remote filesystem roots.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRemoteLs,
}

var remoteDiskCmd = &cobra.Command{
	Use:   "disk <path>",
	Short: "Show remote disk usage",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemoteDisk,
}

var remoteReadCmd = &cobra.Command{
	Use:   "read <path>",
	Short: "Print a small remote file to stdout",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemoteRead,
}

var remoteShutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Stop a headless agent",
	RunE:  runRemoteShutdown,
}

func init() {
	remoteCmd.AddCommand(remoteLsCmd)
	remoteCmd.AddCommand(remoteDiskCmd)
	remoteCmd.AddCommand(remoteReadCmd)
	remoteCmd.AddCommand(remoteShutdownCmd)
	rootCmd.AddCommand(remoteCmd)
}

// connectAgent dials the configured agent for a one-shot command.
func connectAgent() (*remote.Client, error) {
	addr := viper.GetString("remote.address")
	if addr == "" {
		return nil, fmt.Errorf("no agent address: pass --remote or set remote.address")
	}
	client, err := remote.Dial(addr, viper.GetString("remote.token"), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to agent: %w", err)
	}
	return client, nil
}

// runRemoteLs lists remote directories.
func runRemoteLs(cmd *cobra.Command, args []string) error {
	client, err := connectAgent()
	if err != nil {
		return err
	}
	defer client.Close()

	path := ""
	if len(args) > 0 {
		path = args[0]
	}

	data, err := client.List(path)
	if err != nil {
		return err
	}
	if path == "" {
		printInfo("Remote filesystem (%s):", data.OS)
	}
	for _, entry := range data.Entries {
		fmt.Println(entry.Path)
	}
	return nil
}

// runRemoteDisk shows capacity and free space for a remote volume.
func runRemoteDisk(cmd *cobra.Command, args []string) error {
	client, err := connectAgent()
	if err != nil {
		return err
	}
	defer client.Close()

	usage, err := client.Disk(args[0])
	if err != nil {
		return err
	}
	used := usage.TotalBytes - usage.FreeBytes
	fmt.Printf("%s: %s used of %s (%s free)\n", usage.Path,
		types.FormatSize(used), types.FormatSize(usage.TotalBytes),
		types.FormatSize(usage.FreeBytes))
	return nil
}

// runRemoteRead prints a remote file to stdout.
func runRemoteRead(cmd *cobra.Command, args []string) error {
	client, err := connectAgent()
	if err != nil {
		return err
	}
	defer client.Close()

	content, err := client.Read(args[0])
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(content)
	return err
}

// runRemoteShutdown asks a headless agent to exit.
func runRemoteShutdown(cmd *cobra.Command, args []string) error {
	client, err := connectAgent()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Shutdown(); err != nil {
		return err
	}
	printInfo("Shutdown requested.")
	return nil
}
