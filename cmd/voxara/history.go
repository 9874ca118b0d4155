package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pureportal/voxara/pkg/voxara/config"
	"github.com/pureportal/voxara/pkg/voxara/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recently scanned paths",
	Long: `List the most recently scanned paths, newest first.

Every completed scan records its target path; the list is de-duplicated
and capped at the ten most recent entries.`,
	RunE: runHistory,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the scan history",
	RunE:  runHistoryClear,
}

func init() {
	historyCmd.AddCommand(historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}

// openStore opens the persisted state store.
func openStore() (*store.Store, error) {
	st, err := store.Open(config.DataDir())
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

// runHistory lists the recently scanned paths.
func runHistory(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	paths, err := st.LoadHistory()
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	if len(paths) == 0 {
		printInfo("No scans recorded yet.")
		printInfo("Run 'voxara [path]' to scan a directory.")
		return nil
	}
	for i, path := range paths {
		fmt.Printf("%2d  %s\n", i+1, path)
	}
	return nil
}

// runHistoryClear empties the recently scanned path list.
func runHistoryClear(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.SaveHistory(nil); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	printInfo("History cleared.")
	return nil
}
