package main

import (
	"bytes"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pureportal/voxara/pkg/remote"
	"github.com/pureportal/voxara/pkg/session"
	"github.com/pureportal/voxara/pkg/voxara/config"
	"github.com/pureportal/voxara/pkg/voxara/engine"
	"github.com/pureportal/voxara/pkg/voxara/logging"
	"github.com/pureportal/voxara/pkg/voxara/output"
	"github.com/pureportal/voxara/pkg/voxara/query"
	"github.com/pureportal/voxara/pkg/voxara/store"
	"github.com/pureportal/voxara/pkg/voxara/topk"
	"github.com/pureportal/voxara/pkg/voxara/types"
)

// runScan is the main scan command handler.
func runScan(_ *cobra.Command, args []string) error {
	if err := initLogging(); err != nil {
		return err
	}
	defer logging.Close()

	remoteAddr := viper.GetString("remote.address")

	// Determine scan path
	scanPath := "."
	if len(args) > 0 {
		scanPath = args[0]
	} else if defaultPath := viper.GetString("default_path"); defaultPath != "" {
		scanPath = defaultPath
	}

	absPath := scanPath
	if remoteAddr == "" {
		var err error
		absPath, err = filepath.Abs(scanPath)
		if err != nil {
			return fmt.Errorf("failed to resolve path: %w", err)
		}
		info, err := os.Stat(absPath)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("path does not exist: %s", absPath)
			}
			return fmt.Errorf("cannot access path: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("path is not a directory: %s", absPath)
		}
	}

	opts, err := buildOptions()
	if err != nil {
		return err
	}

	search := viper.GetString("search")
	q := query.Parse(search)
	var warnings []string
	for _, pattern := range q.InvalidPatterns() {
		warnings = append(warnings, fmt.Sprintf("ignoring invalid regex pattern: %s", pattern))
	}

	formatter, err := output.Get(viper.GetString("output"))
	if err != nil {
		return fmt.Errorf("unknown output format %q: available formats are %v",
			viper.GetString("output"), output.Available())
	}

	// Persisted history and settings. The scan still works when the
	// store cannot be opened (another voxara process may hold the lock).
	var st *store.Store
	if st, err = store.Open(config.DataDir()); err != nil {
		printVerbose("store unavailable: %v", err)
		st = nil
	} else {
		defer st.Close()
	}

	manager, events := newManager(st)

	mode := session.ModeLocal
	if remoteAddr != "" {
		mode = session.ModeRemote
		token := viper.GetString("remote.token")
		if token == "" && st != nil {
			if settings, err := st.LoadSettings(); err == nil {
				token = settings.Token
			}
		}
		client, err := dialRemote(remoteAddr, token, manager, events)
		if err != nil {
			return err
		}
		defer client.Close()
		manager.SetRunner(session.ModeRemote, client)
	} else {
		eng, err := engine.NewLocal(viper.GetStringSlice("scan.exclude"))
		if err != nil {
			return fmt.Errorf("invalid exclude pattern: %w", err)
		}
		manager.SetRunner(session.ModeLocal, session.NewLocalRunner(eng, func(ev engine.Event) {
			manager.Apply(ev)
			events <- ev
		}))
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	if !getQuiet() {
		where := absPath
		if mode == session.ModeRemote {
			where = fmt.Sprintf("%s on %s", absPath, remoteAddr)
		}
		printInfo("Scanning %s...", where)
	}

	if _, err := manager.Start(absPath, opts, mode); err != nil {
		return fmt.Errorf("scan failed to start: %w", err)
	}

	interrupted, err := awaitScan(manager, events, sigs)
	if err != nil {
		return err
	}

	if st != nil {
		saveSettings(st, opts, remoteAddr)
	}

	result := buildResult(manager.State(), q, absPath, mode, remoteAddr, search, warnings, interrupted)
	if err := printResult(formatter, result); err != nil {
		return err
	}

	if viper.GetBool("watch") && mode == session.ModeLocal && !interrupted {
		return watchLoop(manager, events, sigs, formatter, q, absPath, opts, search, warnings)
	}
	return nil
}

// newManager builds the session manager and the event tap used to wait
// for terminal events.
func newManager(st *store.Store) (*session.Manager, chan engine.Event) {
	cfg := session.Config{}
	if st != nil {
		cfg.HistoryStore = st
	}
	return session.NewManager(cfg), make(chan engine.Event, 64)
}

// dialRemote connects to the agent, routing its scan events through the
// manager.
func dialRemote(addr, token string, manager *session.Manager, events chan engine.Event) (*remote.Client, error) {
	client, err := remote.Dial(addr, token, func(ev engine.Event) {
		manager.Apply(ev)
		events <- ev
	}, func(connected bool, err error) {
		if !connected && err != nil {
			printVerbose("remote connection lost: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("connect to agent: %w", err)
	}
	return client, nil
}

// awaitScan blocks until the current session reaches a terminal event.
// An interrupt cancels the scan optimistically and reports interrupted.
func awaitScan(manager *session.Manager, events chan engine.Event, sigs chan os.Signal) (bool, error) {
	current := manager.State().ID
	for {
		select {
		case <-sigs:
			printInfo("\nInterrupted, stopping scan...")
			manager.Cancel()
			return true, nil
		case ev := <-events:
			if ev.SessionID != current || !ev.Kind.Terminal() {
				continue
			}
			if ev.Kind == engine.EventError {
				return false, fmt.Errorf("scan failed: %s", ev.Message)
			}
			return ev.Kind == engine.EventCancelled, nil
		}
	}
}

// buildResult derives the printable result from the session state,
// re-ranking the largest files when a search query is active.
func buildResult(state session.State, q query.Query, source string, mode session.Mode,
	remoteAddr, search string, warnings []string, interrupted bool,
) *output.Result {
	result := &output.Result{
		Summary:     state.Summary,
		Source:      source,
		Mode:        string(mode),
		Remote:      remoteAddr,
		Search:      search,
		Warnings:    warnings,
		Interrupted: interrupted,
	}
	if search != "" && state.Summary != nil && state.Summary.Root != nil {
		filtered := *state.Summary
		filtered.LargestFiles = topk.Largest(state.Summary.Root, topk.DefaultK, func(f types.ScanFile) bool {
			return q.Match(f.Name, f.Path, f.SizeBytes)
		})
		result.Summary = &filtered
	}
	return result
}

func printResult(formatter output.Formatter, result *output.Result) error {
	var buf bytes.Buffer
	if err := formatter.Format(&buf, result); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Print(buf.String())
	return nil
}

// watchLoop keeps the process alive, re-scanning after the filesystem
// under the root settles down.
func watchLoop(manager *session.Manager, events chan engine.Event, sigs chan os.Signal,
	formatter output.Formatter, q query.Query, absPath string,
	opts types.ScanOptions, search string, warnings []string,
) error {
	rescan := make(chan struct{}, 1)
	watcher, err := session.NewWatcher(session.DefaultWatchWindow, func() {
		select {
		case rescan <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("watch mode unavailable: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Watch(absPath); err != nil {
		return fmt.Errorf("watch %s: %w", absPath, err)
	}

	printInfo("Watching %s for changes (Ctrl-C to stop)...", absPath)
	for {
		select {
		case <-sigs:
			printInfo("\nStopping watch.")
			return nil
		case <-rescan:
			printVerbose("change detected, re-scanning")
			if _, err := manager.Restart(absPath, opts, session.ModeLocal); err != nil {
				return fmt.Errorf("re-scan failed to start: %w", err)
			}
			interrupted, err := awaitScan(manager, events, sigs)
			if err != nil {
				return err
			}
			result := buildResult(manager.State(), q, absPath, session.ModeLocal, "", search, warnings, interrupted)
			if err := printResult(formatter, result); err != nil {
				return err
			}
			if interrupted {
				return nil
			}
		}
	}
}

// saveSettings records the options and agent address for the next run.
func saveSettings(st *store.Store, opts types.ScanOptions, remoteAddr string) {
	settings, err := st.LoadSettings()
	if err != nil {
		printVerbose("failed to load settings: %v", err)
		return
	}
	settings.LastOptions = &opts
	if remoteAddr != "" {
		settings.RemoteAddress = remoteAddr
	}
	if err := st.SaveSettings(settings); err != nil {
		printVerbose("failed to save settings: %v", err)
	}
}

// initLogging configures file logging from the resolved config.
func initLogging() error {
	level := viper.GetString("logging.level")
	if getVerbose() {
		level = "debug"
	}
	components := map[string]string{}
	for comp, lvl := range viper.GetStringMapString("logging.components") {
		components[comp] = lvl
	}
	return logging.Init(logging.Config{
		Level:      level,
		Path:       viper.GetString("logging.path"),
		Components: components,
	})
}
