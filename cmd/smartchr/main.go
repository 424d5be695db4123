// Package main provides the CLI entrypoint for smartchr.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/smartchr/internal/config"
	"github.com/verte-zerg/smartchr/internal/cycle"
	"github.com/verte-zerg/smartchr/internal/logging"
	"github.com/verte-zerg/smartchr/internal/mappingfile"
	"github.com/verte-zerg/smartchr/internal/model"
	"github.com/verte-zerg/smartchr/internal/session"
	"github.com/verte-zerg/smartchr/internal/stats"
	"github.com/verte-zerg/smartchr/internal/store"
	"github.com/verte-zerg/smartchr/internal/tui"
)

const (
	sourceFile  = "file"
	sourceStore = "store"

	defaultSource      = sourceFile
	defaultLogLevel    = "info"
	defaultLogFormat   = "text"
	defaultStatsWindow = 7
)

var (
	configPath string
	logLevel   string
	logFormat  string
	logFile    string

	editContext  string
	editSource   string
	editMappings string
	editTimeout  time.Duration
	editHistory  bool
	editWatch    bool

	statsContext string
	statsSince   string
	statsTop     int
	statsWindow  int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "smartchr [file]",
		Short:         "Terminal editor with smart character cycling",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runEditCmd,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/smartchr/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", defaultLogFormat, "log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file")
	addSourceFlags(rootCmd)

	rootCmd.Flags().StringVar(&editContext, "context", "", "buffer context (default: derived from the file extension)")
	rootCmd.Flags().BoolVar(&editHistory, "history", true, "record activations for stats")
	rootCmd.Flags().BoolVar(&editWatch, "watch", true, "reload the mapping file when it changes")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newMappingsCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newTryCmd())
	rootCmd.AddCommand(newStatsCmd())

	return rootCmd
}

func addSourceFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&editSource, "source", defaultSource, "mapping source (file, store)")
	cmd.PersistentFlags().StringVar(&editMappings, "mappings", "", "mapping file (default: $XDG_CONFIG_HOME/smartchr/mappings.json)")
	cmd.PersistentFlags().DurationVar(&editTimeout, "timeout", cycle.DefaultTimeout, "inactivity timeout between cycling presses")
}

// loadSettings merges the config file into flags that were not set explicitly.
func loadSettings(cmd *cobra.Command) error {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	fileCfg, err := config.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "context", &editContext, fileCfg.Editor.Context)
	applyStringConfig(cmd, "source", &editSource, fileCfg.Editor.Source)
	applyStringConfig(cmd, "mappings", &editMappings, fileCfg.Editor.Mappings)
	applyBoolConfig(cmd, "history", &editHistory, fileCfg.Editor.History)
	applyBoolConfig(cmd, "watch", &editWatch, fileCfg.Editor.Watch)
	if err := applyDurationConfig(cmd, "timeout", &editTimeout, fileCfg.Editor.Timeout); err != nil {
		return err
	}
	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.Log.Level)
	applyStringConfig(cmd, "log-format", &logFormat, fileCfg.Log.Format)
	applyStringConfig(cmd, "log-file", &logFile, fileCfg.Log.File)

	if editMappings == "" {
		editMappings = config.DefaultMappingsPath()
	}
	return validateSettings()
}

func validateSettings() error {
	switch editSource {
	case sourceFile, sourceStore:
	default:
		return fmt.Errorf("--source must be %q or %q", sourceFile, sourceStore)
	}
	if editTimeout <= 0 {
		return fmt.Errorf("--timeout must be > 0")
	}
	return nil
}

// newLogger builds the process logger. Full-screen commands default to the
// state log file so output does not corrupt the terminal.
func newLogger(fullScreen bool) (*slog.Logger, io.Closer, error) {
	file := logFile
	if file == "" && fullScreen {
		file = config.DefaultLogPath()
	}
	log, closer, err := logging.New(logging.Config{Level: logLevel, Format: logFormat, File: file}, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return log, closer, nil
}

func openStore() (*store.Store, error) {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if cerr := st.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
}

func runEditCmd(cmd *cobra.Command, args []string) error {
	if err := loadSettings(cmd); err != nil {
		return err
	}
	log, logCloser, err := newLogger(true)
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	var docPath, text string
	if len(args) == 1 {
		docPath = args[0]
		data, err := os.ReadFile(docPath)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to read %s: %w", docPath, err)
		}
		text = string(data)
	}
	if !cmd.Flags().Changed("context") && editContext == "" {
		editContext = config.ContextForPath(docPath)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	provider, src, err := openProvider(ctx, st, log)
	if err != nil {
		return err
	}
	if src != nil {
		defer func() {
			if cerr := src.Close(); cerr != nil {
				log.Warn("failed to stop mapping watcher", "err", cerr)
			}
		}()
	}

	engine := cycle.NewEngine(provider, cycle.WithTimeout(editTimeout), cycle.WithLogger(log))
	opts := []session.Option{session.WithLogger(log)}
	if editHistory {
		opts = append(opts, session.WithRecorder(st))
	}
	sess := session.New(engine, text, editContext, opts...)
	log.Info("session started", "session", sess.ID(), "context", editContext, "source", editSource, "file", docPath)

	m := tui.NewModel(sess, tui.WithFile(docPath), tui.WithLogger(log))
	program := tea.NewProgram(m, tea.WithAltScreen())
	if src != nil && editWatch {
		src.OnReload(func(mappings []model.Mapping) {
			program.Send(tui.MappingsReloadedMsg{Count: len(mappings)})
		})
		if err := src.Watch(); err != nil {
			log.Warn("mapping file watch disabled", "err", err)
		} else {
			go forwardReloadErrors(ctx, src, program)
		}
	}
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func forwardReloadErrors(ctx context.Context, src *mappingfile.Source, program *tea.Program) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-src.Errors():
			program.Send(tui.ReloadErrorMsg{Err: err})
		}
	}
}

// openProvider returns the configured mapping provider. For the file source a
// missing mapping file is first migrated from the store.
func openProvider(ctx context.Context, st *store.Store, log *slog.Logger) (cycle.MappingProvider, *mappingfile.Source, error) {
	if editSource == sourceStore {
		return store.NewProvider(ctx, st, log), nil, nil
	}
	stored, err := st.ListMappings(ctx)
	if err != nil {
		log.Warn("failed to read stored mappings for migration", "err", err)
	} else if written, err := mappingfile.Migrate(editMappings, stored); err != nil {
		log.Warn("mapping migration failed", "path", editMappings, "err", err)
	} else if written {
		log.Info("created mapping file", "path", editMappings, "migrated", len(stored))
	}
	src, err := mappingfile.OpenSource(editMappings, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load mappings: %w", err)
	}
	return src, src, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}
	return openInEditor(path)
}

func openInEditor(path string) error {
	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Check a mapping file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runValidateCmd,
	}
}

func runValidateCmd(cmd *cobra.Command, args []string) error {
	if err := loadSettings(cmd); err != nil {
		return err
	}
	path := editMappings
	if len(args) == 1 {
		path = args[0]
	}
	mappings, err := mappingfile.Load(path)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("%s: invalid %s: %w", path, verr.Field, err)
		}
		return fmt.Errorf("%s: %w", path, err)
	}
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d mappings)\n", path, len(mappings)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cycling usage",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsContext, "context", "", "context filter")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsTop, "top", 0, "limit to the N most used keys")
	cmd.Flags().IntVar(&statsWindow, "window", defaultStatsWindow, "moving average window for daily activity")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	var sinceTime *time.Time
	if statsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}
	if statsTop < 0 {
		return fmt.Errorf("--top must be >= 0")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	cfg := model.UsageConfig{Context: statsContext, Since: sinceTime, Top: statsTop}
	report, err := stats.BuildReport(context.Background(), st, cfg)
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}
	width := stats.TerminalWidth(os.Stdout)
	if err := stats.RenderReport(cmd.OutOrStdout(), report, time.Now(), statsWindow, width); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if flag := cmd.Flags().Lookup(name); flag == nil || flag.Changed {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if flag := cmd.Flags().Lookup(name); flag == nil || flag.Changed {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target *time.Duration, value *string) error {
	if value == nil {
		return nil
	}
	if flag := cmd.Flags().Lookup(name); flag == nil || flag.Changed {
		return nil
	}
	d, err := time.ParseDuration(*value)
	if err != nil {
		return fmt.Errorf("invalid %s in config: %w", name, err)
	}
	*target = d
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# smartchr configuration
# Uncomment a value to enable it. CLI flags override config values.

[editor]
# context = "Go"          # Buffer context (default: from file extension)
# source = %q         # Mapping source: "file" or "store"
# mappings = %q
# timeout = %q         # Inactivity timeout between cycling presses
# history = true          # Record activations for stats
# watch = true            # Reload the mapping file when it changes

[log]
# level = %q          # debug, info, warn, error
# format = %q         # text or json
# file = %q
`,
		defaultSource,
		config.DefaultMappingsPath(),
		cycle.DefaultTimeout.String(),
		defaultLogLevel,
		defaultLogFormat,
		config.DefaultLogPath(),
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
