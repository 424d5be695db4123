package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/smartchr/internal/cycle"
	"github.com/verte-zerg/smartchr/internal/mappingfile"
	"github.com/verte-zerg/smartchr/internal/session"
	"github.com/verte-zerg/smartchr/internal/store"
)

var (
	tryKeys    string
	tryText    string
	tryGap     time.Duration
	tryVerbose bool
)

func newTryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "try",
		Short: "Replay keystrokes through the cycling engine and print the result",
		Args:  cobra.NoArgs,
		RunE:  runTryCmd,
	}
	cmd.Flags().StringVar(&tryKeys, "keys", "", "characters to type")
	cmd.Flags().StringVar(&tryText, "text", "", "initial buffer text")
	cmd.Flags().DurationVar(&tryGap, "gap", 100*time.Millisecond, "time between keystrokes")
	cmd.Flags().StringVar(&editContext, "context", "", "buffer context")
	cmd.Flags().BoolVar(&tryVerbose, "verbose", false, "print every step")
	return cmd
}

func runTryCmd(cmd *cobra.Command, _ []string) error {
	if err := loadSettings(cmd); err != nil {
		return err
	}
	if tryGap < 0 {
		return fmt.Errorf("--gap must be >= 0")
	}
	log, logCloser, err := newLogger(false)
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	var provider cycle.MappingProvider
	if editSource == sourceStore {
		provider = store.NewProvider(cmd.Context(), st, log)
	} else {
		src, err := mappingfile.OpenSource(editMappings, log)
		if err != nil {
			return fmt.Errorf("failed to load mappings: %w", err)
		}
		defer func() { _ = src.Close() }()
		provider = src
	}

	engine := cycle.NewEngine(provider, cycle.WithTimeout(editTimeout), cycle.WithLogger(log))
	sess := session.New(engine, tryText, editContext, session.WithLogger(log))
	return replayKeys(cmd.OutOrStdout(), sess, tryKeys, time.Now(), tryGap, tryVerbose)
}

// replayKeys types keys into sess one gap apart and prints the final text.
func replayKeys(w io.Writer, sess *session.Session, keys string, start time.Time, gap time.Duration, verbose bool) error {
	at := start
	for i, r := range []rune(keys) {
		out, err := sess.Type(r, at)
		if err != nil {
			return fmt.Errorf("failed to type %q: %w", string(r), err)
		}
		if verbose {
			step := "insert"
			switch {
			case out.Replace:
				step = fmt.Sprintf("cycle  -> %q", out.Action.InsertText)
			case out.Cycled:
				step = fmt.Sprintf("start  -> %q", out.Action.InsertText)
			}
			if _, err := fmt.Fprintf(w, "%3d %q %-20s %s\n", i, string(r), step, strconv.Quote(sess.Buffer().String())); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
		}
		at = at.Add(gap)
	}
	if _, err := fmt.Fprintln(w, sess.Buffer().String()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
