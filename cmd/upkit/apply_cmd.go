package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/upgradekit/upgradekit/internal/release"
	"github.com/upgradekit/upgradekit/internal/update"
	"github.com/upgradekit/upgradekit/internal/utils"
)

func init() {
	rootCmd.AddCommand(newApplyCmd())
}

// newApplyCmd is the update executor entry point. It is invoked as the
// replacement process image by `upkit update` and consumes exactly one
// action file; it is hidden because running it by hand against a live
// install is only useful when recovering from a failed hand-off.
func newApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "apply <action-file>",
		Short:  "Apply a staged update described by an action file, then restart the application",
		Args:   cobra.ExactArgs(1),
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true

			actionPath := args[0]
			action, err := update.LoadAction(actionPath)
			if err != nil {
				// No project root known yet; the crash record lands next to
				// the descriptor instead.
				crashPath, _ := update.WriteCrashRecord(filepath.Dir(actionPath), err)
				slog.Error("apply failed", "error", err, "crash_record", crashPath)
				return err
			}

			executor := update.NewExecutor(action)
			logsDir := filepath.Join(action.ProjectRoot, release.DirName, "logs")
			closeLog := setupApplyLogging(logsDir)
			defer closeLog()

			if err := executor.Apply(); err != nil {
				crashPath, _ := update.WriteCrashRecord(logsDir, err)
				slog.Error("apply failed", "error", err, "crash_record", crashPath)
				return err
			}

			slog.Info("update applied, restarting")
			if err := executor.Restart(); err != nil {
				crashPath, _ := update.WriteCrashRecord(logsDir, err)
				slog.Error("restart failed", "error", err, "crash_record", crashPath)
				return err
			}
			return nil
		},
	}
}

// setupApplyLogging mirrors apply logs into a timestamped file under the
// project's logs dir, since stderr of the replacement process usually goes
// nowhere a human is watching.
func setupApplyLogging(logsDir string) func() {
	stderrHandler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:   slog.LevelDebug,
		NoColor: !isatty.IsTerminal(os.Stderr.Fd()),
	})

	if err := utils.EnsureDir(logsDir); err != nil {
		slog.SetDefault(slog.New(stderrHandler))
		return func() {}
	}

	logPath := filepath.Join(logsDir, fmt.Sprintf("update_%s.log", time.Now().Format("2006-01-02-15_04_05")))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		slog.SetDefault(slog.New(stderrHandler))
		return func() {}
	}

	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(utils.NewTeeHandler(stderrHandler, fileHandler)))
	return func() { file.Close() }
}
