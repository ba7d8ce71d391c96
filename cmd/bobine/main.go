// Command bobine drives the data processor without the desktop window: it
// stages instrument files, validates the context file, lists the metric
// catalog and generates the Excel report.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Bobine/backend"
	"Bobine/config"
	"Bobine/logger"

	"github.com/spf13/cobra"
)

var (
	configPath string
	workDir    string
	logLevel   string
	python     string
	script     string

	cfg  *config.Config
	proc *backend.Process
	be   *backend.Bridge
)

var rootCmd = &cobra.Command{
	Use:   "bobine",
	Short: "Bobine - instrument data to Excel report, headless",
	Long: `bobine runs the steps of the Bobine Studio wizard from the command line.

Files are staged into <dir>/<data_folder>, then the Python data processor is
asked for the metric catalog and the report. The same configuration file as
the desktop application is used.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel == "" {
			logLevel = cfg.LogLevel
		}
		logger.Use(logger.New(cmd.ErrOrStderr(), logger.ParseLevel(logLevel)))

		if workDir != "" {
			cfg.WorkingDir = workDir
		}
		if python != "" {
			cfg.Backend.Python = python
		}
		if script != "" {
			cfg.Backend.Script = script
		}
		proc, be = newBridge(cfg)
		return nil
	},
}

func newBridge(cfg *config.Config) (*backend.Process, *backend.Bridge) {
	p := &backend.Process{
		Command: []string{cfg.Backend.Python, cfg.Backend.Script, "--interactive"},
	}
	return p, &backend.Bridge{
		Local:   backend.Local{WorkingDir: cfg.WorkingDir},
		Proc:    p,
		Timeout: time.Duration(cfg.Backend.Timeout),
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "configuration file")
	rootCmd.PersistentFlags().StringVarP(&workDir, "dir", "d", "", "working directory (default: Documents)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&python, "python", "", "Python interpreter")
	rootCmd.PersistentFlags().StringVar(&script, "script", "", "data processor entry point")

	rootCmd.AddCommand(stageCmd, validateCmd, metricsCmd, exportCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx)
	stop()
	os.Exit(code)
}

// run executes the command line and stops the data processor whatever the
// outcome, since a failed command skips cobra's post-run hooks.
func run(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if proc != nil {
		_ = proc.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
