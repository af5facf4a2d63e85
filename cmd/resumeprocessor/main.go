// Command resumeprocessor runs the extraction and scoring passes from the
// command line.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// globalFlags 所有子命令共享的参数
type globalFlags struct {
	configPath  string
	storeDir    string
	concurrency int
	logLevel    string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "resumeprocessor",
		Short: "Extract candidate records from resumes and rank them",
		Long: `resumeprocessor extracts structured candidate records from resume
documents, persists them to the configured record store and ranks the
persisted candidates with the ATS score.

Examples:
  # Extract every PDF in ./resumes
  resumeprocessor extract --input resumes

  # Print the leaderboard and export it
  resumeprocessor score --xlsx leaderboard.xlsx

  # Both passes
  resumeprocessor run --input resumes`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "Path to config file (default: config.yaml or internal/config/config.yaml)")
	pf.StringVar(&g.storeDir, "store-dir", "", "Override store.dir and use the filesystem record store")
	pf.IntVar(&g.concurrency, "concurrency", 0, "Override pipeline.concurrency")
	pf.StringVar(&g.logLevel, "log-level", "", "Override logger.level")

	root.AddCommand(
		newExtractCmd(g),
		newScoreCmd(g),
		newRunCmd(g),
		newInspectCmd(g),
		newConfigCmd(),
	)
	return root
}
