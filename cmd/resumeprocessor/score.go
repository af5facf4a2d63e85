package main

import (
	"bytes"
	"fmt"
	"os"

	"resume-ats/internal/config"
	"resume-ats/internal/report"

	"github.com/spf13/cobra"
)

// outputFlags 评分阶段的输出参数
type outputFlags struct {
	xlsxPath string
	asJSON   bool
}

func (f *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.xlsxPath, "xlsx", "", "Also write the leaderboard to this XLSX file")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Print the leaderboard as JSON instead of text")
}

func newScoreCmd(g *globalFlags) *cobra.Command {
	out := &outputFlags{}
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score every persisted record and print the leaderboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.close()
			return runScore(cmd, a, out)
		},
	}
	out.register(cmd)
	return cmd
}

func runScore(cmd *cobra.Command, a *app, out *outputFlags) error {
	rep, err := a.pipe.ScoreAll(cmd.Context())
	if err != nil {
		return err
	}

	if out.asJSON {
		if err := report.WriteJSON(cmd.OutOrStdout(), rep); err != nil {
			return err
		}
	} else {
		if err := report.WriteConsole(cmd.OutOrStdout(), rep.Results); err != nil {
			return err
		}
		if err := report.WriteFailures(cmd.ErrOrStderr(), rep.Failures); err != nil {
			return err
		}
	}

	if out.xlsxPath != "" {
		var buf bytes.Buffer
		if err := report.WriteXLSX(&buf, rep.Results); err != nil {
			return err
		}
		if err := os.WriteFile(out.xlsxPath, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("写入XLSX失败: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Leaderboard written to %s\n", out.xlsxPath)
	}
	return nil
}

func newRunCmd(g *globalFlags) *cobra.Command {
	in := &inputFlags{}
	out := &outputFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the extraction pass followed by the scoring pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.close()
			if err := runExtract(cmd, a, in); err != nil {
				return err
			}
			return runScore(cmd, a, out)
		},
	}
	in.register(cmd)
	out.register(cmd)
	return cmd
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init PATH",
		Short: "Write a sample configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.CreateSampleConfig(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sample config written to %s\n", args[0])
			return nil
		},
	})
	return cmd
}
