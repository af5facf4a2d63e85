package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"resume-ats/internal/pipeline"
	"resume-ats/internal/processor"
	"resume-ats/internal/report"
	"resume-ats/internal/sanitize"
	"resume-ats/internal/scoring"
	"resume-ats/internal/storage"
	"resume-ats/internal/types"

	"github.com/spf13/cobra"
)

// inputFlags 提取阶段的输入参数
type inputFlags struct {
	dir  string
	glob string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.dir, "input", "i", "", "Directory of resume documents (default: pipeline.input_dir)")
	cmd.Flags().StringVar(&f.glob, "glob", "", `File pattern inside the input directory (default: pipeline.input_glob, e.g. "*.pdf")`)
}

func newExtractCmd(g *globalFlags) *cobra.Command {
	in := &inputFlags{}
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract and persist candidate records from a directory of resumes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.close()
			return runExtract(cmd, a, in)
		},
	}
	in.register(cmd)
	return cmd
}

func runExtract(cmd *cobra.Command, a *app, in *inputFlags) error {
	dir, glob := in.dir, in.glob
	if dir == "" {
		dir = a.cfg.Pipeline.InputDir
	}
	if glob == "" {
		glob = a.cfg.Pipeline.InputGlob
	}
	sources, err := pipeline.DirectorySources(dir, glob)
	if err != nil {
		return err
	}

	rep, err := a.pipe.ExtractAll(cmd.Context(), sources)
	out := cmd.OutOrStdout()
	for _, item := range rep.Stored {
		note := ""
		if item.Overwrote {
			note = " (overwritten)"
		}
		fmt.Fprintf(out, "%s -> %s%s\n", item.Source, item.Key, note)
	}
	fmt.Fprintf(out, "Extracted %d of %d documents in %s\n", len(rep.Stored), len(sources), rep.Elapsed.Round(time.Millisecond))
	if werr := report.WriteFailures(cmd.ErrOrStderr(), rep.Failures); werr != nil {
		return werr
	}
	return err
}

func newInspectCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Extract one document and print its record without persisting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.close()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return processor.NewReadError(args[0], err)
			}
			rec, err := a.proc.Extract(cmd.Context(), processor.Document{URI: filepath.Base(args[0]), Data: data})
			if err != nil {
				return err
			}
			return writeInspection(cmd.OutOrStdout(), a.engine, rec)
		},
	}
}

// inspection inspect 命令的输出
type inspection struct {
	Key       string                `json:"key"`
	Record    types.CandidateRecord `json:"record"`
	Breakdown scoring.Breakdown     `json:"breakdown"`
}

func writeInspection(w io.Writer, engine *scoring.Engine, rec types.CandidateRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(inspection{
		Key:       storage.RecordKey(sanitize.Sanitize(rec.Name, rec.Phone, rec.Email)),
		Record:    rec,
		Breakdown: engine.Breakdown(rec),
	})
}
