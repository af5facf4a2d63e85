// Package report renders scoring results as a console leaderboard, JSON or
// an XLSX workbook.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"resume-ats/internal/pipeline"
	"resume-ats/internal/types"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "Leaderboard"

var separator = strings.Repeat("-", 40)

// WriteConsole prints the leaderboard in ranking order.
func WriteConsole(w io.Writer, results []types.ScoreResult) error {
	if _, err := fmt.Fprintln(w, "Candidate Scoring Results:"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, separator); err != nil {
		return err
	}
	for _, r := range results {
		_, err := fmt.Fprintf(w, "Resume File: %s\nName: %s\nATS Score: %.2f%%\n%s\n",
			r.ResumeFile, r.Name, r.Score, separator)
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteFailures prints one line per failed item. Nothing is written when
// failures is empty.
func WriteFailures(w io.Writer, failures []*pipeline.ItemError) error {
	if len(failures) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "Failed items (%d):\n", len(failures)); err != nil {
		return err
	}
	for _, f := range failures {
		if _, err := fmt.Fprintf(w, "  %s [%s]: %v\n", f.Key, f.Op, f.Err); err != nil {
			return err
		}
	}
	return nil
}

// Failure 失败项的 JSON 表示
type Failure struct {
	Key   string `json:"key"`
	Op    string `json:"op"`
	Error string `json:"error"`
}

// Leaderboard 排行榜的 JSON 表示
type Leaderboard struct {
	Results  []types.ScoreResult `json:"results"`
	Failures []Failure           `json:"failures,omitempty"`
}

// NewLeaderboard converts a ScoreReport into its JSON shape. Results is
// never nil so that an empty leaderboard encodes as [].
func NewLeaderboard(rep pipeline.ScoreReport) Leaderboard {
	lb := Leaderboard{Results: rep.Results}
	if lb.Results == nil {
		lb.Results = []types.ScoreResult{}
	}
	for _, f := range rep.Failures {
		lb.Failures = append(lb.Failures, Failure{Key: f.Key, Op: f.Op, Error: f.Err.Error()})
	}
	return lb
}

// WriteJSON writes the leaderboard as indented JSON.
func WriteJSON(w io.Writer, rep pipeline.ScoreReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewLeaderboard(rep))
}

// WriteXLSX writes a single-sheet workbook with one row per result.
func WriteXLSX(w io.Writer, results []types.ScoreResult) error {
	f := excelize.NewFile()
	defer f.Close()

	// rename the default sheet instead of adding a second one
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}

	headers := []string{"Rank", "Resume File", "Name", "ATS Score"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return fmt.Errorf("xlsx header: %w", err)
		}
	}

	for i, r := range results {
		row := i + 2
		values := []any{i + 1, r.ResumeFile, r.Name, r.Score}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return fmt.Errorf("xlsx row %d: %w", row, err)
			}
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 8)
	_ = f.SetColWidth(SheetName, "B", "B", 36)
	_ = f.SetColWidth(SheetName, "C", "C", 28)
	_ = f.SetColWidth(SheetName, "D", "D", 12)
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("xlsx panes: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}
