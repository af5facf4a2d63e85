package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"resume-ats/internal/pipeline"
	"resume-ats/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleResults() []types.ScoreResult {
	return []types.ScoreResult{
		{ResumeFile: "Jane_Doe_4567.json", Name: "Jane Doe", Score: 55.33},
		{ResumeFile: "Unknown.json", Name: "Unknown", Score: 0},
	}
}

func TestWriteConsole(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteConsole(&buf, sampleResults()))

	dashes := strings.Repeat("-", 40)
	want := "Candidate Scoring Results:\n" + dashes + "\n" +
		"Resume File: Jane_Doe_4567.json\nName: Jane Doe\nATS Score: 55.33%\n" + dashes + "\n" +
		"Resume File: Unknown.json\nName: Unknown\nATS Score: 0.00%\n" + dashes + "\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteFailures(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFailures(&buf, nil))
	assert.Empty(t, buf.String())

	require.NoError(t, WriteFailures(&buf, []*pipeline.ItemError{
		{Key: "Broken.json", Op: pipeline.OpLoad, Err: errors.New("malformed candidate record")},
	}))
	assert.Equal(t, "Failed items (1):\n  Broken.json [load]: malformed candidate record\n", buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, pipeline.ScoreReport{}))
	assert.JSONEq(t, `{"results": []}`, buf.String())

	buf.Reset()
	rep := pipeline.ScoreReport{
		Results:  sampleResults(),
		Failures: []*pipeline.ItemError{{Key: "Broken.json", Op: pipeline.OpLoad, Err: errors.New("bad")}},
	}
	require.NoError(t, WriteJSON(&buf, rep))

	var got Leaderboard
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, sampleResults(), got.Results)
	assert.Equal(t, []Failure{{Key: "Broken.json", Op: "load", Error: "bad"}}, got.Failures)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleResults()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Rank", "Resume File", "Name", "ATS Score"}, rows[0])
	assert.Equal(t, []string{"1", "Jane_Doe_4567.json", "Jane Doe", "55.33"}, rows[1])
	assert.Equal(t, []string{"2", "Unknown.json", "Unknown", "0"}, rows[2])
}

func TestWriteXLSXEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
