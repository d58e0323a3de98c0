package traindata

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// SummaryReport aggregates a day's records into per-train counts.
type SummaryReport struct {
	Date        string         `json:"date"`
	RecordCount int            `json:"recordCount"`
	TrainCounts map[string]int `json:"trainCounts"`
	Trains      []string       `json:"trains"`
}

// BuildSummary computes the report for a record set.
func BuildSummary(date string, records []TrainRecord) *SummaryReport {
	counts := map[string]int{}
	for _, record := range records {
		counts[record.TrainNo]++
	}

	trains := make([]string, 0, len(counts))
	for trainNo := range counts {
		trains = append(trains, trainNo)
	}
	sort.Strings(trains)

	return &SummaryReport{
		Date:        date,
		RecordCount: len(records),
		TrainCounts: counts,
		Trains:      trains,
	}
}

// SummaryHook returns a pre-commit hook that writes the summary report next
// to the data blob, so report and data always land in the same commit.
func SummaryHook(date string, records []TrainRecord, reportPath string) func(context.Context, billy.Filesystem) error {
	return func(ctx context.Context, worktree billy.Filesystem) error {
		payload, err := json.MarshalIndent(BuildSummary(date, records), "", "  ")
		if err != nil {
			return fmt.Errorf("encode summary report: %w", err)
		}

		if dir := filepath.Dir(reportPath); dir != "." && dir != "/" {
			if err := worktree.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create report directory: %w", err)
			}
		}
		if err := util.WriteFile(worktree, reportPath, append(payload, '\n'), 0o644); err != nil {
			return fmt.Errorf("write summary report: %w", err)
		}
		return nil
	}
}
