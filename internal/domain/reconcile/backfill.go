package reconcile

import (
	"strings"

	"github.com/krbiz/backend/internal/domain/delivery"
	"github.com/krbiz/backend/internal/domain/platform"
	"github.com/krbiz/backend/internal/domain/sheet"
)

// DefaultTrackingHint names the tracking number column on both sides
const DefaultTrackingHint = "송장번호"

// BackfillOptions configures the substring policy
type BackfillOptions struct {
	// TrackingHint is searched for inside column names to find the tracking
	// number column of the delivery file and of each order file
	TrackingHint string
	TrimValues   bool
}

func (o BackfillOptions) hint() string {
	if o.TrackingHint == "" {
		return DefaultTrackingHint
	}
	return o.TrackingHint
}

// FileOutput accumulates the order rows of one file that received a tracking
// number, in delivery row order, with the file's raw columns.
type FileOutput struct {
	SourceFile     string
	Platform       string
	TrackingColumn string
	Table          *sheet.Table
}

// BackfillResult is the output of the substring policy
type BackfillResult struct {
	Outcomes []Outcome
	Files    []FileOutput
	Leftover *sheet.Table
	Summary  Summary
}

// Backfill runs the substring policy. Each delivery row is tested against
// every order row of every file. A delivery row with exactly one candidate
// row in exactly one file stamps its tracking number onto a copy of that row;
// any other delivery row goes to the leftover table.
func Backfill(in Input, opts BackfillOptions) (*BackfillResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	hint := opts.hint()
	trackingSource := findColumn(in.Delivery.Columns(), hint)
	matcher := SubstringMatcher{TrimValues: opts.TrimValues}

	files := make([]FileOutput, len(in.Batches))
	rows := make([][]platform.OrderRow, len(in.Batches))
	for i, b := range in.Batches {
		columns := append([]string(nil), b.Raw.Columns...)
		tracking := findColumn(columns, hint)
		if !b.Raw.HasColumn(tracking) {
			columns = append(columns, tracking)
		}
		files[i] = FileOutput{
			SourceFile:     b.SourceFile,
			Platform:       b.Platform(),
			TrackingColumn: tracking,
			Table:          sheet.NewTable(columns, nil),
		}
		rows[i] = b.Rows()
	}

	deliveries := in.Delivery.Rows()
	outcomes := make([]Outcome, len(deliveries))
	claimed := make([]bool, len(deliveries))

	for di, d := range deliveries {
		out := Outcome{Delivery: d, Status: StatusUnmatched}
		matchedFiles, file := 0, -1
		var only *platform.OrderRow
		for fi := range rows {
			found := 0
			for oi := range rows[fi] {
				o := &rows[fi][oi]
				if matcher.Match(d, *o, in.Pairs[o.Platform]) {
					found++
					if found == 1 {
						only = o
					}
				}
			}
			if found > 0 {
				matchedFiles++
				file = fi
				out.Candidates += found
			}
		}

		if matchedFiles == 1 && out.Candidates == 1 {
			out.Status = StatusMatched
			out.Platform = only.Platform
			out.Order = only
			claimed[di] = true
			stamp(&files[file], *only, d.Value(trackingSource))
		} else if out.Candidates > 0 {
			out.Status = StatusAmbiguous
		}
		outcomes[di] = out
	}

	result := &BackfillResult{
		Outcomes: outcomes,
		Files:    files,
		Leftover: leftover(in.Delivery, deliveries, claimed),
		Summary:  summarize(outcomes),
	}
	result.Summary.Leftover = result.Leftover.Len()
	return result, nil
}

// stamp appends a copy of the order row with its tracking column set
func stamp(f *FileOutput, o platform.OrderRow, tracking string) {
	rec := make(sheet.Record, len(o.Raw)+1)
	for k, v := range o.Raw {
		rec[k] = v
	}
	rec[f.TrackingColumn] = tracking
	f.Table.AppendRecord(rec)
}

// findColumn returns the first column whose name contains hint, else hint
func findColumn(columns []string, hint string) string {
	for _, c := range columns {
		if strings.Contains(c, hint) {
			return c
		}
	}
	return hint
}

// TrackingColumn reports which delivery column the tracking number is read from
func TrackingColumn(c *delivery.Confirmation, hint string) string {
	if hint == "" {
		hint = DefaultTrackingHint
	}
	return findColumn(c.Columns(), hint)
}
