package reconcileapp

import (
	"time"

	"github.com/krbiz/backend/internal/domain/reconcile"
	"github.com/krbiz/backend/internal/domain/sheet"
)

// Skip reasons
const (
	SkipInvalidCredential  = "invalid_credential"
	SkipNoMatchingPlatform = "no_matching_platform"
	SkipUnreadable         = "unreadable"
)

// FileSkip is an order file left out of a pass
type FileSkip struct {
	FileName string `json:"file_name"`
	Reason   string `json:"reason"`
	Detail   string `json:"detail,omitempty"`
}

// SkipReport lists the order files left out of a pass
type SkipReport struct {
	Files []FileSkip `json:"files"`
}

// Count returns the number of skipped files
func (r SkipReport) Count() int {
	return len(r.Files)
}

func (r *SkipReport) add(name, reason string, err error) {
	skip := FileSkip{FileName: name, Reason: reason}
	if err != nil {
		skip.Detail = err.Error()
	}
	r.Files = append(r.Files, skip)
}

// OrderFileInfo describes an uploaded order file
type OrderFileInfo struct {
	Name       string    `json:"name"`
	Size       int       `json:"size"`
	Encrypted  bool      `json:"encrypted"`
	Platform   string    `json:"platform,omitempty"`
	Orders     int       `json:"orders"`
	Skipped    string    `json:"skipped,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// DeliveryInfo describes the active delivery confirmation
type DeliveryInfo struct {
	Name       string    `json:"name"`
	Rows       int       `json:"rows"`
	Columns    []string  `json:"columns"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// OutputFile is a produced table with its download name
type OutputFile struct {
	Name     string        `json:"name"`
	Platform string        `json:"platform,omitempty"`
	Table    *sheet.Table  `json:"-"`
	Archived *ArchivedFile `json:"archived,omitempty"`
}

// Rows returns the number of data rows
func (f OutputFile) Rows() int {
	if f.Table == nil {
		return 0
	}
	return f.Table.Len()
}

// FilePreview is the masked first row of one order file
type FilePreview struct {
	FileName string   `json:"file_name"`
	Platform string   `json:"platform"`
	Values   []string `json:"values"`
}

// MergeResult is the unified table of every readable order file
type MergeResult struct {
	File     OutputFile    `json:"file"`
	Columns  []string      `json:"columns"`
	Previews []FilePreview `json:"previews"`
	Skipped  SkipReport    `json:"skipped"`
}

// ReconcileResult is the output of the exact policy with rendered reports
type ReconcileResult struct {
	Reports  []OutputFile        `json:"reports"`
	Leftover OutputFile          `json:"leftover"`
	Summary  reconcile.Summary   `json:"summary"`
	Skipped  SkipReport          `json:"skipped"`
	Outcomes []reconcile.Outcome `json:"-"`
}

// BackfillResult is the output of the substring policy
type BackfillResult struct {
	Files    []OutputFile        `json:"files"`
	Leftover OutputFile          `json:"leftover"`
	Summary  reconcile.Summary   `json:"summary"`
	Skipped  SkipReport          `json:"skipped"`
	Outcomes []reconcile.Outcome `json:"-"`
}

// RunResult is the output of the configured default policy; exactly one of
// Reconcile and Backfill is set
type RunResult struct {
	Policy    reconcile.Policy `json:"policy"`
	Reconcile *ReconcileResult `json:"reconcile,omitempty"`
	Backfill  *BackfillResult  `json:"backfill,omitempty"`
}
