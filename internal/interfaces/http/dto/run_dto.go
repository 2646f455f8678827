package dto

import (
	"net/url"

	reconcileapp "github.com/krbiz/backend/internal/application/reconcile"
	"github.com/krbiz/backend/internal/domain/reconcile"
)

// OutputFileResponse describes a produced table available for download
type OutputFileResponse struct {
	Name        string                     `json:"name"`
	Platform    string                     `json:"platform,omitempty"`
	Rows        int                        `json:"rows"`
	Columns     []string                   `json:"columns"`
	DownloadURL string                     `json:"download_url"`
	Archived    *reconcileapp.ArchivedFile `json:"archived,omitempty"`
}

// OutcomeResponse is the classification of one delivery confirmation row
type OutcomeResponse struct {
	DeliveryRow int    `json:"delivery_row"`
	Status      string `json:"status"`
	Platform    string `json:"platform,omitempty"`
	OrderFile   string `json:"order_file,omitempty"`
	OrderRow    *int   `json:"order_row,omitempty"`
	Candidates  int    `json:"candidates"`
}

// RunResponse is the result of a reconciliation or backfill pass. Reports
// is set for the exact policy, Files for the substring policy.
type RunResponse struct {
	Policy   string                  `json:"policy"`
	Reports  []OutputFileResponse    `json:"reports,omitempty"`
	Files    []OutputFileResponse    `json:"files,omitempty"`
	Leftover OutputFileResponse      `json:"leftover"`
	Summary  reconcile.Summary       `json:"summary"`
	Skipped  reconcileapp.SkipReport `json:"skipped"`
	Outcomes []OutcomeResponse       `json:"outcomes"`
}

// MergeResponse is the merged order table with masked previews
type MergeResponse struct {
	File     OutputFileResponse         `json:"file"`
	Columns  []string                   `json:"columns"`
	Previews []reconcileapp.FilePreview `json:"previews"`
	Skipped  reconcileapp.SkipReport    `json:"skipped"`
}

// NewOutputFileResponse describes f; downloadBase is the URL prefix the
// file name is appended to
func NewOutputFileResponse(f reconcileapp.OutputFile, downloadBase string) OutputFileResponse {
	resp := OutputFileResponse{
		Name:        f.Name,
		Platform:    f.Platform,
		Rows:        f.Rows(),
		DownloadURL: downloadBase + url.PathEscape(f.Name),
		Archived:    f.Archived,
	}
	if f.Table != nil {
		resp.Columns = f.Table.Columns
	}
	return resp
}

// NewOutcomeResponses converts engine outcomes; delivery rows are 1-based
// data line numbers
func NewOutcomeResponses(outcomes []reconcile.Outcome) []OutcomeResponse {
	out := make([]OutcomeResponse, len(outcomes))
	for i, o := range outcomes {
		r := OutcomeResponse{
			DeliveryRow: o.Delivery.Index + 1,
			Status:      string(o.Status),
			Platform:    o.Platform,
			Candidates:  o.Candidates,
		}
		if o.Order != nil {
			row := o.Order.Index + 1
			r.OrderFile = o.Order.SourceFile
			r.OrderRow = &row
		}
		out[i] = r
	}
	return out
}

// NewReconcileResponse converts an exact policy result
func NewReconcileResponse(r *reconcileapp.ReconcileResult, downloadBase string) RunResponse {
	resp := RunResponse{
		Policy:   string(reconcile.PolicyExact),
		Leftover: NewOutputFileResponse(r.Leftover, downloadBase),
		Summary:  r.Summary,
		Skipped:  r.Skipped,
		Outcomes: NewOutcomeResponses(r.Outcomes),
	}
	for _, f := range r.Reports {
		resp.Reports = append(resp.Reports, NewOutputFileResponse(f, downloadBase))
	}
	return resp
}

// NewBackfillResponse converts a substring policy result
func NewBackfillResponse(r *reconcileapp.BackfillResult, downloadBase string) RunResponse {
	resp := RunResponse{
		Policy:   string(reconcile.PolicySubstring),
		Leftover: NewOutputFileResponse(r.Leftover, downloadBase),
		Summary:  r.Summary,
		Skipped:  r.Skipped,
		Outcomes: NewOutcomeResponses(r.Outcomes),
	}
	for _, f := range r.Files {
		resp.Files = append(resp.Files, NewOutputFileResponse(f, downloadBase))
	}
	return resp
}

// NewMergeResponse converts a merge result
func NewMergeResponse(r *reconcileapp.MergeResult, downloadBase string) MergeResponse {
	return MergeResponse{
		File:     NewOutputFileResponse(r.File, downloadBase),
		Columns:  r.Columns,
		Previews: r.Previews,
		Skipped:  r.Skipped,
	}
}
