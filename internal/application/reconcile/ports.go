// Package reconcileapp runs the order and delivery workflows of a session:
// file intake, platform detection, merging, reconciliation and tracking
// number backfill.
package reconcileapp

import (
	"context"
	"time"

	"github.com/krbiz/backend/internal/domain/delivery"
	"github.com/krbiz/backend/internal/domain/platform"
	"github.com/krbiz/backend/internal/domain/reconcile"
	"github.com/krbiz/backend/internal/domain/report"
	"github.com/krbiz/backend/internal/domain/sheet"
)

// SettingsProvider supplies the configuration a pass reads
type SettingsProvider interface {
	PlatformRegistry(ctx context.Context) (*platform.Registry, error)
	LoadKeys(ctx context.Context) ([]delivery.MatchKey, error)
	ReportRegistry(ctx context.Context) (*report.Registry, error)
	DeliveryFormat(ctx context.Context) (*delivery.Format, error)
}

// Decryptor opens password protected order files. Decrypt returns
// shared.ErrInvalidCredential for a wrong password.
type Decryptor interface {
	IsEncrypted(data []byte) bool
	Decrypt(data []byte, password string) ([]byte, error)
}

// GridParser turns an uploaded file into rows of text cells
type GridParser interface {
	ParseBytes(name string, data []byte) (*sheet.Grid, error)
}

// ReportArchive keeps a copy of every produced file
type ReportArchive interface {
	Archive(ctx context.Context, name string, data []byte) (ArchivedFile, error)
}

// Merge kinds passed to MetricsRecorder.RecordMerge
const (
	MergeOutputOrders       = "orders"
	MergeOutputDeliveryForm = "delivery_form"
)

// MetricsRecorder counts what passes and merges produce
type MetricsRecorder interface {
	RecordPass(ctx context.Context, policy reconcile.Policy, sum reconcile.Summary, skippedFiles int, elapsed time.Duration)
	RecordMerge(ctx context.Context, output string, orders, skippedFiles int)
}

type nopMetrics struct{}

func (nopMetrics) RecordPass(context.Context, reconcile.Policy, reconcile.Summary, int, time.Duration) {}
func (nopMetrics) RecordMerge(context.Context, string, int, int) {}

// ArchivedFile locates an archived copy
type ArchivedFile struct {
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
