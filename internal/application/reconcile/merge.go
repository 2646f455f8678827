package reconcileapp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/krbiz/backend/internal/domain/delivery"
	"github.com/krbiz/backend/internal/domain/platform"
	"github.com/krbiz/backend/internal/domain/shared"
	"github.com/krbiz/backend/internal/domain/sheet"
)

// SourceColumn names the merged table column holding each row's file
const SourceColumn = "파일출처"

// MergeOrders concatenates the translated tables of every usable order file
// into one table over the unified variables. Variables a platform does not
// map are left blank. label names the merged file.
func (s *Service) MergeOrders(ctx context.Context, sessionID, label string) (*MergeResult, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	reg, err := s.settings.PlatformRegistry(ctx)
	if err != nil {
		return nil, err
	}

	batches, skipped := s.loadBatches(session.OrderFiles(), reg)
	variables := reg.UnifiedVariables()
	merged, previews := mergeBatches(batches, variables)

	out := &MergeResult{
		File:     OutputFile{Name: mergedName(label, s.now()), Table: merged},
		Columns:  variables,
		Previews: previews,
		Skipped:  skipped,
	}
	s.archiveFile(ctx, &out.File)
	session.KeepOutputs(out.File)

	s.metrics.RecordMerge(ctx, MergeOutputOrders, merged.Len(), skipped.Count())
	s.logger.Info("Orders merged",
		zap.String("session_id", sessionID),
		zap.Int("files", len(batches)),
		zap.Int("orders", merged.Len()),
		zap.Int("skipped_files", skipped.Count()))
	return out, nil
}

// MergeToDeliveryFormat merges the session's order files and renders the
// merged rows through the configured courier upload format. The file is named
// after the delivery agency.
func (s *Service) MergeToDeliveryFormat(ctx context.Context, sessionID string) (*MergeResult, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	reg, err := s.settings.PlatformRegistry(ctx)
	if err != nil {
		return nil, err
	}
	format, err := s.settings.DeliveryFormat(ctx)
	if err != nil {
		return nil, err
	}

	batches, skipped := s.loadBatches(session.OrderFiles(), reg)
	merged, _ := mergeBatches(batches, reg.UnifiedVariables())
	table, err := format.Render(merged)
	if err != nil {
		return nil, shared.WrapDomainError("INVALID_STATE",
			fmt.Sprintf("delivery format of %s cannot render the merged orders: %v", format.Agency, err), err)
	}
	previews, err := formatPreviews(format, merged, batches)
	if err != nil {
		return nil, shared.WrapDomainError("INVALID_STATE", err.Error(), err)
	}

	out := &MergeResult{
		File:     OutputFile{Name: mergedName(format.Agency, s.now()), Table: table},
		Columns:  format.Headers(),
		Previews: previews,
		Skipped:  skipped,
	}
	s.archiveFile(ctx, &out.File)
	session.KeepOutputs(out.File)

	s.metrics.RecordMerge(ctx, MergeOutputDeliveryForm, table.Len(), skipped.Count())
	s.logger.Info("Orders converted to delivery format",
		zap.String("session_id", sessionID),
		zap.String("agency", format.Agency),
		zap.Int("files", len(batches)),
		zap.Int("orders", table.Len()),
		zap.Int("skipped_files", skipped.Count()))
	return out, nil
}

// formatPreviews renders the masked first merged row of each batch through
// the courier format. merged holds the batches' rows in batch order.
func formatPreviews(format *delivery.Format, merged *sheet.Table, batches []*platform.Batch) ([]FilePreview, error) {
	previews := make([]FilePreview, 0, len(batches))
	offset := 0
	for _, b := range batches {
		preview := FilePreview{FileName: b.SourceFile, Platform: b.Platform(), Values: make([]string, len(format.Headers()))}
		if n := b.Unified.Len(); n > 0 {
			values, err := format.RenderRecord(merged.Record(offset))
			if err != nil {
				return nil, err
			}
			for i, v := range values {
				preview.Values[i] = MaskCell(v)
			}
			offset += n
		}
		previews = append(previews, preview)
	}
	return previews, nil
}

// mergeBatches builds the merged table and the masked first row of each
// batch, both over variables
func mergeBatches(batches []*platform.Batch, variables []string) (*sheet.Table, []FilePreview) {
	merged := sheet.NewTable(append([]string{SourceColumn}, variables...), nil)
	previews := make([]FilePreview, 0, len(batches))
	for _, b := range batches {
		for r := 0; r < b.Unified.Len(); r++ {
			row := make([]string, 0, len(variables)+1)
			row = append(row, b.SourceFile)
			for _, v := range variables {
				row = append(row, b.Unified.Value(r, v))
			}
			merged.AppendRow(row)
		}

		preview := FilePreview{FileName: b.SourceFile, Platform: b.Platform(), Values: make([]string, len(variables))}
		if b.Unified.Len() > 0 {
			for i, v := range variables {
				preview.Values[i] = MaskCell(b.Unified.Value(0, v))
			}
		}
		previews = append(previews, preview)
	}
	return merged, previews
}

// MaskCell keeps the first two characters of a cell and replaces the rest
// with '-'
func MaskCell(v string) string {
	runes := []rune(v)
	if len(runes) <= 2 {
		return v
	}
	return string(runes[:2]) + strings.Repeat("-", len(runes)-2)
}

func mergedName(label string, date time.Time) string {
	return fmt.Sprintf("merged-%s-%s.csv", strings.TrimSpace(label), date.Format(time.DateOnly))
}
