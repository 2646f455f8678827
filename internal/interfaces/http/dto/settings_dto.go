package dto

import (
	"github.com/krbiz/backend/internal/domain/delivery"
	"github.com/krbiz/backend/internal/domain/report"
)

// AddMatchKeyRequest binds a delivery confirmation column to a unified variable
type AddMatchKeyRequest struct {
	DeliveryColumn string `json:"delivery_column" binding:"required,max=100"`
	Variable       string `json:"variable" binding:"required,max=79"`
}

// MatchKey converts the request into a domain key
func (r AddMatchKeyRequest) MatchKey() delivery.MatchKey {
	return delivery.MatchKey{DeliveryColumn: r.DeliveryColumn, Variable: r.Variable}
}

// ReportColumnRequest is one output column of a report layout
type ReportColumnRequest struct {
	Name   string `json:"name" binding:"required,max=100"`
	Source string `json:"source" binding:"omitempty,oneof=order delivery hardcoded"`
	Value  string `json:"value" binding:"max=200"`
}

// ReportSchemaRequest is the report layout of one platform
type ReportSchemaRequest struct {
	Platform  string                `json:"platform" binding:"required,max=100"`
	SheetName string                `json:"sheet_name" binding:"max=100"`
	Columns   []ReportColumnRequest `json:"columns" binding:"required,min=1,dive"`
}

// SaveReportSchemasRequest replaces every report layout at once
type SaveReportSchemasRequest struct {
	Schemas []ReportSchemaRequest `json:"schemas" binding:"required,dive"`
}

// Configs converts the request into stored report configs
func (r SaveReportSchemasRequest) Configs() []report.SchemaConfig {
	configs := make([]report.SchemaConfig, len(r.Schemas))
	for i, s := range r.Schemas {
		cols := make([]report.ColumnConfig, len(s.Columns))
		for j, c := range s.Columns {
			cols[j] = report.ColumnConfig{Name: c.Name, Source: c.Source, Value: c.Value}
		}
		configs[i] = report.SchemaConfig{Platform: s.Platform, SheetName: s.SheetName, Columns: cols}
	}
	return configs
}

// DeliveryFormatColumnRequest is one courier upload column
type DeliveryFormatColumnRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Template string `json:"template" binding:"max=500"`
}

// SaveDeliveryFormatRequest replaces the courier upload layout
type SaveDeliveryFormatRequest struct {
	Agency  string                        `json:"agency" binding:"required,max=50,excludesall=/\\"`
	Columns []DeliveryFormatColumnRequest `json:"columns" binding:"required,min=1,dive"`
}

// Config converts the request into the stored delivery format
func (r SaveDeliveryFormatRequest) Config() delivery.FormatConfig {
	cols := make([]delivery.FormatColumn, len(r.Columns))
	for i, c := range r.Columns {
		cols[i] = delivery.FormatColumn{Name: c.Name, Template: c.Template}
	}
	return delivery.FormatConfig{Agency: r.Agency, Columns: cols}
}

// MergeOrdersRequest names the merged file, usually after the courier
type MergeOrdersRequest struct {
	Label string `json:"label" binding:"required,max=50,excludesall=/\\"`
}

// SettingsKeyResponse is the raw stored document of one settings key
type SettingsKeyResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
