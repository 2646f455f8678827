// Package settingsapp loads, validates and persists the user configuration:
// platform schemas, match keys and report layouts.
package settingsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/krbiz/backend/internal/domain/delivery"
	"github.com/krbiz/backend/internal/domain/platform"
	"github.com/krbiz/backend/internal/domain/report"
	"github.com/krbiz/backend/internal/domain/settings"
	"github.com/krbiz/backend/internal/domain/shared"
	"github.com/krbiz/backend/internal/domain/sheet"
)

// Service reads and writes settings documents through a settings.Store.
// A key that was never written is initialized from its bundled default on
// first read.
type Service struct {
	store  settings.Store
	logger *zap.Logger
	// mu serializes read-modify-write cycles on the store
	mu sync.Mutex
}

// NewService creates a new settings service
func NewService(store settings.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Ensure Service persists the match key list
var _ delivery.KeyRepository = (*Service)(nil)

// Raw returns the stored document of a key, initializing it on first use
func (s *Service) Raw(ctx context.Context, key string) (string, error) {
	if !settings.IsKey(key) {
		return "", shared.NewDomainError("NOT_FOUND", fmt.Sprintf("unknown settings key %q", key))
	}
	v, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if ok {
		return v, nil
	}

	def, err := settings.Default(key)
	if err != nil {
		return "", err
	}
	if err := s.store.Set(ctx, key, def); err != nil {
		return "", err
	}
	s.logger.Info("Initialized settings from defaults", zap.String("key", key))
	return def, nil
}

// Reset overwrites a key with its bundled default
func (s *Service) Reset(ctx context.Context, key string) error {
	if !settings.IsKey(key) {
		return shared.NewDomainError("NOT_FOUND", fmt.Sprintf("unknown settings key %q", key))
	}
	def, err := settings.Default(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Set(ctx, key, def); err != nil {
		return err
	}
	s.logger.Info("Settings reset to defaults", zap.String("key", key))
	return nil
}

// ResetAll resets every settings key
func (s *Service) ResetAll(ctx context.Context) error {
	for _, key := range settings.Keys() {
		if err := s.Reset(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) load(ctx context.Context, key string, v any) error {
	raw, err := s.Raw(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		s.logger.Error("Stored settings are not valid JSON", zap.String("key", key), zap.Error(err))
		return shared.WrapDomainError("SETTINGS_CORRUPTED",
			fmt.Sprintf("stored %s is corrupted, reset it to defaults", key),
			fmt.Errorf("%w: %v", settings.ErrCorrupted, err))
	}
	return nil
}

func (s *Service) save(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.store.Set(ctx, key, string(b))
}

// PlatformSchemas returns the platform schemas in configuration order
func (s *Service) PlatformSchemas(ctx context.Context) ([]platform.Schema, error) {
	var schemas []platform.Schema
	if err := s.load(ctx, settings.KeyOrderHeaderVariables, &schemas); err != nil {
		return nil, err
	}
	return schemas, nil
}

// PlatformRegistry returns the validated platform schema registry
func (s *Service) PlatformRegistry(ctx context.Context) (*platform.Registry, error) {
	schemas, err := s.PlatformSchemas(ctx)
	if err != nil {
		return nil, err
	}
	reg, err := platform.NewRegistry(schemas)
	if err != nil {
		return nil, shared.WrapDomainError("SETTINGS_CORRUPTED", "stored platform schemas are invalid", err)
	}
	return reg, nil
}

// ImportPlatformTable replaces the platform schemas with an uploaded table.
// Every problem in the table is reported at once and nothing is stored
// unless the whole table is valid.
func (s *Service) ImportPlatformTable(ctx context.Context, t *sheet.Table) ([]platform.Schema, error) {
	schemas, err := settings.ParsePlatformTable(t)
	if err != nil {
		var verrs settings.ValidationErrors
		if errors.As(err, &verrs) {
			s.logger.Warn("Rejected platform settings upload", zap.Strings("problems", verrs))
		}
		return nil, err
	}
	if _, err := platform.NewRegistry(schemas); err != nil {
		return nil, settings.ValidationErrors{err.Error()}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.save(ctx, settings.KeyOrderHeaderVariables, schemas); err != nil {
		return nil, err
	}
	s.logger.Info("Platform settings imported", zap.Int("platforms", len(schemas)))
	return schemas, nil
}

// ExportPlatformTable returns the platform schemas in upload table layout
func (s *Service) ExportPlatformTable(ctx context.Context) (*sheet.Table, error) {
	schemas, err := s.PlatformSchemas(ctx)
	if err != nil {
		return nil, err
	}
	return settings.PlatformTable(schemas), nil
}

// LoadKeys implements delivery.KeyRepository
func (s *Service) LoadKeys(ctx context.Context) ([]delivery.MatchKey, error) {
	var keys []delivery.MatchKey
	if err := s.load(ctx, settings.KeyDeliveryInfoKeys, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// SaveKeys implements delivery.KeyRepository
func (s *Service) SaveKeys(ctx context.Context, keys []delivery.MatchKey) error {
	if keys == nil {
		keys = []delivery.MatchKey{}
	}
	return s.save(ctx, settings.KeyDeliveryInfoKeys, keys)
}

// MatchKeys returns a registry over the stored match keys
func (s *Service) MatchKeys(ctx context.Context) (*delivery.KeyRegistry, error) {
	return delivery.LoadKeyRegistry(ctx, s)
}

// AddMatchKey upserts a match key and returns the new list
func (s *Service) AddMatchKey(ctx context.Context, key delivery.MatchKey) ([]delivery.MatchKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, err := delivery.LoadKeyRegistry(ctx, s)
	if err != nil {
		return nil, err
	}
	if err := reg.Add(ctx, key); err != nil {
		return nil, err
	}
	s.logger.Info("Match key added",
		zap.String("delivery_column", key.DeliveryColumn),
		zap.String("variable", key.Variable))
	return reg.Keys(), nil
}

// DeleteMatchKey removes the match key bound to a delivery column
func (s *Service) DeleteMatchKey(ctx context.Context, deliveryColumn string) ([]delivery.MatchKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, err := delivery.LoadKeyRegistry(ctx, s)
	if err != nil {
		return nil, err
	}
	removed, err := reg.Delete(ctx, deliveryColumn)
	if err != nil {
		return nil, err
	}
	if removed {
		s.logger.Info("Match key deleted", zap.String("delivery_column", deliveryColumn))
	}
	return reg.Keys(), nil
}

// ReportSchemas returns the report layouts
func (s *Service) ReportSchemas(ctx context.Context) ([]report.Schema, error) {
	var configs []report.SchemaConfig
	if err := s.load(ctx, settings.KeyReportSchemas, &configs); err != nil {
		return nil, err
	}
	schemas := make([]report.Schema, 0, len(configs))
	for _, c := range configs {
		schema, err := c.Build()
		if err != nil {
			return nil, shared.WrapDomainError("SETTINGS_CORRUPTED", "stored report schemas are invalid", err)
		}
		schemas = append(schemas, schema)
	}
	return schemas, nil
}

// ReportRegistry returns the report layouts indexed by platform
func (s *Service) ReportRegistry(ctx context.Context) (*report.Registry, error) {
	schemas, err := s.ReportSchemas(ctx)
	if err != nil {
		return nil, err
	}
	reg, err := report.NewRegistry(schemas)
	if err != nil {
		return nil, shared.WrapDomainError("SETTINGS_CORRUPTED", "stored report schemas are invalid", err)
	}
	return reg, nil
}

// SaveReportSchemas validates and replaces the report layouts. All invalid
// layouts are reported together.
func (s *Service) SaveReportSchemas(ctx context.Context, configs []report.SchemaConfig) ([]report.Schema, error) {
	var problems settings.ValidationErrors
	schemas := make([]report.Schema, 0, len(configs))
	for _, c := range configs {
		schema, err := c.Build()
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		schemas = append(schemas, schema)
	}
	if len(problems) == 0 {
		if _, err := report.NewRegistry(schemas); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) > 0 {
		s.logger.Warn("Rejected report settings", zap.Strings("problems", problems))
		return nil, problems
	}

	stored := make([]report.SchemaConfig, len(schemas))
	for i, schema := range schemas {
		stored[i] = schema.Config()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.save(ctx, settings.KeyReportSchemas, stored); err != nil {
		return nil, err
	}
	s.logger.Info("Report settings saved", zap.Int("schemas", len(schemas)))
	return schemas, nil
}

// DeliveryFormat returns the courier upload layout
func (s *Service) DeliveryFormat(ctx context.Context) (*delivery.Format, error) {
	var cfg delivery.FormatConfig
	if err := s.load(ctx, settings.KeyDeliveryFormatSettings, &cfg); err != nil {
		return nil, err
	}
	format, err := cfg.Build()
	if err != nil {
		return nil, shared.WrapDomainError("SETTINGS_CORRUPTED", "stored delivery format is invalid, reset it to defaults", err)
	}
	return format, nil
}

// SaveDeliveryFormat validates and replaces the courier upload layout
func (s *Service) SaveDeliveryFormat(ctx context.Context, cfg delivery.FormatConfig) (*delivery.Format, error) {
	format, err := cfg.Build()
	if err != nil {
		s.logger.Warn("Rejected delivery format", zap.Error(err))
		return nil, settings.ValidationErrors{err.Error()}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.save(ctx, settings.KeyDeliveryFormatSettings, format.Config()); err != nil {
		return nil, err
	}
	s.logger.Info("Delivery format saved",
		zap.String("agency", format.Agency),
		zap.Int("columns", len(format.Headers())))
	return format, nil
}
