package settingsapp

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/krbiz/backend/internal/domain/delivery"
	"github.com/krbiz/backend/internal/domain/report"
	"github.com/krbiz/backend/internal/domain/settings"
	"github.com/krbiz/backend/internal/domain/shared"
	"github.com/krbiz/backend/internal/domain/sheet"
)

type mapStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newMapStore() *mapStore {
	return &mapStore{values: make(map[string]string)}
}

func (m *mapStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mapStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// MockStore is a mock implementation of settings.Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockStore) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func TestService_InitializesFromDefaults(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	svc := NewService(store, zap.NewNop())

	schemas, err := svc.PlatformSchemas(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, schemas)
	assert.Equal(t, "SmartStore", schemas[0].Platform)
	assert.Equal(t, 1, schemas[0].HeaderRow)

	def, err := settings.Default(settings.KeyOrderHeaderVariables)
	require.NoError(t, err)
	assert.Equal(t, def, store.values[settings.KeyOrderHeaderVariables])

	keys, err := svc.LoadKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []delivery.MatchKey{
		{DeliveryColumn: "수하인명", Variable: "recipient_name"},
		{DeliveryColumn: "상품명", Variable: "product_name"},
	}, keys)

	reg, err := svc.ReportRegistry(ctx)
	require.NoError(t, err)
	assert.True(t, reg.Has("SmartStore"))
}

func TestService_UnknownKey(t *testing.T) {
	svc := NewService(newMapStore(), nil)

	_, err := svc.Raw(context.Background(), "NOPE")
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	err = svc.Reset(context.Background(), "NOPE")
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestService_CorruptedValue(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	store.values[settings.KeyDeliveryInfoKeys] = "{not json"
	svc := NewService(store, zap.NewNop())

	_, err := svc.LoadKeys(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrSettingsCorrupted))
	assert.True(t, errors.Is(err, settings.ErrCorrupted))

	require.NoError(t, svc.Reset(ctx, settings.KeyDeliveryInfoKeys))
	keys, err := svc.LoadKeys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestService_MatchKeys(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMapStore(), zap.NewNop())

	t.Run("Add prepends and replaces same delivery column", func(t *testing.T) {
		keys, err := svc.AddMatchKey(ctx, delivery.MatchKey{DeliveryColumn: " 상품명 ", Variable: "option"})
		require.NoError(t, err)
		assert.Equal(t, []delivery.MatchKey{
			{DeliveryColumn: "상품명", Variable: "option"},
			{DeliveryColumn: "수하인명", Variable: "recipient_name"},
		}, keys)

		stored, err := svc.LoadKeys(ctx)
		require.NoError(t, err)
		assert.Equal(t, keys, stored)
	})

	t.Run("Delete removes and persists", func(t *testing.T) {
		keys, err := svc.DeleteMatchKey(ctx, "수하인명")
		require.NoError(t, err)
		assert.Equal(t, []delivery.MatchKey{{DeliveryColumn: "상품명", Variable: "option"}}, keys)

		reg, err := svc.MatchKeys(ctx)
		require.NoError(t, err)
		assert.Equal(t, keys, reg.Keys())
	})

	t.Run("Delete unknown key is a no-op", func(t *testing.T) {
		before, err := svc.MatchKeys(ctx)
		require.NoError(t, err)

		keys, err := svc.DeleteMatchKey(ctx, "없는컬럼")
		require.NoError(t, err)
		assert.Equal(t, before.Keys(), keys)
	})

	t.Run("Invalid key", func(t *testing.T) {
		_, err := svc.AddMatchKey(ctx, delivery.MatchKey{DeliveryColumn: "", Variable: "x"})
		assert.ErrorIs(t, err, delivery.ErrEmptyDeliveryColumn)
	})
}

func TestService_ImportPlatformTable(t *testing.T) {
	ctx := context.Background()

	t.Run("Valid upload replaces schemas", func(t *testing.T) {
		svc := NewService(newMapStore(), zap.NewNop())
		table := sheet.NewTable(
			[]string{"PlatformName", "HeaderRow", "recipient"},
			[][]string{{"A", "1", "name"}, {"B", "1", "이름"}},
		)
		schemas, err := svc.ImportPlatformTable(ctx, table)
		require.NoError(t, err)
		require.Len(t, schemas, 2)

		reg, err := svc.PlatformRegistry(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"recipient"}, reg.UnifiedVariables())

		exported, err := svc.ExportPlatformTable(ctx)
		require.NoError(t, err)
		assert.Equal(t, table.Columns, exported.Columns)
		assert.Equal(t, "이름", exported.Value(1, "recipient"))
	})

	t.Run("Invalid upload leaves settings untouched", func(t *testing.T) {
		store := newMapStore()
		svc := NewService(store, zap.NewNop())
		before, err := svc.Raw(ctx, settings.KeyOrderHeaderVariables)
		require.NoError(t, err)

		table := sheet.NewTable(
			[]string{"PlatformName", "HeaderRow", "bad-name"},
			[][]string{{"A", "zero", "x"}},
		)
		_, err = svc.ImportPlatformTable(ctx, table)
		require.Error(t, err)

		var verrs settings.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.GreaterOrEqual(t, len(verrs), 2)
		assert.Equal(t, before, store.values[settings.KeyOrderHeaderVariables])
	})
}

func TestService_SaveReportSchemas(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMapStore(), zap.NewNop())

	t.Run("Valid schemas round trip", func(t *testing.T) {
		saved, err := svc.SaveReportSchemas(ctx, []report.SchemaConfig{{
			Platform: "A",
			Columns: []report.ColumnConfig{
				{Name: "name"},
				{Name: "송장번호", Source: report.SourceDelivery, Value: "운송장번호"},
				{Name: "택배사", Source: report.SourceHardcoded, Value: "CJ대한통운"},
			},
		}})
		require.NoError(t, err)
		require.Len(t, saved, 1)

		schemas, err := svc.ReportSchemas(ctx)
		require.NoError(t, err)
		require.Len(t, schemas, 1)
		assert.Equal(t, []string{"name", "송장번호", "택배사"}, schemas[0].Headers())
		assert.Equal(t, report.FromDelivery{Column: "운송장번호"}, schemas[0].Columns[1].EffectiveRule())
	})

	t.Run("All problems reported", func(t *testing.T) {
		_, err := svc.SaveReportSchemas(ctx, []report.SchemaConfig{
			{Platform: "", Columns: []report.ColumnConfig{{Name: "x"}}},
			{Platform: "B", Columns: []report.ColumnConfig{{Name: "x", Source: "formula"}}},
		})
		var verrs settings.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Len(t, verrs, 2)

		schemas, err := svc.ReportSchemas(ctx)
		require.NoError(t, err)
		assert.Equal(t, "A", schemas[0].Platform)
	})

	t.Run("Duplicate platforms rejected", func(t *testing.T) {
		_, err := svc.SaveReportSchemas(ctx, []report.SchemaConfig{
			{Platform: "A", Columns: []report.ColumnConfig{{Name: "x"}}},
			{Platform: "A", Columns: []report.ColumnConfig{{Name: "y"}}},
		})
		var verrs settings.ValidationErrors
		require.ErrorAs(t, err, &verrs)
	})
}

func TestService_DeliveryFormat(t *testing.T) {
	ctx := context.Background()

	t.Run("Default format", func(t *testing.T) {
		svc := NewService(newMapStore(), zap.NewNop())
		format, err := svc.DeliveryFormat(ctx)
		require.NoError(t, err)
		assert.Equal(t, "CJ대한통운", format.Agency)
		assert.Contains(t, format.Headers(), "받는분성명")
	})

	t.Run("Save replaces the layout", func(t *testing.T) {
		store := newMapStore()
		svc := NewService(store, zap.NewNop())
		cfg := delivery.FormatConfig{
			Agency:  "한진택배",
			Columns: []delivery.FormatColumn{{Name: "수하인", Template: "{{.recipient_name}}"}},
		}
		_, err := svc.SaveDeliveryFormat(ctx, cfg)
		require.NoError(t, err)

		format, err := svc.DeliveryFormat(ctx)
		require.NoError(t, err)
		assert.Equal(t, cfg, format.Config())
		assert.Contains(t, store.values[settings.KeyDeliveryFormatSettings], "한진택배")
	})

	t.Run("Invalid layout leaves settings untouched", func(t *testing.T) {
		svc := NewService(newMapStore(), zap.NewNop())
		_, err := svc.SaveDeliveryFormat(ctx, delivery.FormatConfig{
			Agency:  "X",
			Columns: []delivery.FormatColumn{{Name: "a", Template: "{{"}},
		})
		var verrs settings.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Len(t, verrs, 1)

		format, err := svc.DeliveryFormat(ctx)
		require.NoError(t, err)
		assert.Equal(t, "CJ대한통운", format.Agency)
	})

	t.Run("Stored layout that no longer builds is corrupted", func(t *testing.T) {
		store := newMapStore()
		store.values[settings.KeyDeliveryFormatSettings] = `{"agency":"","columns":[]}`
		svc := NewService(store, zap.NewNop())

		_, err := svc.DeliveryFormat(ctx)
		assert.True(t, errors.Is(err, shared.ErrSettingsCorrupted))
	})
}

func TestService_StoreErrors(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	svc := NewService(store, zap.NewNop())

	store.On("Get", ctx, settings.KeyOrderHeaderVariables).Return("", false, errors.New("redis down"))
	_, err := svc.PlatformSchemas(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")

	store.On("Get", ctx, settings.KeyDeliveryInfoKeys).Return("", false, nil)
	store.On("Set", ctx, settings.KeyDeliveryInfoKeys, mock.AnythingOfType("string")).Return(errors.New("read only"))
	_, err = svc.LoadKeys(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read only")

	store.AssertExpectations(t)
}

func TestService_ResetAll(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	svc := NewService(store, zap.NewNop())

	_, err := svc.AddMatchKey(ctx, delivery.MatchKey{DeliveryColumn: "주소", Variable: "address"})
	require.NoError(t, err)

	require.NoError(t, svc.ResetAll(ctx))
	for _, key := range settings.Keys() {
		def, err := settings.Default(key)
		require.NoError(t, err)
		assert.Equal(t, def, store.values[key])
	}
}
