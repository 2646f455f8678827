package platform

import (
	"testing"

	"github.com/krbiz/backend/internal/domain/sheet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smartStore() Schema {
	return Schema{
		Platform:  "SmartStore",
		HeaderRow: 1,
		Mapping: []ColumnMapping{
			{Variable: "recipient_name", Column: "수취인명"},
			{Variable: "phone", Column: "수취인연락처1"},
			{Variable: "memo", Column: ""},
		},
	}
}

func coupang() Schema {
	return Schema{
		Platform:  "Coupang",
		HeaderRow: 0,
		Mapping: []ColumnMapping{
			{Variable: "recipient_name", Column: "수취인이름"},
			{Variable: "product_name", Column: "등록상품명"},
			{Variable: "phone", Column: "수취인전화번호"},
		},
	}
}

func TestNewRegistry(t *testing.T) {
	t.Run("Keeps configuration order", func(t *testing.T) {
		reg, err := NewRegistry([]Schema{smartStore(), coupang()})
		require.NoError(t, err)

		assert.Equal(t, 2, reg.Len())
		assert.Equal(t, "SmartStore", reg.Schemas()[0].Platform)

		s, ok := reg.Lookup("Coupang")
		require.True(t, ok)
		assert.Equal(t, "등록상품명", s.Column("product_name"))

		_, ok = reg.Lookup("Gmarket")
		assert.False(t, ok)
	})

	t.Run("Duplicate platform", func(t *testing.T) {
		_, err := NewRegistry([]Schema{coupang(), coupang()})
		assert.ErrorIs(t, err, ErrDuplicatePlatform)
	})

	t.Run("Negative header row", func(t *testing.T) {
		s := coupang()
		s.HeaderRow = -1
		_, err := NewRegistry([]Schema{s})
		assert.ErrorIs(t, err, ErrInvalidHeaderRow)
	})

	t.Run("Blank platform name", func(t *testing.T) {
		_, err := NewRegistry([]Schema{{Platform: " "}})
		assert.ErrorIs(t, err, ErrEmptyPlatformName)
	})
}

func TestRegistry_UnifiedVariables(t *testing.T) {
	reg, err := NewRegistry([]Schema{smartStore(), coupang()})
	require.NoError(t, err)

	assert.Equal(t, []string{"recipient_name", "phone", "product_name"}, reg.UnifiedVariables())
}

func TestDetect(t *testing.T) {
	schemas := []Schema{smartStore(), coupang()}

	t.Run("Header on a later row", func(t *testing.T) {
		grid := sheet.NewGrid("smart.csv", [][]string{
			{"발주발송관리"},
			{"수취인명", "수취인연락처1", "상품명"},
			{"홍길동", "010-1234-5678", "사과"},
		})

		m, ok := Detect(grid, schemas)
		require.True(t, ok)
		assert.Equal(t, "SmartStore", m.Schema.Platform)
		assert.Equal(t, 1, m.Table.Len())
	})

	t.Run("Short grid skips candidate whose header row is out of range", func(t *testing.T) {
		grid := sheet.NewGrid("coupang.csv", [][]string{
			{"수취인이름", "등록상품명", "수취인전화번호"},
		})

		m, ok := Detect(grid, schemas)
		require.True(t, ok)
		assert.Equal(t, "Coupang", m.Schema.Platform)
	})

	t.Run("First match wins", func(t *testing.T) {
		twin := coupang()
		twin.Platform = "CoupangTwin"
		grid := sheet.NewGrid("c.csv", [][]string{{"수취인이름", "등록상품명", "수취인전화번호"}})

		m, ok := Detect(grid, []Schema{coupang(), twin})
		require.True(t, ok)
		assert.Equal(t, "Coupang", m.Schema.Platform)
	})

	t.Run("Partial columns do not match", func(t *testing.T) {
		grid := sheet.NewGrid("x.csv", [][]string{{"수취인이름", "등록상품명"}, {"a", "b"}})

		_, ok := Detect(grid, schemas)
		assert.False(t, ok)
	})

	t.Run("Padded mapping columns match trimmed headers", func(t *testing.T) {
		padded := Schema{
			Platform: "Padded",
			Mapping: []ColumnMapping{
				{Variable: "recipient_name", Column: " 수취인명"},
				{Variable: "product_name", Column: "상품명 "},
			},
		}
		grid := sheet.NewGrid("p.csv", [][]string{{"수취인명", "상품명"}, {"홍길동", "사과"}})

		m, ok := Detect(grid, []Schema{padded})
		require.True(t, ok)
		assert.Equal(t, "수취인명", padded.Column("recipient_name"))

		out, err := Translate(m.Table, m.Schema)
		require.NoError(t, err)
		assert.Equal(t, "사과", out.Value(0, "product_name"))
	})

	t.Run("Schema without mapping never matches", func(t *testing.T) {
		grid := sheet.NewGrid("x.csv", [][]string{{"a"}})

		_, ok := Detect(grid, []Schema{{Platform: "Empty"}})
		assert.False(t, ok)
	})
}

func TestTranslate(t *testing.T) {
	raw := sheet.NewTable(
		[]string{"수취인이름", "등록상품명", "수취인전화번호", "기타"},
		[][]string{
			{"김철수", "배", "010-1", "x"},
			{"이영희", "감", "010-2", "y"},
		},
	)

	t.Run("Only mapped variables in declared order", func(t *testing.T) {
		out, err := Translate(raw, coupang())
		require.NoError(t, err)

		assert.Equal(t, []string{"recipient_name", "product_name", "phone"}, out.Columns)
		assert.Equal(t, raw.Len(), out.Len())
		assert.Equal(t, "감", out.Value(1, "product_name"))
	})

	t.Run("One raw column feeds two variables", func(t *testing.T) {
		s := coupang()
		s.Mapping = append(s.Mapping, ColumnMapping{Variable: "orderer_name", Column: "수취인이름"})

		out, err := Translate(raw, s)
		require.NoError(t, err)
		assert.Equal(t, "김철수", out.Value(0, "orderer_name"))
		assert.Equal(t, "김철수", out.Value(0, "recipient_name"))
	})

	t.Run("Missing raw column", func(t *testing.T) {
		_, err := Translate(raw, smartStore())
		assert.Error(t, err)
	})
}

func TestBatch_Rows(t *testing.T) {
	raw := sheet.NewTable([]string{"수취인이름", "등록상품명", "수취인전화번호"}, [][]string{{"김철수", "배", "010-1"}})
	b, err := NewBatch("coupang.csv", Match{Schema: coupang(), Table: raw})
	require.NoError(t, err)

	rows := b.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "Coupang", b.Platform())
	assert.Equal(t, "coupang.csv", rows[0].SourceFile)
	assert.Equal(t, "김철수", rows[0].Value("수취인이름"))
	assert.Equal(t, "김철수", rows[0].Value("recipient_name"))
	assert.Equal(t, "", rows[0].Value("nothing"))
	assert.Equal(t, []string{"배", "김철수"}, rows[0].Values([]string{"등록상품명", "수취인이름"}))
}
