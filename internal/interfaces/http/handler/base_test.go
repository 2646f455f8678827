package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krbiz/backend/internal/domain/delivery"
	"github.com/krbiz/backend/internal/domain/reconcile"
	"github.com/krbiz/backend/internal/domain/settings"
	"github.com/krbiz/backend/internal/domain/shared"
	"github.com/krbiz/backend/internal/domain/sheet"
	csvimport "github.com/krbiz/backend/internal/infrastructure/import"
	"github.com/krbiz/backend/internal/interfaces/http/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newContext(target string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	return c, w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return *resp.Error
}

func TestBaseHandler_Success(t *testing.T) {
	h := &BaseHandler{}

	t.Run("Success", func(t *testing.T) {
		c, w := newContext("/")
		h.Success(c, gin.H{"id": "abc"})

		assert.Equal(t, http.StatusOK, w.Code)
		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Nil(t, resp.Error)
	})

	t.Run("Created", func(t *testing.T) {
		c, w := newContext("/")
		h.Created(c, gin.H{"id": "abc"})
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("NoContent", func(t *testing.T) {
		c, w := newContext("/")
		h.NoContent(c)
		c.Writer.WriteHeaderNow()
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestBaseHandler_ErrorCarriesRequestID(t *testing.T) {
	h := &BaseHandler{}
	c, w := newContext("/")
	c.Set("request_id", "req-1")

	h.NotFound(c, "gone")

	assert.Equal(t, http.StatusNotFound, w.Code)
	info := errorBody(t, w)
	assert.Equal(t, dto.ErrCodeNotFound, info.Code)
	assert.Equal(t, "gone", info.Message)
	assert.Equal(t, "req-1", info.RequestID)
	assert.False(t, info.Timestamp.IsZero())
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", shared.NewDomainError("NOT_FOUND", "session x not found"), http.StatusNotFound, dto.ErrCodeNotFound},
		{"invalid input", shared.NewDomainError("INVALID_INPUT", "bad"), http.StatusBadRequest, dto.ErrCodeInvalidInput},
		{"corrupted settings", shared.WrapDomainError("SETTINGS_CORRUPTED", "broken", errors.New("json")), http.StatusConflict, dto.ErrCodeSettingsCorrupted},
		{"wrapped domain error", fmt.Errorf("load: %w", shared.NewDomainError("INVALID_STATE", "busy")), http.StatusUnprocessableEntity, dto.ErrCodeInvalidState},
		{"settings validation", settings.ValidationErrors{"a", "b"}, http.StatusBadRequest, dto.ErrCodeValidation},
		{"body too large", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge, dto.ErrCodeTooLarge},
		{"no delivery confirmation", reconcile.ErrNoDeliveryConfirmation, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState},
		{"empty match key column", delivery.ErrEmptyDeliveryColumn, http.StatusBadRequest, dto.ErrCodeInvalidInput},
		{"empty match key variable", delivery.ErrEmptyVariable, http.StatusBadRequest, dto.ErrCodeInvalidInput},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	h := &BaseHandler{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newContext("/")
			h.HandleError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, errorBody(t, w).Code)
		})
	}
}

func TestBaseHandler_HandleError_SettingsDetails(t *testing.T) {
	h := &BaseHandler{}
	c, w := newContext("/")

	h.HandleError(c, settings.ValidationErrors{"row 2: PlatformName is empty", "HeaderRow must be a whole number"})

	info := errorBody(t, w)
	require.Len(t, info.Details, 2)
	assert.Equal(t, "row 2: PlatformName is empty", info.Details[0].Message)
}

func TestBaseHandler_HandleError_HidesInternalDetail(t *testing.T) {
	h := &BaseHandler{}
	c, w := newContext("/")

	h.HandleError(c, errors.New("dial tcp 10.0.0.1:5432: refused"))

	assert.NotContains(t, errorBody(t, w).Message, "10.0.0.1")
}

func TestBaseHandler_DownloadCSV(t *testing.T) {
	h := &BaseHandler{}
	table := sheet.NewTable([]string{"이름", "송장번호"}, [][]string{{"홍길동", "123"}})

	t.Run("UTF-8 with BOM", func(t *testing.T) {
		c, w := newContext("/out")
		h.DownloadCSV(c, "A 발송.csv", table)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Equal(t, "attachment; filename*=utf-8''A%20%EB%B0%9C%EC%86%A1.csv", w.Header().Get("Content-Disposition"))
		assert.Equal(t, "\ufeff이름,송장번호\n홍길동,123\n", w.Body.String())
	})

	t.Run("CP949", func(t *testing.T) {
		c, w := newContext("/out?encoding=cp949")
		h.DownloadCSV(c, "a.csv", table)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/csv; charset=cp949", w.Header().Get("Content-Type"))
		decoded, enc, err := csvimport.DetectAndDecode(w.Body.Bytes())
		require.NoError(t, err)
		assert.Equal(t, csvimport.EncodingCP949, enc)
		assert.Equal(t, "이름,송장번호\n홍길동,123\n", string(decoded))
	})

	t.Run("Unrepresentable in CP949", func(t *testing.T) {
		c, w := newContext("/out?encoding=cp949")
		h.DownloadCSV(c, "a.csv", sheet.NewTable([]string{"name"}, [][]string{{"🙂"}}))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, csvimport.ErrCodeImportInvalidEncoding, errorBody(t, w).Code)
	})
}

func TestBaseHandler_FormAndFileErrors(t *testing.T) {
	h := &BaseHandler{}

	t.Run("missing file", func(t *testing.T) {
		c, w := newContext("/")
		h.FormError(c, "file", http.ErrMissingFile)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, errorBody(t, w).Message, `"file"`)
	})

	t.Run("body too large", func(t *testing.T) {
		c, w := newContext("/")
		h.FormError(c, "file", fmt.Errorf("multipart: %w", &http.MaxBytesError{Limit: 1}))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("file too large", func(t *testing.T) {
		c, w := newContext("/")
		h.FileError(c, "a.csv", csvimport.ErrFileTooLarge)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, csvimport.ErrCodeImportFileTooLarge, errorBody(t, w).Code)
	})

	t.Run("empty file", func(t *testing.T) {
		c, w := newContext("/")
		h.FileError(c, "a.csv", csvimport.ErrEmptyFile)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		info := errorBody(t, w)
		assert.Equal(t, csvimport.ErrCodeImportEmptyFile, info.Code)
		assert.Contains(t, info.Message, "a.csv")
	})
}
