package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/krbiz/backend/internal/infrastructure/config"
)

func TestNewS3ReportArchive_Validation(t *testing.T) {
	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3ReportArchive(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		_, err := NewS3ReportArchive(&config.StorageConfig{Region: "ap-northeast-2"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("half configured credentials return error", func(t *testing.T) {
		_, err := NewS3ReportArchive(&config.StorageConfig{
			Bucket:      "reports",
			Region:      "ap-northeast-2",
			AccessKeyID: "key",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be set together")
	})

	t.Run("valid config creates archive", func(t *testing.T) {
		archive, err := NewS3ReportArchive(&config.StorageConfig{
			Bucket:          "reports",
			Region:          "ap-northeast-2",
			Endpoint:        "localhost:9000",
			AccessKeyID:     "key",
			SecretAccessKey: "secret",
			UsePathStyle:    true,
			KeyPrefix:       "reports/",
		}, WithPresignExpiration(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, "reports", archive.Bucket())
		assert.Equal(t, time.Hour, archive.presignExpiration)
	})
}

func TestS3ReportArchive_ObjectKey(t *testing.T) {
	archive, err := NewS3ReportArchive(&config.StorageConfig{
		Bucket:          "reports",
		Region:          "ap-northeast-2",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		KeyPrefix:       "reports/",
	}, WithClock(func() time.Time { return time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC) }))
	require.NoError(t, err)

	key := archive.objectKey("../SmartStore-2024-03-09.csv")
	assert.True(t, strings.HasPrefix(key, "reports/2024-03-09/"), key)
	assert.True(t, strings.HasSuffix(key, "-SmartStore-2024-03-09.csv"), key)
}

func TestS3ReportArchive_Archive(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		gotURL string
		body   string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		method = r.Method
		gotURL = r.URL.Path
		body = string(data)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	archive, err := NewS3ReportArchive(&config.StorageConfig{
		Bucket:          "reports",
		Region:          "ap-northeast-2",
		Endpoint:        server.URL,
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		UsePathStyle:    true,
		KeyPrefix:       "reports",
	}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	file, err := archive.Archive(context.Background(), "leftover-2024-03-09.csv", []byte("a,b\n1,2\n"))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.True(t, strings.HasPrefix(gotURL, "/reports/reports/"), gotURL)
	assert.Contains(t, body, "a,b")
	assert.Equal(t, "leftover-2024-03-09.csv", file.Name)
	assert.True(t, strings.HasSuffix(file.Key, "-leftover-2024-03-09.csv"))
	assert.Contains(t, file.URL, "X-Amz-Signature")
	assert.True(t, file.ExpiresAt.After(time.Now()))
}

func TestS3ReportArchive_Archive_EmptyName(t *testing.T) {
	archive, err := NewS3ReportArchive(&config.StorageConfig{
		Bucket:          "reports",
		Region:          "ap-northeast-2",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)

	_, err = archive.Archive(context.Background(), "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file name is required")
}
