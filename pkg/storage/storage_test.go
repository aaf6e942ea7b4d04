package storage

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	s, err := New(Config{Type: "local", Local: LocalConfig{Path: t.TempDir()}})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	_, err = New(Config{Type: "s3"})
	assert.Error(t, err)

	_, err = NewLocalStorage(LocalConfig{})
	assert.Error(t, err)
}

// TestLocalStorage 测试本地存储实现
func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	localStorage, err := NewLocalStorage(LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	content := []byte("%PDF-1.4 sample")
	info, err := localStorage.Save(ctx, "run-1", "Q4 Report.PDF", bytes.NewReader(content))
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "Q4 Report.PDF", info.Name)
	assert.Equal(t, int64(len(content)), info.Size)
	assert.Equal(t, "application/pdf", info.MimeType)
	assert.Equal(t, "run-1/"+info.ID+".pdf", info.Path)

	t.Run("Get", func(t *testing.T) {
		data, err := ReadAll(ctx, localStorage, info.Path)
		require.NoError(t, err)
		assert.Equal(t, content, data)

		_, err = localStorage.Get(ctx, "run-1/missing.pdf")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("List", func(t *testing.T) {
		_, err := localStorage.Save(ctx, "run-2", "notes.md", bytes.NewReader([]byte("# Notes")))
		require.NoError(t, err)

		files, err := localStorage.List(ctx, "run-1")
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, info.ID, files[0].ID)
		assert.Equal(t, info.Path, files[0].Path)

		all, err := localStorage.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 2)

		none, err := localStorage.List(ctx, "run-unknown")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("ExistsAndDelete", func(t *testing.T) {
		exists, err := localStorage.Exists(ctx, info.Path)
		require.NoError(t, err)
		assert.True(t, exists)

		require.NoError(t, localStorage.Delete(ctx, info.Path))

		exists, err = localStorage.Exists(ctx, info.Path)
		require.NoError(t, err)
		assert.False(t, exists)

		assert.ErrorIs(t, localStorage.Delete(ctx, info.Path), ErrNotFound)
	})

	t.Run("RejectsEscapingKeys", func(t *testing.T) {
		_, err := localStorage.Get(ctx, "../etc/passwd")
		assert.Error(t, err)
		_, err = localStorage.Exists(ctx, "")
		assert.Error(t, err)
	})
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "run_1/abc.pdf", objectKey("run/1", "abc", "x.PDF"))
	assert.Equal(t, "default/abc.txt", objectKey("", "abc", "a.txt"))
	assert.Equal(t, "__/abc", objectKey("..", "abc", "noext"))
	assert.Equal(t, "abc", idFromKey("run/abc.pdf"))
}

// TestMinioStorage 测试MinIO存储实现
// 需要设置MINIO_TEST_ENDPOINT指向可用的MinIO服务
func TestMinioStorage(t *testing.T) {
	endpoint := os.Getenv("MINIO_TEST_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_TEST_ENDPOINT not set, skipping MinIO tests")
	}

	ctx := context.Background()
	minioStorage, err := NewMinioStorage(MinioConfig{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "ragflow-setup-test",
	})
	require.NoError(t, err)

	content := []byte("这是MinIO测试文件内容")
	info, err := minioStorage.Save(ctx, "run-minio", "notes.txt", bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), info.Size)

	data, err := ReadAll(ctx, minioStorage, info.Path)
	require.NoError(t, err)
	assert.Equal(t, content, data)

	files, err := minioStorage.List(ctx, "run-minio")
	require.NoError(t, err)
	assert.NotEmpty(t, files)

	require.NoError(t, minioStorage.Delete(ctx, info.Path))
	exists, err := minioStorage.Exists(ctx, info.Path)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = minioStorage.Get(ctx, info.Path)
	assert.ErrorIs(t, err, ErrNotFound)
}
