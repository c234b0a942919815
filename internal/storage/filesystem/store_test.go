package filesystem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemStore_SaveAndGetImage(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	data := []byte("fake-jpeg-bytes")
	relPath, err := store.SaveImage("capsule-1", "img-1", data)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("capsule-1", "img-1"), relPath)

	retrieved, err := store.GetImage("capsule-1", "img-1")
	require.NoError(t, err)
	assert.Equal(t, data, retrieved)

	_, err = store.GetImage("capsule-1", "missing")
	assert.Error(t, err)
}

func TestFilesystemStore_RemoveCapsuleImages(t *testing.T) {
	base := t.TempDir()
	store, err := NewStore(base)
	require.NoError(t, err)

	_, err = store.SaveImage("capsule-1", "img-1", []byte("a"))
	require.NoError(t, err)
	_, err = store.SaveImage("capsule-1", "img-2", []byte("b"))
	require.NoError(t, err)

	require.NoError(t, store.RemoveCapsuleImages("capsule-1"))

	_, err = os.Stat(filepath.Join(base, "capsule-1"))
	assert.True(t, os.IsNotExist(err))

	// 删除不存在的目录不报错
	assert.NoError(t, store.RemoveCapsuleImages("capsule-1"))
}

func TestFilesystemStore_RejectsTraversal(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.SaveImage("../evil", "img", []byte("x"))
	assert.Error(t, err)
	_, err = store.SaveImage("capsule-1", "..", []byte("x"))
	assert.Error(t, err)
	_, err = store.GetImage("a/b", "img")
	assert.Error(t, err)
	assert.Error(t, store.RemoveCapsuleImages(""))
}
