package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func projectionFixture() *Capsule {
	openDate := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	sealedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return &Capsule{
		ID:            "capsule-1",
		Title:         "dear future me",
		Content:       "hello from the past",
		Visibility:    VisibilityPublic,
		OpenDate:      &openDate,
		SealedAt:      &sealedAt,
		ShowCountdown: true,
		Senders:       []string{"sender-1"},
		Receivers:     []string{"receiver-1"},
		Images: []CapsuleImage{
			{ID: "img-1", Name: "photo.jpg", ContentType: "image/jpeg", Size: 1024, StoragePath: "capsule-1/img-1"},
		},
	}
}

func marshalKeys(t *testing.T, view CapsuleView) map[string]json.RawMessage {
	t.Helper()
	data, err := json.Marshal(view)
	require.NoError(t, err)
	keys := make(map[string]json.RawMessage)
	require.NoError(t, json.Unmarshal(data, &keys))
	return keys
}

func TestProject_Unsealed(t *testing.T) {
	capsule := projectionFixture()
	capsule.OpenDate = nil
	capsule.SealedAt = nil

	keys := marshalKeys(t, Project(capsule, StateUnsealed))

	for _, key := range []string{"id", "visibility", "state", "senders", "receivers", "showCountdown", "title", "content", "images"} {
		assert.Contains(t, keys, key)
	}
	assert.NotContains(t, keys, "openDate")
	assert.NotContains(t, keys, "sealedAt")
}

func TestProject_Sealed(t *testing.T) {
	keys := marshalKeys(t, Project(projectionFixture(), StateSealed))

	for _, key := range []string{"id", "visibility", "state", "senders", "receivers", "openDate"} {
		assert.Contains(t, keys, key)
	}
	// 封存状态下标题、正文、图片对所有人隐藏
	assert.NotContains(t, keys, "title")
	assert.NotContains(t, keys, "content")
	assert.NotContains(t, keys, "images")
	assert.NotContains(t, keys, "sealedAt")
	assert.NotContains(t, keys, "showCountdown")
}

func TestProject_Opened(t *testing.T) {
	view := Project(projectionFixture(), StateOpened)
	keys := marshalKeys(t, view)

	for _, key := range []string{"id", "visibility", "state", "senders", "receivers", "title", "content", "images", "openDate", "sealedAt"} {
		assert.Contains(t, keys, key)
	}
	assert.NotContains(t, keys, "showCountdown")
}

func TestProject_ImageMetadataOnly(t *testing.T) {
	view := Project(projectionFixture(), StateOpened)
	require.Len(t, view.Images, 1)

	data, err := json.Marshal(view.Images[0])
	require.NoError(t, err)

	meta := make(map[string]json.RawMessage)
	require.NoError(t, json.Unmarshal(data, &meta))

	// 只暴露元数据，绝不内嵌二进制或存储路径
	assert.Contains(t, meta, "id")
	assert.Contains(t, meta, "name")
	assert.Contains(t, meta, "contentType")
	assert.Len(t, meta, 3)
}

func TestProject_Idempotent(t *testing.T) {
	capsule := projectionFixture()

	first, err := json.Marshal(Project(capsule, StateOpened))
	require.NoError(t, err)
	second, err := json.Marshal(Project(capsule, StateOpened))
	require.NoError(t, err)

	// 时间不变时重复读取得到完全相同的投影
	assert.Equal(t, first, second)
}

func TestProject_UnsealedZeroValuesSerialized(t *testing.T) {
	capsule := projectionFixture()
	capsule.Title = ""
	capsule.Content = ""
	capsule.ShowCountdown = false

	keys := marshalKeys(t, Project(capsule, StateUnsealed))

	// 指针承载的可选字段不会被 omitempty 吞掉合法零值
	assert.Contains(t, keys, "title")
	assert.Contains(t, keys, "content")
	assert.Contains(t, keys, "showCountdown")
}
