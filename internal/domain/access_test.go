package domain

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCapsule(visibility Visibility, showCountdown bool) *Capsule {
	return &Capsule{
		ID:            "capsule-1",
		Visibility:    visibility,
		ShowCountdown: showCountdown,
		Senders:       []string{"sender-1"},
		Receivers:     []string{"receiver-1"},
	}
}

func assertKind(t *testing.T, err error, kind ErrorKind, status int) {
	t.Helper()
	require.Error(t, err)
	de, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, kind, de.Kind)
	assert.Equal(t, status, de.Status)
}

func TestAuthorizeRead_Unsealed(t *testing.T) {
	for _, visibility := range []Visibility{VisibilityPublic, VisibilityPrivate} {
		capsule := testCapsule(visibility, false)

		// 任何可见性下都只有寄送者可读
		assert.NoError(t, AuthorizeRead(capsule, StateUnsealed, AuthenticatedActor("sender-1")))
		assertKind(t, AuthorizeRead(capsule, StateUnsealed, AuthenticatedActor("receiver-1")), ErrAuth, http.StatusForbidden)
		assertKind(t, AuthorizeRead(capsule, StateUnsealed, AuthenticatedActor("stranger")), ErrAuth, http.StatusForbidden)
		assertKind(t, AuthorizeRead(capsule, StateUnsealed, Anonymous()), ErrAuth, http.StatusForbidden)
	}
}

func TestAuthorizeRead_Sealed(t *testing.T) {
	t.Run("private only sender", func(t *testing.T) {
		capsule := testCapsule(VisibilityPrivate, true)
		assert.NoError(t, AuthorizeRead(capsule, StateSealed, AuthenticatedActor("sender-1")))
		assertKind(t, AuthorizeRead(capsule, StateSealed, AuthenticatedActor("stranger")), ErrAuth, http.StatusForbidden)
		assertKind(t, AuthorizeRead(capsule, StateSealed, Anonymous()), ErrAuth, http.StatusForbidden)
	})

	t.Run("public with countdown readable by anyone", func(t *testing.T) {
		capsule := testCapsule(VisibilityPublic, true)
		assert.NoError(t, AuthorizeRead(capsule, StateSealed, Anonymous()))
		assert.NoError(t, AuthorizeRead(capsule, StateSealed, AuthenticatedActor("stranger")))
	})

	t.Run("public without countdown is locked not forbidden", func(t *testing.T) {
		capsule := testCapsule(VisibilityPublic, false)
		assertKind(t, AuthorizeRead(capsule, StateSealed, Anonymous()), ErrConflictedState, http.StatusLocked)
		assertKind(t, AuthorizeRead(capsule, StateSealed, AuthenticatedActor("stranger")), ErrConflictedState, http.StatusLocked)

		// 寄送者不受倒计时开关限制
		assert.NoError(t, AuthorizeRead(capsule, StateSealed, AuthenticatedActor("sender-1")))
	})
}

func TestAuthorizeRead_Opened(t *testing.T) {
	t.Run("private sender or receiver", func(t *testing.T) {
		capsule := testCapsule(VisibilityPrivate, false)
		assert.NoError(t, AuthorizeRead(capsule, StateOpened, AuthenticatedActor("sender-1")))
		assert.NoError(t, AuthorizeRead(capsule, StateOpened, AuthenticatedActor("receiver-1")))
		assertKind(t, AuthorizeRead(capsule, StateOpened, AuthenticatedActor("stranger")), ErrAuth, http.StatusForbidden)
		assertKind(t, AuthorizeRead(capsule, StateOpened, Anonymous()), ErrAuth, http.StatusForbidden)
	})

	t.Run("public anyone", func(t *testing.T) {
		capsule := testCapsule(VisibilityPublic, false)
		assert.NoError(t, AuthorizeRead(capsule, StateOpened, Anonymous()))
		assert.NoError(t, AuthorizeRead(capsule, StateOpened, AuthenticatedActor("stranger")))
	})
}

func TestAuthorizeEdit(t *testing.T) {
	capsule := testCapsule(VisibilityPrivate, false)

	assert.NoError(t, AuthorizeEdit(capsule, StateUnsealed, AuthenticatedActor("sender-1")))
	assertKind(t, AuthorizeEdit(capsule, StateUnsealed, AuthenticatedActor("stranger")), ErrAuth, http.StatusForbidden)
	assertKind(t, AuthorizeEdit(capsule, StateUnsealed, Anonymous()), ErrAuth, http.StatusForbidden)

	// 寄送者编辑已封存/已开启的胶囊是 423 而非 403
	assertKind(t, AuthorizeEdit(capsule, StateSealed, AuthenticatedActor("sender-1")), ErrConflictedState, http.StatusLocked)
	assertKind(t, AuthorizeEdit(capsule, StateOpened, AuthenticatedActor("sender-1")), ErrConflictedState, http.StatusLocked)
}

func TestAuthorizeDelete(t *testing.T) {
	capsule := testCapsule(VisibilityPublic, false)

	// 寄送者可删除任意状态的胶囊
	assert.NoError(t, AuthorizeDelete(capsule, AuthenticatedActor("sender-1")))
	assertKind(t, AuthorizeDelete(capsule, AuthenticatedActor("receiver-1")), ErrAuth, http.StatusForbidden)
	assertKind(t, AuthorizeDelete(capsule, Anonymous()), ErrAuth, http.StatusForbidden)
}

func TestAuthorizeReadContent(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	openDate := now.Add(24 * time.Hour)

	capsule := testCapsule(VisibilityPublic, true)
	capsule.OpenDate = &openDate

	// sealed 状态下内容对寄送者也不可见
	assertKind(t, AuthorizeReadContent(capsule, StateSealed, AuthenticatedActor("sender-1")), ErrConflictedState, http.StatusLocked)
	assert.NoError(t, AuthorizeReadContent(capsule, StateOpened, Anonymous()))

	unsealed := testCapsule(VisibilityPublic, false)
	assert.NoError(t, AuthorizeReadContent(unsealed, StateUnsealed, AuthenticatedActor("sender-1")))
	assertKind(t, AuthorizeReadContent(unsealed, StateUnsealed, Anonymous()), ErrAuth, http.StatusForbidden)
}
