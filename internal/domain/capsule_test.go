package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveState(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(48 * time.Hour)
	past := now.Add(-48 * time.Hour)

	tests := []struct {
		name     string
		openDate *time.Time
		want     CapsuleState
	}{
		{"no open date is unsealed", nil, StateUnsealed},
		{"future open date is sealed", &future, StateSealed},
		{"past open date is opened", &past, StateOpened},
		{"open date equal to now is opened", &now, StateOpened},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveState(tt.openDate, now))
		})
	}
}

func TestCapsuleStateTransitionsWithClock(t *testing.T) {
	openDate := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	capsule := &Capsule{OpenDate: &openDate}

	// 同一条记录仅因墙钟前进而改变状态，无需写入
	assert.Equal(t, StateSealed, capsule.StateAt(openDate.Add(-time.Second)))
	assert.Equal(t, StateOpened, capsule.StateAt(openDate))
	assert.Equal(t, StateOpened, capsule.StateAt(openDate.Add(time.Second)))
}

func TestCapsuleSeal(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	openDate := now.Add(days(5))

	t.Run("no open date never seals", func(t *testing.T) {
		capsule := &Capsule{}
		capsule.Seal(now)
		assert.Nil(t, capsule.SealedAt)
	})

	t.Run("sealing records the instant once", func(t *testing.T) {
		capsule := &Capsule{OpenDate: &openDate}
		capsule.Seal(now)
		require.NotNil(t, capsule.SealedAt)
		assert.Equal(t, now, *capsule.SealedAt)

		// 再次写入不改变封存时刻
		capsule.Seal(now.Add(time.Hour))
		assert.Equal(t, now, *capsule.SealedAt)
	})
}

func TestCapsuleMembership(t *testing.T) {
	capsule := &Capsule{
		Senders:   []string{"user-a", "user-b"},
		Receivers: []string{"user-c"},
	}

	assert.True(t, capsule.IsSentBy("user-a"))
	assert.True(t, capsule.IsSentBy("user-b"))
	assert.False(t, capsule.IsSentBy("user-c"))
	assert.False(t, capsule.IsSentBy(""))

	assert.True(t, capsule.IsReceivedBy("user-c"))
	assert.False(t, capsule.IsReceivedBy("user-a"))
	assert.False(t, capsule.IsReceivedBy(""))
}

func TestNormalizeSenders(t *testing.T) {
	tests := []struct {
		name          string
		creator       string
		collaborators []string
		want          []string
	}{
		{"creator always included", "user-a", nil, []string{"user-a"}},
		{"collaborators appended", "user-a", []string{"user-b"}, []string{"user-a", "user-b"}},
		{"creator deduplicated", "user-a", []string{"user-b", "user-a"}, []string{"user-a", "user-b"}},
		{"duplicate collaborators removed", "user-a", []string{"user-b", "user-b"}, []string{"user-a", "user-b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSenders(tt.creator, tt.collaborators))
		})
	}
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
