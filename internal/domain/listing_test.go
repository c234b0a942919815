package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listingFixtures(now time.Time) []Capsule {
	in2days := now.Add(2 * 24 * time.Hour)
	in5days := now.Add(5 * 24 * time.Hour)
	past := now.Add(-24 * time.Hour)
	sealedAt := now.Add(-48 * time.Hour)

	return []Capsule{
		{ID: "draft-1", Senders: []string{"user-1"}, Receivers: []string{"user-2"}, Visibility: VisibilityPrivate, CreatedAt: now},
		{ID: "sealed-1", Senders: []string{"user-1"}, Visibility: VisibilityPublic, ShowCountdown: true, OpenDate: &in2days, SealedAt: &sealedAt, CreatedAt: now},
		{ID: "sealed-hidden", Senders: []string{"user-3"}, Visibility: VisibilityPublic, ShowCountdown: false, OpenDate: &in5days, SealedAt: &sealedAt, CreatedAt: now},
		{ID: "opened-1", Senders: []string{"user-3"}, Receivers: []string{"user-1"}, Visibility: VisibilityPrivate, OpenDate: &past, SealedAt: &sealedAt, CreatedAt: now},
		{ID: "opened-public", Senders: []string{"user-3"}, Visibility: VisibilityPublic, OpenDate: &past, SealedAt: &sealedAt, CreatedAt: now},
	}
}

func filterIDs(capsules []Capsule, filter CapsuleFilter, now time.Time) []string {
	ids := make([]string, 0, len(capsules))
	for i := range capsules {
		if filter.Matches(&capsules[i], now) {
			ids = append(ids, capsules[i].ID)
		}
	}
	return ids
}

func TestUserCapsuleFilter(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	capsules := listingFixtures(now)

	tests := []struct {
		mode string
		want []string
	}{
		// draft 只看寄送者与未封存状态，与接收者无关
		{ListDraft, []string{"draft-1"}},
		{ListSent, []string{"draft-1", "sealed-1"}},
		{ListReceived, []string{"opened-1"}},
		{"", []string{"draft-1", "sealed-1", "opened-1"}},
	}

	for _, tt := range tests {
		t.Run("mode "+tt.mode, func(t *testing.T) {
			filter, ok := UserCapsuleFilter("user-1", tt.mode)
			require.True(t, ok)
			assert.ElementsMatch(t, tt.want, filterIDs(capsules, filter, now))
		})
	}

	_, ok := UserCapsuleFilter("user-1", "bogus")
	assert.False(t, ok)
}

func TestPublicCapsuleFilter(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	capsules := listingFixtures(now)

	tests := []struct {
		mode string
		want []string
	}{
		// 未开倒计时的封存公开胶囊不进入公开列表
		{ListSealed, []string{"sealed-1"}},
		{ListOpened, []string{"opened-public"}},
		{"", []string{"sealed-1", "opened-public"}},
	}

	for _, tt := range tests {
		t.Run("mode "+tt.mode, func(t *testing.T) {
			filter, ok := PublicCapsuleFilter(tt.mode)
			require.True(t, ok)
			assert.ElementsMatch(t, tt.want, filterIDs(capsules, filter, now))
		})
	}

	_, ok := PublicCapsuleFilter("draft")
	assert.False(t, ok)
}

func TestSortCapsules(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	in2days := now.Add(2 * 24 * time.Hour)
	in5days := now.Add(5 * 24 * time.Hour)

	capsules := []Capsule{
		{ID: "C", CreatedAt: now},
		{ID: "B", OpenDate: &in5days, CreatedAt: now},
		{ID: "A", OpenDate: &in2days, CreatedAt: now},
	}

	SortCapsules(capsules, now)

	// 有开启日期的优先，最先开启的在前
	assert.Equal(t, "A", capsules[0].ID)
	assert.Equal(t, "B", capsules[1].ID)
	assert.Equal(t, "C", capsules[2].ID)
}

func TestSortCapsules_TieBreaks(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	openDate := now.Add(24 * time.Hour)
	sealedEarly := now.Add(-48 * time.Hour)
	sealedLate := now.Add(-time.Hour)

	capsules := []Capsule{
		{ID: "older", OpenDate: &openDate, SealedAt: &sealedEarly, CreatedAt: now.Add(-time.Hour)},
		{ID: "newer", OpenDate: &openDate, SealedAt: &sealedLate, CreatedAt: now},
	}

	SortCapsules(capsules, now)

	// 开启日期相同的按封存时刻降序
	assert.Equal(t, "newer", capsules[0].ID)
	assert.Equal(t, "older", capsules[1].ID)

	noSeal := []Capsule{
		{ID: "created-early", CreatedAt: now.Add(-time.Hour)},
		{ID: "created-late", CreatedAt: now},
	}
	SortCapsules(noSeal, now)

	// 无封存时刻的按创建时间降序
	assert.Equal(t, "created-late", noSeal[0].ID)
}

func TestListQueryNormalize(t *testing.T) {
	q := ListQuery{}.Normalize()
	assert.Equal(t, DefaultTake, q.Take)
	assert.Equal(t, 0, q.Skip)

	q = ListQuery{Skip: 3, Take: 25}.Normalize()
	assert.Equal(t, 25, q.Take)
	assert.Equal(t, 3, q.Skip)
}

func TestPaginate(t *testing.T) {
	capsules := []Capsule{{ID: "1"}, {ID: "2"}, {ID: "3"}}

	page := Paginate(capsules, 1, 1)
	require.Len(t, page, 1)
	assert.Equal(t, "2", page[0].ID)

	assert.Len(t, Paginate(capsules, 0, 10), 3)
	assert.Empty(t, Paginate(capsules, 5, 10))
}
