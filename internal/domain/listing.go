package domain

import (
	"sort"
	"time"
)

// 列表查询模式
const (
	// ListDraft 草稿：寄送者本人且未封存
	ListDraft = "draft"
	// ListSent 已寄送：寄送者本人，任意状态
	ListSent = "sent"
	// ListReceived 已接收：接收者本人且已开启
	ListReceived = "received"
	// ListSealed 公开列表：已封存且展示倒计时
	ListSealed = "sealed"
	// ListOpened 公开列表：已开启
	ListOpened = "opened"
)

// FilterClause 单个过滤子句，字段之间为与关系；零值字段不参与匹配
type FilterClause struct {
	SenderID      string
	ReceiverID    string
	State         CapsuleState
	Visibility    Visibility
	ShowCountdown *bool
}

// CapsuleFilter 过滤器：子句之间为或关系
type CapsuleFilter struct {
	Clauses []FilterClause
}

func (fc FilterClause) matches(c *Capsule, now time.Time) bool {
	if fc.SenderID != "" && !c.IsSentBy(fc.SenderID) {
		return false
	}
	if fc.ReceiverID != "" && !c.IsReceivedBy(fc.ReceiverID) {
		return false
	}
	if fc.State != "" && c.StateAt(now) != fc.State {
		return false
	}
	if fc.Visibility != "" && c.Visibility != fc.Visibility {
		return false
	}
	if fc.ShowCountdown != nil && c.ShowCountdown != *fc.ShowCountdown {
		return false
	}
	return true
}

// Matches 判断胶囊是否命中任一子句
func (f CapsuleFilter) Matches(c *Capsule, now time.Time) bool {
	for _, clause := range f.Clauses {
		if clause.matches(c, now) {
			return true
		}
	}
	return false
}

// UserCapsuleFilter 组合用户自身胶囊的列表过滤器
//
// mode 为空表示默认模式：sent、received、draft 三者的并集。
// 未知 mode 返回 false。
func UserCapsuleFilter(userID, mode string) (CapsuleFilter, bool) {
	draft := FilterClause{SenderID: userID, State: StateUnsealed}
	sent := FilterClause{SenderID: userID}
	received := FilterClause{ReceiverID: userID, State: StateOpened}

	switch mode {
	case "":
		return CapsuleFilter{Clauses: []FilterClause{sent, received, draft}}, true
	case ListDraft:
		return CapsuleFilter{Clauses: []FilterClause{draft}}, true
	case ListSent:
		return CapsuleFilter{Clauses: []FilterClause{sent}}, true
	case ListReceived:
		return CapsuleFilter{Clauses: []FilterClause{received}}, true
	}
	return CapsuleFilter{}, false
}

// PublicCapsuleFilter 组合公开胶囊的列表过滤器
//
// sealed 模式仅收录展示倒计时的封存胶囊；mode 为空表示两者并集。
func PublicCapsuleFilter(mode string) (CapsuleFilter, bool) {
	countdown := true
	sealed := FilterClause{Visibility: VisibilityPublic, State: StateSealed, ShowCountdown: &countdown}
	opened := FilterClause{Visibility: VisibilityPublic, State: StateOpened}

	switch mode {
	case "":
		return CapsuleFilter{Clauses: []FilterClause{sealed, opened}}, true
	case ListSealed:
		return CapsuleFilter{Clauses: []FilterClause{sealed}}, true
	case ListOpened:
		return CapsuleFilter{Clauses: []FilterClause{opened}}, true
	}
	return CapsuleFilter{}, false
}

// ListQuery 分页列表查询，排序后再应用 skip/take
type ListQuery struct {
	Filter CapsuleFilter
	Skip   int
	Take   int
}

// DefaultTake 未指定 take 时的每页条数
const DefaultTake = 10

// Normalize 填充分页默认值
func (q ListQuery) Normalize() ListQuery {
	if q.Take < 1 {
		q.Take = DefaultTake
	}
	if q.Skip < 0 {
		q.Skip = 0
	}
	return q
}

// SortCapsules 按列表排序规则就地排序
//
// 优先级从高到低：有开启日期的排在没有的之前；有开启日期的按
// (openDate − now) 升序，最先开启的在前；再按封存时刻降序；
// 最后按创建时间降序。
func SortCapsules(capsules []Capsule, now time.Time) {
	sort.SliceStable(capsules, func(i, j int) bool {
		return lessCapsules(&capsules[i], &capsules[j], now)
	})
}

func lessCapsules(a, b *Capsule, now time.Time) bool {
	aHas := a.OpenDate != nil
	bHas := b.OpenDate != nil
	if aHas != bHas {
		return aHas
	}
	if aHas && bHas && !a.OpenDate.Equal(*b.OpenDate) {
		// now 为常量，(openDate − now) 升序等价于 openDate 升序
		return a.OpenDate.Before(*b.OpenDate)
	}

	aSealed := a.SealedAt
	bSealed := b.SealedAt
	switch {
	case aSealed != nil && bSealed != nil && !aSealed.Equal(*bSealed):
		return aSealed.After(*bSealed)
	case aSealed != nil && bSealed == nil:
		return true
	case aSealed == nil && bSealed != nil:
		return false
	}

	return a.CreatedAt.After(b.CreatedAt)
}

// Paginate 对排序后的切片应用 skip/take
func Paginate(capsules []Capsule, skip, take int) []Capsule {
	if skip >= len(capsules) {
		return []Capsule{}
	}
	end := skip + take
	if end > len(capsules) {
		end = len(capsules)
	}
	return capsules[skip:end]
}
