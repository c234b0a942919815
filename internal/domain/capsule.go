package domain

import (
	"time"
)

// Visibility 胶囊可见性
type Visibility string

const (
	// VisibilityPublic 公开胶囊
	VisibilityPublic Visibility = "public"
	// VisibilityPrivate 私密胶囊
	VisibilityPrivate Visibility = "private"
)

// CapsuleState 胶囊生命周期状态（派生值，不落库）
type CapsuleState string

const (
	// StateUnsealed 未封存，可编辑（无开启日期的永久草稿也停留在此状态）
	StateUnsealed CapsuleState = "unsealed"
	// StateSealed 已封存，等待开启日期
	StateSealed CapsuleState = "sealed"
	// StateOpened 已开启
	StateOpened CapsuleState = "opened"
)

// CapsuleImage 胶囊图片描述符，二进制内容由文件系统存储单独保管
type CapsuleImage struct {
	ID          string `json:"id"`
	CapsuleID   string `json:"capsuleId"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	StoragePath string `json:"-"`
	Position    int    `json:"-"`
}

// Capsule 表示时间胶囊的业务实体
type Capsule struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Content       string         `json:"content"`
	Visibility    Visibility     `json:"visibility"`
	OpenDate      *time.Time     `json:"openDate,omitempty"`
	SealedAt      *time.Time     `json:"sealedAt,omitempty"`
	ShowCountdown bool           `json:"showCountdown"`
	Senders       []string       `json:"senders"`   // 创建者始终包含在内，非空
	Receivers     []string       `json:"receivers"` // 自寄胶囊可为空
	Images        []CapsuleImage `json:"images"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// DeriveState 根据开启日期与当前时刻派生胶囊状态
//
// 必须在每次读取时求值，绝不缓存：同一条存储记录会随墙钟时间
// 从 sealed 变为 opened，无需任何写入。开启日期恰好等于当前时刻
// 时判定为 opened（开启日期已到）。
func DeriveState(openDate *time.Time, now time.Time) CapsuleState {
	switch {
	case openDate == nil:
		return StateUnsealed
	case openDate.After(now):
		return StateSealed
	default:
		return StateOpened
	}
}

// StateAt 返回胶囊在指定时刻的状态
func (c *Capsule) StateAt(now time.Time) CapsuleState {
	return DeriveState(c.OpenDate, now)
}

// IsSentBy 判断用户是否为胶囊的寄送者（含协作者）
func (c *Capsule) IsSentBy(userID string) bool {
	if userID == "" {
		return false
	}
	for _, id := range c.Senders {
		if id == userID {
			return true
		}
	}
	return false
}

// IsReceivedBy 判断用户是否为胶囊的接收者
func (c *Capsule) IsReceivedBy(userID string) bool {
	if userID == "" {
		return false
	}
	for _, id := range c.Receivers {
		if id == userID {
			return true
		}
	}
	return false
}

// Seal 在首次设置开启日期的那次写入时记录封存时刻
//
// SealedAt 一经写入不再变化，即使后续读取时开启日期已过。
func (c *Capsule) Seal(now time.Time) {
	if c.OpenDate != nil && c.SealedAt == nil {
		sealedAt := now
		c.SealedAt = &sealedAt
	}
}

// NormalizeSenders 保证创建者始终出现在寄送者集合中并去重
//
// 即使调用方提交的协作者列表遗漏了自己，也会被补回。
func NormalizeSenders(creatorID string, collaborators []string) []string {
	senders := make([]string, 0, len(collaborators)+1)
	seen := make(map[string]struct{}, len(collaborators)+1)

	senders = append(senders, creatorID)
	seen[creatorID] = struct{}{}

	for _, id := range collaborators {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		senders = append(senders, id)
	}
	return senders
}
