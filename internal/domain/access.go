package domain

import "net/http"

// Actor 当前请求的访问者：已认证用户或匿名访客
type Actor struct {
	UserID        string
	Authenticated bool
}

// Anonymous 匿名访客
func Anonymous() Actor {
	return Actor{}
}

// AuthenticatedActor 已认证用户
func AuthenticatedActor(userID string) Actor {
	return Actor{UserID: userID, Authenticated: true}
}

// AuthorizeRead 按状态与可见性判定读权限
//
// 规则（见各状态分支）：
//   - unsealed：仅寄送者可读，其余一律 403
//   - sealed + private：仅寄送者可读
//   - sealed + public：寄送者始终可读；非寄送者仅在开启倒计时展示时
//     可读封存元数据，否则返回 423（存在但尚不可访问，区别于 403）
//   - opened + private：寄送者或接收者可读
//   - opened + public：任何人可读
func AuthorizeRead(c *Capsule, state CapsuleState, actor Actor) error {
	isSender := actor.Authenticated && c.IsSentBy(actor.UserID)

	switch state {
	case StateUnsealed:
		if !isSender {
			return NewAuthError(http.StatusForbidden, "you are not allowed to access this capsule")
		}
		return nil

	case StateSealed:
		if isSender {
			return nil
		}
		if c.Visibility == VisibilityPrivate {
			return NewAuthError(http.StatusForbidden, "you are not allowed to access this capsule")
		}
		if !c.ShowCountdown {
			return NewConflictedStateError("capsule is sealed and cannot be opened yet")
		}
		return nil

	case StateOpened:
		if c.Visibility == VisibilityPublic {
			return nil
		}
		if isSender || (actor.Authenticated && c.IsReceivedBy(actor.UserID)) {
			return nil
		}
		return NewAuthError(http.StatusForbidden, "you are not allowed to access this capsule")
	}

	return NewUnexpectedError(nil)
}

// AuthorizeEdit 编辑仅限寄送者，且仅限未封存状态
//
// 寄送者编辑已封存/已开启的胶囊同样返回 423，而非 403。
func AuthorizeEdit(c *Capsule, state CapsuleState, actor Actor) error {
	if !actor.Authenticated || !c.IsSentBy(actor.UserID) {
		return NewAuthError(http.StatusForbidden, "you are not allowed to edit this capsule")
	}
	if state != StateUnsealed {
		return NewConflictedStateError("capsule is sealed and can not be edited")
	}
	return nil
}

// AuthorizeDelete 删除仅限寄送者，任何状态均可
func AuthorizeDelete(c *Capsule, actor Actor) error {
	if !actor.Authenticated || !c.IsSentBy(actor.UserID) {
		return NewAuthError(http.StatusForbidden, "you are not allowed to delete this capsule")
	}
	return nil
}

// AuthorizeReadContent 判定图片等内容载荷的访问权限
//
// 投影按状态裁剪字段：sealed 状态对所有人（含寄送者）隐藏内容，
// 因此内容载荷在 sealed 下一律 423；unsealed 下仅寄送者；
// opened 下沿用读权限。
func AuthorizeReadContent(c *Capsule, state CapsuleState, actor Actor) error {
	if err := AuthorizeRead(c, state, actor); err != nil {
		return err
	}
	if state == StateSealed {
		return NewConflictedStateError("capsule is sealed and cannot be opened yet")
	}
	return nil
}
