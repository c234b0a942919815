package domain

import "time"

// ImageMeta 对外暴露的图片元数据，绝不内嵌二进制内容
type ImageMeta struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
}

// CapsuleView 胶囊对外投影
//
// 按派生状态裁剪字段：某状态未列出的字段一律不参与序列化。
// 可选字段用指针承载，避免 omitempty 吞掉合法的零值。
type CapsuleView struct {
	ID            string       `json:"id"`
	Visibility    Visibility   `json:"visibility"`
	State         CapsuleState `json:"state"`
	Senders       []string     `json:"senders"`
	Receivers     []string     `json:"receivers"`
	ShowCountdown *bool        `json:"showCountdown,omitempty"`
	Title         *string      `json:"title,omitempty"`
	Content       *string      `json:"content,omitempty"`
	Images        []ImageMeta  `json:"images,omitempty"`
	OpenDate      *time.Time   `json:"openDate,omitempty"`
	SealedAt      *time.Time   `json:"sealedAt,omitempty"`
}

// Project 把胶囊映射为指定状态下的对外形态
//
//   - unsealed：id、可见性、状态、寄送者、接收者、倒计时开关、
//     标题、正文、图片元数据
//   - sealed：公共字段 + 开启日期（标题/正文/图片对所有人隐藏）
//   - opened：公共字段 + 标题、正文、图片元数据、开启日期、封存时刻
func Project(c *Capsule, state CapsuleState) CapsuleView {
	view := CapsuleView{
		ID:         c.ID,
		Visibility: c.Visibility,
		State:      state,
		Senders:    c.Senders,
		Receivers:  c.Receivers,
	}

	switch state {
	case StateUnsealed:
		showCountdown := c.ShowCountdown
		title := c.Title
		content := c.Content
		view.ShowCountdown = &showCountdown
		view.Title = &title
		view.Content = &content
		view.Images = projectImages(c.Images)

	case StateSealed:
		view.OpenDate = c.OpenDate

	case StateOpened:
		title := c.Title
		content := c.Content
		view.Title = &title
		view.Content = &content
		view.Images = projectImages(c.Images)
		view.OpenDate = c.OpenDate
		view.SealedAt = c.SealedAt
	}

	return view
}

func projectImages(images []CapsuleImage) []ImageMeta {
	metas := make([]ImageMeta, 0, len(images))
	for _, img := range images {
		metas = append(metas, ImageMeta{
			ID:          img.ID,
			Name:        img.Name,
			ContentType: img.ContentType,
		})
	}
	return metas
}
