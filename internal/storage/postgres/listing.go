package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"timecapsule/backend/internal/domain"
)

// listCapsulesPgx PostgreSQL 列表查询快路径
//
// 派生状态、复合排序与分页全部在 SQL 中完成，语义与领域比较器
// 完全一致：有开启日期者优先，(open_date − now) 升序，封存时刻
// 降序，创建时间降序。
func (s *Store) listCapsulesPgx(query domain.ListQuery, now time.Time) ([]domain.Capsule, error) {
	where, args := buildFilterPgx(query.Filter, now)

	args = append(args, now)
	nowArg := len(args)
	args = append(args, query.Take)
	limitArg := len(args)
	args = append(args, query.Skip)
	offsetArg := len(args)

	sql := fmt.Sprintf(`
		SELECT c.id, c.title, c.content, c.visibility, c.open_date, c.sealed_at,
		       c.show_countdown, c.created_at, c.updated_at,
		       COALESCE((SELECT array_agg(m.user_id ORDER BY m.position)
		                 FROM capsule_members m
		                 WHERE m.capsule_id = c.id AND m.role = 'sender'), '{}') AS senders,
		       COALESCE((SELECT array_agg(m.user_id ORDER BY m.position)
		                 FROM capsule_members m
		                 WHERE m.capsule_id = c.id AND m.role = 'receiver'), '{}') AS receivers
		FROM capsules c
		WHERE %s
		ORDER BY (c.open_date IS NOT NULL) DESC,
		         c.open_date - $%d ASC,
		         c.sealed_at DESC NULLS LAST,
		         c.created_at DESC
		LIMIT $%d OFFSET $%d`, where, nowArg, limitArg, offsetArg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := s.client.Pool().Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list capsules: %w", err)
	}
	defer rows.Close()

	capsules := make([]domain.Capsule, 0, query.Take)
	ids := make([]string, 0, query.Take)
	for rows.Next() {
		var c domain.Capsule
		var visibility string
		if err := rows.Scan(&c.ID, &c.Title, &c.Content, &visibility, &c.OpenDate, &c.SealedAt,
			&c.ShowCountdown, &c.CreatedAt, &c.UpdatedAt, &c.Senders, &c.Receivers); err != nil {
			return nil, fmt.Errorf("failed to scan capsule: %w", err)
		}
		c.Visibility = domain.Visibility(visibility)
		capsules = append(capsules, c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachImagesPgx(ctx, capsules, ids); err != nil {
		return nil, err
	}
	return capsules, nil
}

// attachImagesPgx 为一页结果批量加载图片元数据
func (s *Store) attachImagesPgx(ctx context.Context, capsules []domain.Capsule, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	rows, err := s.client.Pool().Query(ctx, `
		SELECT id, capsule_id, name, content_type, size, storage_path, position
		FROM capsule_images
		WHERE capsule_id = ANY($1)
		ORDER BY capsule_id, position`, ids)
	if err != nil {
		return fmt.Errorf("failed to load capsule images: %w", err)
	}
	defer rows.Close()

	byCapsule := make(map[string][]domain.CapsuleImage, len(ids))
	for rows.Next() {
		var img domain.CapsuleImage
		if err := rows.Scan(&img.ID, &img.CapsuleID, &img.Name, &img.ContentType, &img.Size, &img.StoragePath, &img.Position); err != nil {
			return fmt.Errorf("failed to scan capsule image: %w", err)
		}
		byCapsule[img.CapsuleID] = append(byCapsule[img.CapsuleID], img)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range capsules {
		capsules[i].Images = byCapsule[capsules[i].ID]
	}
	return nil
}

// buildFilterPgx 把过滤器子句翻译为带位置参数的 SQL 条件
func buildFilterPgx(filter domain.CapsuleFilter, now time.Time) (string, []interface{}) {
	if len(filter.Clauses) == 0 {
		return "1 = 0", nil
	}

	clauses := make([]string, 0, len(filter.Clauses))
	args := make([]interface{}, 0)
	next := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, fc := range filter.Clauses {
		conds := make([]string, 0, 4)

		if fc.SenderID != "" {
			conds = append(conds, fmt.Sprintf(
				"EXISTS (SELECT 1 FROM capsule_members m WHERE m.capsule_id = c.id AND m.role = 'sender' AND m.user_id = %s)",
				next(fc.SenderID)))
		}
		if fc.ReceiverID != "" {
			conds = append(conds, fmt.Sprintf(
				"EXISTS (SELECT 1 FROM capsule_members m WHERE m.capsule_id = c.id AND m.role = 'receiver' AND m.user_id = %s)",
				next(fc.ReceiverID)))
		}
		switch fc.State {
		case domain.StateUnsealed:
			conds = append(conds, "c.open_date IS NULL")
		case domain.StateSealed:
			conds = append(conds, fmt.Sprintf("c.open_date > %s", next(now)))
		case domain.StateOpened:
			conds = append(conds, fmt.Sprintf("c.open_date IS NOT NULL AND c.open_date <= %s", next(now)))
		}
		if fc.Visibility != "" {
			conds = append(conds, fmt.Sprintf("c.visibility = %s", next(string(fc.Visibility))))
		}
		if fc.ShowCountdown != nil {
			conds = append(conds, fmt.Sprintf("c.show_countdown = %s", next(*fc.ShowCountdown)))
		}

		if len(conds) == 0 {
			conds = append(conds, "1 = 1")
		}
		clauses = append(clauses, "("+strings.Join(conds, " AND ")+")")
	}

	return strings.Join(clauses, " OR "), args
}
