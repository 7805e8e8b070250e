package devbackend

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Seed はお知らせとニュースが1件も無い場合にサンプルデータを投入する。
func (s *Store) Seed(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM announcements) + (SELECT COUNT(*) FROM news)`).Scan(&count); err != nil {
		return fmt.Errorf("件数の取得に失敗: %w", err)
	}
	if count > 0 {
		return nil
	}

	announcements := []Announcement{
		{Title: "年末年始の窓口業務について", Content: "12月29日から1月3日まで窓口業務を休止します。", Category: "general", IsActive: true},
		{Title: "断水のお知らせ", Content: "水道管工事のため一部地域で断水します。", Category: "infrastructure", IsActive: true},
		{Title: "防災訓練の実施", Content: "市内全域で防災訓練を実施しました。", Category: "safety", IsActive: false},
	}
	for _, a := range announcements {
		if _, err := s.CreateAnnouncement(ctx, a); err != nil {
			return err
		}
	}

	news := []News{
		{Title: "市民プールがオープンしました", Content: "今年も市民プールの営業を開始しました。", Category: "events", Status: StatusPublished},
		{Title: "図書館の開館時間を延長します", Content: "平日は20時まで開館します。", Category: "culture", Status: StatusPublished},
		{Title: "新庁舎の設計案（下書き）", Content: "公開前の記事です。", Category: "general", Status: StatusDraft},
	}
	for _, n := range news {
		n.ID = uuid.New().String()
		if _, err := s.SaveNews(ctx, n); err != nil {
			return err
		}
	}
	return nil
}
