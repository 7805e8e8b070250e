package devbackend

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/cityportal/pkg/migration"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout はDBに保存する日時の形式。
const timeLayout = "2006-01-02T15:04:05Z"

// ErrNotFound はレコードが存在しないことを表す。
var ErrNotFound = errors.New("レコードが見つかりません")

// User はログインしたことのあるユーザー。
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Announcement はお知らせ。
type Announcement struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Category  string `json:"category"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// News はニュース記事。
type News struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	Category    string `json:"category"`
	Status      string `json:"status"`
	ImageName   string `json:"image_name,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// ニュースの公開状態。
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// ListFilter は一覧取得の条件。
type ListFilter struct {
	Page     int
	PerPage  int
	Category string
	Search   string
	// IsActive はお知らせの掲載状態で絞り込む。nilなら絞り込まない。
	IsActive *bool
}

// offset は Page と PerPage からOFFSETを計算する。
func (f ListFilter) offset() int {
	return (f.Page - 1) * f.PerPage
}

// Store はSQLiteに対するデータアクセス。
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore はマイグレーションを適用して Store を生成する。
func NewStore(ctx context.Context, db *sql.DB, logger *zap.Logger) (*Store, error) {
	if _, err := migration.Run(ctx, db, migrationsFS, "migrations", logger); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

// UpsertUser はメールアドレスでユーザーを探し、無ければ作成する。ロールは毎回上書きする。
func (s *Store) UpsertUser(ctx context.Context, email, role string) (User, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, role, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET role = excluded.role
	`, uuid.New().String(), email, role, s.timestamp())
	if err != nil {
		return User{}, fmt.Errorf("ユーザーの保存に失敗: %w", err)
	}

	var u User
	err = s.db.QueryRowContext(ctx, `SELECT id, email, role FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.Email, &u.Role)
	if err != nil {
		return User{}, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	return u, nil
}

// whereClause は条件式の断片を AND で連結する。断片はこのファイル内の固定文字列のみ。
type whereClause struct {
	conds []string
	args  []any
}

func (w *whereClause) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func (w *whereClause) search(term string, columns ...string) {
	if term == "" {
		return
	}
	like := "%" + term + "%"
	parts := make([]string, 0, len(columns))
	args := make([]any, 0, len(columns))
	for _, col := range columns {
		parts = append(parts, col+" LIKE ?")
		args = append(args, like)
	}
	w.add("("+strings.Join(parts, " OR ")+")", args...)
}

const announcementColumns = `id, title, content, category, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnnouncement(r rowScanner) (Announcement, error) {
	var a Announcement
	var active int
	if err := r.Scan(&a.ID, &a.Title, &a.Content, &a.Category, &active, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Announcement{}, err
	}
	a.IsActive = active != 0
	return a, nil
}

// ListAnnouncements は条件に合うお知らせを新しい順に返す。total は条件に合う全件数。
func (s *Store) ListAnnouncements(ctx context.Context, f ListFilter) ([]Announcement, int, error) {
	var w whereClause
	if f.Category != "" {
		w.add("category = ?", f.Category)
	}
	w.search(f.Search, "title", "content")
	if f.IsActive != nil {
		w.add("is_active = ?", boolToInt(*f.IsActive))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM announcements`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("お知らせ件数の取得に失敗: %w", err)
	}

	args := append(append([]any{}, w.args...), f.PerPage, f.offset())
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+announcementColumns+` FROM announcements`+w.String()+
			` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("お知らせ一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]Announcement, 0, f.PerPage)
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("お知らせの読み込みに失敗: %w", err)
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

// GetAnnouncement はIDでお知らせを取得する。
func (s *Store) GetAnnouncement(ctx context.Context, id string) (Announcement, error) {
	a, err := scanAnnouncement(s.db.QueryRowContext(ctx,
		`SELECT `+announcementColumns+` FROM announcements WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Announcement{}, ErrNotFound
	}
	if err != nil {
		return Announcement{}, fmt.Errorf("お知らせの取得に失敗: %w", err)
	}
	return a, nil
}

// CreateAnnouncement はお知らせを作成する。ID と日時はここで採番する。
func (s *Store) CreateAnnouncement(ctx context.Context, a Announcement) (Announcement, error) {
	now := s.timestamp()
	a.ID = uuid.New().String()
	a.CreatedAt = now
	a.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO announcements (`+announcementColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Title, a.Content, a.Category, boolToInt(a.IsActive), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return Announcement{}, fmt.Errorf("お知らせの作成に失敗: %w", err)
	}
	return a, nil
}

// UpdateAnnouncement はお知らせを上書きする。
func (s *Store) UpdateAnnouncement(ctx context.Context, a Announcement) (Announcement, error) {
	a.UpdatedAt = s.timestamp()
	res, err := s.db.ExecContext(ctx, `
		UPDATE announcements SET title = ?, content = ?, category = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`, a.Title, a.Content, a.Category, boolToInt(a.IsActive), a.UpdatedAt, a.ID)
	if err != nil {
		return Announcement{}, fmt.Errorf("お知らせの更新に失敗: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return Announcement{}, err
	}
	return a, nil
}

// DeleteAnnouncement はお知らせを削除する。
func (s *Store) DeleteAnnouncement(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM announcements WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("お知らせの削除に失敗: %w", err)
	}
	return expectOneRow(res)
}

const newsColumns = `id, title, content, category, status, image_name, published_at, created_at, updated_at`

func scanNews(r rowScanner) (News, error) {
	var n News
	err := r.Scan(&n.ID, &n.Title, &n.Content, &n.Category, &n.Status, &n.ImageName, &n.PublishedAt, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

// GetNews はIDでニュースを取得する。
func (s *Store) GetNews(ctx context.Context, id string) (News, error) {
	n, err := scanNews(s.db.QueryRowContext(ctx, `SELECT `+newsColumns+` FROM news WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return News{}, ErrNotFound
	}
	if err != nil {
		return News{}, fmt.Errorf("ニュースの取得に失敗: %w", err)
	}
	return n, nil
}

// SaveNews はニュースを作成または上書きする。
// 初めて published になったときに published_at を記録する。
func (s *Store) SaveNews(ctx context.Context, n News) (News, error) {
	now := s.timestamp()
	if n.CreatedAt == "" {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
	if n.Status == StatusPublished && n.PublishedAt == "" {
		n.PublishedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO news (`+newsColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			category = excluded.category,
			status = excluded.status,
			image_name = excluded.image_name,
			published_at = excluded.published_at,
			updated_at = excluded.updated_at
	`, n.ID, n.Title, n.Content, n.Category, n.Status, n.ImageName, n.PublishedAt, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return News{}, fmt.Errorf("ニュースの保存に失敗: %w", err)
	}
	return n, nil
}

// DeleteNews はニュースを削除する。
func (s *Store) DeleteNews(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM news WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("ニュースの削除に失敗: %w", err)
	}
	return expectOneRow(res)
}

// ListPublishedNews は公開済みのニュースを公開日の新しい順に返す。
func (s *Store) ListPublishedNews(ctx context.Context, f ListFilter) ([]News, int, error) {
	var w whereClause
	w.add("status = ?", StatusPublished)
	if f.Category != "" {
		w.add("category = ?", f.Category)
	}
	w.search(f.Search, "title", "content")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM news`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ニュース件数の取得に失敗: %w", err)
	}

	args := append(append([]any{}, w.args...), f.PerPage, f.offset())
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+newsColumns+` FROM news`+w.String()+
			` ORDER BY published_at DESC, rowid DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ニュース一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]News, 0, f.PerPage)
	for rows.Next() {
		n, err := scanNews(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ニュースの読み込みに失敗: %w", err)
		}
		items = append(items, n)
	}
	return items, total, rows.Err()
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("影響行数の取得に失敗: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
