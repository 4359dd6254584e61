package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

var articleColumns = []string{
	"id", "title", "slug", "summary", "content", "images", "category_id", "tags", "author", "lang",
	"source_id", "source_url", "published_at", "status", "views", "hash", "social", "created_at", "updated_at",
}

var sourceColumns = []string{
	"id", "name", "url", "feed_urls", "lang", "category_ids", "active", "strategy", "last_scraped",
}

var categoryColumns = []string{"id", "category_key", "label", "icon", "color", "sort_order"}

// SQLStore persists sources, categories and articles.
type SQLStore struct {
	db  *DB
	now func() time.Time
}

var _ ports.Store = (*SQLStore)(nil)

// NewSQLStore wires an opened database.
func NewSQLStore(db *DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

// FindActiveSources returns active sources with their allowed categories resolved in configured order.
func (s *SQLStore) FindActiveSources(ctx context.Context) ([]domain.Source, error) {
	query, args, err := s.db.Builder.Select(sourceColumns...).
		From("sources").
		Where(sq.Eq{"active": true}).
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sources query: %w", err)
	}

	rows, err := s.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}

	type sourceRow struct {
		source      domain.Source
		categoryIDs []string
	}
	var found []sourceRow
	for rows.Next() {
		var (
			row          sourceRow
			feedURLs     string
			categoryIDs  string
			lastScrapedM sql.NullInt64
		)
		if err := rows.Scan(
			&row.source.ID,
			&row.source.Name,
			&row.source.URL,
			&feedURLs,
			&row.source.Lang,
			&categoryIDs,
			&row.source.Active,
			&row.source.Strategy,
			&lastScrapedM,
		); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan source: %w", err)
		}
		if err := decodeJSON(feedURLs, &row.source.FeedURLs); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("decode feed urls of %s: %w", row.source.Name, err)
		}
		if err := decodeJSON(categoryIDs, &row.categoryIDs); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("decode categories of %s: %w", row.source.Name, err)
		}
		if lastScrapedM.Valid {
			at := FromMillis(lastScrapedM.Int64)
			row.source.LastScraped = &at
		}
		found = append(found, row)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}
	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	categories, err := s.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	sources := make([]domain.Source, 0, len(found))
	for _, row := range found {
		for _, id := range row.categoryIDs {
			if c, ok := byID[id]; ok {
				row.source.Categories = append(row.source.Categories, c)
			}
		}
		sources = append(sources, row.source)
	}
	return sources, nil
}

// FindArticleByHash returns nil when no article carries hash.
func (s *SQLStore) FindArticleByHash(ctx context.Context, hash string) (*domain.Article, error) {
	query, args, err := s.db.Builder.Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"hash": hash}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build article query: %w", err)
	}

	article, err := scanArticle(s.db.SQL.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find article by hash: %w", err)
	}
	return article, nil
}

// InsertArticleIfAbsent writes article unless its hash is already stored, in which case
// it returns nil without error. The unique hash constraint decides races.
func (s *SQLStore) InsertArticleIfAbsent(ctx context.Context, article domain.Article) (*domain.Article, error) {
	if article.ID == uuid.Nil {
		article.ID = uuid.New()
	}
	now := s.now()
	if article.CreatedAt.IsZero() {
		article.CreatedAt = now
	}
	if article.UpdatedAt.IsZero() {
		article.UpdatedAt = article.CreatedAt
	}
	if article.Status == "" {
		article.Status = domain.StatusDraft
	}

	images, err := encodeJSON(article.Images, "[]")
	if err != nil {
		return nil, fmt.Errorf("marshal images: %w", err)
	}
	tags, err := encodeJSON(article.Tags, "[]")
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	social, err := encodeJSON(article.Social, "{}")
	if err != nil {
		return nil, fmt.Errorf("marshal social metadata: %w", err)
	}

	query, args, err := s.db.Builder.Insert("articles").
		Columns(articleColumns...).
		Values(
			article.ID.String(),
			article.Title,
			article.Slug,
			article.Summary,
			article.Content,
			images,
			article.CategoryID,
			tags,
			article.Author,
			article.Lang,
			article.SourceID,
			article.SourceURL,
			Millis(article.PublishedAt),
			string(article.Status),
			article.Views,
			article.Hash,
			social,
			Millis(article.CreatedAt),
			Millis(article.UpdatedAt),
		).
		Suffix("ON CONFLICT (hash) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}

	var id string
	err = s.db.SQL.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("insert article: %w", err)
	}

	return &article, nil
}

// UpdateSourceLastScraped overwrites the source's last scrape time.
func (s *SQLStore) UpdateSourceLastScraped(ctx context.Context, sourceID string, at time.Time) error {
	query, args, err := s.db.Builder.Update("sources").
		Set("last_scraped", Millis(at)).
		Set("updated_at", Millis(s.now())).
		Where(sq.Eq{"id": sourceID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := s.db.SQL.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update last scraped: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("source %s: %w", sourceID, ErrNotFound)
	}
	return nil
}

// FindCategoryByKey returns nil when the key is unknown.
func (s *SQLStore) FindCategoryByKey(ctx context.Context, key string) (*domain.Category, error) {
	query, args, err := s.db.Builder.Select(categoryColumns...).
		From("categories").
		Where(sq.Eq{"category_key": key}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build category query: %w", err)
	}

	var c domain.Category
	err = s.db.SQL.QueryRowContext(ctx, query, args...).Scan(&c.ID, &c.Key, &c.Label, &c.Icon, &c.Color, &c.Order)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find category %s: %w", key, err)
	}
	return &c, nil
}

// ListCategories returns all categories by display order.
func (s *SQLStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	query, args, err := s.db.Builder.Select(categoryColumns...).
		From("categories").
		OrderBy("sort_order", "label").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build categories query: %w", err)
	}

	rows, err := s.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Key, &c.Label, &c.Icon, &c.Color, &c.Order); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return categories, nil
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*domain.Article, error) {
	var (
		a                       domain.Article
		id, status              string
		images, tags, social    string
		published, created, upd int64
	)
	if err := row.Scan(
		&id,
		&a.Title,
		&a.Slug,
		&a.Summary,
		&a.Content,
		&images,
		&a.CategoryID,
		&tags,
		&a.Author,
		&a.Lang,
		&a.SourceID,
		&a.SourceURL,
		&published,
		&status,
		&a.Views,
		&a.Hash,
		&social,
		&created,
		&upd,
	); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse article id %q: %w", id, err)
	}
	a.ID = parsed
	a.Status = domain.ArticleStatus(status)
	a.PublishedAt = FromMillis(published)
	a.CreatedAt = FromMillis(created)
	a.UpdatedAt = FromMillis(upd)

	if err := decodeJSON(images, &a.Images); err != nil {
		return nil, fmt.Errorf("decode images: %w", err)
	}
	if err := decodeJSON(tags, &a.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if err := decodeJSON(social, &a.Social); err != nil {
		return nil, fmt.Errorf("decode social metadata: %w", err)
	}
	return &a, nil
}

func encodeJSON(v any, empty string) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(raw) == "null" {
		return empty, nil
	}
	return string(raw), nil
}

func decodeJSON(raw string, v any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}

// UpsertCategory inserts or refreshes a category keyed by its key. The stored row is returned.
func (s *SQLStore) UpsertCategory(ctx context.Context, c domain.Category) (domain.Category, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	query, args, err := s.db.Builder.Insert("categories").
		Columns(categoryColumns...).
		Values(c.ID, c.Key, c.Label, c.Icon, c.Color, c.Order).
		Suffix("ON CONFLICT (category_key) DO UPDATE SET label = excluded.label, icon = excluded.icon, color = excluded.color, sort_order = excluded.sort_order RETURNING id").
		ToSql()
	if err != nil {
		return domain.Category{}, fmt.Errorf("build category upsert: %w", err)
	}
	if err := s.db.SQL.QueryRowContext(ctx, query, args...).Scan(&c.ID); err != nil {
		return domain.Category{}, fmt.Errorf("upsert category %s: %w", c.Key, err)
	}
	return c, nil
}

// UpsertSource inserts or refreshes a source keyed by name. Categories must already carry IDs.
func (s *SQLStore) UpsertSource(ctx context.Context, src domain.Source) (domain.Source, error) {
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	feedURLs, err := encodeJSON(src.FeedURLs, "[]")
	if err != nil {
		return domain.Source{}, fmt.Errorf("marshal feed urls: %w", err)
	}
	ids := make([]string, 0, len(src.Categories))
	for _, c := range src.Categories {
		ids = append(ids, c.ID)
	}
	categoryIDs, err := encodeJSON(ids, "[]")
	if err != nil {
		return domain.Source{}, fmt.Errorf("marshal category ids: %w", err)
	}
	now := Millis(s.now())

	query, args, err := s.db.Builder.Insert("sources").
		Columns("id", "name", "url", "feed_urls", "lang", "category_ids", "active", "strategy", "created_at", "updated_at").
		Values(src.ID, src.Name, src.URL, feedURLs, src.Lang, categoryIDs, src.Active, src.Strategy, now, now).
		Suffix("ON CONFLICT (name) DO UPDATE SET url = excluded.url, feed_urls = excluded.feed_urls, lang = excluded.lang, " +
			"category_ids = excluded.category_ids, active = excluded.active, strategy = excluded.strategy, updated_at = excluded.updated_at RETURNING id").
		ToSql()
	if err != nil {
		return domain.Source{}, fmt.Errorf("build source upsert: %w", err)
	}
	if err := s.db.SQL.QueryRowContext(ctx, query, args...).Scan(&src.ID); err != nil {
		return domain.Source{}, fmt.Errorf("upsert source %s: %w", src.Name, err)
	}
	return src, nil
}

// CountArticles reports how many articles a source has produced; an empty sourceID counts all.
func (s *SQLStore) CountArticles(ctx context.Context, sourceID string) (int, error) {
	builder := s.db.Builder.Select("COUNT(*)").From("articles")
	if sourceID != "" {
		builder = builder.Where(sq.Eq{"source_id": sourceID})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int
	if err := s.db.SQL.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return n, nil
}
