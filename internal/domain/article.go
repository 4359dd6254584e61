package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// SummaryLimit bounds the stored summary length in runes.
const SummaryLimit = 300

// ArticleStatus is the publication lifecycle of a stored article.
type ArticleStatus string

const (
	StatusDraft     ArticleStatus = "draft"
	StatusPublished ArticleStatus = "published"
)

// ImageProvenance records how an image reference was obtained.
type ImageProvenance string

const (
	ProvenanceScraped   ImageProvenance = "scraped"
	ProvenanceSocial    ImageProvenance = "social-metadata"
	ProvenanceGenerated ImageProvenance = "generated"
)

// Image is a single picture attached to an article. Zero width or height means unknown.
type Image struct {
	URL        string          `json:"url"`
	Alt        string          `json:"alt"`
	Caption    string          `json:"caption,omitempty"`
	Width      int             `json:"width,omitempty"`
	Height     int             `json:"height,omitempty"`
	Provenance ImageProvenance `json:"provenance"`
}

// SocialMetadata is the Open Graph / Twitter card data read from an article page.
type SocialMetadata struct {
	Image       string `json:"image,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Empty reports whether no social field was found.
func (s SocialMetadata) Empty() bool {
	return s.Image == "" && s.Title == "" && s.Description == ""
}

// ArticleDraft is a normalized article produced by scraping, not yet persisted.
type ArticleDraft struct {
	Title       string
	Slug        string
	Summary     string
	Content     string
	Images      []Image
	CategoryID  string
	Tags        []string
	Author      string
	Lang        string
	SourceID    string
	SourceURL   string
	PublishedAt time.Time
	Hash        string
	Social      SocialMetadata
}

// Article is a stored article record.
type Article struct {
	ID          uuid.UUID
	Title       string
	Slug        string
	Summary     string
	Content     string
	Images      []Image
	CategoryID  string
	Tags        []string
	Author      string
	Lang        string
	SourceID    string
	SourceURL   string
	PublishedAt time.Time
	Status      ArticleStatus
	Views       int64
	Hash        string
	Social      SocialMetadata
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewArticle turns a draft into a storable record with a fresh identity.
func NewArticle(draft ArticleDraft, status ArticleStatus, now time.Time) Article {
	if status == "" {
		status = StatusDraft
	}
	return Article{
		ID:          uuid.New(),
		Title:       draft.Title,
		Slug:        draft.Slug,
		Summary:     draft.Summary,
		Content:     draft.Content,
		Images:      draft.Images,
		CategoryID:  draft.CategoryID,
		Tags:        draft.Tags,
		Author:      draft.Author,
		Lang:        draft.Lang,
		SourceID:    draft.SourceID,
		SourceURL:   draft.SourceURL,
		PublishedAt: draft.PublishedAt,
		Status:      status,
		Hash:        draft.Hash,
		Social:      draft.Social,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ContentHash is the dedup key of an entry: hex sha256 over title followed by link.
func ContentHash(title, link string) string {
	sum := sha256.Sum256([]byte(title + link))
	return hex.EncodeToString(sum[:])
}
