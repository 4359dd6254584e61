package parser

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

const (
	maxImages    = 5
	minImageSide = 50
)

const noiseSelector = "script, style, nav, header, footer, .ads, .advertisement, .comments, .social-share, .related-articles"

// contentSelectors are tried in order; the first non-empty match is the article body.
var contentSelectors = []string{
	"article",
	".article",
	".content",
	".post-content",
	".entry-content",
	".story-content",
	"main",
	".main-content",
	"#content",
}

var authorSelectors = []string{
	".author",
	`[rel="author"]`,
	`[itemprop="author"]`,
	`a[href*="/author/"]`,
	".byline",
}

var bylinePrefix = regexp.MustCompile(`(?i)^by[\s:]+`)

// PageExtractor reads article pages with goquery. Network failures never escape it:
// callers get empty values and continue with degraded data.
type PageExtractor struct {
	fetcher *Fetcher
	logger  *slog.Logger
}

var _ ports.PageExtractor = (*PageExtractor)(nil)

// NewPageExtractor wires the shared fetcher.
func NewPageExtractor(fetcher *Fetcher, log *slog.Logger) *PageExtractor {
	if log == nil {
		log = slog.Default()
	}
	return &PageExtractor{fetcher: fetcher, logger: log}
}

// FetchAndClean downloads pageURL and returns the readable body text along with the
// HTML of the selected content container.
func (p *PageExtractor) FetchAndClean(ctx context.Context, pageURL string) (string, string) {
	doc, err := p.fetcher.Document(ctx, pageURL)
	if err != nil {
		p.logger.Warn("fetch article content failed", "url", pageURL, "error", err)
		return "", ""
	}

	container := selectContent(doc)
	markup, err := container.Html()
	if err != nil {
		p.logger.Warn("render article content failed", "url", pageURL, "error", err)
		markup = ""
	}
	return visibleText(container), markup
}

func selectContent(doc *goquery.Document) *goquery.Selection {
	doc.Find(noiseSelector).Remove()

	for _, selector := range contentSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		if markup, err := sel.Html(); err == nil && strings.TrimSpace(markup) != "" {
			return sel
		}
	}
	return doc.Find("body").First()
}

// ExtractImages returns up to five distinct images larger than 50x50 from markup.
// Images without explicit dimensions are dropped.
func (p *PageExtractor) ExtractImages(markup, baseURL string) []domain.Image {
	if strings.TrimSpace(markup) == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		p.logger.Warn("parse images failed", "url", baseURL, "error", err)
		return nil
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		base = nil
	}

	images := make([]domain.Image, 0, maxImages)
	seen := map[string]struct{}{}

	doc.Find("img[src]").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src := strings.TrimSpace(img.AttrOr("src", ""))
		width, _ := strconv.Atoi(strings.TrimSpace(img.AttrOr("width", "")))
		height, _ := strconv.Atoi(strings.TrimSpace(img.AttrOr("height", "")))
		if src == "" || width <= minImageSide || height <= minImageSide {
			return true
		}

		resolved, ok := resolveURL(base, src)
		if !ok {
			return true
		}
		if _, dup := seen[resolved]; dup {
			return true
		}
		seen[resolved] = struct{}{}

		alt := strings.TrimSpace(img.AttrOr("alt", ""))
		if alt == "" {
			alt = "Article image"
		}
		images = append(images, domain.Image{
			URL:        resolved,
			Alt:        alt,
			Width:      width,
			Height:     height,
			Provenance: domain.ProvenanceScraped,
		})
		return len(images) < maxImages
	})

	return images
}

func resolveURL(base *url.URL, src string) (string, bool) {
	ref, err := url.Parse(src)
	if err != nil {
		return "", false
	}
	if ref.IsAbs() {
		return ref.String(), true
	}
	if base == nil || !base.IsAbs() {
		return "", false
	}
	return base.ResolveReference(ref).String(), true
}

// ExtractSocialMetadata reads Open Graph tags, using Twitter card tags only for
// fields Open Graph left unset. A relative image is resolved against pageURL.
func (p *PageExtractor) ExtractSocialMetadata(ctx context.Context, pageURL string) domain.SocialMetadata {
	doc, err := p.fetcher.Document(ctx, pageURL)
	if err != nil {
		p.logger.Warn("fetch social metadata failed", "url", pageURL, "error", err)
		return domain.SocialMetadata{}
	}
	base, _ := url.Parse(pageURL)
	return socialMetadata(doc, base)
}

func socialMetadata(doc *goquery.Document, base *url.URL) domain.SocialMetadata {
	var meta domain.SocialMetadata

	doc.Find(`meta[property^="og:"]`).Each(func(_ int, tag *goquery.Selection) {
		content := strings.TrimSpace(tag.AttrOr("content", ""))
		if content == "" {
			return
		}
		switch tag.AttrOr("property", "") {
		case "og:image":
			meta.Image = content
		case "og:title":
			meta.Title = content
		case "og:description":
			meta.Description = content
		}
	})

	doc.Find(`meta[name^="twitter:"]`).Each(func(_ int, tag *goquery.Selection) {
		content := strings.TrimSpace(tag.AttrOr("content", ""))
		if content == "" {
			return
		}
		switch tag.AttrOr("name", "") {
		case "twitter:image":
			if meta.Image == "" {
				meta.Image = content
			}
		case "twitter:title":
			if meta.Title == "" {
				meta.Title = content
			}
		case "twitter:description":
			if meta.Description == "" {
				meta.Description = content
			}
		}
	})

	if meta.Image != "" {
		meta.Image, _ = resolveURL(base, meta.Image)
	}
	return meta
}

// ExtractAuthor returns the first byline found in markup, without a leading "by".
func (p *PageExtractor) ExtractAuthor(markup string) string {
	if strings.TrimSpace(markup) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}

	for _, selector := range authorSelectors {
		text := collapseSpaces(doc.Find(selector).First().Text())
		text = strings.TrimSpace(bylinePrefix.ReplaceAllString(text, ""))
		if text != "" {
			return text
		}
	}
	return ""
}
