// Package compose assembles the structured-content payload for a record from
// its fields and the uploaded asset handles.
package compose

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/contentforge/newsmigrate/internal/liferay"
	"github.com/contentforge/newsmigrate/internal/model"
)

// Composer maps records onto the destination content-type schema: an "img"
// cover field (omitted when no cover asset was uploaded) and a "content"
// field with the rewritten body markup.
type Composer struct {
	structureID int64
}

// NewComposer builds a composer for the configured content structure.
func NewComposer(structureID int64) *Composer {
	return &Composer{structureID: structureID}
}

// Compose builds the create payload. Markup rewriting failures are fatal for
// the item: a payload with broken references is worse than no payload.
func (c *Composer) Compose(rec model.ContentRecord, assets map[string]model.AssetHandle) (liferay.ContentPayload, error) {
	var fields []liferay.ContentField

	if cover, ok := assets[rec.FeaturedImage]; ok && cover.Role == model.RoleCover {
		fields = append(fields, liferay.ContentField{
			Name: "img",
			ContentFieldValue: liferay.ContentFieldValue{
				Image: &liferay.ContentImage{
					ID:          cover.ID,
					Title:       "Cover image",
					Description: fmt.Sprintf("Cover image for: %s", rec.Title),
				},
			},
		})
	}

	body, err := RewriteMarkup(rec.Content, rec.URL)
	if err != nil {
		return liferay.ContentPayload{}, fmt.Errorf("rewrite markup: %w", err)
	}
	fields = append(fields, liferay.ContentField{
		Name:              "content",
		ContentFieldValue: liferay.ContentFieldValue{Data: body},
	})

	return liferay.ContentPayload{
		Title:              rec.Title,
		ContentStructureID: c.structureID,
		ContentFields:      fields,
		ViewableBy:         "Anyone",
	}, nil
}

// RewriteMarkup prepares scraped body markup for the destination: relative
// link and image targets become absolute against the record's source URL, and
// anchor-only links are unwrapped since the navigation they point at does not
// exist at the destination. Pure function of its inputs and idempotent:
// already-absolute, anchor-free markup passes through unchanged.
func RewriteMarkup(markup, sourceURL string) (string, error) {
	if strings.TrimSpace(markup) == "" {
		return markup, nil
	}
	base, err := url.Parse(sourceURL)
	if err != nil {
		return "", fmt.Errorf("parse source url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("parse markup: %w", err)
	}

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if strings.HasPrefix(href, "#") {
			inner, _ := sel.Html()
			sel.ReplaceWithHtml(inner)
			return
		}
		if abs := absolutize(base, href); abs != href {
			sel.SetAttr("href", abs)
		}
	})
	doc.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		if abs := absolutize(base, src); abs != src {
			sel.SetAttr("src", abs)
		}
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("render markup: %w", err)
	}
	return out, nil
}

// absolutize resolves ref against base, leaving absolute URLs and
// non-resolvable schemes (mailto, data) untouched.
func absolutize(base *url.URL, ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if parsed.IsAbs() || parsed.Scheme != "" {
		return ref
	}
	return base.ResolveReference(parsed).String()
}
