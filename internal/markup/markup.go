// Package markup extracts embedded block identifiers from rich-text HTML.
package markup

import (
	"context"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/slattery/paragraphs-inline-entity-form-extras/internal/config"
)

// Result is the outcome of processing one text value.
type Result struct {
	Text        string   // rendered text; the collector returns its input unchanged
	Identifiers []string // embedded block identifiers, deduplicated, first-seen order
}

// Processor turns text into its rendered form plus the identifiers it embeds.
type Processor interface {
	Process(ctx context.Context, text string) (Result, error)
}

// EmbedCollector finds embed tags such as
//
//	<drupal-entity data-entity-type="paragraph" data-entity-uuid="..."></drupal-entity>
//
// and collects their identifier attribute. Tags whose type attribute does not
// match are ignored. It holds no per-call state and is safe for concurrent use.
type EmbedCollector struct {
	tag       string
	typeAttr  string
	typeValue string
	idAttr    string
}

// NewEmbedCollector builds a collector from the markup settings.
func NewEmbedCollector(cfg config.MarkupConfig) *EmbedCollector {
	return &EmbedCollector{
		tag:       strings.ToLower(cfg.Tag),
		typeAttr:  strings.ToLower(cfg.TypeAttribute),
		typeValue: cfg.TypeValue,
		idAttr:    strings.ToLower(cfg.IDAttribute),
	}
}

// Process tokenizes text and returns it unchanged together with the identifiers found.
func (c *EmbedCollector) Process(ctx context.Context, text string) (Result, error) {
	res := Result{Text: text}
	if text == "" {
		return res, nil
	}

	seen := make(map[string]struct{})
	z := html.NewTokenizer(strings.NewReader(text))
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return res, err
			}
			return res, nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != c.tag || !hasAttr {
				continue
			}
			if id := c.identifier(z); id != "" {
				if _, dup := seen[id]; !dup {
					seen[id] = struct{}{}
					res.Identifiers = append(res.Identifiers, id)
				}
			}
		}
	}
}

// identifier reads the attributes of the current tag and returns the id when
// the type attribute matches. It consumes the tag's attributes.
func (c *EmbedCollector) identifier(z *html.Tokenizer) string {
	var id string
	typeOK := c.typeAttr == ""
	for {
		key, val, more := z.TagAttr()
		switch string(key) {
		case c.idAttr:
			id = strings.TrimSpace(string(val))
		case c.typeAttr:
			typeOK = string(val) == c.typeValue
		}
		if !more {
			break
		}
	}
	if !typeOK {
		return ""
	}
	return id
}
