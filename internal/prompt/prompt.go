// Package prompt renders the fixed instruction template sent to the model.
//
// Template values are trusted policy text compiled into the binary; user
// questions and retrieved passages enter only as Untrusted values through
// the two placeholders, and are never re-scanned for placeholders.
package prompt

import (
	"fmt"
	"strings"

	"healthrag/internal/domain"
)

// Placeholders recognised by Render.
const (
	ContextPlaceholder  = "{context}"
	QuestionPlaceholder = "{question}"
)

// ContextDelimiter separates retrieved passages in the rendered context.
const ContextDelimiter = "\n\n"

// Template is trusted, versioned policy text.
type Template struct {
	Version string
	text    string
}

// Untrusted is content that originates outside the binary: the user's
// question or corpus text.
type Untrusted string

// Rendered is a prompt ready to send to the model.
type Rendered string

// NewTemplate wraps trusted text. It is meant for package-level constants.
func NewTemplate(version, text string) Template {
	return Template{Version: version, text: text}
}

// Render substitutes context and question in one left-to-right pass.
func (t Template) Render(context, question Untrusted) (Rendered, error) {
	for _, ph := range []string{ContextPlaceholder, QuestionPlaceholder} {
		if !strings.Contains(t.text, ph) {
			return "", fmt.Errorf("%w: template %s lacks %s", domain.ErrTemplate, t.Version, ph)
		}
	}
	r := strings.NewReplacer(ContextPlaceholder, string(context), QuestionPlaceholder, string(question))
	return Rendered(r.Replace(t.text)), nil
}

// JoinContext concatenates passages in rank order.
func JoinContext(results []domain.SearchResult) Untrusted {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Passage.Text
	}
	return Untrusted(strings.Join(parts, ContextDelimiter))
}
