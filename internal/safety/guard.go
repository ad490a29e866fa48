// Package safety screens generated answers against a denylist of
// medication-name patterns.
package safety

import (
	"fmt"
	"regexp"

	"healthrag/internal/domain"
)

// Guard rejects answers that match any configured pattern.
type Guard struct {
	patterns []*regexp.Regexp
}

// NewGuard compiles patterns case-insensitively. An invalid pattern is a
// configuration error.
func NewGuard(patterns []string) (*Guard, error) {
	g := &Guard{}
	for i, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("%w: safety pattern %d: %v", domain.ErrConfig, i, err)
		}
		g.patterns = append(g.patterns, re)
	}
	return g, nil
}

// Check returns ErrUnsafeAnswer if answer matches a pattern. The error names
// the pattern index only, never the matched text.
func (g *Guard) Check(answer string) error {
	if g == nil {
		return nil
	}
	for i, re := range g.patterns {
		if re.MatchString(answer) {
			return fmt.Errorf("%w: matched pattern %d", domain.ErrUnsafeAnswer, i)
		}
	}
	return nil
}
