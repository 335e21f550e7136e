// Package articleview filters and orders article lists for display.
package articleview

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/brainblog/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortKey selects the ordering of a list
type SortKey string

const (
	DateDesc  SortKey = "date_desc"
	DateAsc   SortKey = "date_asc"
	TitleAsc  SortKey = "title_asc"
	TitleDesc SortKey = "title_desc"
	Theme     SortKey = "theme"
)

// SortKeys lists every recognised key in menu order
var SortKeys = []SortKey{DateDesc, DateAsc, TitleAsc, TitleDesc, Theme}

// DefaultLanguage is the collation language used by FilterAndSort
var DefaultLanguage = language.French

// Valid reports whether k is one of the recognised keys
func (k SortKey) Valid() bool {
	return slices.Contains(SortKeys, k)
}

// ParseSortKey converts a query value into a SortKey
func ParseSortKey(s string) (SortKey, error) {
	k := SortKey(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: unknown sort key %q", models.ErrInvalidArgument, s)
	}
	return k, nil
}

// View applies search and ordering with a fixed collation language.
// A View holds no mutable state and may be shared between goroutines.
type View struct {
	lang language.Tag
}

// New creates a View collating in lang
func New(lang language.Tag) *View {
	return &View{lang: lang}
}

// FilterAndSort uses DefaultLanguage
func FilterAndSort(articles []*models.Article, searchText string, key SortKey) ([]*models.Article, error) {
	return New(DefaultLanguage).FilterAndSort(articles, searchText, key)
}

// FilterAndSort returns the articles whose title or theme contains searchText
// (trimmed, case-insensitive), ordered by key. The input slice is not modified.
func (v *View) FilterAndSort(articles []*models.Article, searchText string, key SortKey) ([]*models.Article, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("%w: unknown sort key %q", models.ErrInvalidArgument, string(key))
	}

	result := filter(articles, searchText)
	if len(result) < 2 {
		return result, nil
	}

	// Collators keep iteration buffers, so each call gets its own.
	coll := collate.New(v.lang)
	var compare func(a, b *models.Article) int

	switch key {
	case DateDesc:
		compare = func(a, b *models.Article) int { return b.CreatedAt.Compare(a.CreatedAt) }
	case DateAsc:
		compare = func(a, b *models.Article) int { return a.CreatedAt.Compare(b.CreatedAt) }
	case TitleAsc:
		compare = func(a, b *models.Article) int { return coll.CompareString(a.Title, b.Title) }
	case TitleDesc:
		compare = func(a, b *models.Article) int { return coll.CompareString(b.Title, a.Title) }
	case Theme:
		compare = func(a, b *models.Article) int { return coll.CompareString(a.Theme, b.Theme) }
	}

	slices.SortFunc(result, func(a, b *models.Article) int {
		if c := compare(a, b); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	return result, nil
}

// filter always returns a fresh slice, even when everything matches
func filter(articles []*models.Article, searchText string) []*models.Article {
	result := make([]*models.Article, 0, len(articles))

	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(searchText))

	for _, a := range articles {
		if a == nil {
			continue
		}
		if needle == "" || strings.Contains(fold.String(a.Title), needle) || strings.Contains(fold.String(a.Theme), needle) {
			result = append(result, a)
		}
	}
	return result
}
