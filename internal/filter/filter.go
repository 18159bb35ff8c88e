package filter

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/reelpick/core/internal/model"
)

// Passes reports whether one catalog item satisfies one participant's
// filter criteria. It is pure and total: empty selection sets restrict
// nothing, so the zero UserFilterState admits every item.
func Passes(mm model.MovieMeta, fs model.UserFilterState) bool {
	if len(fs.Genres) > 0 && len(lo.Intersect(fs.Genres, mm.Genres)) == 0 {
		return false
	}
	if len(fs.Decades) > 0 && !lo.Contains(fs.Decades, Decade(mm.Year)) {
		return false
	}
	if fs.HideWatched && mm.Watched {
		return false
	}
	if lo.Contains(fs.ExcludedIDs, mm.ID) {
		return false
	}
	return true
}

// PassesAll reports whether the item survives every filter in the set.
func PassesAll(mm model.MovieMeta, filters []model.UserFilterState) bool {
	for _, fs := range filters {
		if !Passes(mm, fs) {
			return false
		}
	}
	return true
}

// Decade renders a release year as its decade label, e.g. 1994 -> "1990s".
func Decade(year int) string {
	return fmt.Sprintf("%ds", year/10*10)
}
