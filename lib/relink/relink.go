// Package relink re-associates saved selections with a fresh portal
// snapshot after the portal advanced. Product ids are not stable across
// portal updates, so saved products are re-found by display name, and
// step labels shift from run to run ("Mon 12:00" becomes "Tue 12:00"),
// so saved steps are re-found by position by default.
package relink

import (
	"sort"

	"github.com/antzucaro/matchr"

	"chartbrief-backend/lib/scrapers/chartportal"
	"chartbrief-backend/lib/textutil"
)

type Strategy string

const (
	// StrategyPosition assumes forecast runs shift uniformly: the step
	// at position i of the old run corresponds to position i of the new
	// one. This is the default because it is what the portal's own step
	// sequences actually do between runs.
	StrategyPosition Strategy = "position"
	// StrategyLabel matches display labels, exactly first and then by
	// closest string similarity.
	StrategyLabel Strategy = "label"
)

// Match links one old step to its best counterpart in the fresh
// harvest. NewIndex is -1 when nothing usable was found.
type Match struct {
	OldIndex    int     `json:"old_index"`
	NewIndex    int     `json:"new_index"`
	Correlation float64 `json:"correlation"`
}

// ProductLink pairs one saved product name with its best counterpart in
// a fresh catalog. ProductId is empty when nothing usable was found.
type ProductLink struct {
	Saved       string  `json:"saved"`
	ProductId   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Correlation float64 `json:"correlation"`
}

// LinkProducts re-finds saved product names in a fresh catalog: exact
// name matches first, then the highest Jaro-Winkler similarity among
// whatever remains. Every saved name yields exactly one link, in input
// order. The exact pass ignores case and whitespace.
func LinkProducts(saved []string, products []chartportal.CatalogEntry) []ProductLink {
	links := make([]ProductLink, len(saved))
	linked := make([]bool, len(saved))
	matchedProduct := make(map[int]struct{})

	for i, name := range saved {
		for j, product := range products {
			if _, taken := matchedProduct[j]; taken {
				continue
			}
			if textutil.NormalizeName(name) == textutil.NormalizeName(product.Name) {
				links[i] = ProductLink{
					Saved:       name,
					ProductId:   product.Id,
					ProductName: product.Name,
					Correlation: 1,
				}
				linked[i] = true
				matchedProduct[j] = struct{}{}
				break
			}
		}
	}

	for i, name := range saved {
		if linked[i] {
			continue
		}

		mostSimilar := -1
		var mostSimilarity float64
		for j, product := range products {
			if _, taken := matchedProduct[j]; taken {
				continue
			}
			similarity := matchr.JaroWinkler(name, product.Name, false)
			if similarity > mostSimilarity {
				mostSimilarity = similarity
				mostSimilar = j
			}
		}

		if mostSimilar >= 0 && mostSimilarity > 0 {
			links[i] = ProductLink{
				Saved:       name,
				ProductId:   products[mostSimilar].Id,
				ProductName: products[mostSimilar].Name,
				Correlation: mostSimilarity,
			}
			linked[i] = true
			matchedProduct[mostSimilar] = struct{}{}
		}
	}

	for i, name := range saved {
		if !linked[i] {
			links[i] = ProductLink{Saved: name}
		}
	}
	return links
}

// RelinkSteps maps every old step to a fresh one under the given
// strategy. The result is sorted by OldIndex and always has exactly
// len(old) entries. Unknown strategies behave like StrategyPosition.
func RelinkSteps(old, fresh []chartportal.TimeStep, strategy Strategy) []Match {
	switch strategy {
	case StrategyLabel:
		return labelMatches(old, fresh)
	default:
		return positionMatches(old, fresh)
	}
}

func positionMatches(old, fresh []chartportal.TimeStep) []Match {
	matches := make([]Match, 0, len(old))
	for i := range old {
		if i < len(fresh) {
			matches = append(matches, Match{OldIndex: i, NewIndex: i, Correlation: 1})
		} else {
			matches = append(matches, Match{OldIndex: i, NewIndex: -1})
		}
	}
	return matches
}

// labelMatches runs two passes over the unmatched remainder: exact
// label equality first (case and whitespace insensitive), then highest
// Jaro-Winkler similarity. Matched sets are keyed by index, not label,
// so duplicate labels pair up one-to-one instead of collapsing onto the
// first occurrence.
func labelMatches(old, fresh []chartportal.TimeStep) []Match {
	matchedOld := make(map[int]struct{})
	matchedFresh := make(map[int]struct{})
	var matches []Match

	for i, oldStep := range old {
		for j, freshStep := range fresh {
			if _, taken := matchedFresh[j]; taken {
				continue
			}
			if textutil.NormalizeName(oldStep.Label) == textutil.NormalizeName(freshStep.Label) {
				matches = append(matches, Match{OldIndex: i, NewIndex: j, Correlation: 1})
				matchedOld[i] = struct{}{}
				matchedFresh[j] = struct{}{}
				break
			}
		}
	}

	for i, oldStep := range old {
		if _, done := matchedOld[i]; done {
			continue
		}

		mostSimilar := -1
		var mostSimilarity float64
		for j, freshStep := range fresh {
			if _, taken := matchedFresh[j]; taken {
				continue
			}
			similarity := matchr.JaroWinkler(oldStep.Label, freshStep.Label, false)
			if similarity > mostSimilarity {
				mostSimilarity = similarity
				mostSimilar = j
			}
		}

		if mostSimilar >= 0 && mostSimilarity > 0 {
			matches = append(matches, Match{OldIndex: i, NewIndex: mostSimilar, Correlation: mostSimilarity})
			matchedOld[i] = struct{}{}
			matchedFresh[mostSimilar] = struct{}{}
		}
	}

	for i := range old {
		if _, done := matchedOld[i]; !done {
			matches = append(matches, Match{OldIndex: i, NewIndex: -1})
		}
	}

	sort.Slice(matches, func(a, b int) bool {
		return matches[a].OldIndex < matches[b].OldIndex
	})
	return matches
}
