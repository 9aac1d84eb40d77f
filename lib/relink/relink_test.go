package relink

import (
	"testing"

	"github.com/stretchr/testify/require"

	"chartbrief-backend/lib/scrapers/chartportal"
)

func steps(labels ...string) []chartportal.TimeStep {
	result := make([]chartportal.TimeStep, len(labels))
	for i, label := range labels {
		result[i] = chartportal.TimeStep{Label: label, Index: i}
	}
	return result
}

func TestPositionStrategy(t *testing.T) {
	old := steps("Mon 00:00 UTC", "Mon 06:00 UTC", "Mon 12:00 UTC", "Mon 18:00 UTC")
	fresh := steps("Mon 06:00 UTC", "Mon 12:00 UTC", "Mon 18:00 UTC")

	matches := RelinkSteps(old, fresh, StrategyPosition)
	require.Equal(t, []Match{
		{OldIndex: 0, NewIndex: 0, Correlation: 1},
		{OldIndex: 1, NewIndex: 1, Correlation: 1},
		{OldIndex: 2, NewIndex: 2, Correlation: 1},
		{OldIndex: 3, NewIndex: -1},
	}, matches)
}

func TestLabelStrategyPrefersExactMatches(t *testing.T) {
	// the run advanced by six hours: two labels survive verbatim, the
	// oldest one only has a fuzzy counterpart left
	old := steps("Mon 00:00 UTC", "Mon 06:00 UTC", "Mon 12:00 UTC")
	fresh := steps("Mon 06:00 UTC", "Mon 12:00 UTC", "Mon 18:00 UTC")

	matches := RelinkSteps(old, fresh, StrategyLabel)
	require.Len(t, matches, 3)

	{ // fuzzy leftover pairs with the only remaining fresh step
		require.Equal(t, 0, matches[0].OldIndex)
		require.Equal(t, 2, matches[0].NewIndex)
		require.Greater(t, matches[0].Correlation, 0.5)
		require.Less(t, matches[0].Correlation, 1.0)
	}
	{ // exact survivors keep correlation 1
		require.Equal(t, Match{OldIndex: 1, NewIndex: 0, Correlation: 1}, matches[1])
		require.Equal(t, Match{OldIndex: 2, NewIndex: 1, Correlation: 1}, matches[2])
	}
}

func TestLabelStrategyHandlesDuplicateLabels(t *testing.T) {
	old := steps("T+000", "T+000")
	fresh := steps("T+000", "T+000")

	matches := RelinkSteps(old, fresh, StrategyLabel)
	require.Equal(t, []Match{
		{OldIndex: 0, NewIndex: 0, Correlation: 1},
		{OldIndex: 1, NewIndex: 1, Correlation: 1},
	}, matches)
}

func TestEmptyFreshHarvestLeavesEverythingUnmatched(t *testing.T) {
	old := steps("Mon 00:00 UTC", "Mon 06:00 UTC")

	for _, strategy := range []Strategy{StrategyPosition, StrategyLabel} {
		matches := RelinkSteps(old, nil, strategy)
		require.Equal(t, []Match{
			{OldIndex: 0, NewIndex: -1},
			{OldIndex: 1, NewIndex: -1},
		}, matches, "strategy %s", strategy)
	}
}

func TestUnknownStrategyFallsBackToPosition(t *testing.T) {
	old := steps("A")
	fresh := steps("B")

	matches := RelinkSteps(old, fresh, Strategy("mystery"))
	require.Equal(t, []Match{{OldIndex: 0, NewIndex: 0, Correlation: 1}}, matches)
}

func TestLinkProducts(t *testing.T) {
	catalog := []chartportal.CatalogEntry{
		{Id: "41", Name: "Surface Analysis", Category: "Analysis"},
		{Id: "42", Name: "Surface Prognosis 24h", Category: "Forecast"},
		{Id: "43", Name: "500hPa Height/Vorticity", Category: "Forecast"},
	}

	links := LinkProducts([]string{
		"Surface Analysis",       // survived verbatim
		"Surface Prognosis 24hr", // renamed slightly between portal updates
		"Tropical Cyclone Track", // gone entirely
	}, catalog)
	require.Len(t, links, 3)

	{ // exact match keeps correlation 1 and picks up the fresh id
		require.Equal(t, ProductLink{
			Saved:       "Surface Analysis",
			ProductId:   "41",
			ProductName: "Surface Analysis",
			Correlation: 1,
		}, links[0])
	}
	{ // near-identical name fuzzy-matches the renamed product
		require.Equal(t, "42", links[1].ProductId)
		require.Greater(t, links[1].Correlation, 0.9)
		require.Less(t, links[1].Correlation, 1.0)
	}
	{ // a fuzzy leftover still links, but with visibly low confidence
		require.Equal(t, "43", links[2].ProductId)
		require.Less(t, links[2].Correlation, 0.7)
	}
}

func TestLinkProductsIgnoresCaseAndSpacing(t *testing.T) {
	catalog := []chartportal.CatalogEntry{
		{Id: "41", Name: "SURFACE  ANALYSIS", Category: "Analysis"},
	}

	links := LinkProducts([]string{"Surface Analysis"}, catalog)
	require.Equal(t, []ProductLink{{
		Saved:       "Surface Analysis",
		ProductId:   "41",
		ProductName: "SURFACE  ANALYSIS",
		Correlation: 1,
	}}, links)
}

func TestLinkProductsAgainstEmptyCatalog(t *testing.T) {
	links := LinkProducts([]string{"Surface Analysis"}, nil)
	require.Equal(t, []ProductLink{{Saved: "Surface Analysis"}}, links)
}
