package chartportal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStepsLabelFallbacks(t *testing.T) {
	base := "https://charts.example.org/dat/img/"

	imgs := []string{
		"202401151200_surface.png---Surface 12Z",
		"202401151800_surface.png",
		"aux_chart_007.png",
		"notime.png",
	}
	labels := []string{"", "", "Aux Chart 007", ""}

	steps := parseSteps(base, imgs, labels)
	require.Len(t, steps, 4)

	{ // inline label wins over everything else
		require.Equal(t, "Surface 12Z", steps[0].Label)
		require.Equal(t, "https://charts.example.org/dat/img/202401151200_surface.png", steps[0].ImageUrl)
	}
	{ // no inline label and no DOM label, timestamp in the path
		require.Equal(t, "Mon 18:00 UTC", steps[1].Label)
	}
	{ // DOM label at the same position
		require.Equal(t, "Aux Chart 007", steps[2].Label)
	}
	{ // nothing usable, synthesized from the position
		require.Equal(t, "T+003", steps[3].Label)
	}

	for i, step := range steps {
		require.Equal(t, i, step.Index)
	}
}

func TestParseStepsResolvesAgainstBase(t *testing.T) {
	steps := parseSteps("https://charts.example.org/dat/img/", []string{
		"surface.png",
		"/absolute/path.png",
		"https://other.example.org/full.jpg",
	}, nil)

	require.Equal(t, "https://charts.example.org/dat/img/surface.png", steps[0].ImageUrl)
	require.Equal(t, "https://charts.example.org/absolute/path.png", steps[1].ImageUrl)
	require.Equal(t, "https://other.example.org/full.jpg", steps[2].ImageUrl)
}

func TestParseStepsWithoutBaseKeepsPathsVerbatim(t *testing.T) {
	steps := parseSteps("", []string{"dat/img/a.png"}, nil)
	require.Equal(t, "dat/img/a.png", steps[0].ImageUrl)
}

func TestTimeLabelFromPath(t *testing.T) {
	{ // ten digits, hour resolution
		require.Equal(t, "Mon 12:00 UTC", timeLabelFromPath("dat/2024011512_surface.png"))
	}
	{ // twelve digits, minute resolution
		require.Equal(t, "Mon 12:30 UTC", timeLabelFromPath("dat/202401151230_surface.png"))
	}
	{ // digit runs of other lengths are not timestamps
		require.Equal(t, "", timeLabelFromPath("dat/img_007.png"))
		require.Equal(t, "", timeLabelFromPath("dat/20240115_surface.png"))
	}
	{ // an invalid calendar date is skipped, a later run can still match
		require.Equal(t, "", timeLabelFromPath("dat/2024991512.png"))
	}
}
