package chartportal

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"chartbrief-backend/lib/timezone"
)

// stepPayload is the raw harvest taken from the page in one evaluation.
// imgs entries encode "relativePath" or "relativePath---label".
type stepPayload struct {
	Title  string   `json:"title"`
	Date   string   `json:"date"`
	Base   string   `json:"base"`
	Imgs   []string `json:"imgs"`
	Labels []string `json:"labels"`
}

const labelSeparator = "---"

var digitRunPattern = regexp.MustCompile(`\d+`)

// parseSteps turns raw page entries into ordered steps. Labels come
// from the entry itself when inlined, then from the DOM label at the
// same position, then from a timestamp embedded in the path, and as a
// last resort from the position alone.
func parseSteps(baseUrl string, imgs []string, labels []string) []TimeStep {
	base, err := url.Parse(baseUrl)
	if err != nil || baseUrl == "" {
		base = nil
	}

	steps := make([]TimeStep, 0, len(imgs))
	for i, entry := range imgs {
		relative, label, _ := strings.Cut(entry, labelSeparator)
		relative = strings.TrimSpace(relative)
		label = strings.TrimSpace(label)

		if label == "" && i < len(labels) {
			label = labels[i]
		}
		if label == "" {
			label = timeLabelFromPath(relative)
		}
		if label == "" {
			label = fmt.Sprintf("T+%03d", i)
		}

		steps = append(steps, TimeStep{
			Label:    label,
			Index:    i,
			ImageUrl: resolveImageUrl(base, relative),
		})
	}
	return steps
}

func resolveImageUrl(base *url.URL, relative string) string {
	if relative == "" {
		return ""
	}
	if base == nil {
		return relative
	}
	ref, err := url.Parse(relative)
	if err != nil {
		return relative
	}
	return base.ResolveReference(ref).String()
}

// timeLabelFromPath recovers a display label from filenames like
// dat/img/202401151200_surface.png. The portal encodes validity times
// as YYYYMMDDHH or YYYYMMDDHHMM digit runs; anything else is not a
// timestamp.
func timeLabelFromPath(path string) string {
	for _, run := range digitRunPattern.FindAllString(path, -1) {
		var t time.Time
		var err error
		switch len(run) {
		case 10:
			t, err = time.Parse("2006010215", run)
		case 12:
			t, err = time.Parse("200601021504", run)
		default:
			continue
		}
		if err != nil {
			continue
		}
		return t.In(timezone.Location).Format("Mon 15:04 MST")
	}
	return ""
}
