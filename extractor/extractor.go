// Package extractor turns a rendered page into an ordered, deduplicated list
// of direct media URLs.
//
// Extraction never fails. Missing, empty or malformed inputs simply yield
// fewer (or zero) references.
package extractor

import (
	"regexp"
	"strings"

	"github.com/use-agent/mediaresolve/models"
)

// RenderedPage is everything the extractor needs from a loaded page.
type RenderedPage struct {
	// MetaVideo is the content of og:video, or og:video:secure_url when
	// og:video is absent.
	MetaVideo string

	// MetaImage is the content of og:image.
	MetaImage string

	// HTML is the full serialized document.
	HTML string
}

// fieldRule scans the HTML for every `"<field>":"<value>"` occurrence.
type fieldRule struct {
	field string
	kind  models.MediaKind
	re    *regexp.Regexp
}

func newFieldRule(field string, kind models.MediaKind) fieldRule {
	// Value: a run of non-quote characters or backslash escapes, so an
	// escaped quote does not terminate it.
	pattern := `(?i)"` + regexp.QuoteMeta(field) + `"\s*:\s*"((?:[^"\\]|\\.)+)"`
	return fieldRule{field: field, kind: kind, re: regexp.MustCompile(pattern)}
}

// jsonRules run in this order after the meta tags.
var jsonRules = []fieldRule{
	newFieldRule("video_url", models.KindVideo),
	newFieldRule("display_url", models.KindImage),
	newFieldRule("thumbnail_src", models.KindImage),
}

var unescaper = strings.NewReplacer(
	`\u0026`, "&",
	`\/`, "/",
)

// Normalize unescapes `\u0026` and `\/` and trims surrounding whitespace.
// It is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	s := raw
	// Repeat until stable rather than a single pass, so a doubly escaped
	// `\\/` collapses to "/" and a second call never changes the result.
	for {
		next := unescaper.Replace(s)
		if next == s {
			break
		}
		s = next
	}
	return strings.TrimSpace(s)
}

// collector is the fold accumulator: references in discovery order plus the
// set of URLs already emitted.
type collector struct {
	out  []models.MediaReference
	seen map[string]struct{}
}

func (c collector) add(raw string, kind models.MediaKind) collector {
	u := Normalize(raw)
	if u == "" {
		return c
	}
	if _, dup := c.seen[u]; dup {
		return c
	}
	c.seen[u] = struct{}{}
	c.out = append(c.out, models.MediaReference{URL: u, Kind: kind})
	return c
}

// Extract returns the media referenced by page in discovery order:
// og:video, og:image, then every video_url, display_url and thumbnail_src
// JSON field in document order. A URL is emitted once, with the kind of
// its first occurrence.
//
// The result is never nil; an empty slice means no media was found.
func Extract(page RenderedPage) []models.MediaReference {
	c := collector{
		out:  []models.MediaReference{},
		seen: make(map[string]struct{}),
	}

	c = c.add(page.MetaVideo, models.KindVideo)
	c = c.add(page.MetaImage, models.KindImage)

	for _, rule := range jsonRules {
		for _, m := range rule.re.FindAllStringSubmatch(page.HTML, -1) {
			c = c.add(m[1], rule.kind)
		}
	}

	return c.out
}
