package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Meta properties read from the page head.
const (
	PropVideo          = "og:video"
	PropVideoSecureURL = "og:video:secure_url"
	PropImage          = "og:image"
)

var metaSelector = cascadia.MustCompile("meta")

// ReadMeta returns the og:video (falling back to og:video:secure_url) and
// og:image contents of rawHTML.
//
// A <meta> element matches a property when its property or name attribute
// equals it case-insensitively; the first match in document order wins.
// Unparseable input yields empty strings.
func ReadMeta(rawHTML string) (video, image string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", ""
	}
	metas := doc.FindMatcher(metaSelector)

	pick := func(prop string) (string, bool) {
		var content string
		found := false
		metas.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			p, _ := s.Attr("property")
			n, _ := s.Attr("name")
			if strings.ToLower(p) != prop && strings.ToLower(n) != prop {
				return true
			}
			content, _ = s.Attr("content")
			found = true
			return false
		})
		return content, found
	}

	if v, ok := pick(PropVideo); ok {
		video = v
	} else {
		video, _ = pick(PropVideoSecureURL)
	}
	image, _ = pick(PropImage)
	return video, image
}

// PageFromHTML builds a RenderedPage from a serialized document, reading the
// meta values with ReadMeta.
func PageFromHTML(rawHTML string) RenderedPage {
	video, image := ReadMeta(rawHTML)
	return RenderedPage{MetaVideo: video, MetaImage: image, HTML: rawHTML}
}
