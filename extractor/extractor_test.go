package extractor

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/use-agent/mediaresolve/models"
)

func ref(url string, kind models.MediaKind) models.MediaReference {
	return models.MediaReference{URL: url, Kind: kind}
}

func TestExtract_Scenarios(t *testing.T) {
	tests := []struct {
		name string
		page RenderedPage
		want []models.MediaReference
	}{
		{
			name: "meta video only",
			page: RenderedPage{MetaVideo: "https://x/v.mp4"},
			want: []models.MediaReference{ref("https://x/v.mp4", models.KindVideo)},
		},
		{
			name: "repeated display_url is emitted once",
			page: RenderedPage{HTML: `"display_url":"https:\/\/x\/a.jpg","display_url":"https:\/\/x\/a.jpg"`},
			want: []models.MediaReference{ref("https://x/a.jpg", models.KindImage)},
		},
		{
			name: "meta image suppresses json duplicate",
			page: RenderedPage{MetaImage: "https://x/a.jpg", HTML: `"display_url":"https:\/\/x\/a.jpg"`},
			want: []models.MediaReference{ref("https://x/a.jpg", models.KindImage)},
		},
		{
			name: "json rules in fixed order",
			page: RenderedPage{HTML: `"video_url":"https:\/\/x\/v1.mp4","display_url":"https:\/\/x\/p1.jpg","thumbnail_src":"https:\/\/x\/t1.jpg"`},
			want: []models.MediaReference{
				ref("https://x/v1.mp4", models.KindVideo),
				ref("https://x/p1.jpg", models.KindImage),
				ref("https://x/t1.jpg", models.KindImage),
			},
		},
		{
			name: "all empty",
			page: RenderedPage{},
			want: []models.MediaReference{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.page)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Extract() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExtract_EmptyResultIsNotNil(t *testing.T) {
	got := Extract(RenderedPage{MetaVideo: "   ", MetaImage: "", HTML: "<html></html>"})
	if got == nil {
		t.Fatal("Extract returned nil, want empty slice")
	}
	if len(got) != 0 {
		t.Errorf("expected no media, got %+v", got)
	}
}

func TestExtract_FirstKindWins(t *testing.T) {
	page := RenderedPage{
		MetaVideo: "https://x/m.mp4",
		HTML:      `"display_url":"https:\/\/x\/m.mp4","thumbnail_src":"https://x/m.mp4"`,
	}
	got := Extract(page)
	want := []models.MediaReference{ref("https://x/m.mp4", models.KindVideo)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract() = %+v, want %+v", got, want)
	}
}

func TestExtract_VideoRuleRunsBeforeImageRulesRegardlessOfPosition(t *testing.T) {
	// display_url appears first in the document, but video_url is scanned first.
	page := RenderedPage{
		HTML: `{"display_url":"https://x/a.jpg"} {"video_url":"https://x/a.jpg"} {"video_url":"https://x/b.mp4"}`,
	}
	got := Extract(page)
	want := []models.MediaReference{
		ref("https://x/a.jpg", models.KindVideo),
		ref("https://x/b.mp4", models.KindVideo),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract() = %+v, want %+v", got, want)
	}
}

func TestExtract_CaseInsensitiveFieldAndWhitespace(t *testing.T) {
	page := RenderedPage{
		HTML: `"VIDEO_URL" : "https://x/v.mp4" "Display_Url":"https://x/p.jpg"`,
	}
	got := Extract(page)
	want := []models.MediaReference{
		ref("https://x/v.mp4", models.KindVideo),
		ref("https://x/p.jpg", models.KindImage),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract() = %+v, want %+v", got, want)
	}
}

func TestExtract_UnescapesSlashKeepsLiteralAmpersand(t *testing.T) {
	page := RenderedPage{
		HTML: `"display_url":"https:\/\/cdn.x\/a.jpg?stp=1&_nc_ht=x&oh=abc"`,
	}
	got := Extract(page)
	want := []models.MediaReference{ref("https://cdn.x/a.jpg?stp=1&_nc_ht=x&oh=abc", models.KindImage)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract() = %+v, want %+v", got, want)
	}
}

func TestExtract_UnescapesAmpersandEscape(t *testing.T) {
	page := RenderedPage{
		MetaImage: `https://x/og.jpg?a=1\u0026b=2`,
		HTML:      `"display_url":"https:\/\/x\/a.jpg?a=1\u0026b=2","thumbnail_src":"https:\/\/x\/og.jpg?a=1&b=2"`,
	}
	got := Extract(page)
	want := []models.MediaReference{
		ref("https://x/og.jpg?a=1&b=2", models.KindImage),
		ref("https://x/a.jpg?a=1&b=2", models.KindImage),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract() = %+v, want %+v", got, want)
	}
}

func TestExtract_EscapedQuoteDoesNotTerminateValue(t *testing.T) {
	page := RenderedPage{HTML: `"display_url":"https://x/a\"b.jpg","thumbnail_src":"https://x/t.jpg"`}
	got := Extract(page)
	want := []models.MediaReference{
		ref(`https://x/a\"b.jpg`, models.KindImage),
		ref("https://x/t.jpg", models.KindImage),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract() = %+v, want %+v", got, want)
	}
}

func TestExtract_WhitespaceOnlyCandidatesAreSkipped(t *testing.T) {
	page := RenderedPage{
		MetaVideo: " \t ",
		MetaImage: " https://x/a.jpg ",
		HTML:      `"video_url":"   ","display_url":"https:\/\/x\/a.jpg"`,
	}
	got := Extract(page)
	want := []models.MediaReference{ref("https://x/a.jpg", models.KindImage)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract() = %+v, want %+v", got, want)
	}
}

func TestExtract_EmptyFieldValueIgnored(t *testing.T) {
	page := RenderedPage{HTML: `"video_url":"","display_url":"https://x/a.jpg"`}
	got := Extract(page)
	want := []models.MediaReference{ref("https://x/a.jpg", models.KindImage)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract() = %+v, want %+v", got, want)
	}
}

func TestExtract_NoDuplicatesAndStableOrder(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&b, `"display_url":"https:\/\/x\/%d.jpg",`, i%7)
		fmt.Fprintf(&b, `"thumbnail_src":"https://x/%d.jpg",`, i%11)
	}
	got := Extract(RenderedPage{HTML: b.String()})

	seen := make(map[string]bool)
	for _, m := range got {
		if seen[m.URL] {
			t.Fatalf("duplicate url %q in %+v", m.URL, got)
		}
		seen[m.URL] = true
	}

	// display_url covers 0..6 first, thumbnail_src then adds 7..10.
	if len(got) != 11 {
		t.Fatalf("expected 11 unique urls, got %d", len(got))
	}
	for i, m := range got {
		want := fmt.Sprintf("https://x/%d.jpg", i)
		if m.URL != want {
			t.Errorf("position %d: got %q, want %q", i, m.URL, want)
		}
	}
}

func TestExtract_DoesNotMutateInput(t *testing.T) {
	page := RenderedPage{MetaVideo: ` https:\/\/x\/v.mp4 `, HTML: `"video_url":"https:\/\/x\/v.mp4"`}
	before := page
	_ = Extract(page)
	if page != before {
		t.Errorf("page mutated: %+v", page)
	}
}

func TestExtract_QualityAlwaysEmpty(t *testing.T) {
	got := Extract(RenderedPage{MetaVideo: "https://x/v.mp4", MetaImage: "https://x/i.jpg"})
	for _, m := range got {
		if m.Quality != "" {
			t.Errorf("quality should be empty, got %q", m.Quality)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "https://x/a.jpg", "https://x/a.jpg"},
		{"escaped slashes", `https:\/\/x\/a.jpg`, "https://x/a.jpg"},
		{"literal ampersand untouched", `a?b=1&c=2`, "a?b=1&c=2"},
		{"escaped ampersand", `a?b=1\u0026c=2`, "a?b=1&c=2"},
		{"escaped ampersand and slash", `https:\/\/x\/a.jpg?a=1\u0026b=2\u0026c=3`, "https://x/a.jpg?a=1&b=2&c=3"},
		{"trim", "  https://x/a.jpg\n", "https://x/a.jpg"},
		{"empty", "", ""},
		{"whitespace", " \t\r\n", ""},
		{"double escaped slash", `https:\\/\\/x`, "https://x"},
		{"uppercase escape untouched", `a\U0026b`, `a\U0026b`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"https://x/a.jpg",
		`https:\/\/x\/a.jpg?x=1&y=2`,
		`\\\/weird&\\u0026`,
		`  \/ `,
		`\u&0026`,
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestExtract_ConcurrentCalls(t *testing.T) {
	page := RenderedPage{HTML: `"video_url":"https:\/\/x\/v1.mp4","display_url":"https:\/\/x\/p1.jpg"`}
	done := make(chan []models.MediaReference, 16)
	for i := 0; i < 16; i++ {
		go func() { done <- Extract(page) }()
	}
	for i := 0; i < 16; i++ {
		if got := <-done; len(got) != 2 {
			t.Errorf("concurrent Extract returned %d refs, want 2", len(got))
		}
	}
}
