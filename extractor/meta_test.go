package extractor

import "testing"

func TestReadMeta(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		wantVideo string
		wantImage string
	}{
		{
			name:      "property attributes",
			html:      `<html><head><meta property="og:video" content="https://x/v.mp4"><meta property="og:image" content="https://x/i.jpg"></head></html>`,
			wantVideo: "https://x/v.mp4",
			wantImage: "https://x/i.jpg",
		},
		{
			name:      "secure url fallback",
			html:      `<meta property="og:video:secure_url" content="https://x/s.mp4"><meta name="og:image" content="https://x/i.jpg">`,
			wantVideo: "https://x/s.mp4",
			wantImage: "https://x/i.jpg",
		},
		{
			name:      "og:video preferred over secure url",
			html:      `<meta property="og:video:secure_url" content="https://x/s.mp4"><meta property="og:video" content="https://x/v.mp4">`,
			wantVideo: "https://x/v.mp4",
		},
		{
			name:      "case insensitive attribute values",
			html:      `<meta PROPERTY="OG:Image" content="https://x/i.jpg"><meta name="OG:VIDEO" content="https://x/v.mp4">`,
			wantVideo: "https://x/v.mp4",
			wantImage: "https://x/i.jpg",
		},
		{
			name:      "first match wins",
			html:      `<meta property="og:image" content="https://x/1.jpg"><meta property="og:image" content="https://x/2.jpg">`,
			wantImage: "https://x/1.jpg",
		},
		{
			name:      "present og:video without content blocks fallback",
			html:      `<meta property="og:video"><meta property="og:video:secure_url" content="https://x/s.mp4">`,
			wantVideo: "",
		},
		{
			name: "no meta",
			html: `<html><body><p>hello</p></body></html>`,
		},
		{
			name: "empty input",
			html: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			video, image := ReadMeta(tt.html)
			if video != tt.wantVideo {
				t.Errorf("video = %q, want %q", video, tt.wantVideo)
			}
			if image != tt.wantImage {
				t.Errorf("image = %q, want %q", image, tt.wantImage)
			}
		})
	}
}

func TestPageFromHTML(t *testing.T) {
	raw := `<html><head><meta property="og:image" content="https://x/a.jpg"></head>` +
		`<body><script>{"display_url":"https:\/\/x\/a.jpg","video_url":"https:\/\/x\/v.mp4"}</script></body></html>`

	page := PageFromHTML(raw)
	if page.MetaImage != "https://x/a.jpg" {
		t.Errorf("MetaImage = %q", page.MetaImage)
	}
	if page.HTML != raw {
		t.Error("HTML should be carried through verbatim")
	}

	got := Extract(page)
	if len(got) != 2 {
		t.Fatalf("expected 2 refs, got %+v", got)
	}
	if got[0].URL != "https://x/a.jpg" || got[0].Kind != "image" {
		t.Errorf("first ref = %+v", got[0])
	}
	if got[1].URL != "https://x/v.mp4" || got[1].Kind != "video" {
		t.Errorf("second ref = %+v", got[1])
	}
}
