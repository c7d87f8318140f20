package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPEngine_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><meta property="og:video" content="https://x/v.mp4"></head>` +
			`<body><script>{"display_url":"https:\/\/x\/p.jpg"}</script></body></html>`))
	}))
	defer srv.Close()

	e := NewHTTPEngine("", "test-agent", 5*time.Second)
	res, err := e.Fetch(context.Background(), &FetchRequest{URL: srv.URL + "/p/abc/"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Page.MetaVideo != "https://x/v.mp4" {
		t.Errorf("MetaVideo = %q", res.Page.MetaVideo)
	}
	if res.StatusCode != http.StatusOK || res.EngineName != "http" {
		t.Errorf("result = %+v", res)
	}
	if !HasMedia(res) {
		t.Error("page should carry media")
	}
}

func TestHTTPEngine_RejectsNonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewHTTPEngine("", "", 0).Fetch(context.Background(), &FetchRequest{URL: srv.URL})
	if err == nil {
		t.Fatal("expected error for non-html response")
	}
}

func TestHTTPEngine_RejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewHTTPEngine("", "", 0).Fetch(context.Background(), &FetchRequest{URL: srv.URL})
	if err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestHTTPEngine_FollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusFound)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<meta property="og:image" content="https://x/i.jpg">`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res, err := NewHTTPEngine("", "", 0).Fetch(context.Background(), &FetchRequest{URL: srv.URL + "/old"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.FinalURL != srv.URL+"/new" {
		t.Errorf("FinalURL = %q", res.FinalURL)
	}
	if res.Page.MetaImage != "https://x/i.jpg" {
		t.Errorf("MetaImage = %q", res.Page.MetaImage)
	}
}

func TestIsHTMLContentType(t *testing.T) {
	tests := []struct {
		ct   string
		want bool
	}{
		{"text/html", true},
		{"TEXT/HTML; charset=UTF-8", true},
		{"application/xhtml+xml", true},
		{"application/json", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isHTMLContentType(tt.ct); got != tt.want {
			t.Errorf("isHTMLContentType(%q) = %v, want %v", tt.ct, got, tt.want)
		}
	}
}
