package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExtractVideoID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"  https://youtu.be/dQw4w9WgXcQ  ", "dQw4w9WgXcQ"},
	}
	for _, tc := range cases {
		got, err := extractVideoID(tc.in)
		if err != nil {
			t.Fatalf("extractVideoID(%q) error = %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("extractVideoID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExtractVideoIDRejectsGarbage(t *testing.T) {
	for _, in := range []string{
		"",
		"not a url",
		"https://example.com/watch?v=tooshort",
		"https://www.youtube.com/watch",
	} {
		if id, err := extractVideoID(in); err == nil {
			t.Fatalf("extractVideoID(%q) = %q, want error", in, id)
		}
	}
}

func TestDecodeTrackURL(t *testing.T) {
	in := `https:\/\/www.youtube.com\/api\/timedtext?v=abc&lang=en`
	want := "https://www.youtube.com/api/timedtext?v=abc&lang=en"
	if got := decodeTrackURL(in); got != want {
		t.Fatalf("decodeTrackURL = %q, want %q", got, want)
	}
}

func TestFlattenCues(t *testing.T) {
	xml := `<transcript>
		<text start="0.0" dur="2.5">today we cover</text>
		<text start="2.5" dur="3.0">the Krebs cycle &amp; ATP</text>
		<text start="5.5" dur="1.0">  </text>
	</transcript>`
	got := flattenCues(xml)
	want := "today we cover the Krebs cycle & ATP"
	if got != want {
		t.Fatalf("flattenCues = %q, want %q", got, want)
	}
}

func TestFetchTranscript(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		track := strings.ReplaceAll(srv.URL+"/timedtext?lang=en", "/", `\/`)
		w.Write([]byte(`{"captions":{"captionTracks":[{"baseUrl":"` + track + `"}]}}`))
	})
	mux.HandleFunc("/timedtext", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<transcript><text start="0" dur="1">hello</text><text start="1" dur="1">world</text></transcript>`))
	})

	f := &TranscriptFetcher{httpc: srv.Client()}
	page, err := f.get(context.Background(), srv.URL+"/watch")
	if err != nil {
		t.Fatalf("get watch page: %v", err)
	}
	m := reCaptionTrack.FindSubmatch(page)
	if m == nil {
		t.Fatalf("caption track not found in %s", page)
	}
	captions, err := f.get(context.Background(), decodeTrackURL(string(m[1])))
	if err != nil {
		t.Fatalf("get captions: %v", err)
	}
	if got := flattenCues(string(captions)); got != "hello world" {
		t.Fatalf("transcript = %q, want %q", got, "hello world")
	}
}

func TestFetchReportsMissingVideo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	f := &TranscriptFetcher{httpc: srv.Client()}
	_, err := f.get(context.Background(), srv.URL+"/watch")
	if !errors.Is(err, errVideoMissing) {
		t.Fatalf("err = %v, want errVideoMissing", err)
	}
}

func TestFetchReportsNoCaptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"captions":{}}`))
	}))
	t.Cleanup(srv.Close)

	f := &TranscriptFetcher{httpc: srv.Client()}
	page, err := f.get(context.Background(), srv.URL+"/watch")
	if err != nil {
		t.Fatalf("get watch page: %v", err)
	}
	if m := reCaptionTrack.FindSubmatch(page); m != nil {
		t.Fatalf("unexpected caption track match")
	}
}
