package app

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var (
	errNoCaptions   = errors.New("video has no caption track")
	errVideoMissing = errors.New("video page not found")
)

var (
	reCaptionTrack = regexp.MustCompile(`"captionTracks":\[\{"baseUrl":"([^"]+)"`)
	reCueText      = regexp.MustCompile(`<text[^>]*>([^<]*)</text>`)
	reVideoID      = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
)

// transcriptDeadline bounds the whole fetch (page + captions). The
// scrape is best-effort; a slow video should fail, not hold the request.
const transcriptDeadline = 60 * time.Second

// TranscriptFetcher scrapes the caption track of a YouTube video. There
// is no official API for this; the watch page embeds the track URL in
// its player config JSON.
type TranscriptFetcher struct {
	httpc *http.Client
}

func NewTranscriptFetcher() *TranscriptFetcher {
	return &TranscriptFetcher{
		httpc: &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch returns the plain-text transcript for a video id.
func (f *TranscriptFetcher) Fetch(ctx context.Context, videoID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, transcriptDeadline)
	defer cancel()

	page, err := f.get(ctx, "https://www.youtube.com/watch?v="+url.QueryEscape(videoID))
	if err != nil {
		return "", err
	}

	m := reCaptionTrack.FindSubmatch(page)
	if m == nil {
		return "", errNoCaptions
	}
	trackURL := decodeTrackURL(string(m[1]))

	captions, err := f.get(ctx, trackURL)
	if err != nil {
		return "", err
	}

	transcript := flattenCues(string(captions))
	if transcript == "" {
		return "", errNoCaptions
	}
	return transcript, nil
}

func (f *TranscriptFetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Language", "en")

	resp, err := f.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errVideoMissing
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

// decodeTrackURL reverses the JSON string escaping the player config
// applies to the caption URL.
func decodeTrackURL(raw string) string {
	raw = strings.ReplaceAll(raw, "\\u0026", "&")
	raw = strings.ReplaceAll(raw, "\\/", "/")
	return raw
}

// flattenCues strips the timedtext XML down to one line of prose.
func flattenCues(xml string) string {
	matches := reCueText.FindAllStringSubmatch(xml, -1)
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		cue := strings.TrimSpace(html.UnescapeString(m[1]))
		if cue != "" {
			parts = append(parts, cue)
		}
	}
	return strings.Join(parts, " ")
}

// extractVideoID accepts a bare 11-character id or any of the usual
// YouTube URL shapes.
func extractVideoID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if reVideoID.MatchString(input) {
		return input, nil
	}

	u, err := url.Parse(input)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("not a video id or url: %q", input)
	}

	var id string
	switch {
	case strings.Contains(u.Host, "youtu.be"):
		id = strings.TrimPrefix(u.Path, "/")
	case strings.HasPrefix(u.Path, "/shorts/"):
		id = strings.TrimPrefix(u.Path, "/shorts/")
	case strings.HasPrefix(u.Path, "/embed/"):
		id = strings.TrimPrefix(u.Path, "/embed/")
	default:
		id = u.Query().Get("v")
	}
	id = strings.SplitN(id, "/", 2)[0]
	if !reVideoID.MatchString(id) {
		return "", fmt.Errorf("no video id in %q", input)
	}
	return id, nil
}
