package telegram

import (
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/tglink/internal/leech"
)

func TestFileRefFallbackNames(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		msg  *tgbotapi.Message
		want string
	}{
		{"document with name", &tgbotapi.Message{Document: &tgbotapi.Document{FileID: "d", FileName: "notes.txt"}}, "notes.txt"},
		{"document without name", &tgbotapi.Message{Document: &tgbotapi.Document{FileID: "d"}}, "file"},
		{"video", &tgbotapi.Message{Video: &tgbotapi.Video{FileID: "v"}}, "video.mp4"},
		{"audio", &tgbotapi.Message{Audio: &tgbotapi.Audio{FileID: "a"}}, "audio.mp3"},
		{"voice", &tgbotapi.Message{Voice: &tgbotapi.Voice{FileID: "o"}}, "voice.ogg"},
		{"photo", &tgbotapi.Message{Photo: []tgbotapi.PhotoSize{{FileID: "p"}}}, "photo.jpg"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ref, ok := fileRef(tc.msg)
			require.True(t, ok)
			assert.Equal(t, tc.want, ref.Name)
		})
	}

	_, ok := fileRef(&tgbotapi.Message{Text: "hi"})
	assert.False(t, ok)
}

func TestFileRefPicksLargestPhoto(t *testing.T) {
	t.Parallel()

	ref, ok := fileRef(&tgbotapi.Message{Photo: []tgbotapi.PhotoSize{
		{FileID: "small", Width: 90, Height: 90, FileSize: 1000},
		{FileID: "large", Width: 1280, Height: 1280, FileSize: 90000},
		{FileID: "medium", Width: 320, Height: 320, FileSize: 9000},
	}})
	require.True(t, ok)
	assert.Equal(t, "large", ref.FileID)
	assert.Equal(t, int64(90000), ref.Size)
}

func TestLinkURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://x.dev/abc/my%20file.txt", linkURL("https://x.dev/", "abc", "my file.txt"))
	assert.Equal(t, "http://localhost:8080/abc/a%2Fb", linkURL("http://localhost:8080", "abc", "a/b"))
}

func TestFormatTTL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "24 hours", formatTTL(24*time.Hour))
	assert.Equal(t, "1 hour", formatTTL(time.Hour))
	assert.Equal(t, "90 minutes", formatTTL(90*time.Minute))
	assert.Equal(t, "45s", formatTTL(45*time.Second))
}

func TestFormatBytes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.50 KB", formatBytes(1536))
	assert.Equal(t, "50.00 MB", formatBytes(50*1024*1024))
	assert.Equal(t, "2.00 GB", formatBytes(2*1024*1024*1024))
}

func TestFailureText(t *testing.T) {
	t.Parallel()

	assert.Contains(t, failureText(leech.ErrBusy), "already running")
	assert.Contains(t, failureText(&leech.SizeError{Size: 100 << 20, Limit: 50 << 20, Declared: true}), "100.00 MB")
	assert.Contains(t, failureText(&leech.SizeError{Size: 60 << 20, Limit: 50 << 20}), "more than 50.00 MB")
	assert.Contains(t, failureText(&leech.UpstreamError{URL: "u", StatusCode: 404}), "404 Not Found")
	assert.Contains(t, failureText(&leech.UpstreamError{URL: "u", Err: errors.New("no such host")}), "no such host")
	assert.Contains(t, failureText(errors.New("<boom>")), "&lt;boom&gt;")
}

func TestProgressText(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	text := progressText(leech.Progress{
		Name:        "a<b>.zip",
		StartedAt:   start,
		UpdatedAt:   start.Add(2 * time.Second),
		Transferred: 512 * 1024,
		Total:       1024 * 1024,
	})
	assert.Contains(t, text, "a&lt;b&gt;.zip")
	assert.Contains(t, text, "50.0%")
	assert.Contains(t, text, "512.00 KB / 1.00 MB")
	assert.Contains(t, text, "256.00 KB/s")

	unknown := progressText(leech.Progress{Name: "x", Transferred: 10})
	assert.Contains(t, unknown, "10 B transferred")
}
