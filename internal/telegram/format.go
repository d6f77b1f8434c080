package telegram

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/tglink/internal/leech"
	"github.com/memohai/tglink/internal/links"
)

const (
	cancelCallbackData = "cancel"
	progressBarWidth   = 12
)

// Names used when a message carries no file name of its own.
const (
	fallbackDocumentName  = "file"
	fallbackVideoName     = "video.mp4"
	fallbackAudioName     = "audio.mp3"
	fallbackVoiceName     = "voice.ogg"
	fallbackPhotoName     = "photo.jpg"
	fallbackAnimationName = "animation.mp4"
)

const helpText = "<b>Send me a file</b> and I reply with a direct download link.\n" +
	"<b>Send me an http(s) URL</b> and I upload that file here.\n\n" +
	"/cancel stops the running upload."

func cancelKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✖ Cancel", cancelCallbackData),
		),
	)
	return &kb
}

// fileRef extracts the file a message carries. Photos use the largest size.
func fileRef(msg *tgbotapi.Message) (links.Ref, bool) {
	if msg == nil {
		return links.Ref{}, false
	}
	switch {
	case msg.Document != nil:
		d := msg.Document
		return newRef(d.FileID, d.FileUniqueID, d.FileName, fallbackDocumentName, d.MimeType, int64(d.FileSize)), true
	case msg.Video != nil:
		v := msg.Video
		return newRef(v.FileID, v.FileUniqueID, v.FileName, fallbackVideoName, v.MimeType, int64(v.FileSize)), true
	case msg.Audio != nil:
		a := msg.Audio
		return newRef(a.FileID, a.FileUniqueID, a.FileName, fallbackAudioName, a.MimeType, int64(a.FileSize)), true
	case msg.Voice != nil:
		v := msg.Voice
		return newRef(v.FileID, v.FileUniqueID, "", fallbackVoiceName, v.MimeType, int64(v.FileSize)), true
	case msg.Animation != nil:
		a := msg.Animation
		return newRef(a.FileID, a.FileUniqueID, a.FileName, fallbackAnimationName, a.MimeType, int64(a.FileSize)), true
	case msg.VideoNote != nil:
		v := msg.VideoNote
		return newRef(v.FileID, v.FileUniqueID, "", fallbackVideoName, "video/mp4", int64(v.FileSize)), true
	case len(msg.Photo) > 0:
		p := pickTelegramPhoto(msg.Photo)
		return newRef(p.FileID, p.FileUniqueID, "", fallbackPhotoName, "image/jpeg", int64(p.FileSize)), true
	}
	return links.Ref{}, false
}

func newRef(fileID, uniqueID, name, fallback, mime string, size int64) links.Ref {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fallback
	}
	return links.Ref{
		FileID:   fileID,
		UniqueID: uniqueID,
		Name:     name,
		Mime:     strings.TrimSpace(mime),
		Size:     size,
	}
}

func pickTelegramPhoto(items []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := items[0]
	for _, item := range items[1:] {
		if item.FileSize > best.FileSize || item.Width*item.Height > best.Width*best.Height {
			best = item
		}
	}
	return best
}

// linkURL builds {public}/{code}/{escaped name}.
func linkURL(publicURL, code, name string) string {
	return strings.TrimRight(publicURL, "/") + "/" + code + "/" + url.PathEscape(name)
}

func linkText(ref links.Ref, link string, ttl time.Duration) string {
	var b strings.Builder
	b.WriteString("✅ <b>Link generated!</b>\n")
	fmt.Fprintf(&b, "📂 %s\n", html.EscapeString(ref.Name))
	if ref.Size > 0 {
		fmt.Fprintf(&b, "💾 Size: %.2f MB\n", float64(ref.Size)/1024/1024)
	}
	fmt.Fprintf(&b, "\n🔗 %s\n", html.EscapeString(link))
	if ttl > 0 {
		fmt.Fprintf(&b, "\n⏳ <i>Expires in %s.</i>", formatTTL(ttl))
	}
	return b.String()
}

func formatTTL(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int64(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int64, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func progressText(p leech.Progress) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⬆️ <b>Uploading</b> %s\n", html.EscapeString(p.Name))
	if pct, ok := p.Percent(); ok {
		filled := int(pct / 100 * progressBarWidth)
		fmt.Fprintf(&b, "%s%s %.1f%%\n", strings.Repeat("█", filled), strings.Repeat("░", progressBarWidth-filled), pct)
		fmt.Fprintf(&b, "%s / %s\n", formatBytes(p.Transferred), formatBytes(p.Total))
	} else {
		fmt.Fprintf(&b, "%s transferred\n", formatBytes(p.Transferred))
	}
	fmt.Fprintf(&b, "🚀 %s/s", formatBytes(int64(p.Speed())))
	return b.String()
}

func completedText(res leech.Result) string {
	return fmt.Sprintf("✅ <b>Uploaded</b> %s (%s in %s)",
		html.EscapeString(res.Name), formatBytes(res.Transferred), res.Elapsed.Round(time.Second))
}

func cancelledText(res leech.Result) string {
	if res.Name == "" {
		return "🛑 <b>Cancelled.</b>"
	}
	return fmt.Sprintf("🛑 <b>Cancelled</b> %s after %s.", html.EscapeString(res.Name), formatBytes(res.Transferred))
}

// failureText turns a leech error into the reason shown in chat.
func failureText(err error) string {
	var upErr *leech.UpstreamError
	var sizeErr *leech.SizeError
	switch {
	case errors.Is(err, leech.ErrBusy):
		return "⏳ An upload is already running in this chat. Cancel it first with /cancel."
	case errors.As(err, &sizeErr):
		if sizeErr.Declared {
			return fmt.Sprintf("❌ <b>Too large:</b> %s, the limit is %s.", formatBytes(sizeErr.Size), formatBytes(sizeErr.Limit))
		}
		return fmt.Sprintf("❌ <b>Too large:</b> more than %s.", formatBytes(sizeErr.Limit))
	case errors.As(err, &upErr):
		if upErr.Err == nil {
			status := strings.TrimSpace(upErr.Status)
			if status == "" {
				status = fmt.Sprintf("%d %s", upErr.StatusCode, http.StatusText(upErr.StatusCode))
			}
			return "❌ <b>Download failed:</b> " + html.EscapeString(status)
		}
		return "❌ <b>Download failed:</b> " + html.EscapeString(upErr.Err.Error())
	default:
		return "❌ <b>Upload failed:</b> " + html.EscapeString(err.Error())
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit && exp < 3; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMGT"[exp])
}
