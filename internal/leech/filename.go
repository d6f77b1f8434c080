package leech

import (
	"mime"
	"net/url"
	"path"
	"strings"
)

// FallbackFilename is used when neither the response nor the URL names the file.
const FallbackFilename = "file"

// ResolveFilename picks the upload name: the Content-Disposition filename,
// then the last URL path segment (percent-decoded), then FallbackFilename.
func ResolveFilename(contentDisposition, rawURL string) string {
	if name := dispositionFilename(contentDisposition); name != "" {
		return name
	}
	if name := urlFilename(rawURL); name != "" {
		return name
	}
	return FallbackFilename
}

func dispositionFilename(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return cleanFilename(params["filename"])
}

func urlFilename(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return cleanFilename(path.Base(u.Path))
}

func cleanFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(path.Base(name))
	switch name {
	case "", ".", "..", "/":
		return ""
	}
	return name
}
