package assetcache

import (
	"mime"
	"strings"
)

var contentTypes = map[string]string{
	"css":   "text/css",
	"js":    "application/x-javascript",
	"swf":   "application/x-shockwave-flash",
	"png":   "image/png",
	"jpg":   "image/jpeg",
	"jpeg":  "image/jpeg",
	"gif":   "image/gif",
	"svg":   "image/svg+xml",
	"ico":   "image/x-icon",
	"webp":  "image/webp",
	"woff":  "font/woff",
	"woff2": "font/woff2",
	"ttf":   "font/ttf",
	"otf":   "font/otf",
	"eot":   "application/vnd.ms-fontobject",
	"txt":   "text/plain",
	"html":  "text/html",
	"htm":   "text/html",
	"json":  "application/json",
	"xml":   "text/xml",
	"pdf":   "application/pdf",
	"mp3":   "audio/mpeg",
	"mp4":   "video/mp4",
}

// ContentType returns configured if it is set, otherwise the content type
// for the file extension ext (with or without the leading dot).
func ContentType(ext, configured string) string {
	if configured != "" {
		return configured
	}
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return "application/octet-stream"
	}
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension("." + ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
