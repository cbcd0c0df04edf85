package server

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

type previewTier int

const (
	previewStream previewTier = iota
	previewContent
	previewLink
)

// maxInlinePreviewBytes caps text returned inline; larger text-like files get
// a download link instead.
const maxInlinePreviewBytes = 1 << 20

var streamExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "ico": {}, "gif": {}, "bmp": {}, "webp": {},
	"pdf": {},
	"mp4": {}, "webm": {}, "mov": {},
	"mp3": {}, "wav": {}, "ogg": {},
}

var contentExtensions = map[string]struct{}{
	"txt": {}, "md": {}, "js": {}, "html": {}, "css": {}, "json": {}, "xml": {},
}

// fileExtension is the lower-case extension of name without the leading dot.
func fileExtension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

func classifyPreview(name string, size int64) previewTier {
	ext := fileExtension(name)
	if _, ok := streamExtensions[ext]; ok {
		return previewStream
	}
	if _, ok := contentExtensions[ext]; ok && size <= maxInlinePreviewBytes {
		return previewContent
	}
	return previewLink
}

// streamContentType picks the media type for a streamed preview: the sniffed
// type when it is specific, then the extension mapping.
func streamContentType(name string, head []byte) string {
	if len(head) > 0 {
		if detected := mimetype.Detect(head); detected.String() != "application/octet-stream" {
			return detected.String()
		}
	}
	if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
