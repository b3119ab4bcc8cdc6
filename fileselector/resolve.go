package fileselector

import "strings"

// Markers understood by the selector.
const (
	MarkerImage    = "image/*"
	MarkerVideo    = "video/*"
	MarkerMedia    = "*/*"
	MarkerDocument = "Document"
)

// ResolveMimeTypes maps file extensions to picker markers. png, jpg and
// jpeg resolve to image/*; every other extension resolves to Document.
// The result is deduplicated in first-occurrence order. Empty input returns
// nil.
func ResolveMimeTypes(extensions []string) []string {
	var out []string
	seen := make(map[string]bool, 2)
	for _, ext := range extensions {
		marker := MarkerDocument
		// Case and a leading dot are ignored, so "PNG" and ".jpg" resolve to image/*.
		switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
		case "png", "jpg", "jpeg":
			marker = MarkerImage
		}
		if !seen[marker] {
			seen[marker] = true
			out = append(out, marker)
		}
	}
	return out
}

// markers returns the markers a call should try, resolving extensions
// when no MIME types were given.
func markers(types *FileTypes) []string {
	if types == nil {
		return nil
	}
	if len(types.MimeTypes) > 0 {
		return types.MimeTypes
	}
	return ResolveMimeTypes(types.Extensions)
}
