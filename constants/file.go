package constants

import "strings"

// Extraction paths a document can be normalized into.
const (
	IMAGE   = "IMAGE"
	PDF     = "PDF"
	DOCX    = "DOCX"
	DOC     = "DOC"
	ZIP     = "ZIP"
	RAR     = "RAR"
	UNKNOWN = "UNKNOWN"
)

// AllowedExtensions holds the file extensions accepted for upload.
var AllowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"webp": {},
	"pdf":  {},
	"docx": {},
	"doc":  {},
	"zip":  {},
	"rar":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a file extension (with or without dot) to its extraction path.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "jpg", "jpeg", "png", "webp":
		return IMAGE
	case "pdf":
		return PDF
	case "docx":
		return DOCX
	case "doc":
		return DOC
	case "zip":
		return ZIP
	case "rar":
		return RAR
	default:
		return UNKNOWN
	}
}

// IsArchive reports whether the extension denotes a container of documents.
func IsArchive(ext string) bool {
	f := MapExtToFormat(ext)
	return f == ZIP || f == RAR
}

// ImageMimeType infers the declared mime type for an image extension.
// png and webp are explicit; everything else is sent as jpeg.
func ImageMimeType(ext string) string {
	switch NormalizeExt(ext) {
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
