package upload

import (
	"mime"
	"path/filepath"
	"strings"
)

// Material categories, derived from the MIME type.
const (
	TypePDF     = "PDF"
	TypeDoc     = "DOC"
	TypePPT     = "PPT"
	TypeXLS     = "XLS"
	TypeImage   = "Image"
	TypeArchive = "Archive"
	TypeText    = "Text"
	TypeFile    = "File" // generic catch-all; default
)

// Types is the full set of categories Classify can return.
var Types = []string{TypePDF, TypeDoc, TypePPT, TypeXLS, TypeImage, TypeArchive, TypeText, TypeFile}

var typesByMIME = map[string]string{
	"application/pdf":    TypePDF,
	"application/msword": TypeDoc,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   TypeDoc,
	"application/vnd.ms-powerpoint":                                             TypePPT,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": TypePPT,
	"application/vnd.ms-excel":                                                  TypeXLS,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         TypeXLS,
	"image/jpeg":                   TypeImage,
	"image/png":                    TypeImage,
	"image/gif":                    TypeImage,
	"application/zip":              TypeArchive,
	"application/x-rar-compressed": TypeArchive,
	"text/plain":                   TypeText,
}

// Classify maps a MIME type to its category. Unknown types map to TypeFile.
func Classify(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(mimeType))
	}
	if typ, ok := typesByMIME[mediaType]; ok {
		return typ
	}
	return TypeFile
}

// DetectMIMEType returns mimeType when set, otherwise guesses it from the file extension.
func DetectMIMEType(name, mimeType string) string {
	if mimeType = strings.TrimSpace(mimeType); mimeType != "" && mimeType != "application/octet-stream" {
		return mimeType
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		return byExt
	}
	if mimeType == "" {
		return "application/octet-stream"
	}
	return mimeType
}
