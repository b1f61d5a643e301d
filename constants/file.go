package constants

import "strings"

// MaxImportFileSize is the default upload ceiling for bulk imports (10 MiB).
const MaxImportFileSize int64 = 10 * 1024 * 1024

// AllowedExtensions holds the file extensions accepted by the bulk importer.
var AllowedExtensions = map[string]struct{}{
	"csv":  {},
	"xlsx": {},
	"xls":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// IsAllowedExt reports whether ext (with or without the dot) can be imported.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// IsSpreadsheetExt reports whether ext is one of the workbook formats.
func IsSpreadsheetExt(ext string) bool {
	switch NormalizeExt(ext) {
	case "xlsx", "xls":
		return true
	}
	return false
}
