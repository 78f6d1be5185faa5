package utils

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"unicode"
)

// SanitizeFilename removes dangerous characters from filenames.
// This prevents:
// - HTTP header injection (quotes, newlines)
// - Path traversal (slashes, backslashes)
// - Control characters that could break logs or displays
func SanitizeFilename(filename string) string {
	if filename == "" {
		return "download"
	}

	// Keep only the base filename
	filename = filepath.Base(filename)

	var sanitized strings.Builder
	sanitized.Grow(len(filename))

	for _, r := range filename {
		// Allow: alphanumeric, spaces, hyphens, underscores, periods
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' || r == '.' {
			sanitized.WriteRune(r)
		} else {
			sanitized.WriteRune('_')
		}
	}

	result := strings.Trim(sanitized.String(), " .")

	// A name reduced to nothing but replacement underscores and
	// separators carries no information, so fall back to a generic one.
	if strings.Trim(result, "._ ") == "" {
		return "download"
	}

	// Filesystem name length limit
	if len(result) > 255 {
		ext := filepath.Ext(result)
		if len(ext) > 0 && len(ext) < 20 {
			basename := result[:len(result)-len(ext)]
			if len(basename) > 255-len(ext) {
				basename = basename[:255-len(ext)]
			}
			result = basename + ext
		} else {
			result = result[:255]
		}
	}

	return result
}

// asciiFallback reduces a filename to printable ASCII for the plain
// filename= parameter; non-ASCII runes become underscores.
func asciiFallback(filename string) string {
	var b strings.Builder
	b.Grow(len(filename))
	for _, r := range filename {
		if r > 0x20 && r < 0x7f && r != '"' && r != '\\' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	s := strings.Trim(b.String(), " .")
	if s == "" {
		return "download"
	}
	return s
}

// ContentDisposition builds an attachment Content-Disposition header
// carrying both the ASCII fallback and the RFC 5987 UTF-8 form, so
// clients that understand filename* get the original name and older
// ones still get something usable.
func ContentDisposition(filename string) string {
	safe := SanitizeFilename(filename)
	ascii := asciiFallback(safe)
	encoded := url.PathEscape(safe)
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, ascii, encoded)
}
