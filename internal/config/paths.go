package config

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizePath turns a user-entered directory into the form scope matching
// expects: forward slashes, no leading or trailing slash, no doubled
// separators, NFC. "Journaling/" and "/Journaling" both become "Journaling".
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	p = strings.Trim(p, "/")
	return norm.NFC.String(p)
}

// DocumentPath converts a file path relative to the vault into the path used
// for scope decisions
func DocumentPath(rel string) string {
	rel = strings.ReplaceAll(rel, "\\", "/")
	rel = strings.TrimPrefix(rel, "./")
	return norm.NFC.String(rel)
}
