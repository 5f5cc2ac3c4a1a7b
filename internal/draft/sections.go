package draft

import (
	"regexp"
	"strings"
	"unicode"
)

// Section names in document order
var SectionNames = []string{
	"title", "abstract", "field", "background", "summary", "drawings", "description", "claims",
}

var sectionHeadings = map[string]*regexp.Regexp{
	"title":       regexp.MustCompile(`(?i)TITLE OF THE INVENTION\s*\n`),
	"abstract":    regexp.MustCompile(`(?i)ABSTRACT\s*\n`),
	"field":       regexp.MustCompile(`(?i)FIELD OF THE INVENTION\s*\n`),
	"background":  regexp.MustCompile(`(?i)BACKGROUND OF THE INVENTION\s*\n`),
	"summary":     regexp.MustCompile(`(?i)SUMMARY OF THE INVENTION\s*\n`),
	"drawings":    regexp.MustCompile(`(?i)BRIEF DESCRIPTION OF THE DRAWINGS\s*\n`),
	"description": regexp.MustCompile(`(?i)DETAILED DESCRIPTION OF THE INVENTION\s*\n`),
	"claims":      regexp.MustCompile(`(?i)CLAIMS\s*\n`),
}

// ParseSections splits a generated draft by its headings. Every name in
// SectionNames is present in the result; missing sections are empty.
func ParseSections(draft string) map[string]string {
	sections := make(map[string]string, len(SectionNames))
	for _, name := range SectionNames {
		loc := sectionHeadings[name].FindStringIndex(draft)
		if loc == nil {
			sections[name] = ""
			continue
		}
		sections[name] = strings.TrimSpace(sectionBody(draft[loc[1]:]))
	}
	return sections
}

// sectionBody returns text up to the first newline that starts a new
// paragraph or a line beginning with a letter
func sectionBody(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] != '\n' || i+1 >= len(s) {
			continue
		}
		next := rune(s[i+1])
		if next == '\n' || (next < unicode.MaxASCII && unicode.IsLetter(next)) {
			return s[:i]
		}
	}
	return s
}
