package planning

import (
	"strconv"
	"strings"
)

var allowedLanguages = map[string]struct{}{
	"en": {}, "es": {}, "zh": {}, "hi": {}, "ar": {}, "ro": {},
}

// UserLanguage returns the profile's language code when it is supported, else "".
func UserLanguage(p *Profile) string {
	if p == nil {
		return ""
	}
	code := strings.ToLower(strings.TrimSpace(p.LanguageCode))
	if _, ok := allowedLanguages[code]; !ok {
		return ""
	}
	return code
}

// UserContext renders a short profile line for prompts, e.g. "age: 29, language: es".
// It returns "" when the profile carries nothing useful.
func UserContext(p *Profile) string {
	if p == nil {
		return ""
	}
	var parts []string
	if p.Age != nil {
		parts = append(parts, "age: "+strconv.Itoa(*p.Age))
	}
	if code := strings.ToLower(strings.TrimSpace(p.LanguageCode)); code != "" {
		parts = append(parts, "language: "+code)
	}
	return strings.Join(parts, ", ")
}
