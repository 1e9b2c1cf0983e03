package i18n

import (
	"net/http"
	"strconv"
	"strings"
)

const DefaultLocale = "en"

var supportedLocales = map[string]struct{}{
	"en": {},
	"de": {},
}

func LocaleFromRequest(r *http.Request) string {
	if r == nil {
		return DefaultLocale
	}
	return NormalizeLocale(r.Header.Get("Accept-Language"))
}

// Preferred picks the Accept-Language match when the header names a supported
// language and falls back to the stored profile locale (e.g. "de-DE").
func Preferred(r *http.Request, profileLocale string) string {
	if r != nil {
		if lang, ok := bestMatch(r.Header.Get("Accept-Language")); ok {
			return lang
		}
	}
	return NormalizeLocale(profileLocale)
}

// NormalizeLocale reduces an Accept-Language header or a single tag to a
// supported base language, honouring q weights.
func NormalizeLocale(header string) string {
	if lang, ok := bestMatch(header); ok {
		return lang
	}
	return DefaultLocale
}

func bestMatch(header string) (string, bool) {
	best, bestQ := "", 0.0
	for _, part := range strings.Split(header, ",") {
		lang, q := parseLanguageRange(part)
		if lang == "" || q <= bestQ {
			continue
		}
		if _, ok := supportedLocales[lang]; ok {
			best, bestQ = lang, q
		}
	}
	return best, best != ""
}

func parseLanguageRange(part string) (string, float64) {
	lang, params, _ := strings.Cut(part, ";")
	lang = strings.ToLower(strings.TrimSpace(lang))
	if base, _, found := strings.Cut(lang, "-"); found {
		lang = base
	}
	if lang == "" {
		return "", 0
	}

	q := 1.0
	for _, p := range strings.Split(params, ";") {
		key, val, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || strings.TrimSpace(key) != "q" {
			continue
		}
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			q = parsed
		}
	}
	return lang, q
}
