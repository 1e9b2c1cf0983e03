package i18n_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"accountforge/internal/i18n"
)

func TestNormalizeLocale(t *testing.T) {
	tests := map[string]string{
		"":                   "en",
		"de-DE,de;q=0.9":     "de",
		"fr-FR, de;q=0.8":    "de",
		"fr, es":             "en",
		"  EN-us ":           "en",
		"de;q=0.5, en;q=0.9": "en",
		"en;q=0, de;q=0.1":   "de",
		",,;":                "en",
	}
	for header, want := range tests {
		assert.Equal(t, want, i18n.NormalizeLocale(header), header)
	}
}

func TestLocaleFromRequest(t *testing.T) {
	assert.Equal(t, "en", i18n.LocaleFromRequest(nil))

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Accept-Language", "de")
	assert.Equal(t, "de", i18n.LocaleFromRequest(r))
}

func TestPreferredFallsBackToProfile(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	assert.Equal(t, "de", i18n.Preferred(r, "de-DE"))
	assert.Equal(t, "en", i18n.Preferred(r, "en-US"))
	assert.Equal(t, "en", i18n.Preferred(nil, ""))

	r.Header.Set("Accept-Language", "en-GB")
	assert.Equal(t, "en", i18n.Preferred(r, "de-DE"))

	r.Header.Set("Accept-Language", "fr")
	assert.Equal(t, "de", i18n.Preferred(r, "de"))
}

func TestVerificationEmail(t *testing.T) {
	link := "http://localhost:3000/verify-email?token=abc&x=1"
	c := i18n.VerificationEmail("en", "Ada <admin>", link, 24)

	assert.Equal(t, "Verify Your Email - AccountForge", c.Subject)
	assert.Contains(t, c.Text, "Hello Ada <admin>,")
	assert.Contains(t, c.Text, link)
	assert.Contains(t, c.Text, "24 hours")
	assert.Contains(t, c.HTML, "Ada &lt;admin&gt;")
	assert.Contains(t, c.HTML, "token=abc&amp;x=1")
	assert.NotContains(t, c.HTML, "{")
}

func TestPasswordResetEmailLocalized(t *testing.T) {
	c := i18n.PasswordResetEmail("de-DE", "Bea", "http://x/reset-password?token=t", 1)
	assert.Equal(t, "Passwort zurücksetzen - AccountForge", c.Subject)
	assert.Contains(t, c.Text, "1 Stunde(n)")

	fallback := i18n.PasswordResetEmail("ja", "Bea", "http://x", 1)
	assert.Equal(t, "Reset Your Password - AccountForge", fallback.Subject)
}
