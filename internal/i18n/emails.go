package i18n

import (
	"html"
	"strconv"
	"strings"
)

type EmailContent struct {
	Subject string
	Text    string
	HTML    string
}

type emailStrings struct {
	VerificationSubject string
	VerificationText    string
	VerificationHTML    string

	PasswordResetSubject string
	PasswordResetText    string
	PasswordResetHTML    string
}

var emailTranslations = map[string]emailStrings{
	"en": {
		VerificationSubject: "Verify Your Email - AccountForge",
		VerificationText: "Hello {name},\n\nWelcome to AccountForge! Please verify your email address:\n{link}\n\n" +
			"This link will expire in {hours} hours.\nIf you didn't create an account, please ignore this email.",
		VerificationHTML: "<h2>Welcome to AccountForge!</h2>" +
			"<p>Hello {name},</p>" +
			"<p>Please verify your email address by clicking the button below:</p>" +
			"<p><a href=\"{link}\">Verify Email Address</a></p>" +
			"<p>Or copy and paste this link in your browser:</p>" +
			"<p>{link}</p>" +
			"<p>This link will expire in {hours} hours.</p>" +
			"<p>If you didn't create an account, please ignore this email.</p>",

		PasswordResetSubject: "Reset Your Password - AccountForge",
		PasswordResetText: "Hello {name},\n\nWe received a request to reset your password:\n{link}\n\n" +
			"This link will expire in {hours} hour(s).\nIf you didn't request a password reset, please ignore this email.",
		PasswordResetHTML: "<h2>Password Reset Request</h2>" +
			"<p>Hello {name},</p>" +
			"<p>We received a request to reset your password. Click the button below to create a new password:</p>" +
			"<p><a href=\"{link}\">Reset Password</a></p>" +
			"<p>Or copy and paste this link in your browser:</p>" +
			"<p>{link}</p>" +
			"<p>This link will expire in {hours} hour(s).</p>" +
			"<p>If you didn't request a password reset, please ignore this email.</p>",
	},
	"de": {
		VerificationSubject: "E-Mail verifizieren - AccountForge",
		VerificationText: "Hallo {name},\n\nwillkommen bei AccountForge! Bitte bestätigen Sie Ihre E-Mail-Adresse:\n{link}\n\n" +
			"Der Link ist {hours} Stunden gültig.\nWenn Sie kein Konto erstellt haben, ignorieren Sie diese E-Mail.",
		VerificationHTML: "<h2>Willkommen bei AccountForge!</h2>" +
			"<p>Hallo {name},</p>" +
			"<p>Bitte bestätigen Sie Ihre E-Mail-Adresse über den folgenden Button:</p>" +
			"<p><a href=\"{link}\">E-Mail-Adresse bestätigen</a></p>" +
			"<p>Oder kopieren Sie diesen Link in Ihren Browser:</p>" +
			"<p>{link}</p>" +
			"<p>Der Link ist {hours} Stunden gültig.</p>" +
			"<p>Wenn Sie kein Konto erstellt haben, ignorieren Sie diese E-Mail.</p>",

		PasswordResetSubject: "Passwort zurücksetzen - AccountForge",
		PasswordResetText: "Hallo {name},\n\nwir haben eine Anfrage zum Zurücksetzen Ihres Passworts erhalten:\n{link}\n\n" +
			"Der Link ist {hours} Stunde(n) gültig.\nWenn Sie dies nicht angefordert haben, ignorieren Sie diese E-Mail.",
		PasswordResetHTML: "<h2>Passwort zurücksetzen</h2>" +
			"<p>Hallo {name},</p>" +
			"<p>Wir haben eine Anfrage zum Zurücksetzen Ihres Passworts erhalten. Klicken Sie auf den Button, um ein neues Passwort festzulegen:</p>" +
			"<p><a href=\"{link}\">Passwort zurücksetzen</a></p>" +
			"<p>Oder kopieren Sie diesen Link in Ihren Browser:</p>" +
			"<p>{link}</p>" +
			"<p>Der Link ist {hours} Stunde(n) gültig.</p>" +
			"<p>Wenn Sie dies nicht angefordert haben, ignorieren Sie diese E-Mail.</p>",
	},
}

func emailStringsForLocale(locale string) emailStrings {
	key := NormalizeLocale(locale)
	if val, ok := emailTranslations[key]; ok {
		return val
	}
	return emailTranslations[DefaultLocale]
}

func renderTemplate(tmpl string, values map[string]string) string {
	if tmpl == "" || len(values) == 0 {
		return tmpl
	}

	replacements := make([]string, 0, len(values)*2)
	for key, value := range values {
		replacements = append(replacements, "{"+key+"}", value)
	}
	return strings.NewReplacer(replacements...).Replace(tmpl)
}

func render(subject, text, htmlTmpl, name, link string, hours int) EmailContent {
	plain := map[string]string{
		"name":  name,
		"link":  link,
		"hours": strconv.Itoa(hours),
	}
	escaped := map[string]string{
		"name":  html.EscapeString(name),
		"link":  html.EscapeString(link),
		"hours": strconv.Itoa(hours),
	}
	return EmailContent{
		Subject: subject,
		Text:    renderTemplate(text, plain),
		HTML:    renderTemplate(htmlTmpl, escaped),
	}
}

func VerificationEmail(locale, name, link string, hours int) EmailContent {
	t := emailStringsForLocale(locale)
	return render(t.VerificationSubject, t.VerificationText, t.VerificationHTML, name, link, hours)
}

func PasswordResetEmail(locale, name, link string, hours int) EmailContent {
	t := emailStringsForLocale(locale)
	return render(t.PasswordResetSubject, t.PasswordResetText, t.PasswordResetHTML, name, link, hours)
}
