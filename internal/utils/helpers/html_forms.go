package helpers

import (
	"fmt"
	"html"
	"time"
)

// TemplateKind — вид транзакционного письма.
type TemplateKind string

const TemplatePasswordReset TemplateKind = "password_reset"

// EmailContent — готовое письмо: тема, plain-text и HTML версии.
type EmailContent struct {
	Subject string
	Text    string
	HTML    string
}

// EmailParams — параметры шаблона. Для сброса пароля нужны только Link и TTL.
type EmailParams struct {
	Link string
	TTL  time.Duration
}

func Compose(kind TemplateKind, p EmailParams) (EmailContent, error) {
	switch kind {
	case TemplatePasswordReset:
		return BuildPasswordResetEmail(p.Link, p.TTL), nil
	default:
		return EmailContent{}, fmt.Errorf("unknown email template %q", kind)
	}
}

// BuildPasswordResetEmail — ссылка попадает в текст и в href без изменений.
func BuildPasswordResetEmail(resetLink string, ttl time.Duration) EmailContent {
	validity := HumanDuration(ttl)

	text := fmt.Sprintf(`Reset your password

We received a request to reset the password for your account.
Open the link below to choose a new password:

%s

This link is valid for %s and can be used only once.
If you did not request a password reset, you can ignore this email.
`, resetLink, validity)

	return EmailContent{
		Subject: "Reset your password",
		Text:    text,
		HTML:    BuildPasswordResetHTML(resetLink, validity),
	}
}

func BuildPasswordResetHTML(resetLink, validity string) string {
	link := html.EscapeString(resetLink)
	return fmt.Sprintf(`
<html>
  <body style="font-family:Arial,sans-serif; background:#f9f9f9;">
    <table width="100%%" cellpadding="0" cellspacing="0" bgcolor="#f9f9f9">
      <tr>
        <td align="center" style="padding:32px 0;">
          <table width="500" bgcolor="#fff" cellpadding="24" cellspacing="0" style="border-radius:8px; box-shadow:0 1px 6px #eee;">
            <tr>
              <td>
                <h2 style="color:#2d74da; margin-top:0;">Reset your password</h2>
                <p style="font-size:16px; color:#222;">We received a request to reset the password for your account.</p>
                <p>Open the link below to choose a new password:</p>
                <p><a href="%s" style="color:#2d74da; word-break:break-all;">%s</a></p>
                <p style="font-size:14px; color:#666;">This link is valid for %s and can be used only once.</p>
                <hr style="margin:32px 0 16px 0; border:0; border-top:1px solid #eee;">
                <div style="font-size:12px; color:#999;">If you did not request a password reset, you can ignore this email.</div>
              </td>
            </tr>
          </table>
        </td>
      </tr>
    </table>
  </body>
</html>
`, link, link, validity)
}

// HumanDuration: 1h -> "1 hour", 90m -> "90 minutes".
func HumanDuration(d time.Duration) string {
	switch {
	case d%time.Hour == 0:
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	case d%time.Minute == 0:
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	default:
		return d.String()
	}
}
