// Package render produces channel-specific message bodies from an
// invitation. Rendering is pure: it reads invitation fields and the
// template asset only, and never fails the dispatch path — a missing
// template asset degrades to an inline fallback notice.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"davetjet-backend/internal/domain"

	"github.com/rs/zerolog/log"
)

// Brand greens used across outbound emails.
const (
	themePrimary     = "#2b8556"
	themePrimaryDark = "#1f6f46"
)

// smsMaxLen bounds multi-part SMS cost (~6 concatenated parts).
const smsMaxLen = 918

const dateLayout = "02.01.2006"
const timeLayout = "15:04"

var contentEditableRe = regexp.MustCompile(`\s+contenteditable(="[^"]*")?`)

type Renderer struct {
	// TemplateDir holds the invitation template assets
	// (<TemplateDir>/<template>.html).
	TemplateDir string
}

// EmailSubject is the subject line for the initial invitation send.
func (r *Renderer) EmailSubject(inv *domain.Invitation) string {
	return fmt.Sprintf("%s Davetiyesi", inv.Name)
}

// ReminderSubject is the subject line for reminder sends.
func (r *Renderer) ReminderSubject(inv *domain.Invitation) string {
	return fmt.Sprintf("Hatırlatma: %s", inv.Name)
}

// Email renders the HTML email body: optional owner message, CTA to the
// secure invitation URL, and the template asset preview with editing
// markers stripped.
func (r *Renderer) Email(inv *domain.Invitation, link string) string {
	var b strings.Builder
	b.WriteString(`<div style="max-width:680px;margin:0 auto;padding:20px;background:#ffffff;">`)

	if msg := strings.TrimSpace(inv.Message); msg != "" {
		b.WriteString(`<div style="margin-bottom:12px;line-height:1.6;color:#1F2937;">`)
		b.WriteString(formatMessageHTML(msg))
		b.WriteString(`</div>`)
	}

	if link != "" {
		fmt.Fprintf(&b, `
          <div style="margin:16px 0 8px;">
            <a href="%s"
               style="display:inline-block;padding:12px 18px;border-radius:10px;
                      background:%s;color:#ffffff;text-decoration:none;
                      font-weight:700;font-family:Inter,Segoe UI,Arial,sans-serif;"
               target="_blank" rel="noopener">
              Davetiyeyi açın
            </a>
          </div>
          <div style="font-size:12px;color:#667085;margin-bottom:20px;">
            Link çalışmazsa butona tekrar tıklayın.
          </div>`, link, themePrimary)
	}

	b.WriteString(`<hr style="border:none;border-top:1px solid #eee;margin:20px 0;" />`)
	b.WriteString(`<div style="border-radius:12px;overflow:hidden;border:1px solid #eee;">`)
	b.WriteString(r.preview(inv))
	b.WriteString(`</div>`)

	if link != "" {
		fmt.Fprintf(&b,
			`<div style="text-align:center;margin-top:18px;"><a href="%s" target="_blank" rel="noopener" style="color:%s;text-decoration:underline;font-weight:600;">Davetiyeyi yeni sekmede aç</a></div>`,
			link, themePrimaryDark)
	}

	b.WriteString(`</div>`)
	return b.String()
}

// ReminderEmail prefixes the invitation body with a reminder heading.
func (r *Renderer) ReminderEmail(inv *domain.Invitation, link string) string {
	top := fmt.Sprintf(`
      <h2 style="margin:0 0 12px 0;color:#0f172a;font-family:Inter,Segoe UI,Arial,sans-serif;">
        Etkinlik Hatırlatması: %s
      </h2>
      <p style="margin:0 0 12px 0;color:#334155;">
        Etkinlik yaklaşıyor, detayları aşağıda bulabilirsiniz.
      </p>`, escapeHTML(inv.Name))
	return top + r.Email(inv, link)
}

// SMS renders the plain-text body: name, date/time, location, message and
// link newline-joined, hard-truncated to a gateway-safe length.
func (r *Renderer) SMS(inv *domain.Invitation, link string) string {
	var lines []string

	if name := strings.TrimSpace(inv.Name); name != "" {
		lines = append(lines, name)
	}
	if !inv.InvitationDate.IsZero() {
		lines = append(lines, fmt.Sprintf("Tarih: %s  Saat: %s",
			inv.InvitationDate.Format(dateLayout), inv.InvitationDate.Format(timeLayout)))
	}
	if loc := strings.TrimSpace(inv.Location); loc != "" {
		lines = append(lines, fmt.Sprintf("Mekan: %s", loc))
	}
	if msg := strings.TrimSpace(inv.Message); msg != "" {
		lines = append(lines, msg)
	}
	if link != "" {
		lines = append(lines, fmt.Sprintf("Bağlantı: %s", link))
	}

	text := strings.TrimSpace(strings.Join(lines, "\n"))
	runes := []rune(text)
	if len(runes) > smsMaxLen {
		return string(runes[:smsMaxLen])
	}
	return text
}

// preview loads the template asset and fills the event fields in. A
// missing asset renders a minimal notice instead of failing the send.
func (r *Renderer) preview(inv *domain.Invitation) string {
	path := filepath.Join(r.TemplateDir, inv.Template+".html")
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Str("template", inv.Template).Str("invitation", inv.Slug).Msg("Template asset missing, using fallback")
		return r.fallback(inv)
	}

	html := string(raw)
	html = contentEditableRe.ReplaceAllString(html, "")

	replacements := map[string]string{
		"{{event-title}}":    escapeHTML(inv.Name),
		"{{event-date}}":     inv.InvitationDate.Format(dateLayout),
		"{{event-time}}":     inv.InvitationDate.Format(timeLayout),
		"{{event-message}}":  formatMessageHTML(inv.Message),
		"{{event-location}}": escapeHTML(inv.Location),
		"{{inv-slug}}":       escapeHTML(inv.Slug),
	}
	for marker, val := range replacements {
		html = strings.ReplaceAll(html, marker, val)
	}
	return html
}

func (r *Renderer) fallback(inv *domain.Invitation) string {
	return fmt.Sprintf(`
      <div style="padding:24px;text-align:center;font-family:Inter,Segoe UI,Arial,sans-serif;">
        <h2 style="margin:0 0 8px 0;color:#0f172a;">%s</h2>
        <p style="margin:0;color:#334155;">Tarih: %s  Saat: %s</p>
        %s
      </div>`,
		escapeHTML(inv.Name),
		inv.InvitationDate.Format(dateLayout),
		inv.InvitationDate.Format(timeLayout),
		locationLine(inv.Location))
}

func locationLine(loc string) string {
	loc = strings.TrimSpace(loc)
	if loc == "" {
		return ""
	}
	return fmt.Sprintf(`<p style="margin:4px 0 0 0;color:#334155;">Mekan: %s</p>`, escapeHTML(loc))
}

// formatMessageHTML escapes the free-text message and keeps line breaks.
func formatMessageHTML(text string) string {
	if text == "" {
		return ""
	}
	return strings.ReplaceAll(escapeHTML(strings.TrimSpace(text)), "\n", "<br>")
}

func escapeHTML(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(s)
}
