package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"davetjet-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInvitation() *domain.Invitation {
	return &domain.Invitation{
		Slug:           "dugun-2026",
		Name:           "Ayşe & Mehmet Düğünü",
		Message:        "Sizi aramızda görmekten\nmutluluk duyarız.",
		Location:       "Çırağan Sarayı",
		Template:       "classic",
		InvitationDate: time.Date(2026, 9, 12, 19, 30, 0, 0, time.UTC),
	}
}

func writeTemplate(t *testing.T, dir string) {
	t.Helper()
	asset := `<div contenteditable="true"><h1>{{event-title}}</h1>
<p>{{event-date}} {{event-time}}</p>
<p>{{event-location}}</p>
<p>{{event-message}}</p>
<span>{{inv-slug}}</span></div>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "classic.html"), []byte(asset), 0o644))
}

func TestEmail_ContainsFieldsAndCTA(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir)
	r := &Renderer{TemplateDir: dir}
	inv := testInvitation()

	html := r.Email(inv, "https://davetjet.com/i/dugun-2026/a/tok/")

	assert.Contains(t, html, "Ayşe &amp; Mehmet Düğünü")
	assert.Contains(t, html, "12.09.2026")
	assert.Contains(t, html, "19:30")
	assert.Contains(t, html, "Çırağan Sarayı")
	assert.Contains(t, html, "mutluluk duyarız.")
	assert.Contains(t, html, "<br>")
	assert.Contains(t, html, `href="https://davetjet.com/i/dugun-2026/a/tok/"`)
	assert.Contains(t, html, "Davetiyeyi açın")
}

func TestEmail_StripsContentEditable(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir)
	r := &Renderer{TemplateDir: dir}

	html := r.Email(testInvitation(), "")
	assert.NotContains(t, html, "contenteditable")
}

func TestEmail_MissingTemplateFallsBack(t *testing.T) {
	r := &Renderer{TemplateDir: t.TempDir()}
	inv := testInvitation()
	inv.Template = "nonexistent"

	html := r.Email(inv, "https://davetjet.com/i/dugun-2026/a/tok/")

	// Fallback still carries the essential fields, never an error.
	assert.Contains(t, html, "Ayşe &amp; Mehmet Düğünü")
	assert.Contains(t, html, "12.09.2026")
}

func TestEmail_NoCTAWithoutLink(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir)
	r := &Renderer{TemplateDir: dir}

	html := r.Email(testInvitation(), "")
	assert.NotContains(t, html, "Davetiyeyi açın")
}

func TestReminderEmail_HasHeading(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir)
	r := &Renderer{TemplateDir: dir}

	html := r.ReminderEmail(testInvitation(), "https://x.test/l")
	assert.Contains(t, html, "Etkinlik Hatırlatması: Ayşe &amp; Mehmet Düğünü")
}

func TestSubjects(t *testing.T) {
	r := &Renderer{}
	inv := testInvitation()
	assert.Equal(t, "Ayşe & Mehmet Düğünü Davetiyesi", r.EmailSubject(inv))
	assert.Equal(t, "Hatırlatma: Ayşe & Mehmet Düğünü", r.ReminderSubject(inv))
}

func TestSMS_Fields(t *testing.T) {
	r := &Renderer{}
	text := r.SMS(testInvitation(), "https://davetjet.com/i/dugun-2026/a/tok/")

	lines := strings.Split(text, "\n")
	assert.Equal(t, "Ayşe & Mehmet Düğünü", lines[0])
	assert.Contains(t, text, "Tarih: 12.09.2026  Saat: 19:30")
	assert.Contains(t, text, "Mekan: Çırağan Sarayı")
	assert.Contains(t, text, "Bağlantı: https://davetjet.com/i/dugun-2026/a/tok/")
}

func TestSMS_Truncation(t *testing.T) {
	r := &Renderer{}
	inv := testInvitation()
	inv.Message = strings.Repeat("çok uzun mesaj ", 200)

	text := r.SMS(inv, "")
	assert.LessOrEqual(t, len([]rune(text)), 918)
}

func TestSMS_SkipsEmptyFields(t *testing.T) {
	r := &Renderer{}
	inv := testInvitation()
	inv.Location = ""
	inv.Message = ""

	text := r.SMS(inv, "")
	assert.NotContains(t, text, "Mekan:")
	assert.Equal(t, 2, len(strings.Split(text, "\n")))
}

func TestRenderingIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir)
	r := &Renderer{TemplateDir: dir}
	inv := testInvitation()
	link := "https://x.test/l"

	assert.Equal(t, r.Email(inv, link), r.Email(inv, link))
	assert.Equal(t, r.SMS(inv, link), r.SMS(inv, link))
}
