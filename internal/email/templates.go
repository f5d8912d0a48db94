package email

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/talendro/talendro-api/internal/models"
)

// Template labels used for metrics and logging
const (
	TemplatePurchaseNew       = "purchase_new"
	TemplatePurchaseUpgrade   = "purchase_upgrade"
	TemplateProWelcome        = "pro_welcome"
	TemplateResults           = "session_results"
	TemplateMagicLink         = "magic_link"
	TemplatePauseReminder     = "pause_reminder"
	TemplateSupportResolution = "support_resolution"
	TemplateAdminEscalation   = "admin_escalation"
)

// layout wraps every mail in the same table-based shell. The MSO conditional
// keeps Outlook from collapsing the fixed-width container.
const layout = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<!--[if mso]>
<style type="text/css">table {border-collapse: collapse;} .container {width: 600px !important;}</style>
<![endif]-->
</head>
<body style="margin:0;padding:0;background-color:#f4f5f7;font-family:Arial,Helvetica,sans-serif;">
<table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="background-color:#f4f5f7;">
<tr><td align="center" style="padding:24px 12px;">
<table role="presentation" class="container" width="600" cellpadding="0" cellspacing="0" style="max-width:600px;width:100%;background-color:#ffffff;border-radius:8px;overflow:hidden;">
<tr><td style="background-color:#1a1f36;padding:20px 32px;">
<span style="color:#ffffff;font-size:20px;font-weight:bold;">Talendro</span>
</td></tr>
<tr><td style="padding:32px;color:#2d3348;font-size:15px;line-height:1.6;">
{{template "body" .}}
</td></tr>
<tr><td style="padding:20px 32px;background-color:#f4f5f7;color:#8a90a5;font-size:12px;">
Talendro Interview Coach &middot; You received this email because of activity on your account.
</td></tr>
</table>
</td></tr>
</table>
</body>
</html>`

const purchaseBody = `{{define "body"}}
<h1 style="font-size:22px;margin:0 0 16px;color:#1a1f36;">{{if .IsUpgrade}}Upgrade confirmed{{else}}You're all set, {{.FirstName}}{{end}}</h1>
<p style="margin:0 0 16px;">Thanks for your purchase. Your <strong>{{.ProductName}}</strong> session is ready whenever you are.</p>
{{if .IsUpgrade}}<p style="margin:0 0 16px;">We applied your earlier purchase as credit, so you only paid the difference.</p>{{end}}
<table role="presentation" cellpadding="0" cellspacing="0" style="margin:0 0 24px;width:100%;background-color:#f4f5f7;border-radius:6px;">
<tr><td style="padding:16px;">
<p style="margin:0 0 4px;font-size:13px;color:#8a90a5;">Amount paid</p>
<p style="margin:0;font-size:18px;font-weight:bold;color:#1a1f36;">{{.AmountPaid}}</p>
</td></tr>
</table>
<p style="margin:0;">
<a href="{{.StartURL}}" style="display:inline-block;background-color:#4f46e5;color:#ffffff;text-decoration:none;padding:12px 24px;border-radius:6px;font-weight:bold;">Start your session</a>
</p>
{{end}}`

const proWelcomeBody = `{{define "body"}}
<h1 style="font-size:22px;margin:0 0 16px;color:#1a1f36;">Welcome to Talendro Pro{{if .FirstName}}, {{.FirstName}}{{end}}</h1>
<p style="margin:0 0 16px;">Your subscription is active. Each month you get <strong>{{.MockLimit}} mock interviews</strong> and <strong>{{.AudioLimit}} voice sessions</strong>, plus unlimited quick prep.</p>
<p style="margin:0;">
<a href="{{.StartURL}}" style="display:inline-block;background-color:#4f46e5;color:#ffffff;text-decoration:none;padding:12px 24px;border-radius:6px;font-weight:bold;">Get started</a>
</p>
{{end}}`

const resultsBody = `{{define "body"}}
<h1 style="font-size:22px;margin:0 0 16px;color:#1a1f36;">Your {{.ProductName}} results{{if .FirstName}}, {{.FirstName}}{{end}}</h1>
{{if .OverallScore}}<p style="margin:0 0 16px;">Overall score: <strong style="font-size:18px;">{{.OverallScore}}/10</strong></p>{{end}}
{{if .Strengths}}
<h2 style="font-size:16px;margin:24px 0 8px;color:#1a1f36;">What went well</h2>
<ul style="margin:0 0 16px;padding-left:20px;">{{range .Strengths}}<li style="margin:0 0 6px;">{{.}}</li>{{end}}</ul>
{{end}}
{{if .Improvements}}
<h2 style="font-size:16px;margin:24px 0 8px;color:#1a1f36;">Where to improve</h2>
<ul style="margin:0 0 16px;padding-left:20px;">{{range .Improvements}}<li style="margin:0 0 6px;">{{.}}</li>{{end}}</ul>
{{end}}
{{if .Recommendation}}
<h2 style="font-size:16px;margin:24px 0 8px;color:#1a1f36;">Coach's recommendation</h2>
<p style="margin:0 0 16px;">{{.Recommendation}}</p>
{{end}}
{{if .Transcript}}
<h2 style="font-size:16px;margin:24px 0 8px;color:#1a1f36;">Interview transcript</h2>
{{range .Transcript}}
<p style="margin:0 0 4px;"><strong>Q:</strong> {{.Question}}</p>
<p style="margin:0 0 16px;color:#4a5068;"><strong>A:</strong> {{.Answer}}</p>
{{end}}
{{end}}
{{if .PrepContent}}
<h2 style="font-size:16px;margin:24px 0 8px;color:#1a1f36;">Your prep material</h2>
<div style="margin:0 0 16px;">{{.PrepContent}}</div>
{{end}}
{{end}}`

const magicLinkBody = `{{define "body"}}
<h1 style="font-size:22px;margin:0 0 16px;color:#1a1f36;">Sign in to Talendro</h1>
<p style="margin:0 0 16px;">Click the button below to sign in. The link works once and expires in {{.ExpiresMinutes}} minutes.</p>
<p style="margin:0 0 24px;">
<a href="{{.LoginURL}}" style="display:inline-block;background-color:#4f46e5;color:#ffffff;text-decoration:none;padding:12px 24px;border-radius:6px;font-weight:bold;">Sign in</a>
</p>
<p style="margin:0;color:#8a90a5;font-size:13px;">If you didn't request this, you can safely ignore this email.</p>
{{end}}`

const pauseReminderBody = `{{define "body"}}
<h1 style="font-size:22px;margin:0 0 16px;color:#1a1f36;">Your interview is waiting{{if .FirstName}}, {{.FirstName}}{{end}}</h1>
<p style="margin:0 0 16px;">You paused your <strong>{{.ProductName}}</strong> session. Paused sessions expire after 24 hours, so pick up where you left off before {{.ExpiresAt}}.</p>
<p style="margin:0;">
<a href="{{.ResumeURL}}" style="display:inline-block;background-color:#4f46e5;color:#ffffff;text-decoration:none;padding:12px 24px;border-radius:6px;font-weight:bold;">Resume session</a>
</p>
{{end}}`

const supportResolutionBody = `{{define "body"}}
<h1 style="font-size:22px;margin:0 0 16px;color:#1a1f36;">We saw something go wrong</h1>
<p style="margin:0 0 16px;">Something didn't work as expected during your session, and we wanted to follow up right away.</p>
<div style="background-color:#f4f5f7;border-radius:6px;padding:16px;margin:0 0 16px;">{{.Resolution}}</div>
<p style="margin:0;color:#8a90a5;font-size:13px;">Our team has the full details and will reach out if anything else is needed. Reply to this email any time.</p>
{{end}}`

const adminEscalationBody = `{{define "body"}}
<h1 style="font-size:22px;margin:0 0 16px;color:#1a1f36;">Escalated user error</h1>
<p style="margin:0 0 8px;"><strong>Type:</strong> {{.ErrorType}}</p>
<p style="margin:0 0 8px;"><strong>Code:</strong> {{.ErrorCode}}</p>
<p style="margin:0 0 8px;"><strong>User:</strong> {{.UserEmail}}</p>
{{if .SessionID}}<p style="margin:0 0 8px;"><strong>Session:</strong> {{.SessionID}}</p>{{end}}
<p style="margin:16px 0 8px;"><strong>Message:</strong></p>
<div style="background-color:#f4f5f7;border-radius:6px;padding:12px;font-family:monospace;font-size:13px;">{{.ErrorMessage}}</div>
{{if .AIResolution}}
<p style="margin:16px 0 8px;"><strong>Automated resolution sent to the user:</strong></p>
<div style="background-color:#f4f5f7;border-radius:6px;padding:12px;font-size:13px;">{{.AIResolution}}</div>
{{end}}
{{end}}`

var templates = map[string]*template.Template{
	TemplatePurchaseNew:       template.Must(template.Must(template.New("purchase").Parse(layout)).Parse(purchaseBody)),
	TemplateProWelcome:        template.Must(template.Must(template.New("pro").Parse(layout)).Parse(proWelcomeBody)),
	TemplateResults:           template.Must(template.Must(template.New("results").Parse(layout)).Parse(resultsBody)),
	TemplateMagicLink:         template.Must(template.Must(template.New("magic").Parse(layout)).Parse(magicLinkBody)),
	TemplatePauseReminder:     template.Must(template.Must(template.New("pause").Parse(layout)).Parse(pauseReminderBody)),
	TemplateSupportResolution: template.Must(template.Must(template.New("support").Parse(layout)).Parse(supportResolutionBody)),
	TemplateAdminEscalation:   template.Must(template.Must(template.New("escalation").Parse(layout)).Parse(adminEscalationBody)),
}

func render(name string, data any) (string, error) {
	tmpl, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("unknown email template %q", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s email: %w", name, err)
	}
	return buf.String(), nil
}

// PurchaseData fills the purchase confirmation email
type PurchaseData struct {
	FirstName   string
	ProductName string
	AmountPaid  string
	IsUpgrade   bool
	StartURL    string
}

// RenderPurchase builds the purchase confirmation HTML. The upgrade variant
// shares the template; only the copy changes.
func RenderPurchase(data PurchaseData) (string, error) {
	return render(TemplatePurchaseNew, data)
}

// ProWelcomeData fills the Pro subscription welcome email
type ProWelcomeData struct {
	FirstName  string
	MockLimit  int
	AudioLimit int
	StartURL   string
}

// RenderProWelcome builds the Pro welcome HTML
func RenderProWelcome(data ProWelcomeData) (string, error) {
	return render(TemplateProWelcome, data)
}

// ResultsData fills the results report email. It carries the exact same
// report fields shown on screen so both renditions stay in lockstep.
type ResultsData struct {
	FirstName      string
	ProductName    string
	OverallScore   *int
	Strengths      []string
	Improvements   []string
	Recommendation string
	Transcript     []models.TranscriptEntry
	PrepContent    template.HTML
}

// RenderResults builds the session results HTML
func RenderResults(data ResultsData) (string, error) {
	return render(TemplateResults, data)
}

// MagicLinkData fills the sign-in email
type MagicLinkData struct {
	LoginURL       string
	ExpiresMinutes int
}

// RenderMagicLink builds the magic-link HTML
func RenderMagicLink(data MagicLinkData) (string, error) {
	return render(TemplateMagicLink, data)
}

// PauseReminderData fills the paused-session reminder email
type PauseReminderData struct {
	FirstName   string
	ProductName string
	ExpiresAt   string
	ResumeURL   string
}

// RenderPauseReminder builds the pause reminder HTML
func RenderPauseReminder(data PauseReminderData) (string, error) {
	return render(TemplatePauseReminder, data)
}

// SupportResolutionData fills the follow-up email sent when a reported
// error has an automated resolution
type SupportResolutionData struct {
	Resolution string
}

// RenderSupportResolution builds the user-facing resolution HTML
func RenderSupportResolution(data SupportResolutionData) (string, error) {
	return render(TemplateSupportResolution, data)
}

// EscalationData fills the admin escalation email
type EscalationData struct {
	ErrorType    string
	ErrorCode    string
	ErrorMessage string
	UserEmail    string
	SessionID    string
	AIResolution string
}

// RenderEscalation builds the admin escalation HTML
func RenderEscalation(data EscalationData) (string, error) {
	return render(TemplateAdminEscalation, data)
}

// FormatAmount renders cents as a dollar string for email copy
func FormatAmount(cents int64) string {
	return fmt.Sprintf("$%.2f", float64(cents)/100)
}

// FormatExpiry renders a pause deadline for email copy
func FormatExpiry(t time.Time) string {
	return t.UTC().Format("Jan 2, 2006 at 3:04 PM MST")
}
