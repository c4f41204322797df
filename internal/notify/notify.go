// Package notify implements the regression notification sink from spec
// §4.L: on a Regression outcome, render the judge's report as Markdown and
// email it as HTML. Grounded directly on the teacher's
// internal/notification.EmailNotifier (smtp.PlainAuth + smtp.SendMail) and
// internal/alerter.Alerter's markdown-to-HTML conversion before sending.
package notify

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/gomarkdown/markdown"

	"netbench/internal/config"
	"netbench/internal/regression"
)

// EmailNotifier sends a regression report by email.
type EmailNotifier struct {
	cfg  config.SMTPConfig
	auth smtp.Auth
}

// NewEmailNotifier builds a notifier from the SMTP config block; nil when
// no host is configured, per the teacher's "simple check" gate in
// manager.go ("if cfg.SMTP.Host != \"\"").
func NewEmailNotifier(cfg config.SMTPConfig) *EmailNotifier {
	if cfg.Host == "" {
		return nil
	}
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	return &EmailNotifier{cfg: cfg, auth: auth}
}

// NotifyRegression renders report as Markdown and sends it as an HTML
// email. No-op when n is nil, so callers don't need to guard every call
// site.
func (n *EmailNotifier) NotifyRegression(runID string, report regression.Report) error {
	if n == nil {
		return nil
	}

	body := markdown.ToHTML([]byte(renderMarkdown(runID, report)), nil, nil)
	subject := fmt.Sprintf("netbench regression detected (run %s)", runID)
	return n.send(subject, string(body))
}

func (n *EmailNotifier) send(subject, htmlBody string) error {
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	msg := []byte("To: " + strings.Join(n.cfg.To, ",") + "\r\n" +
		"From: " + n.cfg.From + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"\r\n" +
		htmlBody)

	if err := smtp.SendMail(addr, n.auth, n.cfg.From, n.cfg.To, msg); err != nil {
		return fmt.Errorf("notify: send email: %w", err)
	}
	return nil
}

// renderMarkdown formats a regression.Report as a Markdown document: a
// summary line per metric, then the full metadata compatibility table.
func renderMarkdown(runID string, report regression.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# netbench regression report\n\n")
	fmt.Fprintf(&b, "Run ID: `%s`\n\n", runID)
	fmt.Fprintf(&b, "Outcome: **%s**\n\n", report.Outcome)

	if report.Warning != "" {
		fmt.Fprintf(&b, "> %s\n\n", report.Warning)
	}

	if len(report.MetricVerdicts) > 0 {
		b.WriteString("## Metrics\n\n")
		b.WriteString("| Metric | Regressed runs | Gate | Verdict |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, v := range report.MetricVerdicts {
			verdict := "ok"
			if v.Regressed {
				verdict = "REGRESSED"
			}
			fmt.Fprintf(&b, "| %s | %d/%d | %d | %s |\n", v.Metric, v.RegressedRuns, v.TotalRuns, v.PersistenceGate, verdict)
		}
		b.WriteString("\n")
	}

	if len(report.FieldStatuses) > 0 {
		b.WriteString("## Metadata compatibility\n\n")
		b.WriteString("| Field | Must-match | Baseline | Current | Status |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, s := range report.FieldStatuses {
			status := "OK"
			if !s.Matched {
				status = "MISMATCH"
			}
			fmt.Fprintf(&b, "| %s | %v | %s | %s | %s |\n", s.Field, s.MustMatch, s.Baseline, s.Current, status)
		}
	}

	return b.String()
}
