// internal/tui/views.go
//
// Render helpers for the data panels: job list items, the detail screen,
// transactions, and work history.

package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/trustwork/trustwork/internal/lifecycle"
)

var amountPrinter = message.NewPrinter(language.English)

// formatAmount renders a decimal-string amount with digit grouping, e.g.
// "KES 12,500.00". Unparseable amounts pass through untouched.
func formatAmount(currency, amount string) string {
	if currency == "" {
		currency = "KES"
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(amount), 64)
	if err != nil {
		return currency + " " + amount
	}
	return amountPrinter.Sprintf("%s %.2f", currency, v)
}

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	titleStyle = lipgloss.NewStyle().Bold(true)

	statusColors = map[lifecycle.Status]lipgloss.Style{
		lifecycle.StatusOpen:       lipgloss.NewStyle().Foreground(lipgloss.Color("#2EB086")),
		lifecycle.StatusAssigned:   lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")),
		lifecycle.StatusInProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("#E9C46A")),
		lifecycle.StatusCompleted:  lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")),
		lifecycle.StatusCancelled:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
	}
)

func renderStatus(s lifecycle.Status) string {
	style, ok := statusColors[s]
	if !ok {
		return s.FriendlyName()
	}
	return style.Render(s.FriendlyName())
}

// jobItem adapts a JobView to the bubbles list.
type jobItem struct {
	view lifecycle.JobView
}

func (i jobItem) Title() string {
	title := fmt.Sprintf("#%d  %s", i.view.Job.ID, i.view.Job.Title)
	if i.view.AppliedByMe {
		title += "  ✓ applied"
	}
	return title
}

func (i jobItem) Description() string {
	return fmt.Sprintf("%s · %s",
		i.view.Status().FriendlyName(),
		formatAmount("KES", i.view.Job.Budget))
}

func (i jobItem) FilterValue() string { return i.view.Job.Title }

func jobListItems(views []lifecycle.JobView) []list.Item {
	items := make([]list.Item, 0, len(views))
	for _, v := range views {
		items = append(items, jobItem{view: v})
	}
	return items
}

func (a *App) renderJobDetail() string {
	view, ok := a.controller.Job(a.selectedJob)
	if !ok {
		return "Job no longer in the local list. Press Esc."
	}
	job := view.Job
	status := view.Status()

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", titleStyle.Render(fmt.Sprintf("#%d  %s", job.ID, job.Title)))
	fmt.Fprintf(&b, "%s %s    %s %s\n",
		labelStyle.Render("Status:"), renderStatus(status),
		labelStyle.Render("Budget:"), formatAmount("KES", job.Budget))
	if job.EmployerName != "" {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Employer:"), job.EmployerName)
	}
	if job.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", job.Description)
	}
	if job.CompletedAt != nil {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Completed:"), *job.CompletedAt)
	}

	b.WriteString("\n" + a.renderEscrowPanel(view))

	if a.sessions.IsEmployer() && status == lifecycle.StatusOpen {
		b.WriteString("\n" + a.renderApplicants(view))
	}
	if a.sessions.IsWorker() && view.AppliedByMe {
		b.WriteString("\n✓ You have applied to this job")
		if view.ApplicationID != 0 {
			fmt.Fprintf(&b, " (application %d)", view.ApplicationID)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n" + labelStyle.Render(a.detailKeyHints(view)))
	if a.controller.InFlight(a.selectedJob) {
		b.WriteString("\n" + labelStyle.Render("… request in flight"))
	}
	return b.String()
}

func (a *App) renderEscrowPanel(view lifecycle.JobView) string {
	if a.escrowAbsent {
		return labelStyle.Render("Escrow:") + " not funded yet"
	}
	info := a.escrow
	if info == nil {
		info = view.Escrow
	}
	if info == nil || info.Zero() {
		return labelStyle.Render("Escrow:") + " —"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s held)",
		labelStyle.Render("Escrow:"), info.Status,
		formatAmount("KES", info.AmountHeldKES))
	if info.ReleasedAt != nil {
		fmt.Fprintf(&b, ", released %s", *info.ReleasedAt)
	} else if info.FundedAt != nil {
		fmt.Fprintf(&b, ", funded %s", *info.FundedAt)
	}
	return b.String()
}

func (a *App) renderApplicants(view lifecycle.JobView) string {
	if len(view.Applicants) == 0 {
		return labelStyle.Render("Applicants:") + " none pending"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", labelStyle.Render(fmt.Sprintf("Applicants (%d pending):", len(view.Applicants))))
	for idx, applicant := range view.Applicants {
		cursor := "  "
		if idx == a.applicantSel {
			cursor = "> "
		}
		fmt.Fprintf(&b, "%s%s  %s", cursor, applicant.EmployeeName, applicant.EmployeePhone)
		if n := len(applicant.WorkHistory); n > 0 {
			fmt.Fprintf(&b, "  (%d completed job(s))", n)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (a *App) detailKeyHints(view lifecycle.JobView) string {
	status := view.Status()
	hints := []string{"Esc → back", "r → refresh"}
	if a.sessions.IsEmployer() {
		if status == lifecycle.StatusOpen && len(view.Applicants) > 0 {
			hints = append(hints, "↑/↓ → pick applicant", "a → assign")
		}
		if status == lifecycle.StatusAssigned || status == lifecycle.StatusInProgress {
			hints = append(hints, "d → mark done")
		}
		if !status.Terminal() {
			hints = append(hints, "f → fund escrow", "c → cancel")
		}
	} else {
		if status == lifecycle.StatusOpen && !view.AppliedByMe {
			hints = append(hints, "a → apply")
		}
		if view.AppliedByMe {
			hints = append(hints, "w → withdraw")
		}
	}
	return strings.Join(hints, "    ")
}

func (a *App) renderTransactions() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Transactions") + "\n\n")
	if len(a.transactions) == 0 {
		b.WriteString("No transactions yet.\n")
	}
	for _, tx := range a.transactions {
		fmt.Fprintf(&b, "%-8s %-12s %s  %s  %s\n",
			tx.Type,
			formatAmount(tx.Currency, tx.Amount),
			tx.Status,
			tx.JobTitle,
			labelStyle.Render(tx.Reference))
	}
	b.WriteString("\n" + labelStyle.Render("Esc → back"))
	return b.String()
}

func (a *App) renderWorkHistory() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Work History") + "\n\n")
	if len(a.history) == 0 {
		b.WriteString("No completed jobs yet.\n")
	}
	for _, entry := range a.history {
		fmt.Fprintf(&b, "%s  %s", entry.JobTitle, formatAmount("KES", entry.Budget))
		if entry.EmployerName != nil {
			fmt.Fprintf(&b, "  for %s", *entry.EmployerName)
		}
		if entry.DurationDays > 0 {
			fmt.Fprintf(&b, "  (%d days)", entry.DurationDays)
		}
		b.WriteString("\n")
		if entry.WorkSummary != nil && *entry.WorkSummary != "" {
			fmt.Fprintf(&b, "  %s\n", labelStyle.Render(*entry.WorkSummary))
		}
	}
	b.WriteString("\n" + labelStyle.Render("Esc → back"))
	return b.String()
}
