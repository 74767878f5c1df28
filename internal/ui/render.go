// Package ui renders the unwind plan and report and asks for confirmation.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/betbot/utpunwind/internal/domain"
	"github.com/betbot/utpunwind/internal/unwind"
	"github.com/betbot/utpunwind/pkg/chain"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("226"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)
)

func utpList(utps []domain.UTP) string {
	if len(utps) == 0 {
		return "-"
	}
	names := make([]string, len(utps))
	for i, u := range utps {
		names[i] = u.String()
	}
	return strings.Join(names, ",")
}

// RenderPlan shows what Run is about to touch.
func RenderPlan(wallet string, plans []unwind.AccountPlan, dryRun bool) string {
	var lines []string
	title := fmt.Sprintf("Unwind plan | wallet %s | %d accounts", wallet, len(plans))
	lines = append(lines, titleStyle.Render(title))
	if dryRun {
		lines = append(lines, warnStyle.Render("DRY RUN: transactions are simulated only"))
	}
	lines = append(lines, strings.Repeat("─", 72))
	lines = append(lines, fmt.Sprintf("%-44s %-10s %12s %s", "Account", "UTPs", "Equity", "Sweep"))
	for _, p := range plans {
		sweep := "-"
		if p.WillSweep {
			sweep = okStyle.Render("yes")
		}
		lines = append(lines, fmt.Sprintf("%-44s %-10s %12s %s", p.Address, utpList(p.ActiveUTPs), p.Equity.StringFixed(6), sweep))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

// RenderReport summarizes a finished run.
func RenderReport(r *unwind.Report) string {
	if r == nil {
		return ""
	}
	var lines []string
	mode := ""
	if r.DryRun {
		mode = " (dry run)"
	}
	lines = append(lines, titleStyle.Render(fmt.Sprintf("Unwind report %s%s", r.RunID, mode)))
	lines = append(lines, fmt.Sprintf("Duration: %s", r.FinishedAt.Sub(r.StartedAt).Round(1e6)))
	lines = append(lines, strings.Repeat("─", 72))
	lines = append(lines, fmt.Sprintf("%-44s %-10s %7s %12s", "Account", "Unwound", "Actions", "Swept"))
	for _, acc := range r.Accounts {
		lines = append(lines, fmt.Sprintf("%-44s %-10s %7d %12s", acc.Address, utpList(acc.UnwoundUTPs), len(acc.Actions), acc.SweptEquity.StringFixed(6)))
		for _, e := range acc.SwallowedErrors {
			lines = append(lines, errStyle.Render("  ! "+e))
		}
	}
	lines = append(lines, strings.Repeat("─", 72))
	lines = append(lines, fmt.Sprintf("Closed %d positions, settled %d, withdrew %d venue balances, deactivated %d UTPs",
		r.ActionCount(domain.ActionClosePosition),
		r.ActionCount(domain.ActionSettle),
		r.ActionCount(domain.ActionVenueWithdraw),
		r.ActionCount(domain.ActionDeactivate),
	))
	if r.DryRun {
		if n := r.SignatureCount(chain.DryRunFailedSignature); n > 0 {
			lines = append(lines, warnStyle.Render(fmt.Sprintf("%d simulations failed (earlier steps did not land)", n)))
		}
	}
	lines = append(lines, okStyle.Render("Total swept to wallet: "+r.TotalSwept().StringFixed(6)))
	return boxStyle.Render(strings.Join(lines, "\n"))
}
