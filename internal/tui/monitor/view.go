package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/ratkov/kasa/internal/models"
)

var entityLabels = map[models.EntityType]string{
	models.EntityProduct:       "Products",
	models.EntityTable:         "Tables",
	models.EntitySale:          "Sales",
	models.EntityCustomer:      "Customers",
	models.EntityManualSession: "Manual sessions",
}

// View implements tea.Model
func (m Model) View() string {
	if m.Width > 0 && m.Width < MinWidth {
		return dimStyle.Render(fmt.Sprintf("Terminal too narrow (need %d cols)", MinWidth))
	}

	var b strings.Builder

	title := titleStyle.Render("kasa sync monitor")
	status := dimStyle.Render("idle")
	if m.Syncing || m.Store.Syncing() {
		status = warnStyle.Render(m.spinner.View() + "syncing")
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", status))
	b.WriteString("\n\n")

	b.WriteString(m.renderEntities())
	b.WriteString("\n")
	b.WriteString(m.renderReport())
	b.WriteString("\n")

	if m.Err != nil {
		b.WriteString(errStyle.Render("error: "+m.Err.Error()) + "\n")
	}

	help := "s sync  f full sync  r refresh  q quit"
	if !m.LastRefresh.IsZero() {
		help += dimStyle.Render("   refreshed " + m.LastRefresh.Format("15:04:05"))
	}
	b.WriteString(dimStyle.Render(help))

	return b.String()
}

func (m Model) renderEntities() string {
	var rows []string
	rows = append(rows, headerStyle.Render(fmt.Sprintf("%-16s %8s  %s", "Entity", "Cached", "Cursor age")))

	for _, entity := range models.EntityTypes {
		count := int64(0)
		if m.Counts != nil {
			count = m.Counts[entity]
		}

		age := "-"
		ageStyled := dimStyle
		if m.Ages != nil {
			switch d := m.Ages[entity]; {
			case d < 0:
				age = "never synced"
				ageStyled = warnStyle
			case d < time.Minute:
				age = fmt.Sprintf("%ds behind", int(d.Seconds()))
				ageStyled = okStyle
			case d < time.Hour:
				age = fmt.Sprintf("%dm behind", int(d.Minutes()))
				ageStyled = okStyle
			default:
				age = fmt.Sprintf("%dh behind", int(d.Hours()))
				ageStyled = warnStyle
			}
		}

		row := fmt.Sprintf("%-16s %8d  %s", entityLabels[entity], count, ageStyled.Render(age))
		rows = append(rows, row)
	}

	return panelStyle.Render(strings.Join(rows, "\n"))
}

func (m Model) renderReport() string {
	if m.Report == nil {
		return panelStyle.Render(dimStyle.Render("no sync pass yet this session"))
	}

	mode := "delta"
	if m.Report.Full {
		mode = "full"
	}
	took := m.Report.FinishedAt.Sub(m.Report.StartedAt).Round(time.Millisecond)

	var rows []string
	rows = append(rows, headerStyle.Render(fmt.Sprintf("Last pass: %s at %s (%s)",
		mode, m.Report.FinishedAt.Format("15:04:05"), took)))

	for _, e := range m.Report.Entities {
		line := fmt.Sprintf("%-16s %s fetched %d", entityLabels[e.Entity], e.Mode, e.Fetched)
		if e.Err != "" {
			line = errStyle.Render(line + "  " + e.Err)
		}
		// Long remote error strings must not wrap the panel
		width := m.Width - 6
		if width < MinWidth-6 {
			width = MinWidth - 6
		}
		rows = append(rows, ansi.Truncate(line, width, "…"))
	}

	return panelStyle.Render(strings.Join(rows, "\n"))
}
