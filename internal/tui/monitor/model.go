// Package monitor is the live sync dashboard: per-entity cache counts
// and cursor ages, the last pass report, and manual sync triggers.
package monitor

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ratkov/kasa/internal/hybrid"
	"github.com/ratkov/kasa/internal/models"
)

// MinWidth is the minimum terminal width for proper display
const MinWidth = 44

// TickMsg triggers a data refresh
type TickMsg time.Time

// RefreshDataMsg carries refreshed dashboard data
type RefreshDataMsg struct {
	Counts    map[models.EntityType]int64
	Ages      map[models.EntityType]time.Duration
	Report    *hybrid.Report
	Err       error
	Timestamp time.Time
}

// SyncDoneMsg reports a manual sync trigger's outcome
type SyncDoneMsg struct {
	Ran bool
	Err error
}

// Model is the Bubble Tea model for the sync dashboard
type Model struct {
	Store *hybrid.Store

	Width  int
	Height int

	Counts      map[models.EntityType]int64
	Ages        map[models.EntityType]time.Duration
	Report      *hybrid.Report
	LastRefresh time.Time
	Err         error

	Syncing bool
	spinner spinner.Model

	RefreshInterval time.Duration
}

// NewModel creates a monitor model over a hybrid store.
func NewModel(store *hybrid.Store, interval time.Duration) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		Store:           store,
		RefreshInterval: interval,
		spinner:         sp,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchData(), m.scheduleTick(), m.spinner.Tick)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "s":
			if !m.Syncing {
				m.Syncing = true
				// Unforced, so mashing the key inside the spacing
				// window is a no-op.
				return m, tea.Batch(m.triggerSync(hybrid.Options{}), m.spinner.Tick)
			}
		case "f":
			if !m.Syncing {
				m.Syncing = true
				return m, tea.Batch(m.triggerSync(hybrid.Options{Force: true, ForceFull: true}), m.spinner.Tick)
			}
		case "r":
			return m, m.fetchData()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case TickMsg:
		return m, tea.Batch(m.fetchData(), m.scheduleTick())

	case RefreshDataMsg:
		m.Counts = msg.Counts
		m.Ages = msg.Ages
		m.Report = msg.Report
		m.Err = msg.Err
		m.LastRefresh = msg.Timestamp
		return m, nil

	case SyncDoneMsg:
		m.Syncing = false
		m.Err = msg.Err
		return m, m.fetchData()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// scheduleTick schedules the next periodic refresh
func (m Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.RefreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// fetchData refreshes counts, cursor ages and the last report
func (m Model) fetchData() tea.Cmd {
	store := m.Store
	return func() tea.Msg {
		counts, err := store.Cache().Counts()
		return RefreshDataMsg{
			Counts:    counts,
			Ages:      store.CursorAges(),
			Report:    store.LastReport(),
			Err:       err,
			Timestamp: time.Now(),
		}
	}
}

// triggerSync runs one sync pass off the UI loop
func (m Model) triggerSync(opts hybrid.Options) tea.Cmd {
	store := m.Store
	return func() tea.Msg {
		ran, err := store.SyncNow(context.Background(), opts)
		return SyncDoneMsg{Ran: ran, Err: err}
	}
}
