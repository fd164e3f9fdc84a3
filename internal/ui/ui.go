package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/progress"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/recommend"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/repositories"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/services"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/tasks"
)

// pollInterval is how often the analysis view reads the progress store.
const pollInterval = 200 * time.Millisecond

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SummaryView ViewState = iota
	AnalysisView
	KindSelectView
	BatchView
)

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	view      ViewState
	catalog   services.Catalog
	engine    *tasks.AnalysisEngine
	store     *progress.Store
	generator *recommend.Generator
	clusters  *repositories.ClusterRepository
	user      *models.User
	session   *models.Session

	width  int
	height int

	summary     *tasks.LibrarySummary
	clusterList list.Model
	kindList    list.Model
	batchList   list.Model
	batch       []*models.Recommendation
	progress    *models.AnalysisProgress
	err         error

	help help.Model
	keys keyMap
}

type summaryMsg struct {
	summary  *tasks.LibrarySummary
	clusters []*models.TasteCluster
	err      error
}

type progressMsg struct {
	snapshot *models.AnalysisProgress
}

type analysisDoneMsg struct {
	snapshot *models.AnalysisProgress
}

type batchMsg struct {
	recs []*models.Recommendation
	err  error
}

type feedbackMsg struct {
	err error
}

// NewModel creates a new TUI model with the provided dependencies.
//
// The catalog must already be bound to the session's access token.
func NewModel(ctx context.Context, catalog services.Catalog, engine *tasks.AnalysisEngine, store *progress.Store, generator *recommend.Generator, clusters *repositories.ClusterRepository, user *models.User, session *models.Session) *Model {
	kinds := list.New(kindItems(), list.NewDefaultDelegate(), 0, 0)
	kinds.Title = "Pick a recommendation style"

	return &Model{
		ctx:       ctx,
		view:      SummaryView,
		catalog:   catalog,
		engine:    engine,
		store:     store,
		generator: generator,
		clusters:  clusters,
		user:      user,
		session:   session,
		kindList:  kinds,
		help:      help.New(),
		keys:      newKeyMap(),
	}
}

// Init initializes the TUI by loading the library summary.
func (m *Model) Init() tea.Cmd {
	return m.fetchSummary()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clusterList.SetSize(msg.Width-4, msg.Height-10)
		m.kindList.SetSize(msg.Width-4, msg.Height-8)
		m.batchList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case SummaryView:
			return m.handleSummaryKeys(msg)
		case AnalysisView:
			return m.handleAnalysisKeys(msg)
		case KindSelectView:
			return m.handleKindSelectKeys(msg)
		case BatchView:
			return m.handleBatchKeys(msg)
		}

	case summaryMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.summary = msg.summary
		items := make([]list.Item, len(msg.clusters))
		for i, cluster := range msg.clusters {
			items[i] = clusterItem{cluster: cluster}
		}
		m.clusterList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.clusterList.Title = "Your Taste Clusters"
		m.clusterList.SetSize(m.width-4, m.height-10)
		m.view = SummaryView
		return m, nil

	case progressMsg:
		m.progress = msg.snapshot
		return m, m.pollProgress()

	case analysisDoneMsg:
		m.progress = msg.snapshot
		if msg.snapshot.Status == models.StatusFailed && msg.snapshot.ErrorMessage != nil {
			m.err = fmt.Errorf("%s", *msg.snapshot.ErrorMessage)
			m.view = SummaryView
			return m, m.fetchSummary()
		}
		return m, m.fetchSummary()

	case batchMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.batch = msg.recs
		items := make([]list.Item, len(msg.recs))
		for i, rec := range msg.recs {
			items[i] = recommendationItem{rec: rec}
		}
		m.batchList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.batchList.Title = "Fresh Recommendations"
		m.batchList.SetSize(m.width-4, m.height-8)
		m.view = BatchView
		return m, nil

	case feedbackMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		return m, nil
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case SummaryView:
		return m.renderSummary()
	case AnalysisView:
		return m.renderAnalysis()
	case KindSelectView:
		return m.renderKindSelect()
	case BatchView:
		return m.renderBatch()
	default:
		return ""
	}
}

func (m *Model) handleSummaryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "a":
		m.err = nil
		if err := m.engine.Start(m.user.ID(), 0); err != nil {
			m.err = err
			return m, nil
		}
		m.view = AnalysisView
		return m, m.pollProgress()
	case "enter", "r":
		m.err = nil
		m.view = KindSelectView
		return m, nil
	}

	var cmd tea.Cmd
	m.clusterList, cmd = m.clusterList.Update(msg)
	return m, cmd
}

func (m *Model) handleAnalysisKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		// The run keeps going in the background; quitting just stops watching.
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleKindSelectKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.err = nil
		m.view = SummaryView
		return m, nil
	case "enter":
		selected := m.kindList.SelectedItem()
		if selected != nil {
			if item, ok := selected.(kindItem); ok {
				return m, m.generate(item.kind)
			}
		}
	}

	var cmd tea.Cmd
	m.kindList, cmd = m.kindList.Update(msg)
	return m, cmd
}

func (m *Model) handleBatchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.err = nil
		m.view = SummaryView
		return m, nil
	case "y":
		return m, m.submitFeedback(boolPtr(true), nil)
	case "n":
		return m, m.submitFeedback(boolPtr(false), nil)
	case "w":
		return m, m.submitFeedback(nil, boolPtr(true))
	}

	var cmd tea.Cmd
	m.batchList, cmd = m.batchList.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case SummaryView:
		m.clusterList, cmd = m.clusterList.Update(msg)
	case KindSelectView:
		m.kindList, cmd = m.kindList.Update(msg)
	case BatchView:
		m.batchList, cmd = m.batchList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchSummary() tea.Cmd {
	return func() tea.Msg {
		summary, err := m.engine.Summary(m.user.ID())
		if err != nil {
			return summaryMsg{err: err}
		}
		clusters, err := m.clusters.ListByUser(m.user.ID())
		return summaryMsg{summary: summary, clusters: clusters, err: err}
	}
}

func (m *Model) pollProgress() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg {
		snapshot, err := m.store.Get(m.user.ID())
		if err != nil {
			return analysisDoneMsg{snapshot: models.NotStartedProgress(m.user.ID())}
		}
		if snapshot.Status.Terminal() {
			return analysisDoneMsg{snapshot: snapshot}
		}
		return progressMsg{snapshot: snapshot}
	})
}

func (m *Model) generate(kind models.RecommendationKind) tea.Cmd {
	return func() tea.Msg {
		recs, err := m.generator.Generate(m.ctx, m.catalog, m.user, m.session, kind, 0)
		return batchMsg{recs: recs, err: err}
	}
}

func (m *Model) submitFeedback(liked, knew *bool) tea.Cmd {
	selected := m.batchList.SelectedItem()
	item, ok := selected.(recommendationItem)
	if !ok {
		return nil
	}

	return func() tea.Msg {
		_, err := m.generator.SubmitFeedback(m.ctx, m.catalog, m.user.ID(), item.rec.ID(), liked, knew)
		return feedbackMsg{err: err}
	}
}

func (m *Model) renderSummary() string {
	title := styles.title.Render(fmt.Sprintf("Library of %s", m.user.DisplayName()))

	var info string
	if m.summary != nil && m.summary.Analyzed {
		info = fmt.Sprintf("Tracks: %d • Clusters: %d", m.summary.TrackCount, m.summary.ClusterCount)
	} else {
		info = styles.warn.Render("Library not analyzed yet. Press a to start.")
	}

	var errLine string
	if m.err != nil {
		errLine = "\n" + styles.err.Render(fmt.Sprintf("Error: %v", m.err))
	}

	analyzeKey := m.keys.analyze
	recommendKey := key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "recommend"))
	helpView := m.help.ShortHelpView([]key.Binding{analyzeKey, recommendKey, m.keys.quit})

	return fmt.Sprintf("%s\n%s%s\n\n%s\n\n%s", title, info, errLine, m.clusterList.View(), helpView)
}

func (m *Model) renderAnalysis() string {
	title := styles.title.Render("Analyzing Your Library")

	var step, bar string
	if m.progress != nil {
		step = m.progress.CurrentStep
		bar = renderBar(m.progress.ProgressPercentage, 40)
	} else {
		step = "Starting..."
		bar = renderBar(0, 40)
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.quit})

	return fmt.Sprintf("%s\n\n%s\n%s\n\n%s", title, bar, step, helpView)
}

func (m *Model) renderKindSelect() string {
	var errLine string
	if m.err != nil {
		errLine = "\n\n" + styles.err.Render(fmt.Sprintf("Error: %v", m.err))
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.back, m.keys.quit})
	return fmt.Sprintf("%s%s\n\n%s", m.kindList.View(), errLine, helpView)
}

func (m *Model) renderBatch() string {
	var errLine string
	if m.err != nil {
		errLine = "\n" + styles.err.Render(fmt.Sprintf("Error: %v", m.err))
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.like, m.keys.dislike, m.keys.knew, m.keys.back, m.keys.quit})
	return fmt.Sprintf("%s%s\n\n%s", m.batchList.View(), errLine, helpView)
}

// renderBar draws a fixed-width progress bar for the given percentage.
func renderBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := width * percent / 100

	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return fmt.Sprintf("%s %d%%", styles.ok.Render(bar), percent)
}

func boolPtr(v bool) *bool { return &v }
