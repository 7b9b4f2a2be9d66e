package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/csheth/pagelens/internal/command"
	"github.com/csheth/pagelens/internal/document"
	"github.com/csheth/pagelens/internal/llm"
	"github.com/csheth/pagelens/internal/search"
	"github.com/csheth/pagelens/internal/session"
	"github.com/csheth/pagelens/internal/transcript"
)

// Config wires runtime options into the TUI program.
type Config struct {
	// Source is opened on start when set.
	Source         string
	LLM            llm.Client
	Cache          *document.Cache
	TranscriptPath string
	Logger         *slog.Logger
	Context        context.Context
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.Context == nil {
		config.Context = context.Background()
	}

	input := textinput.New()
	input.Placeholder = openPlaceholder
	input.CharLimit = 500
	input.Width = 70
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true
	response := viewport.New(80, 6)

	return &model{
		config:           config,
		ctx:              config.Context,
		stage:            stageOpen,
		focus:            focusCommand,
		opening:          true,
		input:            input,
		spinner:          spin,
		viewport:         vp,
		responseViewport: response,
		layout:           newPageLayout(),
		jobs:             newJobBus(config.Context),
		jobStates:        jobTracker{},
		infoMessage:      "Enter the path or URL of a PDF to begin.",
	}
}

type model struct {
	config Config
	ctx    context.Context
	stage  stage
	focus  focusArea
	// opening is set while the input takes a file path instead of a command.
	opening bool

	input            textinput.Model
	spinner          spinner.Model
	viewport         viewport.Model
	responseViewport viewport.Model
	layout           pageLayout

	jobs      *jobBus
	jobStates jobTracker

	source  string
	session *session.Session
	router  *command.Router

	lines          []*pageLine
	renderSeq      int
	renderCancel   context.CancelFunc
	renderedPage   int
	highlightCount int

	llmStatus *llm.Status
	llmError  string

	exchanges    []transcript.Exchange
	infoMessage  string
	errorMessage string
	helpVisible  bool
}

func (m *model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if source := strings.TrimSpace(m.config.Source); source != "" {
		cmds = append(cmds, m.startLoad(source))
	}
	if m.config.LLM != nil {
		cmds = append(cmds, m.jobs.Start(jobKindProbe, probeLLMJob(m.config.LLM)))
	}
	return tea.Batch(cmds...)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m, m.resize(msg.Width, msg.Height)
	case spinner.TickMsg:
		if m.busy() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	case jobSignalMsg:
		m.jobStates.record(msg.Snapshot)
		return m, m.spinner.Tick
	case jobResultEnvelope:
		m.jobStates.record(msg.Snapshot)
		if msg.Payload == nil {
			return m, nil
		}
		return m.Update(msg.Payload)
	case documentLoadedMsg:
		return m, m.handleDocumentLoaded(msg)
	case pageRenderedMsg:
		m.handlePageRendered(msg)
		return m, nil
	case commandResultMsg:
		return m, m.handleCommandResult(msg)
	case llmStatusMsg:
		m.handleLLMStatus(msg)
		return m, nil
	case transcriptSavedMsg:
		if msg.err != nil {
			m.errorMessage = "Transcript not saved: " + msg.err.Error()
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.MouseMsg:
		if m.stage == stageDisplay {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		return m, nil
	}
	return m, nil
}

func (m *model) resize(width, height int) tea.Cmd {
	previous := m.layout.viewportWidth
	m.layout.Update(width, height)
	m.viewport.Width = m.layout.viewportWidth
	m.viewport.Height = m.layout.viewportHeight
	m.responseViewport.Width = m.layout.viewportWidth
	m.responseViewport.Height = m.layout.responseHeight
	m.input.Width = m.layout.viewportWidth - 4
	m.refreshResponse()
	if m.session != nil && previous != m.layout.viewportWidth {
		return m.startRender()
	}
	return nil
}

// busy reports whether anything is running that should animate the spinner.
func (m *model) busy() bool {
	if len(m.jobStates) > 0 || m.stage == stageLoading {
		return true
	}
	if m.session == nil {
		return false
	}
	loading, _ := m.session.Loading()
	return loading || m.session.Processing()
}

func (m *model) startLoad(source string) tea.Cmd {
	m.stage = stageLoading
	m.errorMessage = ""
	m.infoMessage = fmt.Sprintf("Loading %s…", source)
	return tea.Batch(m.jobs.Start(jobKindLoad, loadDocumentJob(source, m.config.Cache)), m.spinner.Tick)
}

func (m *model) handleDocumentLoaded(msg documentLoadedMsg) tea.Cmd {
	if msg.err != nil {
		m.errorMessage = describeLoadError(msg.err)
		m.infoMessage = ""
		if m.session == nil {
			m.stage = stageOpen
		} else {
			m.stage = stageDisplay
		}
		m.config.Logger.Warn("document load failed", "source", msg.source, "err", msg.err)
		return nil
	}

	if m.session != nil {
		if err := m.session.Close(); err != nil {
			m.config.Logger.Warn("closing previous document failed", "err", err)
		}
	}
	name := filepath.Base(msg.source)
	var gen command.Generator
	if m.config.LLM != nil {
		gen = m.config.LLM
	}
	m.session = session.New(msg.doc, name, m.config.Logger)
	m.router = command.NewRouter(m.session, gen, m.session.Logger())
	m.source = msg.source
	m.stage = stageDisplay
	m.exchanges = nil
	m.lines = nil
	m.renderedPage = 0
	m.highlightCount = 0
	m.errorMessage = ""
	m.infoMessage = fmt.Sprintf("Loaded %s (%d pages).", name, m.session.NumPages())
	m.setCommandMode()
	m.refreshResponse()
	m.config.Logger.Info("document loaded", "source", msg.source, "pages", m.session.NumPages(), "session", m.session.ID)
	return m.startRender()
}

// startRender lays out the current page, cancelling any render still in
// flight.
func (m *model) startRender() tea.Cmd {
	if m.session == nil || m.session.NumPages() == 0 {
		return nil
	}
	if m.renderCancel != nil {
		m.renderCancel()
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.renderCancel = cancel
	m.renderSeq++
	page := m.session.Page()
	m.session.SetLoading(true, fmt.Sprintf("Rendering page %d...", page))
	return tea.Batch(
		renderPageCmd(ctx, m.session, m.renderSeq, page, m.layout.viewportWidth),
		m.spinner.Tick,
	)
}

func (m *model) handlePageRendered(msg pageRenderedMsg) {
	if msg.seq != m.renderSeq || m.session == nil {
		return
	}
	if document.IsCancelled(msg.err) {
		return
	}
	if m.renderCancel != nil {
		m.renderCancel()
		m.renderCancel = nil
	}
	if _, message := m.session.Loading(); strings.HasPrefix(message, "Rendering") {
		m.session.SetLoading(false, "")
	}
	if msg.err != nil {
		m.errorMessage = fmt.Sprintf("Failed to render page %d: %v", msg.page, msg.err)
		return
	}
	m.lines = toPageLines(msg.lines)
	m.renderedPage = msg.page
	m.viewport.GotoTop()
	m.applyHighlight()
}

// applyHighlight re-marks the lines containing the session's search term and
// scrolls to the first one.
func (m *model) applyHighlight() {
	search.Clear(m.lines)
	m.highlightCount = 0
	if m.session != nil {
		if term := m.session.Highlight(); term != "" {
			m.highlightCount = search.Highlight(term, m.lines)
		}
	}
	content, first := renderPageLines(m.lines)
	m.viewport.SetContent(content)
	if first >= 0 {
		m.viewport.SetYOffset(first)
	}
}

func (m *model) handleCommandResult(msg commandResultMsg) tea.Cmd {
	if m.session == nil || msg.sessionID != m.session.ID {
		return nil
	}
	if errors.Is(msg.err, command.ErrBusy) {
		m.infoMessage = "A command is already running. Wait for it to finish."
		return nil
	}
	if msg.result != nil {
		m.session.ShowResult(*msg.result)
	}
	state := m.session.Snapshot()
	entry := exchangeFromState(msg.command, msg.intent, msg.page, state, msg.err)
	m.exchanges = append(m.exchanges, entry)
	m.infoMessage = ""
	m.refreshResponse()

	var cmds []tea.Cmd
	if state.Page != m.renderedPage {
		cmds = append(cmds, m.startRender())
	} else {
		m.applyHighlight()
	}
	if path := m.config.TranscriptPath; path != "" {
		cmds = append(cmds, m.jobs.Start(jobKindSave, saveTranscriptJob(path, m.session.ID, m.source, m.llmInfo(), []transcript.Exchange{entry})))
	}
	return tea.Batch(cmds...)
}

func (m *model) handleLLMStatus(msg llmStatusMsg) {
	if msg.err != nil {
		m.llmStatus = nil
		m.llmError = "LLM offline: " + msg.err.Error()
		m.config.Logger.Warn("llm probe failed", "err", msg.err)
		return
	}
	status := msg.status
	m.llmStatus = &status
	m.llmError = ""
	if status.Substituted {
		m.infoMessage = fmt.Sprintf("Configured model not found; using %s.", status.Model)
	}
}

func (m *model) llmInfo() *transcript.LLMInfo {
	if m.config.LLM == nil {
		return nil
	}
	return &transcript.LLMInfo{Name: m.config.LLM.Name()}
}

func (m *model) refreshResponse() {
	out := sessionOutput{}
	if m.session != nil {
		state := m.session.Snapshot()
		out.response = state.Response
		out.err = state.Error
	}
	m.responseViewport.SetContent(m.responseContent(out))
	m.responseViewport.GotoTop()
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if m.helpVisible && (msg.Type == tea.KeyEsc || msg.String() == "?") {
		m.helpVisible = false
		return m, nil
	}
	if m.focus == focusCommand {
		return m.handleInputKey(msg)
	}
	return m.handlePageKey(msg)
}

func (m *model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		value := strings.TrimSpace(m.input.Value())
		if value == "" {
			return m, nil
		}
		if m.opening {
			if m.jobStates.running(jobKindLoad) {
				m.infoMessage = "Still loading the previous file."
				return m, nil
			}
			m.input.SetValue("")
			return m, m.startLoad(value)
		}
		m.input.SetValue("")
		return m, m.submitCommand(value)
	case tea.KeyEsc:
		if m.session == nil {
			return m, tea.Quit
		}
		m.input.SetValue("")
		m.setPageFocus()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) submitCommand(value string) tea.Cmd {
	if m.router == nil {
		m.errorMessage = "Open a PDF first."
		return nil
	}
	intent := command.Classify(command.Normalize(value)).String()
	m.errorMessage = ""
	m.infoMessage = fmt.Sprintf("Running %s command…", intent)
	return tea.Batch(
		m.jobs.Start(jobKindCommand, runCommandJob(m.router, value, intent, m.session.Page())),
		m.spinner.Tick,
	)
}

func (m *model) handlePageKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "i", "/", ":", "enter":
		m.setCommandMode()
		return m, textinput.Blink
	case "o":
		m.setOpenMode()
		return m, textinput.Blink
	case "?":
		m.helpVisible = !m.helpVisible
		return m, nil
	case "right", "l", "pgdown":
		return m, m.gotoPage(m.session.NextPage)
	case "left", "h", "pgup":
		return m, m.gotoPage(m.session.PrevPage)
	case "n":
		return m, m.cycleResult(m.session.NextResult)
	case "N":
		return m, m.cycleResult(m.session.PrevResult)
	case "g":
		m.viewport.GotoTop()
	case "G":
		m.viewport.GotoBottom()
	case "j", "down":
		m.viewport.LineDown(1)
	case "k", "up":
		m.viewport.LineUp(1)
	case "J":
		m.responseViewport.LineDown(1)
	case "K":
		m.responseViewport.LineUp(1)
	}
	return m, nil
}

func (m *model) gotoPage(step func() int) tea.Cmd {
	if m.session == nil {
		return nil
	}
	if page := step(); page == m.renderedPage {
		return nil
	}
	return m.startRender()
}

func (m *model) cycleResult(step func() (search.Result, bool)) tea.Cmd {
	if m.session == nil {
		return nil
	}
	result, ok := step()
	if !ok {
		m.infoMessage = "No search results. Try \"find <term>\"."
		return nil
	}
	m.infoMessage = fmt.Sprintf("Result on page %d.", result.PageNum)
	if result.PageNum != m.renderedPage {
		return m.startRender()
	}
	m.applyHighlight()
	return nil
}

func (m *model) setCommandMode() {
	m.opening = false
	m.focus = focusCommand
	m.input.Placeholder = commandPlaceholder
	m.input.Focus()
}

func (m *model) setOpenMode() {
	m.opening = true
	m.focus = focusCommand
	m.input.Placeholder = openPlaceholder
	m.input.SetValue("")
	m.input.Focus()
}

func (m *model) setPageFocus() {
	m.opening = false
	m.focus = focusPage
	m.input.Placeholder = commandPlaceholder
	m.input.Blur()
}

var (
	sectionHeaderStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	errorStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helperStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	searchHighlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("190"))

	heroAccentColor        = lipgloss.Color("#2a9d8f")
	heroInkColor           = lipgloss.Color("#0b1f1c")
	heroTextColor          = lipgloss.Color("#e9f5f2")
	heroSecondaryTextColor = lipgloss.Color("#8ecae6")

	heroTitleStyle     = lipgloss.NewStyle().Bold(true).Foreground(heroAccentColor)
	taglineStyle       = lipgloss.NewStyle().Foreground(heroSecondaryTextColor).Italic(true)
	statusBarStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6")).Padding(0, 1)
	keyStyle           = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#ffd166")).Padding(0, 1)
	keyDescStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0def4"))
	legendBoxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#56526e")).Padding(1, 2)
	helpBoxStyle       = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("#7f5af0")).Padding(1, 2)
	pageBoxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(heroAccentColor)
	currentLineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6"))
	logoFaceStyle      = lipgloss.NewStyle().Bold(true).Foreground(heroTextColor).Background(heroInkColor)
	logoShadowStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#061210"))
	logoContainerStyle = lipgloss.NewStyle().Padding(0, 1)
	logoArtLines       = []string{
		"█▀▀█ █▀▀█ █▀▀▀ █▀▀▀ █    █▀▀▀ █▄  █ █▀▀▀",
		"█▄▄█ █▄▄█ █ ▀█ █▀▀▀ █    █▀▀▀ █ ▀▄█ ▀▀▀█",
		"█    █  █ ▀▀▀▀ ▀▀▀▀ ▀▀▀▀ ▀▀▀▀ ▀   ▀ ▀▀▀▀",
	}
)
