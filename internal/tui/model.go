package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragqa/internal/domain"
	"ragqa/internal/presenter"
	"ragqa/internal/session"
)

// SessionPort is the TUI-facing subset of the session.
type SessionPort interface {
	Snapshot() session.Snapshot
	Refresh(ctx context.Context) ([]domain.DocumentID, error)
	Choose(file domain.File)
	Upload(ctx context.Context) (domain.DocumentID, error)
	Select(id domain.DocumentID) error
	AskSelected(ctx context.Context, question string) (domain.AnswerResult, error)
	Abandon()
}

type focus int

const (
	focusQuestion focus = iota
	focusUpload
	focusDocuments
	focusCount
)

type docsListedMsg struct{ err error }

type uploadDoneMsg struct {
	id  domain.DocumentID
	err error
}

type answerMsg struct{ err error }

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	ctx       context.Context
	session   SessionPort
	present   presenter.Presenter
	readFile  func(string) ([]byte, error)
	question  textinput.Model
	path      textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	focus     focus
	docCursor int
	status    string
	ready     bool
}

// New creates a new TUI model instance.
func New(ctx context.Context, sess SessionPort, p presenter.Presenter) Model {
	q := textinput.New()
	q.Prompt = "? "
	q.Placeholder = "e.g. What is the total crane load capacity?"
	q.Focus()
	q.CharLimit = 0

	path := textinput.New()
	path.Prompt = "PDF: "
	path.Placeholder = "path/to/document.pdf"
	path.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		session:  sess,
		present:  p,
		readFile: os.ReadFile,
		question: q,
		path:     path,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   "Loading documents...",
	}
}

// Init starts the cursor blink, the spinner and the first document listing.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.refreshCmd())
}

func (m Model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		_, err := m.session.Refresh(m.ctx)
		return docsListedMsg{err: err}
	}
}

func (m Model) uploadCmd(path string) tea.Cmd {
	return func() tea.Msg {
		file := domain.File{}
		if path != "" {
			data, err := m.readFile(path)
			if err != nil {
				return uploadDoneMsg{err: err}
			}
			file = domain.File{Name: filepath.Base(path), Content: data}
		}
		m.session.Choose(file)
		id, err := m.session.Upload(m.ctx)
		return uploadDoneMsg{id: id, err: err}
	}
}

func (m Model) askCmd(question string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.session.AskSelected(m.ctx, question)
		return answerMsg{err: err}
	}
}

// Update handles key, window and completion events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + 2*(1+ih) + 1 // header+docs, status, two input boxes, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderResult())
		return m, nil

	case docsListedMsg:
		if msg.err != nil {
			m.status = "Failed to fetch docs: " + domain.UserMessage(msg.err)
		} else {
			m.status = fmt.Sprintf("%d document(s) available.", len(m.session.Snapshot().Documents))
		}
		m.syncDocCursor()
		return m, nil

	case uploadDoneMsg:
		switch {
		case domain.IsStale(msg.err):
		case msg.err != nil && domain.KindOf(msg.err) != domain.KindTransport:
			m.status = domain.UserMessage(msg.err)
		case msg.err != nil:
			m.status = "Upload failed: " + domain.UserMessage(msg.err)
		default:
			m.status = fmt.Sprintf("Uploaded: %s", msg.id)
			m.path.Reset()
		}
		m.syncDocCursor()
		return m, nil

	case answerMsg:
		if msg.err != nil && !domain.IsStale(msg.err) {
			m.status = domain.UserMessage(msg.err)
		} else if msg.err == nil {
			m.status = "Answered."
		}
		m.viewport.SetContent(m.renderResult())
		m.viewport.GotoTop()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			m.session.Abandon()
			return m, tea.Quit
		}
		switch msg.String() {
		case "tab":
			return m.setFocus((m.focus + 1) % focusCount)
		case "shift+tab":
			return m.setFocus((m.focus + focusCount - 1) % focusCount)
		case "esc":
			m.session.Abandon()
			m.status = "Cancelled."
			m.viewport.SetContent(m.renderResult())
			return m, nil
		case "ctrl+r":
			m.status = "Refreshing documents..."
			return m, m.refreshCmd()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		switch m.focus {
		case focusQuestion:
			if msg.String() == "enter" {
				q := m.question.Value()
				if strings.TrimSpace(q) == "" {
					m.status = domain.UserMessage(domain.ErrEmptyQuestion)
					return m, nil
				}
				m.status = "Searching..."
				return m, m.askCmd(q)
			}
		case focusUpload:
			if msg.String() == "enter" {
				if m.session.Snapshot().Upload.Status == domain.UploadInFlight {
					m.status = domain.UserMessage(domain.ErrUploadInFlight)
					return m, nil
				}
				return m, m.uploadCmd(strings.TrimSpace(m.path.Value()))
			}
		case focusDocuments:
			return m.updateDocuments(msg)
		}
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusQuestion:
		m.question, cmd = m.question.Update(msg)
	case focusUpload:
		m.path, cmd = m.path.Update(msg)
	}
	return m, cmd
}

func (m Model) setFocus(f focus) (tea.Model, tea.Cmd) {
	m.focus = f
	m.question.Blur()
	m.path.Blur()
	var cmd tea.Cmd
	switch f {
	case focusQuestion:
		cmd = m.question.Focus()
	case focusUpload:
		cmd = m.path.Focus()
	case focusDocuments:
		m.syncDocCursor()
	}
	return m, cmd
}

// updateDocuments moves over "All documents" followed by the registry.
func (m Model) updateDocuments(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	docs := m.session.Snapshot().Documents
	n := len(docs) + 1
	switch msg.String() {
	case "up", "k":
		m.docCursor = (m.docCursor - 1 + n) % n
	case "down", "j":
		m.docCursor = (m.docCursor + 1) % n
	case "enter", " ":
		var id domain.DocumentID
		if m.docCursor > 0 && m.docCursor <= len(docs) {
			id = docs[m.docCursor-1]
		}
		if err := m.session.Select(id); err != nil {
			m.status = domain.UserMessage(err)
		} else if id == "" {
			m.status = "Searching across all documents."
		} else {
			m.status = fmt.Sprintf("Questions scoped to %s.", id)
		}
	}
	return m, nil
}

// syncDocCursor points the document cursor at the current selection.
func (m *Model) syncDocCursor() {
	snap := m.session.Snapshot()
	m.docCursor = 0
	if snap.Scope.IsAny() {
		return
	}
	for i, id := range snap.Documents {
		if id == snap.Scope.Document() {
			m.docCursor = i + 1
			return
		}
	}
}

// View renders the layout from the latest session snapshot.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	snap := m.session.Snapshot()
	header := headerStyle.Render("Document QA") + "  " + dimStyle.Render("scope: "+scopeLabel(snap.Scope))

	results := resultBoxStyle.Render(m.viewport.View())
	if vm := m.present.Present(snap.Query); vm.Loading {
		results = resultBoxStyle.Render(m.spinner.View() + " Searching...")
	}

	upload := m.present.PresentUpload(snap.Upload)
	uploadLine := m.path.View()
	if upload.Busy {
		uploadLine = m.spinner.View() + " " + upload.Status
	}

	parts := []string{
		header,
		m.renderDocuments(snap),
		results,
		m.boxFor(focusQuestion).Render(m.question.View()),
		m.boxFor(focusUpload).Render(uploadLine),
		m.renderStatus(upload),
	}
	return strings.Join(parts, "\n")
}

func (m Model) boxFor(f focus) lipgloss.Style {
	if m.focus == f {
		return inputBoxStyle.BorderForeground(lipgloss.Color("12"))
	}
	return inputBoxStyle
}

func (m Model) renderDocuments(snap session.Snapshot) string {
	labels := make([]string, 0, len(snap.Documents)+1)
	labels = append(labels, "All documents")
	for _, id := range snap.Documents {
		labels = append(labels, string(id))
	}
	for i, l := range labels {
		selected := (i == 0 && snap.Scope.IsAny()) || (i > 0 && snap.Scope.Document() == snap.Documents[i-1])
		if selected {
			l = "*" + l
		}
		if m.focus == focusDocuments && i == m.docCursor {
			l = cursorStyle.Render("[" + l + "]")
		}
		labels[i] = l
	}
	return dimStyle.Render("docs: ") + strings.Join(labels, "  ")
}

func (m Model) renderStatus(upload presenter.UploadView) string {
	status := m.status
	if upload.Failed && status == "" {
		status = upload.Status
	}
	if strings.HasPrefix(status, "Failed") || strings.HasPrefix(status, "Upload failed") {
		return errorStyle.Render(status)
	}
	return statusStyle.Render(status)
}

func (m Model) renderResult() string {
	snap := m.session.Snapshot()
	vm := m.present.Present(snap.Query)
	if vm.Error != "" {
		return errorStyle.Render(vm.Error)
	}
	if !vm.HasAnswer {
		return "No answer yet. Type a question and press Enter."
	}
	var b strings.Builder
	b.WriteString(answerTitleStyle.Render("Answer:"))
	b.WriteString("\n")
	b.WriteString(vm.Answer)
	if vm.HasExcerpt {
		b.WriteString("\n\n")
		b.WriteString(excerptTitleStyle.Render("Matched Context:"))
		b.WriteString("\n")
		b.WriteString(presenter.HighlightExcerpt(vm.Excerpt, vm.Question, markExcerpt))
	}
	if vm.HasDocument {
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render("Matched Document: "))
		b.WriteString(string(vm.DocumentID))
		b.WriteString("\n")
		b.WriteString(linkStyle.Render(vm.ArtifactURL))
	}
	return b.String()
}

// markExcerpt adapts the variadic lipgloss renderer to a single sentence.
func markExcerpt(s string) string { return highlightStyle.Render(s) }

func scopeLabel(s domain.Scope) string {
	if s.IsAny() {
		return "all documents"
	}
	return string(s.Document())
}

var (
	headerStyle       = lipgloss.NewStyle().Bold(true)
	dimStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	cursorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	answerTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	excerptTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	linkStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	resultBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
