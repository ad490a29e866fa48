package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"healthrag/internal/domain"
)

// Greeting opens every conversation.
const Greeting = "¡Hola! Soy tu asistente médico virtual. Puedo ayudarte con información médica general y preguntas. " +
	"Ten en cuenta que no soy un sustituto del consejo médico profesional. ¿Cómo puedo ayudarte hoy?"

// ErrorReply replaces the answer when a question fails.
const ErrorReply = "Lo siento, hubo un error al procesar tu pregunta."

type message struct {
	bot  bool
	text string
}

type answerMsg struct {
	answer string
	err    error
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	service  domain.Answerer
	ctx      context.Context
	input    textinput.Model
	viewport viewport.Model
	messages []message
	status   string
	pending  bool
	ready    bool
}

// New creates a chat model. ctx bounds every question sent to service.
func New(ctx context.Context, service domain.Answerer) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Escribe tu pregunta y pulsa Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		service:  service,
		ctx:      ctx,
		input:    ti,
		viewport: vp,
		messages: []message{{bot: true, text: Greeting}},
		status:   "Listo.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, spacer
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil
	case answerMsg:
		m.pending = false
		if msg.err != nil {
			m.messages = append(m.messages, message{bot: true, text: ErrorReply})
			m.status = statusFor(msg.err)
		} else {
			m.messages = append(m.messages, message{bot: true, text: msg.answer})
			m.status = "Listo."
		}
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.pending {
				return m, nil
			}
			m.input.Reset()
			m.messages = append(m.messages, message{text: q})
			m.pending = true
			m.status = "Pensando..."
			m.refresh()
			return m, m.ask(q)
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(q string) tea.Cmd {
	service, ctx := m.service, m.ctx
	return func() tea.Msg {
		answer, err := service.Ask(ctx, q)
		return answerMsg{answer: answer, err: err}
	}
}

// View renders the header, the transcript and the input box.
func (m Model) View() string {
	if !m.ready {
		return "Cargando..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("AskMy · Asistente médico virtual")
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	width := max(10, m.viewport.Width-2)
	var b strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if msg.bot {
			b.WriteString(botLabelStyle.Render("Asistente"))
		} else {
			b.WriteString(userLabelStyle.Render("Tú"))
		}
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Width(width).Render(msg.text))
	}
	return b.String()
}

// statusFor keeps error detail out of the UI; only the class is shown.
func statusFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrTimeout):
		return "Error: la pregunta tardó demasiado."
	case errors.Is(err, domain.ErrEmptyQuestion):
		return "Error: escribe una pregunta."
	default:
		return "Error processing your question"
	}
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	botLabelStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	userLabelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)
