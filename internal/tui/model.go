// Package tui is an interactive chat front end for one session.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"uiagent/internal/preview"
	"uiagent/internal/session"
)

const (
	inputHeight   = 3
	commandUndo   = "/undo"
	commandQuit   = "/quit"
	helpLine      = "enter: generate  /undo: roll back  /quit or ctrl+c: exit"
	defaultWidth  = 100
	defaultHeight = 30
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Backend runs session actions. *session.Controller satisfies it.
type Backend interface {
	Generate(ctx context.Context, id, intent string) (session.Result, error)
	Rollback(ctx context.Context, id string) (session.Result, error)
}

type resultMsg struct {
	action string
	res    session.Result
	err    error
}

// Model is the bubbletea model for a chat session.
type Model struct {
	ctx       context.Context
	backend   Backend
	sessionID string
	printer   *preview.Printer

	input   textinput.Model
	view    viewport.Model
	spin    spinner.Model
	busy    bool
	entries []string
	width   int
}

func New(ctx context.Context, backend Backend, sessionID string, printer *preview.Printer) Model {
	ti := textinput.New()
	ti.Placeholder = "Describe the UI you want"
	ti.Prompt = "> "
	ti.Focus()

	m := Model{
		ctx:       ctx,
		backend:   backend,
		sessionID: sessionID,
		printer:   printer,
		input:     ti,
		view:      viewport.New(defaultWidth, defaultHeight-inputHeight),
		spin:      spinner.New(spinner.WithSpinner(spinner.Dot)),
		width:     defaultWidth,
	}
	m.appendEntry(dimStyle.Render("session " + sessionID))
	return m
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.view.Width = msg.Width
		m.view.Height = max(msg.Height-inputHeight, 1)
		m.input.Width = max(msg.Width-4, 10)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			return m.submit(strings.TrimSpace(m.input.Value()))
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.view, cmd = m.view.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case resultMsg:
		m.busy = false
		m.input.Focus()
		if msg.err != nil {
			m.appendEntry(errStyle.Render(msg.action + " failed: " + msg.err.Error()))
			return m, nil
		}
		m.appendEntry(m.describe(msg))
		return m, nil
	}
	return m, nil
}

func (m Model) submit(text string) (tea.Model, tea.Cmd) {
	switch text {
	case "":
		return m, nil
	case commandQuit:
		return m, tea.Quit
	}
	m.input.Reset()
	m.busy = true
	m.input.Blur()

	if text == commandUndo {
		m.appendEntry(promptStyle.Render("> ") + commandUndo)
		return m, tea.Batch(m.spin.Tick, m.rollback())
	}
	m.appendEntry(promptStyle.Render("> ") + text)
	return m, tea.Batch(m.spin.Tick, m.generate(text))
}

func (m Model) generate(intent string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.backend.Generate(m.ctx, m.sessionID, intent)
		return resultMsg{action: "generate", res: res, err: err}
	}
}

func (m Model) rollback() tea.Cmd {
	return func() tea.Msg {
		res, err := m.backend.Rollback(m.ctx, m.sessionID)
		return resultMsg{action: "rollback", res: res, err: err}
	}
}

func (m Model) describe(msg resultMsg) string {
	header := dimStyle.Render(fmt.Sprintf("[%s] %d turn(s)", msg.action, msg.res.Turns))
	if msg.res.Turn == nil {
		return header + "\n" + dimStyle.Render("history is empty")
	}
	return header + "\n" + m.printer.Turn(*msg.res.Turn, msg.res.Tree)
}

func (m *Model) appendEntry(s string) {
	m.entries = append(m.entries, s)
	m.refresh()
}

func (m *Model) refresh() {
	m.view.SetContent(strings.Join(m.entries, "\n"))
	m.view.GotoBottom()
}

func (m Model) View() string {
	status := dimStyle.Render(helpLine)
	if m.busy {
		status = m.spin.View() + " working..."
	}
	return m.view.View() + "\n" + m.input.View() + "\n" + status
}

// Transcript returns everything shown so far.
func (m Model) Transcript() string {
	return strings.Join(m.entries, "\n")
}

// Run starts the program on the terminal and blocks until the user exits.
func Run(ctx context.Context, backend Backend, sessionID string, printer *preview.Printer) error {
	p := tea.NewProgram(New(ctx, backend, sessionID, printer), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
