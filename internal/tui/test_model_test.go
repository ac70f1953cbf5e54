package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uiagent/internal/llm"
	"uiagent/internal/pipeline"
	"uiagent/internal/preview"
	"uiagent/internal/registry"
	"uiagent/internal/render"
	"uiagent/internal/session"
)

func newModel(t *testing.T, backend Backend, id string) Model {
	t.Helper()
	p, err := preview.New(preview.Options{})
	require.NoError(t, err)
	return New(context.Background(), backend, id, p)
}

// typeAndSubmit enters text, presses enter and feeds the resulting action
// back into the model.
func typeAndSubmit(t *testing.T, m Model, text string) Model {
	t.Helper()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	next, cmd := next.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.True(t, m.busy)
	require.NotNil(t, cmd)

	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	for _, c := range batch {
		if c == nil {
			continue
		}
		if res, ok := c().(resultMsg); ok {
			next, _ = m.Update(res)
			return next.(Model)
		}
	}
	t.Fatal("no result message in batch")
	return m
}

func TestChat_GenerateAndUndo(t *testing.T) {
	reg := registry.Default()
	ctrl, err := session.NewController(pipeline.New(llm.NewScriptedClient(llm.DemoReplies()), reg), render.New(reg), session.Config{})
	require.NoError(t, err)
	s := ctrl.Create()

	m := typeAndSubmit(t, newModel(t, ctrl, s.ID), "login page")
	assert.False(t, m.busy)
	assert.Contains(t, m.Transcript(), "> login page")
	assert.Contains(t, m.Transcript(), "[generate] 1 turn(s)")
	assert.Contains(t, m.Transcript(), `Card title="Login"`)
	assert.Equal(t, 1, s.History.Len())

	m = typeAndSubmit(t, m, commandUndo)
	assert.Contains(t, m.Transcript(), "[rollback] 0 turn(s)")
	assert.Contains(t, m.Transcript(), "history is empty")
	assert.Equal(t, 0, s.History.Len())
}

type failingBackend struct{}

func (failingBackend) Generate(context.Context, string, string) (session.Result, error) {
	return session.Result{}, errors.New("model offline")
}

func (failingBackend) Rollback(context.Context, string) (session.Result, error) {
	return session.Result{}, session.ErrNotFound
}

func TestChat_ErrorsAreShown(t *testing.T) {
	m := typeAndSubmit(t, newModel(t, failingBackend{}, "s1"), "anything")
	assert.Contains(t, m.Transcript(), "generate failed: model offline")
	assert.False(t, m.busy)
}

func TestChat_EmptyAndQuit(t *testing.T) {
	m := newModel(t, failingBackend{}, "s1")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.False(t, next.(Model).busy)

	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(commandQuit)})
	_, cmd = next.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestChat_Resize(t *testing.T) {
	next, _ := newModel(t, failingBackend{}, "s1").Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	m := next.(Model)
	assert.Equal(t, 80, m.view.Width)
	assert.Equal(t, 17, m.view.Height)
	assert.Contains(t, m.View(), helpLine)
}
