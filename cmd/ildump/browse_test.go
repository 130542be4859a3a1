package main

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press feeds a key and runs any command it returns back into the model.
func press(t *testing.T, m *browserModel, s string) {
	t.Helper()
	_, cmd := m.Update(key(s))
	if cmd == nil {
		return
	}
	if msg, ok := cmd().(bodyMsg); ok {
		m.Update(msg)
	}
}

func TestBrowserNavigation(t *testing.T) {
	m := newBrowserModel(openCalc(t))
	require.Len(t, m.types, 3)
	assert.Contains(t, m.View(), "Acme.Calc")

	press(t, m, "down")
	assert.Equal(t, 1, m.typeIdx)
	press(t, m, "enter")
	require.Equal(t, stateMethods, m.state)
	require.Len(t, m.methods, 2)
	assert.Contains(t, m.View(), "int32 Sum(int32 x)")

	press(t, m, "j")
	assert.Equal(t, 1, m.methodIdx)
	press(t, m, "j")
	assert.Equal(t, 1, m.methodIdx, "selection stops at the last method")

	press(t, m, "enter")
	require.Equal(t, stateBody, m.state)
	require.NoError(t, m.err)
	assert.Contains(t, m.View(), "ldc.i4.1")

	press(t, m, "t")
	assert.True(t, m.tree)
	assert.Contains(t, m.View(), "return (0 + 1)")

	press(t, m, "esc")
	assert.Equal(t, stateMethods, m.state)
	press(t, m, "esc")
	assert.Equal(t, stateTypes, m.state)

	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}

func TestBrowserFilter(t *testing.T) {
	m := newBrowserModel(openCalc(t))

	m.Update(key("/"))
	require.Equal(t, stateFilter, m.state)
	for _, r := range "Other" {
		m.Update(key(string(r)))
	}
	require.Len(t, m.types, 1)
	assert.Equal(t, "Other.Thing", m.types[0].FullName())

	press(t, m, "enter")
	assert.Equal(t, stateTypes, m.state)
	assert.Contains(t, m.View(), "prefix: Other")
}
