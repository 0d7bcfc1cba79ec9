package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/binstruct/nstruct"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	packetStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectPacket modelState = iota
	stateShowPacket
)

type inspectorModel struct {
	err      error
	filename string
	packets  []packet
	view     viewport.Model
	selected int
	state    modelState
	width    int
	height   int
	ready    bool
}

func newInspectorModel(filename string, packets []packet) *inspectorModel {
	return &inspectorModel{
		filename: filename,
		packets:  packets,
		state:    stateSelectPacket,
	}
}

func (m *inspectorModel) Init() tea.Cmd {
	return nil
}

func (m *inspectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.view = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.view.Width = msg.Width
			m.view.Height = msg.Height - 4
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectPacket && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectPacket && m.selected < len(m.packets)-1 {
				m.selected++
			}

		case "enter":
			if m.state == stateSelectPacket && len(m.packets) > 0 {
				m.view.SetContent(m.renderPacket(m.packets[m.selected]))
				m.view.GotoTop()
				m.state = stateShowPacket
			}

		case "esc":
			if m.state == stateShowPacket {
				m.state = stateSelectPacket
			}
		}
	}

	if m.state == stateShowPacket {
		var cmd tea.Cmd
		m.view, cmd = m.view.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *inspectorModel) renderPacket(p packet) string {
	var b strings.Builder
	b.WriteString(m.renderTree(p.value))
	if p.tcp != nil {
		b.WriteString("\n")
		b.WriteString(typeStyle.Render("tcp header"))
		b.WriteString("\n")
		b.WriteString(m.renderTree(p.tcp))
	}
	return b.String()
}

func (m *inspectorModel) renderTree(v *nstruct.Value) string {
	tree, err := nstruct.DumpWith(v, nstruct.DumpOptions{
		HumanReadable: true,
		IncludeType:   true,
		DumpExtra:     true,
		BytesAsString: true,
	})
	if err != nil {
		return errorStyle.Render(fmt.Sprintf("dump failed: %v", err))
	}
	out, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return errorStyle.Render(fmt.Sprintf("encode failed: %v", err))
	}
	return string(out)
}

func (m *inspectorModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Packet Inspector"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	if len(m.packets) == 0 {
		b.WriteString(errorStyle.Render("no decodable packets"))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("q quit"))
		return b.String()
	}

	switch m.state {
	case stateSelectPacket:
		for i, p := range m.packets {
			line := fmt.Sprintf("#%-4d %s %s", i+1,
				typeStyle.Render(p.value.Type().Name()),
				packetStyle.Render(p.summary))
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> "))
				b.WriteString(line)
			} else {
				b.WriteString("  ")
				b.WriteString(line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter inspect • q quit"))

	case stateShowPacket:
		b.WriteString(m.view.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ scroll • esc back • q quit"))
	}

	return b.String()
}

func runInteractive(filename string, packets []packet) error {
	p := tea.NewProgram(newInspectorModel(filename, packets), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
