package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/tetratelabs/wazero/api"
	"golang.org/x/term"

	distributed "github.com/wippyai/wasm-distributed"
	"github.com/wippyai/wasm-distributed/loader"
	"github.com/wippyai/wasm-distributed/registry"
	"github.com/wippyai/wasm-distributed/session"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

func newInspectCmd(a *app) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "inspect <location>",
		Short: "Browse the components of a bundle and call their exported functions.",
		Long: `Browse the components of a bundle and call their exported functions.

Runs an interactive view when stdout is a terminal, otherwise prints tables.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if plain || !term.IsTerminal(int(os.Stdout.Fd())) {
				return a.inspectPlain(cmd, args[0])
			}
			p := tea.NewProgram(newInspectModel(cmd.Context(), a, args[0]), tea.WithAltScreen())
			_, err := p.Run()
			return err
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print tables instead of the interactive view")
	return cmd
}

func (a *app) inspectPlain(cmd *cobra.Command, loc string) error {
	ctx := cmd.Context()
	s, err := a.newSession(ctx, newConsoleHost(a.logger))
	if err != nil {
		return err
	}
	defer func() { _ = s.Close(ctx) }()

	proc, err := s.LoadModule(ctx, loc)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprint(out, modulesTable(summarize(s)))
	if m := proc.Module(); m != nil {
		fmt.Fprintln(out)
		fmt.Fprint(out, componentsTable(m))
	}
	return nil
}

// unitInfo is one callable entry point of the inspected module.
type unitInfo struct {
	fn      distributed.Callable
	name    string
	kind    string
	fnName  string
	props   string
	params  []string
	results []string
}

type modelState int

const (
	stateSelectUnit modelState = iota
	stateInputArgs
	stateShowResult
)

type inspectModel struct {
	ctx      context.Context
	err      error
	app      *app
	sess     *session.Session
	module   *registry.Module
	location string
	result   string
	units    []unitInfo
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
	loaded   bool
}

func newInspectModel(ctx context.Context, a *app, loc string) *inspectModel {
	return &inspectModel{ctx: ctx, app: a, location: loc, state: stateSelectUnit}
}

type loadedMsg struct {
	err    error
	sess   *session.Session
	module *registry.Module
}

type callResultMsg struct {
	err    error
	result string
}

func (m *inspectModel) Init() tea.Cmd {
	return m.load
}

func (m *inspectModel) load() tea.Msg {
	s, err := m.app.newSession(m.ctx, newConsoleHost(m.app.logger))
	if err != nil {
		return loadedMsg{err: err}
	}
	proc, err := s.LoadModule(m.ctx, m.location)
	if err != nil {
		_ = s.Close(m.ctx)
		return loadedMsg{err: err}
	}
	if proc.Module() == nil {
		_ = s.Close(m.ctx)
		return loadedMsg{err: fmt.Errorf("%s exports no definition", m.location)}
	}
	return loadedMsg{sess: s, module: proc.Module()}
}

func (m *inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.sess != nil {
				_ = m.sess.Close(m.ctx)
			}
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectUnit && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectUnit && m.selected < len(m.units)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectUnit:
				if len(m.units) == 0 || m.units[m.selected].fn == nil {
					return m, nil
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.call
				}
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.call

			case stateShowResult:
				m.state = stateSelectUnit
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectUnit
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectUnit
				m.result = ""
				m.err = nil
			}
		}

	case loadedMsg:
		m.loaded = true
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.sess = msg.sess
		m.module = msg.module
		m.units = collectUnits(msg.module)

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

// collectUnits lists components then directives with the function each one
// exposes: render, else setup, else the first directive hook.
func collectUnits(mod *registry.Module) []unitInfo {
	var units []unitInfo
	for _, c := range mod.Components() {
		u := unitInfo{name: c.Name, kind: "component", props: formatProps(c.Props)}
		if c.Export != nil {
			switch {
			case c.Export.Render != nil:
				u.fn, u.fnName = c.Export.Render, "render"
			case c.Export.Setup != nil:
				u.fn, u.fnName = c.Export.Setup, "setup"
			}
		}
		units = append(units, describe(u))
	}
	for _, d := range mod.Directives() {
		u := unitInfo{name: d.Name, kind: "directive"}
		if d.Export != nil {
			for _, hook := range []string{"mounted", "created", "beforeMount", "updated", "unmounted"} {
				if fn, ok := d.Export.Hooks[hook]; ok {
					u.fn, u.fnName = fn, hook
					break
				}
			}
		}
		units = append(units, describe(u))
	}
	return units
}

func describe(u unitInfo) unitInfo {
	if sig, ok := u.fn.(loader.Signature); ok {
		u.params = sig.ParamTypes()
		u.results = sig.ResultTypes()
	}
	return u
}

func (m *inspectModel) prepareInputs() {
	u := m.units[m.selected]
	m.inputs = make([]textinput.Model, len(u.params))
	for i, p := range u.params {
		ti := textinput.New()
		ti.Placeholder = p
		ti.Prompt = fmt.Sprintf("arg%d: ", i)
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *inspectModel) call() tea.Msg {
	u := m.units[m.selected]
	params := make([]uint64, len(m.inputs))
	for i, input := range m.inputs {
		v, err := encodeParam(input.Value(), u.params[i])
		if err != nil {
			return callResultMsg{err: err}
		}
		params[i] = v
	}

	res, err := u.fn.Call(m.ctx, params...)
	if err != nil {
		return callResultMsg{err: err}
	}
	return callResultMsg{result: decodeResults(res, u.results)}
}

func encodeParam(value, typ string) (uint64, error) {
	value = strings.TrimSpace(value)
	switch typ {
	case api.ValueTypeName(api.ValueTypeI32):
		v, err := strconv.ParseInt(value, 10, 32)
		return api.EncodeI32(int32(v)), err
	case api.ValueTypeName(api.ValueTypeI64):
		v, err := strconv.ParseInt(value, 10, 64)
		return api.EncodeI64(v), err
	case api.ValueTypeName(api.ValueTypeF32):
		v, err := strconv.ParseFloat(value, 32)
		return api.EncodeF32(float32(v)), err
	case api.ValueTypeName(api.ValueTypeF64):
		v, err := strconv.ParseFloat(value, 64)
		return api.EncodeF64(v), err
	default:
		return strconv.ParseUint(value, 10, 64)
	}
}

func decodeResults(res []uint64, types []string) string {
	out := make([]string, len(res))
	for i, r := range res {
		typ := ""
		if i < len(types) {
			typ = types[i]
		}
		switch typ {
		case api.ValueTypeName(api.ValueTypeI32):
			out[i] = strconv.FormatInt(int64(api.DecodeI32(r)), 10)
		case api.ValueTypeName(api.ValueTypeI64):
			out[i] = strconv.FormatInt(int64(r), 10)
		case api.ValueTypeName(api.ValueTypeF32):
			out[i] = strconv.FormatFloat(float64(api.DecodeF32(r)), 'g', -1, 32)
		case api.ValueTypeName(api.ValueTypeF64):
			out[i] = strconv.FormatFloat(api.DecodeF64(r), 'g', -1, 64)
		default:
			out[i] = strconv.FormatUint(r, 10)
		}
	}
	if len(out) == 0 {
		return "(no results)"
	}
	return strings.Join(out, ", ")
}

func (m *inspectModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if !m.loaded {
		return "Loading bundle..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Bundle Inspector"))
	b.WriteString(" ")
	b.WriteString(m.module.CanonicalName())
	if v := m.module.Version(); v != "" {
		b.WriteString(" " + typeStyle.Render(v))
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.module.Location()))
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectUnit:
		if len(m.units) == 0 {
			b.WriteString("The module declares no components or directives.\n\n")
		} else {
			b.WriteString("Select a unit to call:\n\n")
		}
		for i, u := range m.units {
			line := m.formatUnit(u)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
			if i == m.selected && u.props != "" {
				b.WriteString("    props: " + typeStyle.Render(u.props) + "\n")
			}
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		u := m.units[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s.%s\n\n", funcStyle.Render(u.name), u.fnName))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(u.params[i]))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		u := m.units[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s.%s:\n\n", funcStyle.Render(u.name), u.fnName))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *inspectModel) formatUnit(u unitInfo) string {
	if u.fn == nil {
		return funcStyle.Render(u.name) + " " + helpStyle.Render("("+u.kind+", nothing to call)")
	}
	result := ""
	if len(u.results) > 0 {
		result = " -> " + typeStyle.Render(strings.Join(u.results, ", "))
	}
	return funcStyle.Render(u.name) + " " + helpStyle.Render(u.kind) + " " +
		u.fnName + "(" + typeStyle.Render(strings.Join(u.params, ", ")) + ")" + result
}
