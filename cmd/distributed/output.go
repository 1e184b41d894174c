package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"sigs.k8s.io/yaml"

	"github.com/wippyai/wasm-distributed/definition"
	"github.com/wippyai/wasm-distributed/registry"
	"github.com/wippyai/wasm-distributed/session"
	"github.com/wippyai/wasm-distributed/store"
)

type moduleSummary struct {
	Module        string   `json:"module"`
	Name          string   `json:"name"`
	Version       string   `json:"version,omitempty"`
	BuiltFor      string   `json:"builtFor,omitempty"`
	Compatibility string   `json:"compatibility"`
	Location      string   `json:"location"`
	Integrity     string   `json:"integrity"`
	Components    []string `json:"components"`
	Directives    []string `json:"directives,omitempty"`
	Rejected      int      `json:"rejected,omitempty"`
}

func summarize(s *session.Session) []moduleSummary {
	mods := s.Modules()
	out := make([]moduleSummary, 0, len(mods))
	for _, m := range mods {
		sum := moduleSummary{
			Module:        m.CanonicalName(),
			Name:          m.Name(),
			Version:       m.Version(),
			Compatibility: string(s.CompareVersion(m).State),
			Location:      m.Location(),
			Integrity:     m.Integrity(),
			Components:    m.ComponentNames(),
			Rejected:      len(m.Rejected()),
		}
		if b := m.Build(); b != nil {
			sum.BuiltFor = b.Version
		}
		for _, d := range m.Directives() {
			sum.Directives = append(sum.Directives, d.Name)
		}
		out = append(out, sum)
	}
	return out
}

func renderModules(format string, mods []moduleSummary) (string, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(mods, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil
	case "yaml":
		data, err := yaml.Marshal(mods)
		return string(data), err
	case "table", "":
		return modulesTable(mods), nil
	default:
		return "", fmt.Errorf("unknown output format: %q", format)
	}
}

func newTable(buf *bytes.Buffer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(buf)
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	return t
}

func modulesTable(mods []moduleSummary) string {
	var buf bytes.Buffer
	t := newTable(&buf)
	t.AppendHeader(table.Row{"Module", "Name", "Version", "Built For", "Compat", "Components", "Directives", "Rejected"})
	for _, m := range mods {
		t.AppendRow(table.Row{
			m.Module, m.Name, m.Version, m.BuiltFor, m.Compatibility,
			strings.Join(m.Components, ", "), strings.Join(m.Directives, ", "), m.Rejected,
		})
	}
	t.Render()
	return buf.String()
}

func componentsTable(m *registry.Module) string {
	var buf bytes.Buffer
	t := newTable(&buf)
	t.AppendHeader(table.Row{"Component", "Props", "Emits", "Render", "Setup"})
	for _, c := range m.Components() {
		t.AppendRow(table.Row{c.Name, formatProps(c.Props), strings.Join(c.Emits, ", "),
			c.Export != nil && c.Export.Render != nil, c.Export != nil && c.Export.Setup != nil})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, WidthMax: 60}})
	t.Render()
	return buf.String()
}

func formatProps(props map[string]definition.Prop) string {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		p := props[name]
		s := name
		if p.Type != "" {
			s += ": " + p.Type
		}
		if p.Required {
			s += "!"
		}
		parts[i] = s
	}
	return strings.Join(parts, ", ")
}

func cacheTable(entries []store.Entry) string {
	var buf bytes.Buffer
	t := newTable(&buf)
	t.AppendHeader(table.Row{"SRI", "Location", "Size", "Fetched"})
	for _, e := range entries {
		t.AppendRow(table.Row{e.SRI, e.Location, e.Size, e.FetchedAt.Format("2006-01-02 15:04:05")})
	}
	t.Render()
	return buf.String()
}
