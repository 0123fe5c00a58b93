package cliapp

import (
	"awkref/internal/core/ports"
	"awkref/internal/engine/index"
	"awkref/internal/engine/outline"
	"awkref/internal/engine/resolver"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	locationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	strategyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)
)

// renderer prints results either as styled text or as JSON.
type renderer struct {
	out      io.Writer
	json     bool
	relative func(string) string
}

func (r renderer) emit(v any, text func() string) error {
	if r.json {
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(r.out, text())
	return err
}

func (r renderer) loc(path string, line, col int) string {
	return locationStyle.Render(fmt.Sprintf("%s:%d:%d", r.relative(path), line, col))
}

func (r renderer) scan(res ports.ScanResult, st ports.IndexStats) error {
	return r.emit(map[string]any{"scan": res, "stats": st}, func() string {
		var b strings.Builder
		b.WriteString(titleStyle.Render("awkref index"))
		fmt.Fprintf(&b, "\n  files        %d (parsed %d, from store %d, unchanged %d)", res.Files, res.Parsed, res.FromStore, res.Unchanged)
		fmt.Fprintf(&b, "\n  identifiers  %d", st.Identifiers)
		fmt.Fprintf(&b, "\n  declarations %d", st.Declarations)
		fmt.Fprintf(&b, "\n  names        %d", st.Names)
		if res.Removed > 0 {
			fmt.Fprintf(&b, "\n  removed      %d", res.Removed)
		}
		if res.Failed > 0 {
			b.WriteString("\n  " + warnStyle.Render(fmt.Sprintf("failed       %d", res.Failed)))
		}
		fmt.Fprintf(&b, "\n  took         %s", res.Duration.Round(time.Millisecond))
		return b.String()
	})
}

func (r renderer) resolve(res ports.ResolveResult) error {
	return r.emit(res, func() string {
		q := r.loc(res.Query.Path, res.Query.Line, res.Query.Column)
		if !res.Found {
			if res.Outcome == resolver.Self.String() {
				return fmt.Sprintf("%s %s is its own declaration %s", q, res.Query.Name, strategyStyle.Render("("+res.Strategy+")"))
			}
			return fmt.Sprintf("%s %s: no reference", q, res.Query.Name)
		}
		t := res.Target
		return fmt.Sprintf("%s %s -> %s %s", q, res.Query.Name, r.loc(t.Path, t.Line, t.Column), strategyStyle.Render("("+res.Strategy+")"))
	})
}

func (r renderer) outline(path string, entries []outline.Entry) error {
	return r.emit(entries, func() string {
		var b strings.Builder
		b.WriteString(titleStyle.Render(r.relative(path)))
		if len(entries) == 0 {
			b.WriteString("\n  (no blocks or functions)")
		}
		for _, e := range entries {
			label := e.Name
			if e.Kind == outline.KindFunction {
				label = "function " + e.Name
			}
			fmt.Fprintf(&b, "\n  %-24s %d:%d", label, e.Line, e.Column)
		}
		return b.String()
	})
}

func (r renderer) rename(plan resolver.Plan, written []string) error {
	payload := ports.RenameResult{Plan: plan, FilesWritten: written}
	return r.emit(payload, func() string {
		var b strings.Builder
		fmt.Fprintf(&b, "%s %s -> %s (%d edits in %d files)", titleStyle.Render("rename"), plan.OldName, plan.NewName, len(plan.Edits), len(plan.Paths()))
		for _, e := range plan.Edits {
			fmt.Fprintf(&b, "\n  %s", r.loc(e.Path, e.Line, e.Column))
		}
		if written == nil {
			b.WriteString("\n" + strategyStyle.Render("dry run; pass -write to apply"))
		} else {
			fmt.Fprintf(&b, "\n%s", locationStyle.Render(fmt.Sprintf("wrote %d files", len(written))))
		}
		return b.String()
	})
}

func (r renderer) symbols(name string, stubs []index.Stub) error {
	return r.emit(stubs, func() string {
		var b strings.Builder
		fmt.Fprintf(&b, "%s %s (%d)", titleStyle.Render("symbols"), name, len(stubs))
		for _, s := range stubs {
			kind := "use"
			if s.Declaration {
				kind = "decl"
			}
			fmt.Fprintf(&b, "\n  %-5s %s", kind, r.loc(s.File, s.Line, s.Column))
		}
		return b.String()
	})
}
