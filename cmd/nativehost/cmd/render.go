package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"

	"github.com/go-drift/nativehost/pkg/bridge"
	"github.com/go-drift/nativehost/pkg/mounting"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	componentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	propStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// renderTree draws the component subtree rooted at tag.
func renderTree(reg *mounting.ComponentInstanceRegistry, tag int64) string {
	root, ok := reg.Get(tag)
	if !ok {
		return errorStyle.Render(fmt.Sprintf("no component at tag %d", tag))
	}
	return componentTree(root).String()
}

func componentTree(inst mounting.ComponentInstance) *tree.Tree {
	t := tree.Root(componentLabel(inst))
	for _, child := range inst.Children() {
		if len(child.Children()) == 0 {
			t.Child(componentLabel(child))
			continue
		}
		t.Child(componentTree(child))
	}
	return t
}

func componentLabel(inst mounting.ComponentInstance) string {
	label := componentStyle.Render(fmt.Sprintf("%s #%d", inst.ComponentName(), inst.Tag()))
	props := inst.Props()
	if props == nil {
		return label
	}
	keys := props.Keys()
	if len(keys) == 0 {
		return label
	}
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		v, _ := props.Get(key)
		parts = append(parts, fmt.Sprintf("%s=%v", key, v))
	}
	return label + " " + propStyle.Render(strings.Join(parts, " "))
}

func renderReport(name string, report *mounting.ApplyReport) string {
	var b strings.Builder
	b.WriteString(resultStyle.Render(fmt.Sprintf("%s: %d applied", name, report.Applied)))
	if len(report.Failures) > 0 {
		b.WriteString(errorStyle.Render(fmt.Sprintf(", %d failed", len(report.Failures))))
	}
	for _, f := range report.Failures {
		b.WriteString("\n  ")
		b.WriteString(errorStyle.Render(f.Error()))
	}
	return b.String()
}

func renderModule(m bridge.Module) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.Name()))
	for _, spec := range m.Methods() {
		b.WriteString("\n  ")
		b.WriteString(componentStyle.Render(spec.Name))
		b.WriteString(" ")
		b.WriteString(helpStyle.Render(spec.Convention.String()))
	}
	return b.String()
}
