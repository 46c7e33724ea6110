package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/cognicore/nerpt/pkg/ner/pipeline"
	"github.com/cognicore/nerpt/pkg/ner/tagger"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	categoryStyles = map[tagger.Category]lipgloss.Style{
		tagger.PER:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("117")),
		tagger.ORG:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("214")),
		tagger.LOC:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("120")),
		tagger.MISC: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("219")),
	}
)

// render highlights spans inline and lists them below the text. Features
// mode has no spans and prints the active features per token instead.
func render(text string, res pipeline.Result) string {
	var b strings.Builder
	if res.Mode == pipeline.FeaturesOnly {
		for i, f := range res.Features {
			names := make([]string, 0, len(f))
			for _, a := range f.Active() {
				names = append(names, a.Name)
			}
			fmt.Fprintf(&b, "%s %s\n", titleStyle.Render(res.Tokens[i].Text), dimStyle.Render(strings.Join(names, " ")))
		}
		return strings.TrimRight(b.String(), "\n")
	}

	runes := []rune(text)
	pos := 0
	for _, s := range res.Spans {
		if s.CharStart < pos || s.CharEnd > len(runes) {
			continue
		}
		b.WriteString(string(runes[pos:s.CharStart]))
		b.WriteString(categoryStyles[s.Label].Render(string(runes[s.CharStart:s.CharEnd]) + " " + string(s.Label)))
		pos = s.CharEnd
	}
	b.WriteString(string(runes[pos:]))
	b.WriteString("\n")

	if len(res.Spans) == 0 {
		b.WriteString(dimStyle.Render("no entities"))
		return b.String()
	}
	for _, s := range res.Spans {
		detail := fmt.Sprintf("[%d,%d] %.2f %s", s.Start, s.End, s.Confidence, s.Source)
		if s.Rule != "" {
			detail += " " + s.Rule
		}
		fmt.Fprintf(&b, "  %-5s %-30s %s\n", s.Label, s.Text, dimStyle.Render(detail))
	}
	return strings.TrimRight(b.String(), "\n")
}
