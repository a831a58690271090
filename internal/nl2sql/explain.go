package nl2sql

import "strings"

// ExplanationHeader opens every explanation block.
const ExplanationHeader = "-- Explication de la requête :"

// Note is one populated clause of a plan, rendered as "-- Label : Text".
type Note struct {
	Label string
	Text  string
}

// Plan records what a builder assembled. It only lives long enough to be explained.
type Plan struct {
	Kind    Kind
	Summary string
	Tables  []string
	Fields  []string
	Notes   []Note
	Options []string
}

func (p *Plan) note(label, text string) {
	p.Notes = append(p.Notes, Note{Label: label, Text: strings.TrimSpace(text)})
}

// Explain renders plan as a block of SQL comments. It is deterministic in plan.
func Explain(plan Plan) string {
	var b strings.Builder
	b.WriteString("\n\n")
	b.WriteString(ExplanationHeader)
	b.WriteString("\n")
	if plan.Summary != "" {
		b.WriteString("-- Cette requête ")
		b.WriteString(plan.Summary)
		b.WriteString("\n")
	}
	if len(plan.Tables) > 0 {
		b.WriteString("-- Table(s) : ")
		b.WriteString(strings.Join(plan.Tables, ", "))
		b.WriteString("\n")
	}
	for _, note := range plan.Notes {
		if note.Text == "" {
			continue
		}
		b.WriteString("-- ")
		b.WriteString(note.Label)
		b.WriteString(" : ")
		b.WriteString(oneLine(note.Text))
		b.WriteString("\n")
	}
	if len(plan.Options) > 0 {
		b.WriteString("-- Options avancées détectées : ")
		b.WriteString(strings.Join(plan.Options, ", "))
		b.WriteString("\n")
	}
	return b.String()
}

func oneLine(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
