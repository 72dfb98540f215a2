package extract

import (
	"strings"
)

// FlattenMarkdown rewrites markdown into paragraphs the chunker can split on.
// Every table row becomes its own paragraph of space-joined cells, separator
// rows and code fences are dropped, and runs of blank lines collapse to one.
// Ordinary lines are kept together so prose paragraphs survive intact.
func FlattenMarkdown(src string) string {
	var b strings.Builder
	blank := true // suppress a leading blank line

	paragraphBreak := func() {
		if !blank {
			b.WriteString("\n\n")
			blank = true
		}
	}

	for _, raw := range strings.Split(src, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
			paragraphBreak()
		case strings.HasPrefix(line, "```") || strings.HasPrefix(line, "~~~"):
			paragraphBreak()
		case strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|"):
			row, ok := tableRow(line)
			if !ok {
				continue
			}
			paragraphBreak()
			b.WriteString(row)
			blank = false
			paragraphBreak()
		default:
			if !blank {
				b.WriteByte('\n')
			}
			b.WriteString(line)
			blank = false
		}
	}
	return strings.TrimSpace(b.String())
}

// tableRow joins the non-empty cells of a "| a | b |" line. Alignment rows
// such as "|---|:-:|" report ok=false.
func tableRow(line string) (string, bool) {
	cells := strings.Split(strings.Trim(line, "|"), "|")
	kept := make([]string, 0, len(cells))
	separator := true
	for _, c := range cells {
		cell := strings.TrimSpace(c)
		if strings.Trim(cell, ":- ") != "" {
			separator = false
		}
		if cell != "" {
			kept = append(kept, cell)
		}
	}
	if separator || len(kept) == 0 {
		return "", false
	}
	return strings.Join(kept, " "), true
}
