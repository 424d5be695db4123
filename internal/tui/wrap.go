package tui

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

type styledRune struct {
	s       string
	width   int
	isSpace bool
	isBreak bool
}

// highlight marks the runes of the most recent candidate insertion.
type highlight struct {
	start int
	end   int
}

func (h highlight) contains(i int) bool {
	return i >= h.start && i < h.end
}

func buildStyledRunes(text []rune, cursor int, hl highlight) []styledRune {
	out := make([]styledRune, 0, len(text)+1)
	for i, r := range text {
		style := textStyle
		if hl.contains(i) {
			style = candidateStyle
		}
		displayed := string(r)
		width := runewidth.RuneWidth(r)
		switch r {
		case '\n':
			displayed = " "
			width = 1
		case '\t':
			displayed = "    "
			width = 4
		}
		if i == cursor {
			style = style.Reverse(true)
		}
		out = append(out, styledRune{
			s:       style.Render(displayed),
			width:   width,
			isSpace: r == ' ' || r == '\t',
			isBreak: r == '\n',
		})
	}
	if cursor >= len(text) {
		out = append(out, styledRune{s: cursorStyle.Render(" "), width: 1})
	}
	return out
}

func renderStyledRunes(runes []styledRune) string {
	var b strings.Builder
	for _, item := range runes {
		b.WriteString(item.s)
	}
	return b.String()
}

func wrapStyledRunes(runes []styledRune, width int) string {
	var out strings.Builder
	line := make([]styledRune, 0, len(runes))
	lineWidth := 0
	lastSpaceIdx := -1

	for i := 0; i < len(runes); {
		item := runes[i]
		if item.isBreak {
			// The break rune renders as a trailing cell so a cursor on it stays visible.
			out.WriteString(renderStyledRunes(append(line, item)))
			out.WriteRune('\n')
			line = line[:0]
			lineWidth = 0
			lastSpaceIdx = -1
			i++
			continue
		}
		if width > 0 && lineWidth+item.width > width && len(line) > 0 {
			if lastSpaceIdx >= 0 {
				out.WriteString(renderStyledRunes(line[:lastSpaceIdx+1]))
				out.WriteRune('\n')
				line = append([]styledRune{}, line[lastSpaceIdx+1:]...)
				lineWidth = lineWidthOf(line)
				lastSpaceIdx = lastSpaceIndex(line)
			} else {
				out.WriteString(renderStyledRunes(line))
				out.WriteRune('\n')
				line = line[:0]
				lineWidth = 0
				lastSpaceIdx = -1
			}
			continue
		}
		line = append(line, item)
		lineWidth += item.width
		if item.isSpace {
			lastSpaceIdx = len(line) - 1
		}
		i++
	}
	out.WriteString(renderStyledRunes(line))
	return out.String()
}

func lineWidthOf(line []styledRune) int {
	total := 0
	for _, item := range line {
		total += item.width
	}
	return total
}

func lastSpaceIndex(line []styledRune) int {
	for i := len(line) - 1; i >= 0; i-- {
		if line[i].isSpace {
			return i
		}
	}
	return -1
}
