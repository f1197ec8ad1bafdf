package chunker

import (
	"regexp"
	"strings"
)

// Block kinds recorded on chunk drafts.
const (
	blockHeading = "heading"
	blockText    = "text"
	blockList    = "list"
	blockTable   = "table"
	blockCode    = "code"
	blockImage   = "image"
)

type block struct {
	text          string
	tokens        int
	sectionPath   string
	parentSection string
	kind          string
	headingLevel  int
	oversize      bool
}

type sectionFrame struct {
	level int
	title string
}

var (
	headingRe = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	listRe    = regexp.MustCompile(`^(\s*)([-*+]|\d+[.)])\s+`)
)

// parseBlocks walks the markdown line by line, grouping lines into
// typed blocks and tracking the heading stack so every block carries
// its section path and parent section.
func parseBlocks(text string, count TokenCounter, parentLevel int) []block {
	var blocks []block
	var stack []sectionFrame

	sectionPath := func() string {
		if len(stack) == 0 {
			return ""
		}
		titles := make([]string, len(stack))
		for i, f := range stack {
			titles[i] = f.title
		}
		return strings.Join(titles, " > ")
	}
	parentSection := func() string {
		parent := ""
		for _, f := range stack {
			if f.level <= parentLevel {
				parent = f.title
			}
		}
		if parent == "" && len(stack) > 0 {
			parent = stack[0].title
		}
		return parent
	}
	emit := func(lines []string, kind string, level int) {
		content := strings.TrimSpace(strings.Join(lines, "\n"))
		if content == "" {
			return
		}
		blocks = append(blocks, block{
			text:          content,
			tokens:        count(content),
			sectionPath:   sectionPath(),
			parentSection: parentSection(),
			kind:          kind,
			headingLevel:  level,
		})
	}

	lines := strings.Split(text, "\n")
	var buf []string
	bufKind := ""
	inCode := false

	flushBuf := func() {
		if len(buf) > 0 {
			emit(buf, bufKind, 0)
			buf = nil
			bufKind = ""
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") {
			if inCode {
				buf = append(buf, line)
				emit(buf, blockCode, 0)
				buf = nil
				bufKind = ""
				inCode = false
			} else {
				flushBuf()
				inCode = true
				bufKind = blockCode
				buf = append(buf, line)
			}
			continue
		}
		if inCode {
			buf = append(buf, line)
			continue
		}

		if m := headingRe.FindStringSubmatch(trimmed); m != nil {
			flushBuf()
			level := len(m[1])
			title := strings.TrimSpace(m[2])
			for len(stack) > 0 && stack[len(stack)-1].level >= level {
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, sectionFrame{level: level, title: title})
			emit([]string{trimmed}, blockHeading, level)
			continue
		}

		if trimmed == "" {
			flushBuf()
			continue
		}

		kind := lineKind(trimmed)
		if bufKind != "" && bufKind != kind {
			flushBuf()
		}
		bufKind = kind
		buf = append(buf, line)
	}
	flushBuf()

	return blocks
}

func lineKind(trimmed string) string {
	switch {
	case trimmed == imageMarker:
		return blockImage
	case strings.HasPrefix(trimmed, "|"):
		return blockTable
	case listRe.MatchString(trimmed):
		return blockList
	default:
		return blockText
	}
}
