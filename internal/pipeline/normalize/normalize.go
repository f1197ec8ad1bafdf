// Package normalize cleans extracted Markdown before chunking: newline
// and whitespace normalisation, image-placeholder rewriting, duplicate
// paragraph removal and repeated header/footer stripping.
package normalize

import (
	"regexp"
	"strings"
)

// ImageMarker is the canonical placeholder for figures with no
// extractable text. The chunker and filter key off it.
const ImageMarker = "[IMAGE]"

// DefaultRepeatThreshold is how many times a short line must repeat
// before it is treated as a running header or footer.
const DefaultRepeatThreshold = 6

var (
	trailingSpaceRe = regexp.MustCompile(`[ \t]+\n`)
	blankRunRe      = regexp.MustCompile(`\n{3,}`)
	listItemRe      = regexp.MustCompile(`^(\s*[-*+]\s+|\s*\d+\.\s+)`)
)

// Markdown normalises extractor output: CRLF to LF, trailing whitespace
// stripped, blank-line runs collapsed, image comments rewritten to
// ImageMarker, and consecutive duplicate paragraphs (common in OCR PDF
// exports) removed.
func Markdown(md string) string {
	md = strings.ReplaceAll(md, "\r\n", "\n")
	md = trailingSpaceRe.ReplaceAllString(md, "\n")
	md = blankRunRe.ReplaceAllString(md, "\n\n")
	md = strings.ReplaceAll(md, "<!-- image -->", ImageMarker)

	paras := strings.Split(md, "\n\n")
	deduped := make([]string, 0, len(paras))
	for _, p := range paras {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if len(deduped) > 0 && deduped[len(deduped)-1] == p {
			continue
		}
		deduped = append(deduped, p)
	}

	return strings.TrimSpace(strings.Join(deduped, "\n\n"))
}

// StripRepeatedLines removes short lines that repeat at least threshold
// times across the document, typically page headers, footers and
// watermarks. Headings, tables, lists and image markers are never
// candidates. Stays conservative on purpose: it only ever deletes
// repeated short lines, not unique content.
func StripRepeatedLines(md string, threshold int) string {
	if threshold <= 0 {
		threshold = DefaultRepeatThreshold
	}

	lines := strings.Split(md, "\n")
	counts := make(map[string]int)
	for _, ln := range lines {
		if s := strings.TrimSpace(ln); isHeaderFooterCandidate(s) {
			counts[s]++
		}
	}

	repeated := make(map[string]bool)
	for s, c := range counts {
		if c >= threshold {
			repeated[s] = true
		}
	}
	if len(repeated) == 0 {
		return strings.TrimSpace(md)
	}

	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		if repeated[strings.TrimSpace(ln)] {
			continue
		}
		out = append(out, ln)
	}

	cleaned := blankRunRe.ReplaceAllString(strings.Join(out, "\n"), "\n\n")
	return strings.TrimSpace(cleaned)
}

// Clean applies the full pre-chunk pipeline.
func Clean(md string, repeatThreshold int) string {
	return StripRepeatedLines(Markdown(md), repeatThreshold)
}

func isHeaderFooterCandidate(s string) bool {
	if s == "" || s == ImageMarker {
		return false
	}
	if strings.HasPrefix(s, "#") || strings.HasPrefix(s, "|") {
		return false
	}
	if listItemRe.MatchString(s) {
		return false
	}
	return len(s) >= 3 && len(s) <= 80
}
