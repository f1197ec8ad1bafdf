package services

import (
	"fmt"
	"strings"

	"github.com/veda-labs/examtutor/internal/core/domain"
)

// groundedSystemPrompt anchors every answer in retrieved sources.
const groundedSystemPrompt = `You are an Exam Tutor for competitive exams (GATE/UPSC).
Follow these rules strictly:
1) Use the provided SOURCES for facts, formulas, constitutional articles, dates, and definitions.
2) If the SOURCES do not contain the needed information, say you do not have enough information and ask a clarifying question.
3) Do not invent citations. Every factual claim must be supported by a source.
4) Be clear, step-by-step, and exam-oriented. Avoid unnecessary fluff.
5) If the user asks for only the final answer, comply but still remain grounded.`

// promptParts is a single-turn prompt: one system message and one user
// message, for maximum compatibility with OpenAI-compatible servers.
type promptParts struct {
	system string
	user   string
}

func modeHint(mode domain.TutorMode) string {
	switch mode {
	case domain.ModePractice:
		return "Create practice: give a question, then hints, then a full solution. Keep it exam-style."
	case domain.ModePYQ:
		return "Answer like PYQ trainer: show approach, key formula/framework, and a final solution."
	default:
		return "Answer as a teacher. Show steps and explain why each step is taken."
	}
}

// styleHint adds an exam-specific presentation note.
func styleHint(exam string) string {
	if strings.HasPrefix(exam, "UPSC") {
		return "Write in UPSC style: intro (1-2 lines), body (headings/bullets), conclusion. " +
			"Use examples and constitutional references when relevant."
	}
	return "Write in GATE style: define concept, list given/required, show steps with formulas, then final answer. " +
		"Include common mistakes and quick checks when helpful."
}

// formatSources renders retrieved chunks as a citable SOURCES block.
// Each source is addressable by its chunk id for [chunk:<id>] citations.
func formatSources(sources []domain.RetrievalCandidate) string {
	if len(sources) == 0 {
		return "(no sources retrieved)"
	}
	var sb strings.Builder
	for _, s := range sources {
		c := s.Chunk
		section := c.ParentSection
		if section == "" {
			section = c.SectionPath
		}
		sectionPart := ""
		if section != "" {
			sectionPart = fmt.Sprintf(", section=%s", section)
		}
		fmt.Fprintf(&sb, "[chunk:%s] %s (exam=%s, subject=%s, topic=%s%s)\n",
			c.ID(), c.SourceTitle, c.Exam, c.Subject, c.Topic, sectionPart)
		sb.WriteString(c.Content)
		sb.WriteString("\n---\n")
	}
	return strings.TrimSpace(sb.String())
}

// buildPrompt assembles the grounded single-turn prompt with optional
// conversation memory.
func buildPrompt(mode domain.TutorMode, exam, language, question string, sources []domain.RetrievalCandidate, memory string) promptParts {
	system := groundedSystemPrompt +
		"\n\nMode instructions: " + modeHint(mode) +
		"\nLanguage: " + language +
		"\nTarget exam: " + exam

	memoryBlock := ""
	if memory != "" {
		memoryBlock = "\n\nCHAT MEMORY (summary + recent context):\n" + memory
	}

	user := "SOURCES:\n" + formatSources(sources) +
		memoryBlock +
		"\n\nUSER QUESTION:\n" + question +
		"\n\nSTYLE NOTE: " + styleHint(exam) +
		"\n\nRESPONSE REQUIREMENTS:\n" +
		"- If you use facts/formulas/articles, cite chunk ids like [chunk:123].\n" +
		"- If sources are insufficient, say so and ask a clarifying question.\n"

	return promptParts{system: system, user: user}
}

// toMessages converts prompt parts into the chat message sequence.
func (p promptParts) toMessages() []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: "system", Content: p.system},
		{Role: "user", Content: p.user},
	}
}

// memoryBlock renders recent messages as a compact text block for the
// prompt, oldest first.
func memoryBlock(messages []domain.ChatMessage) string {
	var lines []string
	for _, m := range messages {
		lines = append(lines, strings.ToUpper(m.Role)+": "+m.Content)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
