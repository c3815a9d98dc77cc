package answer

import (
	"fmt"
	"strings"

	"github.com/antoniostano/guides/internal/mode"
	"github.com/antoniostano/guides/internal/retrieval"
)

// MsgApology is sent when answer generation fails outright.
const MsgApology = "Sorry, something went wrong while answering. Please try again in a moment."

const (
	noPassagesContext      = "(no reference passages found)"
	retrievalFailedContext = "(retrieval failed)"
)

func ragSystemPrompt(m mode.Mode) string {
	return fmt.Sprintf(
		"You are GuidES, a student guidance assistant for the %s category. "+
			"Answer only from the supplied reference passages. "+
			"If the passages do not contain the answer, say there is no relevant information instead of guessing. "+
			"Format answers as short paragraphs or bullet points.",
		m.Label(),
	)
}

const generalSystemPrompt = "You are GuidES, a helpful assistant for students. " +
	"Follow the user's instruction directly and keep the answer concise."

// unavailableMessage tells the user a category cannot answer right now.
func unavailableMessage(m mode.Mode) string {
	return fmt.Sprintf(
		"The %s knowledge base is not available right now. Please pick another category or try again later.",
		m.Label(),
	)
}

// composeQuestion folds the category, retrieved passages, and the student's
// question into the final user message.
func composeQuestion(m mode.Mode, passages []retrieval.Passage, passagesNote, question string) string {
	var b strings.Builder
	b.WriteString("[Category]\n")
	b.WriteString(m.Label())
	b.WriteString("\n\n[Reference passages]\n")
	if len(passages) == 0 {
		b.WriteString(passagesNote)
	} else {
		for i, p := range passages {
			if i > 0 {
				b.WriteString("\n---\n")
			}
			b.WriteString(strings.TrimSpace(p.Content))
		}
	}
	b.WriteString("\n\n[Student question]\n")
	b.WriteString(question)
	return b.String()
}
