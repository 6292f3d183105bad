package answer

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/billsearch/internal/domain"
	"github.com/kailas-cloud/billsearch/internal/domain/document"
	"github.com/kailas-cloud/billsearch/internal/domain/search/hit"
)

// DefaultSystemPrompt frames the model as a policy explainer for executives.
const DefaultSystemPrompt = "You are an AI policy explainer for business executives. " +
	"Write 5 to 7 crisp sentences in plain English, using only the bills provided. " +
	"Explain what they mean in practice for employers: who is covered, key obligations " +
	"(audits, disclosures, notices, risk assessments), penalties or private right of action, " +
	"and effective dates or status. If no provided bill covers the question, say so plainly. " +
	"Cite bills as [doc <id>]. Avoid legalese. " +
	"End with exactly two concrete next steps written as imperative verbs. Not legal advice."

// NoContextAnswer is returned when retrieval found nothing to ground an answer on.
const NoContextAnswer = "I couldn't find relevant bills for that question. " +
	"Try adding your state or more detail about the AI use (for example, automated hiring bias audits)."

// NoStateMatchAnswer is returned when a state-scoped question found nothing.
const NoStateMatchAnswer = "This state currently has no directly relevant items in our corpus. " +
	"Ask to broaden the search if you want regional model bills."

// buildMessages renders the passages in rank order under the question.
func buildMessages(system, state, question string, hits []hit.Hit) []domain.ChatMessage {
	if state == "" {
		state = "unspecified"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Company state: %s\n", state)
	fmt.Fprintf(&b, "User question: %s\n\n", strings.TrimSpace(question))
	b.WriteString("Relevant bills (metadata and short snippets):\n")
	for i := range hits {
		writePassage(&b, &hits[i])
	}
	b.WriteString("\nAnswer the question from these bills only.\n")
	b.WriteString("- If no bill directly covers the use in this state, say so plainly.\n")
	b.WriteString("- Mention obligations, penalties or private right of action, and effective dates or status when present.\n")
	b.WriteString("- Finish with exactly two concrete next steps (imperative verbs).")

	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: system},
		{Role: domain.RoleUser, Content: b.String()},
	}
}

func writePassage(b *strings.Builder, h *hit.Hit) {
	doc := h.Document()
	fmt.Fprintf(b, "- [doc %d] %s", h.DocumentID(), doc.Title())
	if st := doc.State(); st != "" {
		fmt.Fprintf(b, " | state: %s", st)
	}
	if d := doc.Meta(document.MetaDate); d != "" {
		fmt.Fprintf(b, " | date: %s", d)
	}
	if cats := doc.Categories(); len(cats) > 0 {
		fmt.Fprintf(b, " | categories: %s", strings.Join(cats, ", "))
	}
	if s := doc.Meta(document.MetaStatus); s != "" {
		fmt.Fprintf(b, " | status: %s", s)
	}
	if u := doc.Meta(document.MetaURL); u != "" {
		fmt.Fprintf(b, " | url: %s", u)
	}
	fmt.Fprintf(b, "\n  snippet: %s\n", h.Snippet())
}
