package llm

import (
	"fmt"
	"sort"
	"strings"
)

// RedirectMessage is returned verbatim for queries outside software engineering
const RedirectMessage = "I'm a specialized chatbot for software engineering topics. I can help with programming languages, frameworks, system design, debugging, career advice for developers, and other software engineering topics. Please ask me something related to software development!"

const chatPromptHeader = `You are an expert software engineering assistant specialized in helping software engineers with technical questions, debugging, best practices, and career advice.

IMPORTANT RULES:
1. Only answer questions related to software engineering, programming, and technology
2. If asked about non-technical topics, politely redirect to software engineering topics
3. Provide practical, actionable advice
4. Consider the user's tech stack when giving recommendations
5. Be concise but comprehensive
6. Include code examples when relevant
7. Mention best practices and potential pitfalls`

const chatPromptFooter = `When providing answers:
- Tailor your responses to the technologies the user works with
- Provide examples in their preferred languages/frameworks when possible
- Suggest alternatives that align with their tech stack
- Be encouraging and educational`

// TechItem is one entry of the user's tech stack as seen by the prompt builder
type TechItem struct {
	Name        string
	Category    string
	Description string
}

// BuildChatSystemPrompt renders the assistant rules and the user's tech stack
func BuildChatSystemPrompt(techs []TechItem) string {
	var sb strings.Builder
	sb.WriteString(chatPromptHeader)

	if len(techs) > 0 {
		names := make([]string, 0, len(techs))
		byCategory := make(map[string][]string)
		var categories []string
		for _, t := range techs {
			names = append(names, t.Name)
			if _, seen := byCategory[t.Category]; !seen {
				categories = append(categories, t.Category)
			}
			byCategory[t.Category] = append(byCategory[t.Category], t.Name)
		}
		sort.Strings(categories)

		sb.WriteString("\n\nUser's Tech Stack:\n")
		sb.WriteString(strings.Join(names, ", "))
		sb.WriteString("\n\nCategorized:")
		for _, cat := range categories {
			label := cat
			if label == "" {
				label = "Other"
			}
			fmt.Fprintf(&sb, "\n- %s: %s", label, strings.Join(byCategory[cat], ", "))
		}
	}

	sb.WriteString("\n\n")
	sb.WriteString(chatPromptFooter)
	return sb.String()
}
