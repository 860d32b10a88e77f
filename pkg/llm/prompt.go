package llm

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tmc/langchaingo/prompts"
)

// PromptVars are the values available to a configured system prompt.
func PromptVars(site string, now time.Time) map[string]any {
	return map[string]any{
		"site": site,
		"date": now.Format("January 2, 2006"),
	}
}

// RenderSystemPrompt fills Go template placeholders such as {{.site}} in
// a system prompt. Prompts without placeholders are returned unchanged.
func RenderSystemPrompt(template string, vars map[string]any) (string, error) {
	if !strings.Contains(template, "{{") {
		return template, nil
	}

	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	rendered, err := prompts.NewPromptTemplate(template, names).Format(vars)
	if err != nil {
		return "", fmt.Errorf("invalid system prompt template: %w", err)
	}
	return rendered, nil
}
