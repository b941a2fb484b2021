package adk

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed prompts/system_prompt.md
var systemPrompt string

// GetSystemPrompt returns the auditor instructions with no tenant bound.
func GetSystemPrompt() string {
	return systemPrompt
}

// SessionPreamble is the first message of an interactive session. It names the
// configured tenant and frameworks so the model does not have to ask for them.
func SessionPreamble(domain string, frameworks []string) string {
	var b strings.Builder
	if domain != "" {
		fmt.Fprintf(&b, "The configured Workspace domain is %s.", domain)
	}
	if len(frameworks) > 0 {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "Default frameworks: %s.", strings.Join(frameworks, ", "))
	}
	return b.String()
}
