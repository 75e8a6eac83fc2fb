// Package instruction holds the named prompt pairs agents render before each
// generation call.
package instruction

import (
	"errors"
	"fmt"
	"strings"
)

// Default keys seeded into every registry built with NewRegistry.
const (
	KeyNLQRefinement      = "nlq_refinement"
	KeySQLGeneration      = "sql_generation"
	KeyAmbiguityDetection = "ambiguity_detection"
)

// CustomPrefix namespaces runtime-added instructions away from the defaults.
const CustomPrefix = "custom_"

// ErrMalformedTemplate is returned by RenderPrompt when the user prompt
// template references an unknown placeholder or has an unmatched brace.
var ErrMalformedTemplate = errors.New("malformed prompt template")

// Instruction is a reusable (system prompt, user prompt template) pair.
// UserPromptTemplate may reference {input} and {context}; a literal brace is
// written as {{ or }}.
type Instruction struct {
	Name               string `json:"name"`
	SystemPrompt       string `json:"system_prompt"`
	UserPromptTemplate string `json:"user_prompt_template"`
	Description        string `json:"description"`
}

func New(name, systemPrompt, userPromptTemplate, description string) Instruction {
	return Instruction{
		Name:               name,
		SystemPrompt:       systemPrompt,
		UserPromptTemplate: userPromptTemplate,
		Description:        description,
	}
}

// RenderPrompt fills the user template with input and context and returns
// both prompt parts. Values are substituted verbatim.
func (i Instruction) RenderPrompt(input, context string) (system, user string, err error) {
	user, err = render(i.UserPromptTemplate, map[string]string{
		"input":   input,
		"context": context,
	})
	if err != nil {
		return "", "", fmt.Errorf("render %q: %w", i.Name, err)
	}
	return i.SystemPrompt, user, nil
}

// Compose joins the two prompt parts with one blank line, the layout every
// generator receives.
func Compose(system, user string) string {
	return system + "\n\n" + user
}

func render(tmpl string, values map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(tmpl))

	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch c {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("%w: unmatched '{' at offset %d", ErrMalformedTemplate, i)
			}
			name := tmpl[i+1 : i+1+end]
			v, ok := values[name]
			if !ok {
				return "", fmt.Errorf("%w: unknown placeholder {%s}", ErrMalformedTemplate, name)
			}
			b.WriteString(v)
			i += end + 1
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				b.WriteByte('}')
				i++
				continue
			}
			return "", fmt.Errorf("%w: single '}' at offset %d", ErrMalformedTemplate, i)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}
