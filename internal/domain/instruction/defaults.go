package instruction

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed prompts/*.md
var promptsFS embed.FS

// Defaults returns the three built-in instructions keyed by their default key.
// The prompt bodies are embedded at build time, so a read failure is a
// packaging bug and panics.
func Defaults() map[string]Instruction {
	return map[string]Instruction{
		KeyNLQRefinement:      mustLoad(KeyNLQRefinement, "NLQ refinement with SQL preparation"),
		KeySQLGeneration:      mustLoad(KeySQLGeneration, "SQL generation from refined NLQ"),
		KeyAmbiguityDetection: mustLoad(KeyAmbiguityDetection, "Detect ambiguity in queries"),
	}
}

func mustLoad(key, description string) Instruction {
	system, err := loadPrompt(key + ".md")
	if err != nil {
		panic(err)
	}
	user, err := loadPrompt(key + ".user.md")
	if err != nil {
		panic(err)
	}
	return New(key, system, user, description)
}

func loadPrompt(name string) (string, error) {
	data, err := promptsFS.ReadFile("prompts/" + name)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}
