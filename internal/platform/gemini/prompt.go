package gemini

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"text/template"

	"github.com/phrazzld/docstream/internal/generation"
)

//go:embed prompts/paper_analysis.tmpl
var promptFS embed.FS

const defaultPromptFile = "prompts/paper_analysis.tmpl"

//go:embed prompts/image_analysis.txt
var imagePrompt string

// promptData is the data passed to the prompt template.
type promptData struct {
	PaperText string
}

// loadPromptTemplate parses the template at path, or the embedded default
// when path is empty.
func loadPromptTemplate(path string) (*template.Template, error) {
	var (
		content []byte
		err     error
	)
	if path == "" {
		content, err = promptFS.ReadFile(defaultPromptFile)
	} else {
		content, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read prompt template: %v", generation.ErrInvalidConfig, err)
	}

	tmpl, err := template.New("paper_analysis").Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v", generation.ErrInvalidConfig, err)
	}
	return tmpl, nil
}

func renderPrompt(tmpl *template.Template, paperText string) (string, error) {
	if paperText == "" {
		return "", ErrEmptyPaperText
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, promptData{PaperText: paperText}); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}
