package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*
var templatesFS embed.FS

const inferenceModel = "claude-3-5-sonnet-20241022"

func loadPrompt(templatePath string, data interface{}) (string, error) {
	tmpl, err := template.ParseFS(templatesFS, templatePath)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", err
	}

	return buf.String(), nil
}

// extractJSON pulls the JSON object out of a raw model response. Models tend to
// wrap the object in prose or code fences, so take everything between the first
// '{' and the last '}'.
func extractJSON(raw string) (string, error) {
	raw = strings.TrimSpace(raw)

	startIdx := strings.Index(raw, "{")
	endIdx := strings.LastIndex(raw, "}")
	if startIdx == -1 || endIdx == -1 || startIdx >= endIdx {
		return "", fmt.Errorf("no valid JSON found in response")
	}

	return raw[startIdx : endIdx+1], nil
}
