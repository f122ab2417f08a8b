package main

import (
	"bytes"
	"fmt"
	"os"
	"text/template"
)

type MessageTemplate struct {
	tmpl    *template.Template
	Content string // raw text, part of the completed-tracker hash
}

func LoadTemplate(filePath string) (*MessageTemplate, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}
	return ParseTemplate(string(content))
}

func ParseTemplate(content string) (*MessageTemplate, error) {
	tmpl, err := template.New("message").Option("missingkey=error").Parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &MessageTemplate{tmpl: tmpl, Content: content}, nil
}

func (mt *MessageTemplate) Render(contact Contact) (string, error) {
	data := make(map[string]any, len(contact.Fields)+2)
	for key, value := range contact.Fields {
		data[key] = value
	}
	data["Name"] = contact.Name
	data["PhoneNumber"] = contact.PhoneNumber

	var buf bytes.Buffer
	if err := mt.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}
