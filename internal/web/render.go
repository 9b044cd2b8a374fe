package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"portrait-studio/internal/upload"
)

//go:embed templates/*.html
var templateFS embed.FS

const blobPath = "/blob/"

type widgetData struct {
	upload.View
	PreviewURL    string
	RemoveLabel   string
	GenerateLabel string
}

type pageData struct {
	Widget widgetData
	Style  string
}

func parseTemplates() (*template.Template, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}

func newWidgetData(v upload.View) widgetData {
	d := widgetData{
		View:          v,
		RemoveLabel:   upload.RemoveLabel,
		GenerateLabel: upload.GenerateLabel,
	}
	if !v.Preview.IsZero() {
		d.PreviewURL = blobPath + string(v.Preview)
	}
	return d
}

func renderWidget(tmpl *template.Template, v upload.View) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "widget", newWidgetData(v)); err != nil {
		return "", fmt.Errorf("render widget: %w", err)
	}
	return buf.String(), nil
}
