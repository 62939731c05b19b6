package chatbot

import "embed"

// TemplateFS contains the embedded HTML templates of the widget page, split into layouts, pages and
// partial views.
//
//go:embed templates/*
var TemplateFS embed.FS

// StaticFS contains the widget's script and stylesheet.
//
//go:embed static/*
var StaticFS embed.FS
