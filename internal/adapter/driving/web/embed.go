package web

import "embed"

//go:generate go tool templ generate -f components.templ

// StaticFS holds the embedded static assets (stylesheet).
//
//go:embed static/*
var StaticFS embed.FS
