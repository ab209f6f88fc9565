package web

import (
	"embed"
)

// staticFiles holds the launcher page with its stylesheet and script.
//
//go:embed static/*
var staticFiles embed.FS
