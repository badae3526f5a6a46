// Package dashboard holds the HTML templates and stylesheet served by the
// experiment dashboard.
package dashboard

import "embed"

//go:embed templates/*.html
var Templates embed.FS

//go:embed assets/*
var Assets embed.FS
