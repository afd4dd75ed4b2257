// SPDX-License-Identifier: Apache-2.0

// Package web holds the static assets the relay serves to host pages.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

//go:embed embed.js.tmpl
var assets embed.FS

type ScriptParams struct {
	EmbedDomain     string
	TriggerSelector string
}

// BootstrapScript renders the embeddable bootstrapper script for a
// deployment. Rendered once at router construction, not per request.
func BootstrapScript(params ScriptParams) ([]byte, error) {
	tmpl, err := template.ParseFS(assets, "embed.js.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse embed script template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return nil, fmt.Errorf("render embed script: %w", err)
	}

	return buf.Bytes(), nil
}
