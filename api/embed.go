// Package api embeds the tool contract for the storefront service.
package api

import _ "embed"

// ToolsContract contains the raw tool contract YAML.
//
//go:embed tools.yaml
var ToolsContract []byte
