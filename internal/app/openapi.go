package app

import _ "embed"

// OpenAPISpec is served by the swagger handler
//
//go:embed openapi.yaml
var OpenAPISpec []byte
