package api

import _ "embed"

// SwaggerJSON is the OpenAPI description of the HTTP API.
//
//go:embed reservations.swagger.json
var SwaggerJSON []byte
