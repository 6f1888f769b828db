package docs

import _ "embed"

//go:embed cert-api.openapi.yaml
var embeddedCertAPIOpenAPI []byte

//go:embed swagger.html
var embeddedCertAPISwaggerHTML []byte

// CertAPIOpenAPI is the OpenAPI specification of the certificate API.
var CertAPIOpenAPI = embeddedCertAPIOpenAPI

// CertAPISwaggerHTML is the Swagger UI page for the certificate API.
var CertAPISwaggerHTML = embeddedCertAPISwaggerHTML
