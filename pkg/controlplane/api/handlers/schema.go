package handlers

import (
	"net/http"

	"github.com/invopop/jsonschema"
)

// SchemaHandler serves the JSON schema for the remote-config wire
// format, for IDE autocompletion and client-side validation of PUT
// request bodies.
type SchemaHandler struct{}

// NewSchemaHandler constructs a SchemaHandler.
func NewSchemaHandler() *SchemaHandler { return &SchemaHandler{} }

// RemoteConfig handles GET /v1/schema/remote-config.
func (h *SchemaHandler) RemoteConfig(w http.ResponseWriter, r *http.Request) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&entryWire{})
	schema.Version = "https://json-schema.org/draft/2020-12/schema"
	schema.Title = "Remote Entity Configuration"
	schema.Description = "Wire format for PUT /v1/remote-configs/{entityID}"
	WriteJSONOK(w, schema)
}
