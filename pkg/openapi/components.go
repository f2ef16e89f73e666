package openapi

import "maps"

// Shared component response names.
const (
	ResponseBadRequest         = "BadRequest"
	ResponseNotFound           = "NotFound"
	ResponseConflict           = "Conflict"
	ResponsePayloadTooLarge    = "PayloadTooLarge"
	ResponseUnprocessable      = "Unprocessable"
	ResponseBadGateway         = "BadGateway"
	ResponseServiceUnavailable = "ServiceUnavailable"
	ResponseInternal           = "InternalError"
)

// Components holds the reusable schemas and responses operations refer to.
type Components struct {
	Schemas   map[string]*Schema   `json:"schemas,omitempty"`
	Responses map[string]*Response `json:"responses,omitempty"`
}

// NewComponents creates Components with the Error schema and the error
// responses every JSON endpoint can return.
func NewComponents() *Components {
	c := &Components{
		Schemas: map[string]*Schema{
			"Error": Object(map[string]*Schema{"error": String("Error message")}, "error"),
		},
		Responses: make(map[string]*Response),
	}

	for name, desc := range map[string]string{
		ResponseBadRequest:         "Malformed request",
		ResponseNotFound:           "Resource does not exist",
		ResponseConflict:           "Resource already exists",
		ResponsePayloadTooLarge:    "Request body or item count exceeds the configured limit",
		ResponseUnprocessable:      "Request was well formed but failed validation",
		ResponseBadGateway:         "An upstream collaborator failed",
		ResponseServiceUnavailable: "A required backend is not configured or not ready",
		ResponseInternal:           "Unexpected server error",
	} {
		c.Responses[name] = ResponseJSON(desc, "Error")
	}

	return c
}

// AddSchemas merges the given schemas into the component schemas.
func (c *Components) AddSchemas(schemas map[string]*Schema) {
	maps.Copy(c.Schemas, schemas)
}

// AddResponses merges the given responses into the component responses.
func (c *Components) AddResponses(responses map[string]*Response) {
	maps.Copy(c.Responses, responses)
}
