package openapi

// PathItem holds the operations of one path. Only the methods the API uses
// are modeled.
type PathItem struct {
	Get  *Operation `json:"get,omitempty"`
	Post *Operation `json:"post,omitempty"`
}

type Operation struct {
	Summary     string            `json:"summary,omitempty"`
	Description string            `json:"description,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Parameters  []*Parameter      `json:"parameters,omitempty"`
	RequestBody *RequestBody      `json:"requestBody,omitempty"`
	Responses   map[int]*Response `json:"responses"`
}

// Respond records r as the response for status. It returns o for chaining.
func (o *Operation) Respond(status int, r *Response) *Operation {
	if o.Responses == nil {
		o.Responses = map[int]*Response{}
	}
	o.Responses[status] = r
	return o
}

// RespondRef records a reference to the named component response for each
// status.
func (o *Operation) RespondRef(name func(status int) string, statuses ...int) *Operation {
	for _, status := range statuses {
		o.Respond(status, ResponseRef(name(status)))
	}
	return o
}

type Parameter struct {
	Name        string  `json:"name"`
	In          string  `json:"in"`
	Description string  `json:"description,omitempty"`
	Required    bool    `json:"required,omitempty"`
	Schema      *Schema `json:"schema"`
}

// PathParam declares a path segment parameter. Path parameters are always
// required.
func PathParam(name, description string, schema *Schema) *Parameter {
	return &Parameter{Name: name, In: "path", Description: description, Required: true, Schema: schema}
}

// QueryParam declares an optional query string parameter.
func QueryParam(name, description string, schema *Schema) *Parameter {
	return &Parameter{Name: name, In: "query", Description: description, Schema: schema}
}

type RequestBody struct {
	Description string                `json:"description,omitempty"`
	Required    bool                  `json:"required,omitempty"`
	Content     map[string]*MediaType `json:"content"`
}

// RequestBodyJSON declares a JSON body of the named component schema.
func RequestBodyJSON(schema string, required bool) *RequestBody {
	return &RequestBody{Required: required, Content: jsonContent(schema)}
}

// Response is either inline or a $ref to a component response.
type Response struct {
	Ref         string                `json:"$ref,omitempty"`
	Description string                `json:"description,omitempty"`
	Headers     map[string]*Header    `json:"headers,omitempty"`
	Content     map[string]*MediaType `json:"content,omitempty"`
}

type Header struct {
	Description string  `json:"description,omitempty"`
	Schema      *Schema `json:"schema"`
}

type MediaType struct {
	Schema *Schema `json:"schema,omitempty"`
}

// ResponseRef points at a component response.
func ResponseRef(name string) *Response {
	return &Response{Ref: "#/components/responses/" + name}
}

// ResponseJSON declares a JSON response of the named component schema.
func ResponseJSON(description, schema string) *Response {
	return &Response{Description: description, Content: jsonContent(schema)}
}

// BinaryResponse declares a file download of contentType.
func BinaryResponse(description, contentType string) *Response {
	return &Response{
		Description: description,
		Content: map[string]*MediaType{
			contentType: {Schema: &Schema{Type: "string", Format: "binary"}},
		},
	}
}

func jsonContent(schema string) map[string]*MediaType {
	return map[string]*MediaType{"application/json": {Schema: SchemaRef(schema)}}
}
