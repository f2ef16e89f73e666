// Package routes declares HTTP route tables and registers them on a ServeMux.
package routes

import "net/http"

// Route binds an HTTP method and pattern to a handler.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
}

// String returns the ServeMux pattern for the route without any group prefix.
func (r Route) String() string {
	return r.Method + " " + r.Pattern
}
