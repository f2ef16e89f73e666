package config

import (
	"fmt"

	"github.com/JaimeStill/geogov/pkg/formatting"
	"github.com/JaimeStill/geogov/pkg/middleware"
	"github.com/JaimeStill/geogov/pkg/openapi"
	"github.com/JaimeStill/geogov/pkg/pagination"
)

const (
	EnvAPIBasePath    = "GEOGOV_API_BASE_PATH"
	EnvAPIMaxBodySize = "GEOGOV_API_MAX_BODY_SIZE"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "GEOGOV_CORS_ENABLED",
	Origins:          "GEOGOV_CORS_ORIGINS",
	AllowedMethods:   "GEOGOV_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "GEOGOV_CORS_ALLOWED_HEADERS",
	AllowCredentials: "GEOGOV_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "GEOGOV_CORS_MAX_AGE",
}

var openapiEnv = &openapi.ConfigEnv{
	Title:       "GEOGOV_OPENAPI_TITLE",
	Description: "GEOGOV_OPENAPI_DESCRIPTION",
	PublicURL:   "GEOGOV_OPENAPI_PUBLIC_URL",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "GEOGOV_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "GEOGOV_PAGINATION_MAX_PAGE_SIZE",
}

// APIConfig holds API routing, request limits, CORS, list paging and
// OpenAPI document settings.
type APIConfig struct {
	BasePath    string                `toml:"base_path"`
	MaxBodySize string                `toml:"max_body_size"`
	CORS        middleware.CORSConfig `toml:"cors"`
	Pagination  pagination.Config     `toml:"pagination"`
	OpenAPI     openapi.Config        `toml:"openapi"`
}

// MaxBodySizeBytes returns MaxBodySize in bytes.
func (c *APIConfig) MaxBodySizeBytes() int64 {
	n, _ := formatting.ParseBytes(c.MaxBodySize)
	return n
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested CORS config.
func (c *APIConfig) Finalize() error {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = "4MB"
	}
	envString(EnvAPIBasePath, &c.BasePath)
	envString(EnvAPIMaxBodySize, &c.MaxBodySize)

	if _, err := formatting.ParseBytes(c.MaxBodySize); err != nil {
		return fmt.Errorf("invalid max_body_size: %w", err)
	}
	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	if err := c.OpenAPI.Finalize(openapiEnv); err != nil {
		return fmt.Errorf("openapi: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay, including nested sections.
func (c *APIConfig) Merge(overlay *APIConfig) {
	mergeString(&c.BasePath, overlay.BasePath)
	mergeString(&c.MaxBodySize, overlay.MaxBodySize)
	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
	c.OpenAPI.Merge(&overlay.OpenAPI)
}
