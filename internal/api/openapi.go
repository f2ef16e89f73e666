package api

import (
	"net/http"
	"strconv"

	"github.com/JaimeStill/geogov/internal/artifacts"
	"github.com/JaimeStill/geogov/internal/config"
	"github.com/JaimeStill/geogov/pkg/openapi"
	"github.com/JaimeStill/geogov/pkg/routes"
)

// Spec builds the OpenAPI document describing the routes NewModule serves.
// Paths are relative to the API base path, which is listed as the server
// behind the configured public URL, if any.
func Spec(cfg *config.Config) *openapi.Spec {
	spec := openapi.NewSpec(openapi.Info{
		Title:       cfg.API.OpenAPI.Title,
		Version:     cfg.Version,
		Description: cfg.API.OpenAPI.Description,
	}, cfg.API.OpenAPI.ServerURL(cfg.API.BasePath))
	spec.Components.AddSchemas(schemas())

	spec.Path("/analyze").Post = (&openapi.Operation{
		Summary:     "Analyze one feature artifact",
		Tags:        []string{"analyze"},
		RequestBody: openapi.RequestBodyJSON("Artifact", true),
	}).
		Respond(http.StatusOK, openapi.ResponseJSON("Decision logged", "Outcome")).
		RespondRef(errorResponse,
			http.StatusBadRequest,
			http.StatusRequestEntityTooLarge,
			http.StatusUnprocessableEntity,
			http.StatusBadGateway,
			http.StatusInternalServerError,
		)

	spec.Path("/analyze/batch").Post = (&openapi.Operation{
		Summary:     "Analyze a batch of feature artifacts",
		Description: "Items run concurrently. Results keep input order and per-item failures are reported inline.",
		Tags:        []string{"analyze"},
		RequestBody: openapi.RequestBodyJSON("BatchRequest", true),
	}).
		Respond(http.StatusOK, openapi.ResponseJSON("Batch completed", "BatchResult")).
		RespondRef(errorResponse, http.StatusBadRequest, http.StatusRequestEntityTooLarge)

	archive := openapi.BinaryResponse("Evidence bundle archive", "application/zip")
	archive.Headers = map[string]*openapi.Header{
		"X-Merkle-Root":   {Description: "Merkle root over the bundled receipt hashes", Schema: openapi.String("")},
		"X-Receipt-Head":  {Description: "Log head the bundle was cut at", Schema: openapi.Integer("")},
		"X-Receipt-Count": {Description: "Receipts included in the bundle", Schema: openapi.Integer("")},
	}

	spec.Path("/evidence").Get = (&openapi.Operation{
		Summary:    "Download an evidence bundle",
		Tags:       []string{"evidence"},
		Parameters: filterParams(),
	}).
		Respond(http.StatusOK, archive).
		RespondRef(errorResponse, http.StatusBadRequest, http.StatusInternalServerError)

	spec.Path("/evidence").Post = (&openapi.Operation{
		Summary:     "Export and publish an evidence bundle to blob storage",
		Description: "Published bundles are immutable. The Merkle root is stored with the blob for later verification.",
		Tags:        []string{"evidence"},
		RequestBody: openapi.RequestBodyJSON("Filter", false),
	}).
		Respond(http.StatusCreated, openapi.ResponseJSON("Bundle published", "PublishedBundle")).
		RespondRef(errorResponse,
			http.StatusBadRequest,
			http.StatusConflict,
			http.StatusServiceUnavailable,
			http.StatusInternalServerError,
		)

	spec.Path("/evidence/{id}").Get = (&openapi.Operation{
		Summary:     "Verify a published evidence bundle",
		Description: "Downloads the stored archive, re-hashes every receipt and checks the Merkle root against the root recorded at publish time.",
		Tags:        []string{"evidence"},
		Parameters: []*openapi.Parameter{
			openapi.PathParam("id", "Bundle id returned by publish", openapi.UUID("")),
		},
	}).
		Respond(http.StatusOK, openapi.ResponseJSON("Bundle verified", "Verification")).
		RespondRef(errorResponse,
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
			http.StatusServiceUnavailable,
			http.StatusInternalServerError,
		)

	pageSize := openapi.Integer("")
	pageSize.Default = cfg.API.Pagination.DefaultPageSize
	page := openapi.Integer("")
	page.Default = 1

	spec.Path("/decisions").Get = (&openapi.Operation{
		Summary: "List logged decisions in sequence order",
		Tags:    []string{"evidence"},
		Parameters: append(filterParams(),
			openapi.QueryParam("page", "Page number, 1-indexed", page),
			openapi.QueryParam("page_size", "Results per page, capped at "+strconv.Itoa(cfg.API.Pagination.MaxPageSize), pageSize),
		),
	}).
		Respond(http.StatusOK, openapi.ResponseJSON("Page of decisions", "DecisionPage")).
		RespondRef(errorResponse, http.StatusBadRequest, http.StatusInternalServerError)

	spec.Path("/health").Get = (&openapi.Operation{
		Summary: "Service health",
		Tags:    []string{"health"},
	}).
		Respond(http.StatusOK, openapi.ResponseJSON("Healthy", "Health")).
		Respond(http.StatusServiceUnavailable, openapi.ResponseJSON("Degraded", "Health"))

	return spec
}

type specHandler struct {
	doc http.Handler
}

func (h *specHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/openapi.json",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.doc.ServeHTTP},
		},
	}
}

func errorResponse(status int) string {
	switch status {
	case http.StatusBadRequest:
		return openapi.ResponseBadRequest
	case http.StatusNotFound:
		return openapi.ResponseNotFound
	case http.StatusConflict:
		return openapi.ResponseConflict
	case http.StatusRequestEntityTooLarge:
		return openapi.ResponsePayloadTooLarge
	case http.StatusUnprocessableEntity:
		return openapi.ResponseUnprocessable
	case http.StatusBadGateway:
		return openapi.ResponseBadGateway
	case http.StatusServiceUnavailable:
		return openapi.ResponseServiceUnavailable
	default:
		return openapi.ResponseInternal
	}
}

func filterParams() []*openapi.Parameter {
	return []*openapi.Parameter{
		openapi.QueryParam("feature_id", "Only decisions for this feature", openapi.String("")),
		openapi.QueryParam("from", "Inclusive lower bound on decision time", openapi.DateTime("")),
		openapi.QueryParam("to", "Exclusive upper bound on decision time", openapi.DateTime("")),
	}
}

func schemas() map[string]*openapi.Schema {
	ts := openapi.DateTime("")
	maxItems := MaxBatchItems
	items := openapi.ArrayOf(openapi.SchemaRef("Artifact"))
	items.MaxItems = &maxItems
	featureID := openapi.String("")
	featureID.Pattern = "^[A-Za-z0-9._:-]{1," + strconv.Itoa(artifacts.MaxFeatureIDLength) + "}$"

	return map[string]*openapi.Schema{
		"Artifact": openapi.Object(map[string]*openapi.Schema{
			"feature_id":  featureID,
			"title":       openapi.String("Feature title"),
			"description": openapi.String("Feature description"),
			"docs":        openapi.Strings("Supporting document excerpts"),
			"code_hints":  openapi.Strings("Identifiers or snippets from the implementation"),
			"tags":        openapi.Strings("Free-form feature tags"),
		}, "feature_id", "title", "description"),

		"BatchRequest": openapi.Object(map[string]*openapi.Schema{"items": items}, "items"),

		"Citation": openapi.Object(map[string]*openapi.Schema{
			"source":  openapi.String("Corpus chunk identifier"),
			"snippet": openapi.String("Quoted regulation text"),
		}),

		"Decision": openapi.Object(map[string]*openapi.Schema{
			"feature_id":           openapi.String(""),
			"title":                openapi.String(""),
			"needs_geo_compliance": openapi.Boolean(""),
			"reasoning":            openapi.String("Rendered reason of the deciding rule"),
			"regulations":          openapi.Strings("Regulations implicated by the verdict"),
			"matched_rules":        openapi.Strings("Policy rule IDs that matched"),
			"signals":              openapi.Strings("Signals extracted from the artifact"),
			"hints":                openapi.Strings("Code hints that shaped the retrieval query"),
			"citations":            openapi.ArrayOf(openapi.SchemaRef("Citation")),
			"confidence":           (&openapi.Schema{Type: "number"}).Range(0, 1),
			"notes":                openapi.String(""),
			"policy_version":       openapi.String(""),
			"policy_hash":          openapi.String("SHA-256 of the policy rules file"),
			"ts":                   ts,
			"hash":                 openapi.String("SHA-256 of the canonical decision bytes"),
		}),

		"Failure": openapi.Object(map[string]*openapi.Schema{
			"kind":       openapi.Enum("validation", "collaborator", "internal"),
			"stage":      openapi.SchemaRef("Stage"),
			"feature_id": openapi.String(""),
			"message":    openapi.String(""),
		}),

		"Stage": openapi.Enum("received", "signals_extracted", "retrieved", "judged", "ruled", "receipted", "done", "failed"),

		"Outcome": openapi.Object(map[string]*openapi.Schema{
			"feature_id": openapi.String(""),
			"stage":      openapi.SchemaRef("Stage"),
			"seq":        openapi.Integer("Receipt sequence number"),
			"decision":   openapi.SchemaRef("Decision"),
			"failure":    openapi.SchemaRef("Failure"),
			"elapsed_ms": openapi.Integer(""),
		}),

		"BatchResult": openapi.Object(map[string]*openapi.Schema{
			"id":         openapi.UUID(""),
			"results":    openapi.ArrayOf(openapi.SchemaRef("Outcome")),
			"total":      openapi.Integer(""),
			"succeeded":  openapi.Integer(""),
			"failed":     openapi.Integer(""),
			"elapsed_ms": openapi.Integer(""),
		}),

		"Filter": openapi.Object(map[string]*openapi.Schema{
			"feature_id": openapi.String(""),
			"from":       ts,
			"to":         ts,
		}),

		"PublishedBundle": openapi.Object(map[string]*openapi.Schema{
			"id":             openapi.UUID(""),
			"generated_at":   ts,
			"filter":         openapi.SchemaRef("Filter"),
			"head":           openapi.Integer("Log head the bundle was cut at"),
			"policy_version": openapi.String(""),
			"policy_hash":    openapi.String(""),
			"merkle_root":    openapi.String(""),
			"count":          openapi.Integer("Receipts included"),
			"key":            openapi.String("Blob key of the published archive"),
		}),

		"Verification": openapi.Object(map[string]*openapi.Schema{
			"merkle_root":    openapi.String("Root recomputed from the archived receipts"),
			"count":          openapi.Integer("Receipts in the archive"),
			"head":           openapi.Integer("Log head the bundle was cut at"),
			"policy_version": openapi.String(""),
			"policy_hash":    openapi.String(""),
		}),

		"DecisionRecord": {
			AllOf: []*openapi.Schema{
				openapi.SchemaRef("Decision"),
				openapi.Object(map[string]*openapi.Schema{"seq": openapi.Integer("Receipt sequence number")}),
			},
		},

		"DecisionPage": openapi.Object(map[string]*openapi.Schema{
			"data":        openapi.ArrayOf(openapi.SchemaRef("DecisionRecord")),
			"total":       openapi.Integer(""),
			"page":        openapi.Integer(""),
			"page_size":   openapi.Integer(""),
			"total_pages": openapi.Integer(""),
			"has_next":    openapi.Boolean(""),
		}),

		"Health": openapi.Object(map[string]*openapi.Schema{
			"status":         openapi.Enum("ok", "degraded"),
			"version":        openapi.String(""),
			"policy_version": openapi.String(""),
			"policy_hash":    openapi.String(""),
			"rules":          openapi.Integer(""),
			"receipt_head":   openapi.Integer(""),
			"index_chunks":   openapi.Integer(""),
			"index_digest":   openapi.String(""),
			"judgment":       openapi.String(""),
		}),
	}
}
