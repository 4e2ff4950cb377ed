// Package openapi builds the OpenAPI 3.1 description of the kindfund HTTP
// API from the access policy table and the document models.
package openapi

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3gen"

	"github.com/kindfund/kindfund/internal/model"
	"github.com/kindfund/kindfund/internal/policy"
)

// APIPrefix is the mount point of every documented path.
const APIPrefix = "/api/v1"

// Generate builds the API description. Only operations the table exposes
// appear, and admin-only operations carry the bearerAuth requirement.
func Generate(table policy.Table, baseURL, version string) (*openapi3.T, error) {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "kindfund API",
			Description: "Content and donation API for the kindfund site. Admin-only operations require a session token from POST /api/v1/admin/login.",
			Version:     version,
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  "Admin session token. Tokens expire 24 hours after login.",
		},
	}

	doc.Paths = openapi3.NewPaths()
	doc.Components.Schemas["ErrorResponse"] = errorResponseSchema()

	for _, collection := range model.Collections {
		if err := addCollectionPaths(doc, table, collection); err != nil {
			return nil, err
		}
	}
	addAdminPaths(doc, table)

	return doc, nil
}

// addCollectionPaths documents the exposed operations of one document
// collection.
func addCollectionPaths(doc *openapi3.T, table policy.Table, collection string) error {
	sample, err := model.NewDocument(collection)
	if err != nil {
		return err
	}
	schemaName := reflect.TypeOf(sample).Elem().Name()

	ref, err := openapi3gen.NewSchemaRefForValue(sample, doc.Components.Schemas,
		openapi3gen.SchemaCustomizer(customizeField))
	if err != nil {
		return fmt.Errorf("generate %s schema: %w", schemaName, err)
	}
	ref.Value.Required = requiredFields(reflect.TypeOf(sample))
	doc.Components.Schemas[schemaName] = ref
	schemaRef := "#/components/schemas/" + schemaName

	access := func(op policy.Operation) policy.Access { return table.Lookup(collection, op) }

	listPath := &openapi3.PathItem{}
	if a := access(policy.List); a != policy.NotExposed {
		listPath.Get = withAccess(listOperation(collection, schemaRef), a)
	}
	if a := access(policy.Create); a != policy.NotExposed {
		listPath.Post = withAccess(createOperation(collection, schemaRef), a)
	}
	if len(listPath.Operations()) > 0 {
		doc.Paths.Set(APIPrefix+"/"+collection, listPath)
	}

	itemPath := &openapi3.PathItem{
		Parameters: openapi3.Parameters{
			&openapi3.ParameterRef{
				Value: openapi3.NewPathParameter("id").
					WithDescription("Document ID").
					WithSchema(openapi3.NewStringSchema()),
			},
		},
	}
	if a := access(policy.Get); a != policy.NotExposed {
		itemPath.Get = withAccess(getOperation(collection, schemaRef), a)
	}
	if a := access(policy.Update); a != policy.NotExposed {
		itemPath.Put = withAccess(updateOperation(collection, schemaRef), a)
	}
	if a := access(policy.Delete); a != policy.NotExposed {
		itemPath.Delete = withAccess(deleteOperation(collection), a)
	}
	if len(itemPath.Operations()) > 0 {
		doc.Paths.Set(APIPrefix+"/"+collection+"/{id}", itemPath)
	}
	return nil
}

// addAdminPaths documents the session endpoints.
func addAdminPaths(doc *openapi3.T, table policy.Table) {
	doc.Components.Schemas["Credentials"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:     &openapi3.Types{"object"},
			Required: []string{"email", "password"},
			Properties: openapi3.Schemas{
				"email":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "email"}},
				"password": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "password"}},
				"name":     &openapi3.SchemaRef{Value: openapi3.NewStringSchema()},
			},
		},
	}
	credentials := &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Required: true,
			Content:  openapi3.NewContentWithJSONSchemaRef(openapi3.NewSchemaRef("#/components/schemas/Credentials", nil)),
		},
	}

	login := &openapi3.Operation{
		Tags:        []string{"admin"},
		Summary:     "Log in",
		Description: "Exchange admin credentials for a session token. Unknown emails and wrong passwords get the same 401 response.",
		OperationID: "admin_login",
		Security:    &openapi3.SecurityRequirements{},
		RequestBody: credentials,
		Responses: newResponses(policy.Open, "200", "Session token", &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type: &openapi3.Types{"object"},
				Properties: openapi3.Schemas{
					"token":      &openapi3.SchemaRef{Value: openapi3.NewStringSchema()},
					"token_type": &openapi3.SchemaRef{Value: openapi3.NewStringSchema()},
					"expires_in": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}},
					"expires_at": &openapi3.SchemaRef{Value: openapi3.NewDateTimeSchema()},
					"email":      &openapi3.SchemaRef{Value: openapi3.NewStringSchema()},
				},
			},
		}),
	}
	addErrorResponse(login.Responses, http.StatusUnauthorized, "Invalid credentials")
	addErrorResponse(login.Responses, http.StatusTooManyRequests, "Too many login attempts")
	doc.Paths.Set(APIPrefix+"/admin/login", &openapi3.PathItem{Post: login})

	doc.Paths.Set(APIPrefix+"/admin/logout", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"admin"},
			Summary:     "Log out",
			Description: "Tokens are stateless; the client discards its copy.",
			OperationID: "admin_logout",
			Security:    &openapi3.SecurityRequirements{},
			Responses:   newResponses(policy.Open, "200", "Logged out", objectSchema()),
		},
	})

	doc.Paths.Set(APIPrefix+"/admin/me", &openapi3.PathItem{
		Get: withAccess(&openapi3.Operation{
			Tags:        []string{"admin"},
			Summary:     "Current admin",
			OperationID: "admin_me",
			Responses:   newResponses(policy.AdminOnly, "200", "Identity carried by the token", objectSchema()),
		}, policy.AdminOnly),
	})

	if a := table.Lookup(policy.ResourceAdmins, policy.Create); a != policy.NotExposed {
		register := &openapi3.Operation{
			Tags:        []string{"admin"},
			Summary:     "Register another admin",
			OperationID: "admin_register",
			RequestBody: credentials,
			Responses:   newResponses(a, "201", "Admin created", objectSchema()),
		}
		addErrorResponse(register.Responses, http.StatusConflict, "Email already registered")
		doc.Paths.Set(APIPrefix+"/admin/register", &openapi3.PathItem{Post: withAccess(register, a)})
	}
}

// withAccess sets the operation's security requirement from its access
// level. Open operations explicitly require nothing.
func withAccess(op *openapi3.Operation, a policy.Access) *openapi3.Operation {
	if a == policy.AdminOnly {
		op.Security = &openapi3.SecurityRequirements{{"bearerAuth": {}}}
		addErrorResponse(op.Responses, http.StatusUnauthorized, "Missing, malformed or expired session token")
		return op
	}
	op.Security = &openapi3.SecurityRequirements{}
	return op
}

// ─── Operation Builders ─────────────────────────────────────────────────────

func listOperation(collection, schemaRef string) *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{collection},
		Summary:     fmt.Sprintf("List %s", collection),
		Description: fmt.Sprintf("Retrieve %s newest first. The total is also returned in the X-Total-Count header.", collection),
		OperationID: "list_" + collection,
		Parameters:  listQueryParameters(),
		Responses: newResponses(policy.Open, "200", fmt.Sprintf("A page of %s", collection), &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type: &openapi3.Types{"object"},
				Properties: openapi3.Schemas{
					"resource": &openapi3.SchemaRef{
						Value: &openapi3.Schema{
							Type:  &openapi3.Types{"array"},
							Items: openapi3.NewSchemaRef(schemaRef, nil),
						},
					},
					"meta": metaSchema(),
				},
			},
		}),
	}
}

func getOperation(collection, schemaRef string) *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{collection},
		Summary:     fmt.Sprintf("Get one of %s", collection),
		OperationID: "get_" + collection,
		Responses:   newResponses(policy.Open, "200", "The document", openapi3.NewSchemaRef(schemaRef, nil)),
	}
}

func createOperation(collection, schemaRef string) *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{collection},
		Summary:     fmt.Sprintf("Create in %s", collection),
		Description: "The server assigns id, created_at and updated_at. Unknown fields are rejected.",
		OperationID: "create_" + collection,
		RequestBody: &openapi3.RequestBodyRef{
			Value: &openapi3.RequestBody{
				Required: true,
				Content:  openapi3.NewContentWithJSONSchemaRef(openapi3.NewSchemaRef(schemaRef, nil)),
			},
		},
		Responses: newResponses(policy.Open, "201", "Created document", openapi3.NewSchemaRef(schemaRef, nil)),
	}
}

func updateOperation(collection, schemaRef string) *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{collection},
		Summary:     fmt.Sprintf("Update in %s", collection),
		Description: "Fields absent from the body keep their stored values. The merged document is revalidated.",
		OperationID: "update_" + collection,
		RequestBody: &openapi3.RequestBodyRef{
			Value: &openapi3.RequestBody{
				Required: true,
				Content:  openapi3.NewContentWithJSONSchemaRef(openapi3.NewSchemaRef(schemaRef, nil)),
			},
		},
		Responses: newResponses(policy.Open, "200", "Updated document", openapi3.NewSchemaRef(schemaRef, nil)),
	}
}

func deleteOperation(collection string) *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{collection},
		Summary:     fmt.Sprintf("Delete from %s", collection),
		OperationID: "delete_" + collection,
		Responses: newResponses(policy.Open, "200", "Deleted", &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type: &openapi3.Types{"object"},
				Properties: openapi3.Schemas{
					"success": &openapi3.SchemaRef{Value: openapi3.NewBoolSchema()},
					"id":      &openapi3.SchemaRef{Value: openapi3.NewStringSchema()},
				},
			},
		}),
	}
}

// ─── Query Parameter Builders ───────────────────────────────────────────────

// listQueryParameters returns the pagination parameters for list endpoints.
func listQueryParameters() openapi3.Parameters {
	return openapi3.Parameters{
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("limit").
				WithDescription("Maximum number of documents to return (1 to 100, default 25).").
				WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}),
		},
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("offset").
				WithDescription("Number of documents to skip.").
				WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}),
		},
	}
}

// ─── Response Helpers ───────────────────────────────────────────────────────

// newResponses builds a Responses map with a success response and the error
// responses every operation can produce.
func newResponses(a policy.Access, statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})

	addErrorResponse(responses, http.StatusBadRequest, "Bad request")
	addErrorResponse(responses, http.StatusNotFound, "Not found")
	addErrorResponse(responses, http.StatusInternalServerError, "Internal server error")
	if a == policy.AdminOnly {
		addErrorResponse(responses, http.StatusUnauthorized, "Missing, malformed or expired session token")
	}
	return responses
}

func addErrorResponse(responses *openapi3.Responses, code int, description string) {
	desc := description
	responses.Set(fmt.Sprint(code), &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &desc,
			Content:     openapi3.NewContentWithJSONSchemaRef(openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil)),
		},
	})
}

func errorResponseSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"code":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
							"message": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
							"context": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
						},
					},
				},
			},
		},
	}
}

func objectSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}
}

// metaSchema returns the schema for the "meta" field in list responses.
func metaSchema() *openapi3.SchemaRef {
	integer := func(format, desc string) *openapi3.SchemaRef {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: format, Description: desc}}
	}
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"count":  integer("int32", "Documents in this page."),
				"total":  integer("int64", "Documents in the collection."),
				"limit":  integer("int32", "Maximum documents returned per page."),
				"offset": integer("int32", "Number of documents skipped."),
			},
		},
	}
}

// OperationCount returns the number of documented operations, for logging.
func OperationCount(doc *openapi3.T) int {
	n := 0
	for path, item := range doc.Paths.Map() {
		if strings.HasPrefix(path, APIPrefix) {
			n += len(item.Operations())
		}
	}
	return n
}
