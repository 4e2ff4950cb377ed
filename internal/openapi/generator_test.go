package openapi

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/kindfund/kindfund/internal/model"
	"github.com/kindfund/kindfund/internal/policy"
)

func generate(t *testing.T) *openapi3.T {
	t.Helper()
	doc, err := Generate(policy.Default(), "http://localhost:8080", "1.2.3")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return doc
}

func isAdminOnly(op *openapi3.Operation) bool {
	if op.Security == nil {
		return false
	}
	for _, req := range *op.Security {
		if _, ok := req["bearerAuth"]; ok {
			return true
		}
	}
	return false
}

func TestGenerate_Info(t *testing.T) {
	doc := generate(t)

	if doc.OpenAPI != "3.1.0" {
		t.Errorf("OpenAPI version = %q, want %q", doc.OpenAPI, "3.1.0")
	}
	if doc.Info.Version != "1.2.3" {
		t.Errorf("Info.Version = %q, want %q", doc.Info.Version, "1.2.3")
	}
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "http://localhost:8080" {
		t.Errorf("Servers not set correctly")
	}

	bearer, ok := doc.Components.SecuritySchemes["bearerAuth"]
	if !ok {
		t.Fatal("bearerAuth security scheme not found")
	}
	if bearer.Value.Scheme != "bearer" || bearer.Value.BearerFormat != "JWT" {
		t.Errorf("bearerAuth = %+v", bearer.Value)
	}
	if len(doc.Security) != 0 {
		t.Errorf("global security = %v, want none; requirements are per operation", doc.Security)
	}
}

func TestGenerate_SecurityFollowsPolicy(t *testing.T) {
	doc := generate(t)
	table := policy.Default()

	for _, collection := range model.Collections {
		list := doc.Paths.Find(APIPrefix + "/" + collection)
		item := doc.Paths.Find(APIPrefix + "/" + collection + "/{id}")

		ops := map[policy.Operation]*openapi3.Operation{}
		if list != nil {
			ops[policy.List] = list.Get
			ops[policy.Create] = list.Post
		}
		if item != nil {
			ops[policy.Get] = item.Get
			ops[policy.Update] = item.Put
			ops[policy.Delete] = item.Delete
		}

		for _, op := range policy.Operations {
			want := table.Lookup(collection, op)
			got := ops[op]
			switch {
			case want == policy.NotExposed && got != nil:
				t.Errorf("%s %s: documented but not exposed", collection, op)
			case want != policy.NotExposed && got == nil:
				t.Errorf("%s %s: exposed but not documented", collection, op)
			case got != nil && isAdminOnly(got) != (want == policy.AdminOnly):
				t.Errorf("%s %s: admin-only = %v, want %v", collection, op, isAdminOnly(got), want == policy.AdminOnly)
			}
		}
	}
}

func TestGenerate_ContactsHaveNoUpdate(t *testing.T) {
	doc := generate(t)
	item := doc.Paths.Find(APIPrefix + "/contacts/{id}")
	if item == nil {
		t.Fatal("contacts item path missing")
	}
	if item.Put != nil {
		t.Error("contacts PUT must not be documented")
	}
}

func TestGenerate_AdminPaths(t *testing.T) {
	doc := generate(t)

	login := doc.Paths.Find(APIPrefix + "/admin/login")
	if login == nil || login.Post == nil {
		t.Fatal("login path missing")
	}
	if isAdminOnly(login.Post) {
		t.Error("login must not require a token")
	}
	if login.Post.Responses.Value("429") == nil {
		t.Error("login should document the rate limit response")
	}

	register := doc.Paths.Find(APIPrefix + "/admin/register")
	if register == nil || register.Post == nil {
		t.Fatal("register path missing")
	}
	if !isAdminOnly(register.Post) {
		t.Error("register must require a token")
	}

	me := doc.Paths.Find(APIPrefix + "/admin/me")
	if me == nil || me.Get == nil || !isAdminOnly(me.Get) {
		t.Error("me must exist and require a token")
	}
}

func TestGenerate_RegisterFollowsPolicy(t *testing.T) {
	table := policy.Default()
	table[policy.ResourceAdmins] = policy.Rules{}

	doc, err := Generate(table, "http://localhost", "dev")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if doc.Paths.Find(APIPrefix+"/admin/register") != nil {
		t.Error("register documented although not exposed")
	}
}

func TestGenerate_AdminOnlyOperationsDocument401(t *testing.T) {
	doc := generate(t)
	item := doc.Paths.Find(APIPrefix + "/causes/{id}")
	if item.Delete.Responses.Value("401") == nil {
		t.Error("admin-only delete should document 401")
	}
	if item.Get.Responses.Value("401") != nil {
		t.Error("open get should not document 401")
	}
}

func TestGenerate_DocumentSchemas(t *testing.T) {
	doc := generate(t)

	for _, name := range []string{"Cause", "Donation", "Event", "Blog", "Volunteer", "Contact", "ErrorResponse", "Credentials"} {
		if _, ok := doc.Components.Schemas[name]; !ok {
			t.Errorf("component schema %q missing", name)
		}
	}

	cause := doc.Components.Schemas["Cause"].Value
	title := cause.Properties["title"]
	if title == nil {
		t.Fatal("Cause.title property missing")
	}
	if title.Value.MaxLength == nil || *title.Value.MaxLength != 200 {
		t.Errorf("Cause.title maxLength = %v, want 200", title.Value.MaxLength)
	}

	required := append([]string(nil), cause.Required...)
	sort.Strings(required)
	if strings.Join(required, ",") != "description,title" {
		t.Errorf("Cause required = %v", required)
	}

	status := doc.Components.Schemas["Donation"].Value.Properties["status"]
	if status == nil || len(status.Value.Enum) != 3 {
		t.Errorf("Donation.status enum = %v, want three values", status)
	}
}

func TestGenerate_MarshalsJSON(t *testing.T) {
	doc := generate(t)
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"/api/v1/causes/{id}"`) {
		t.Error("marshalled document lacks the causes item path")
	}
}

func TestOperationCount(t *testing.T) {
	doc := generate(t)
	// 6 collections: causes, events, blogs expose all 5 (15); donations and
	// volunteers expose 5 each (10); contacts expose 4. Plus login, logout,
	// me and register.
	if got, want := OperationCount(doc), 15+10+4+4; got != want {
		t.Errorf("OperationCount = %d, want %d", got, want)
	}
}

func TestCustomizeField(t *testing.T) {
	tests := []struct {
		name  string
		typ   reflect.Type
		tag   reflect.StructTag
		check func(*openapi3.Schema) bool
	}{
		{"read only id", reflect.TypeOf(""), ``, func(s *openapi3.Schema) bool { return s.ReadOnly }},
		{"email format", reflect.TypeOf(""), `validate:"required,email"`, func(s *openapi3.Schema) bool { return s.Format == "email" }},
		{"url format", reflect.TypeOf(""), `validate:"omitempty,url"`, func(s *openapi3.Schema) bool { return s.Format == "uri" }},
		{"string max", reflect.TypeOf(""), `validate:"max=32"`, func(s *openapi3.Schema) bool { return s.MaxLength != nil && *s.MaxLength == 32 }},
		{"slice max", reflect.TypeOf([]string{}), `validate:"max=20,dive,max=50"`, func(s *openapi3.Schema) bool { return s.MaxItems != nil && *s.MaxItems == 20 && s.MaxLength == nil }},
		{"slice element max", reflect.TypeOf(""), `validate:"max=20,dive,max=50"`, func(s *openapi3.Schema) bool { return s.MaxLength != nil && *s.MaxLength == 50 }},
		{"minimum", reflect.TypeOf(0.0), `validate:"gt=0"`, func(s *openapi3.Schema) bool { return s.Min != nil && *s.Min == 0 }},
		{"enum", reflect.TypeOf(""), `validate:"omitempty,oneof=a b"`, func(s *openapi3.Schema) bool { return len(s.Enum) == 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name := "field"
			if tt.name == "read only id" {
				name = "id"
			}
			s := &openapi3.Schema{}
			if err := customizeField(name, tt.typ, tt.tag, s); err != nil {
				t.Fatalf("customizeField: %v", err)
			}
			if !tt.check(s) {
				t.Errorf("schema = %+v", s)
			}
		})
	}
}

func TestRequiredFields(t *testing.T) {
	got := requiredFields(reflect.TypeOf(&model.Contact{}))
	sort.Strings(got)
	if strings.Join(got, ",") != "email,message,name" {
		t.Errorf("requiredFields(Contact) = %v", got)
	}
}
