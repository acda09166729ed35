package apidoc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// Document is a loaded API description with its route table.
type Document struct {
	Spec   *openapi3.T
	router routers.Router
}

var (
	current *Document
	mu      sync.RWMutex
)

// Load reads and validates the OpenAPI document at path.
func Load(ctx context.Context, path string) (*Document, error) {
	loader := openapi3.NewLoader()
	spec, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if err := spec.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	r, err := legacy.NewRouter(spec)
	if err != nil {
		return nil, fmt.Errorf("route %s: %w", path, err)
	}
	return &Document{Spec: spec, router: r}, nil
}

// Setup loads the document used by ValidateRequests.
func Setup(path string) error {
	doc, err := Load(context.Background(), path)
	if err != nil {
		return err
	}
	mu.Lock()
	current = doc
	mu.Unlock()
	log.Infof("[APIDoc] Loaded %s (%d paths)", path, doc.Spec.Paths.Len())
	return nil
}

// GetDocument returns the document loaded by Setup, or nil.
func GetDocument() *Document {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// ValidateRequests checks requests against the document loaded by Setup.
// Without a document every request passes.
func ValidateRequests() fiber.Handler {
	return func(c *fiber.Ctx) error {
		doc := GetDocument()
		if doc == nil {
			return c.Next()
		}
		return doc.validate(c)
	}
}

// Middleware checks requests against d. Routes the document does not
// describe pass through. Only JSON bodies are validated.
func (d *Document) Middleware() fiber.Handler {
	return d.validate
}

func (d *Document) validate(c *fiber.Ctx) error {
	req, err := adaptor.ConvertRequest(c, false)
	if err != nil {
		return err
	}
	route, params, err := d.router.FindRoute(req)
	if err != nil {
		return c.Next()
	}
	input := &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: params,
		Route:      route,
		Options: &openapi3filter.Options{
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			ExcludeRequestBody: !isJSON(c.Get(fiber.HeaderContentType)),
			MultiError:         true,
		},
	}
	if err := openapi3filter.ValidateRequest(c.UserContext(), input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "bad_request",
			"message": describe(err),
		})
	}
	return c.Next()
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), fiber.MIMEApplicationJSON)
}

// describe turns a validation failure into one line naming the fields.
func describe(err error) string {
	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		parts := make([]string, 0, len(multi))
		for _, e := range multi {
			parts = append(parts, describe(e))
		}
		return strings.Join(parts, "; ")
	}
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Parameter != nil {
			return fmt.Sprintf("parameter %q is invalid", reqErr.Parameter.Name)
		}
		var schemaErr *openapi3.SchemaError
		if errors.As(reqErr.Err, &schemaErr) && len(schemaErr.JSONPointer()) > 0 {
			return fmt.Sprintf("body field %q is invalid: %s", strings.Join(schemaErr.JSONPointer(), "."), schemaErr.Reason)
		}
		if reqErr.RequestBody != nil {
			return "request body is invalid"
		}
	}
	return err.Error()
}
