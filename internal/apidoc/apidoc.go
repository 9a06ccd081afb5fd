// Package apidoc holds the OpenAPI description of the HTTP surface.
package apidoc

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var specData []byte

var ErrUndocumented = errors.New("undocumented operation")

type Document struct {
	doc  *openapi3.T
	json []byte
}

// Route is a documented method and path pair.
type Route struct {
	Method string
	Path   string
}

// Load parses and validates the embedded document and stamps it with the
// running service version.
func Load(version string) (*Document, error) {
	loader := openapi3.NewLoader()

	doc, err := loader.LoadFromData(specData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI document: %w", err)
	}

	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("OpenAPI document validation failed: %w", err)
	}

	if version != "" {
		doc.Info.Version = version
	}

	buf, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize OpenAPI document: %w", err)
	}

	return &Document{doc: doc, json: buf}, nil
}

// JSON returns the serialized document.
func (d *Document) JSON() []byte {
	return d.json
}

// Routes lists every documented operation, sorted by path then method.
func (d *Document) Routes() []Route {
	var routes []Route
	for path, item := range d.doc.Paths.Map() {
		for method := range item.Operations() {
			routes = append(routes, Route{Method: method, Path: path})
		}
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})
	return routes
}

func (d *Document) operation(method, path string) *openapi3.Operation {
	item := d.doc.Paths.Find(path)
	if item == nil {
		return nil
	}
	return item.GetOperation(method)
}

// HasOperation reports whether method and path are documented.
func (d *Document) HasOperation(method, path string) bool {
	return d.operation(method, path) != nil
}

// ValidateResponse checks a JSON body against the documented schema for the
// operation and status code.
func (d *Document) ValidateResponse(method, path string, statusCode int, body []byte) error {
	op := d.operation(method, path)
	if op == nil {
		return fmt.Errorf("%w: %s %s", ErrUndocumented, method, path)
	}

	resp := op.Responses.Status(statusCode)
	if resp == nil || resp.Value == nil {
		return fmt.Errorf("%w: %s %s returns %d", ErrUndocumented, method, path, statusCode)
	}

	media := resp.Value.Content.Get("application/json")
	if media == nil || media.Schema == nil || media.Schema.Value == nil {
		return fmt.Errorf("no JSON schema for %s %s %d", method, path, statusCode)
	}

	var value interface{}
	if err := json.Unmarshal(body, &value); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}

	if err := media.Schema.Value.VisitJSON(value); err != nil {
		return fmt.Errorf("%s %s %d: %w", method, path, statusCode, err)
	}
	return nil
}

// Handler serves the document.
func (d *Document) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(d.json)
	})
}
