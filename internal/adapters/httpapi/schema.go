package httpapi

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"world-state-engine/internal/core/domain"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const maxBodyBytes = 1 << 20

type schemaSet map[string]*jsonschema.Schema

func compileSchemas() (schemaSet, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, err
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	c.AssertFormat = true

	set := make(schemaSet, len(entries))
	for _, e := range entries {
		raw, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, err
		}
		url := "mem://schemas/" + e.Name()
		if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", e.Name(), err)
		}
		s, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", e.Name(), err)
		}
		set[strings.TrimSuffix(e.Name(), ".schema.json")] = s
	}
	return set, nil
}

// decode validates the request body against the named schema and then decodes
// it into dest. Every failure is structural.
func (s schemaSet) decode(w http.ResponseWriter, r *http.Request, name string, dest any) error {
	schema, ok := s[name]
	if !ok {
		return fmt.Errorf("schema %s not registered", name)
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return domain.Invalid(fmt.Errorf("read body: %w", err))
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return domain.Invalid(fmt.Errorf("malformed JSON: %w", err))
	}
	if err := schema.Validate(doc); err != nil {
		return domain.Invalid(schemaProblems(err)...)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return domain.Invalid(err)
	}
	return nil
}

// schemaProblems flattens a validation error into one problem per failing leaf.
func schemaProblems(err error) []error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []error{err}
	}
	var out []error
	var walk func(v *jsonschema.ValidationError)
	walk = func(v *jsonschema.ValidationError) {
		if len(v.Causes) == 0 {
			loc := v.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			out = append(out, fmt.Errorf("%s: %s", loc, v.Message))
			return
		}
		for _, c := range v.Causes {
			walk(c)
		}
	}
	walk(ve)
	return out
}
