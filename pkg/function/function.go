// Package function turns a name, an ordered binding list, and a handler
// into a validated, immutable, indexed descriptor, and collects
// descriptors into the registry the router is built from. All
// structural misconfiguration surfaces here, fail-fast, as DEFINITION
// errors; nothing in this package runs at request time except the
// read-only indices and the wrapped handler.
package function

import (
	"context"
	"encoding/json"
	"path"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ggpwnkthx/azfunc-go/pkg/binding"
	"github.com/ggpwnkthx/azfunc-go/pkg/fail"
	"github.com/ggpwnkthx/azfunc-go/pkg/protocol"
)

// Handler is the signature for generic (non-HTTP) trigger functions:
// envelope in, result envelope out. Invocation details travel in ctx
// (see InvocationFrom).
type Handler func(ctx context.Context, env *protocol.InvokeRequest) (*protocol.InvokeResponse, error)

// HTTPHandler is the signature for HTTP-shaped functions.
type HTTPHandler func(ctx context.Context, req *protocol.HTTPRequest) (*protocol.HTTPResponse, error)

// Function is a registered function descriptor. Create via New or
// NewHTTP; never mutate afterward. Safe for concurrent use.
type Function struct {
	Name     string
	Bindings []binding.Binding

	// Derived indices.
	Trigger binding.Binding
	Inputs  []binding.Binding
	Outputs []binding.Binding
	ByName  map[string]binding.Binding
	ByType  map[string][]binding.Binding

	// HTTPOutputName is set for HTTP-shaped functions; it may be the
	// protocol.ReturnSentinel.
	HTTPOutputName string

	handler     Handler
	httpHandler HTTPHandler

	schema    *gojsonschema.Schema
	schemaRaw map[string]any
}

// IsHTTP reports whether fn was defined through the HTTP entry point.
func (fn *Function) IsHTTP() bool { return fn.httpHandler != nil }

// Option tweaks a definition before validation.
type Option func(*defConfig)

type defConfig struct {
	schema map[string]any
}

// WithTriggerSchema attaches a JSON Schema the trigger payload must
// satisfy at request time. The schema itself is compiled at definition
// time; a malformed schema is a DEFINITION error.
func WithTriggerSchema(schema map[string]any) Option {
	return func(c *defConfig) { c.schema = schema }
}

// New defines a generic trigger function. The binding set must contain
// an inferable trigger and must not contain an HTTP trigger (use
// NewHTTP for those).
func New(name string, bindings []binding.Binding, h Handler, opts ...Option) (*Function, error) {
	fn, err := define(name, bindings, opts)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fail.Definitionf("function %q: handler is nil", fn.Name)
	}
	for _, b := range fn.Bindings {
		if binding.IsHTTPTrigger(b) {
			return nil, fail.Definitionf(
				"function %q: binding %q is an HTTP trigger; define HTTP-shaped functions with NewHTTP",
				fn.Name, b.Name)
		}
	}
	fn.handler = h
	return fn, nil
}

// NewHTTP defines an HTTP-shaped function: exactly one HTTP trigger and
// exactly one HTTP output binding. Passing no bindings declares the
// conventional pair: trigger "req" plus the $return output.
func NewHTTP(name string, bindings []binding.Binding, h HTTPHandler, opts ...Option) (*Function, error) {
	if len(bindings) == 0 {
		bindings = []binding.Binding{
			binding.HTTPTrigger("req"),
			binding.HTTPOutput(protocol.ReturnSentinel),
		}
	}
	fn, err := define(name, bindings, opts)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fail.Definitionf("function %q: handler is nil", fn.Name)
	}
	triggers := 0
	outputs := 0
	for _, b := range fn.Bindings {
		if binding.IsHTTPTrigger(b) {
			triggers++
		}
		if binding.IsHTTPOutput(b) {
			outputs++
			fn.HTTPOutputName = b.Name
		}
	}
	if triggers != 1 {
		return nil, fail.Definitionf("function %q: HTTP functions need exactly 1 httpTrigger binding, found %d", fn.Name, triggers)
	}
	if outputs != 1 {
		return nil, fail.Definitionf("function %q: HTTP functions need exactly 1 http output binding, found %d", fn.Name, outputs)
	}
	fn.httpHandler = h
	return fn, nil
}

// define runs the validation pipeline shared by both entry points.
func define(name string, bindings []binding.Binding, opts []Option) (*Function, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	if len(bindings) == 0 {
		return nil, fail.Definitionf("function %q: at least one binding is required", name)
	}

	var cfg defConfig
	for _, o := range opts {
		o(&cfg)
	}

	fn := &Function{
		Name:     name,
		Bindings: append([]binding.Binding(nil), bindings...),
		ByName:   make(map[string]binding.Binding, len(bindings)),
		ByType:   make(map[string][]binding.Binding, len(bindings)),
	}

	for _, b := range fn.Bindings {
		if strings.TrimSpace(b.Name) == "" {
			return nil, fail.Definitionf("function %q: binding of type %q has an empty name", name, b.Type)
		}
		if _, dup := fn.ByName[b.Name]; dup {
			return nil, fail.Definitionf("function %q: duplicate binding name %q", name, b.Name)
		}
		fn.ByName[b.Name] = b
		fn.ByType[b.Type] = append(fn.ByType[b.Type], b)
		switch b.Direction {
		case binding.In:
			fn.Inputs = append(fn.Inputs, b)
		case binding.Out:
			fn.Outputs = append(fn.Outputs, b)
		case binding.InOut:
			fn.Inputs = append(fn.Inputs, b)
			fn.Outputs = append(fn.Outputs, b)
		default:
			return nil, fail.Definitionf("function %q: binding %q has invalid direction %q", name, b.Name, b.Direction)
		}
	}

	trigger, err := inferTrigger(name, fn.Bindings)
	if err != nil {
		return nil, err
	}
	fn.Trigger = trigger

	if cfg.schema != nil {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(cfg.schema))
		if err != nil {
			return nil, fail.Definitionf("function %q: trigger schema does not compile: %v", name, err)
		}
		fn.schema = compiled
		fn.schemaRaw = cfg.schema
	}
	return fn, nil
}

// inferTrigger applies the *Trigger suffix predicate; with no suffix
// match the single in-direction binding is used, and an ambiguous set
// (two or more candidates) is rejected rather than silently picking the
// first.
func inferTrigger(name string, bindings []binding.Binding) (binding.Binding, error) {
	var matched []binding.Binding
	for _, b := range bindings {
		if binding.IsTrigger(b) {
			matched = append(matched, b)
		}
	}
	switch len(matched) {
	case 1:
		return matched[0], nil
	case 0:
		var ins []binding.Binding
		for _, b := range bindings {
			if b.Direction == binding.In {
				ins = append(ins, b)
			}
		}
		if len(ins) == 1 {
			return ins[0], nil
		}
		if len(ins) == 0 {
			return binding.Binding{}, fail.Definitionf("function %q: no trigger binding and no in-direction binding to fall back to", name)
		}
		return binding.Binding{}, fail.Definitionf(
			"function %q: trigger is ambiguous: %d in-direction bindings and none of type *Trigger", name, len(ins))
	default:
		types := make([]string, len(matched))
		for i, b := range matched {
			types[i] = b.Type
		}
		return binding.Binding{}, fail.Definitionf("function %q: more than one trigger binding: %s", name, strings.Join(types, ", ")).
			With("triggers", types)
	}
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fail.Definitionf("function name must be non-empty")
	}
	if strings.ContainsAny(name, "\n\r") {
		return "", fail.Definitionf("function name %q contains a newline", name)
	}
	if strings.Contains(name, "\\") {
		return "", fail.Definitionf("function name %q contains a backslash", name)
	}
	if strings.HasPrefix(name, "/") {
		return "", fail.Definitionf("function name %q must be relative", name)
	}
	if strings.Contains(name, "..") {
		return "", fail.Definitionf("function name %q contains path traversal", name)
	}
	return path.Clean(name), nil
}

// Invoke runs a generic function's handler.
func (fn *Function) Invoke(ctx context.Context, env *protocol.InvokeRequest) (*protocol.InvokeResponse, error) {
	if fn.handler == nil {
		return nil, fail.Internalf("function %q is HTTP-shaped; use InvokeHTTP", fn.Name)
	}
	return fn.handler(ctx, env)
}

// InvokeHTTP runs an HTTP-shaped function's handler.
func (fn *Function) InvokeHTTP(ctx context.Context, req *protocol.HTTPRequest) (*protocol.HTTPResponse, error) {
	if fn.httpHandler == nil {
		return nil, fail.Internalf("function %q is not HTTP-shaped; use Invoke", fn.Name)
	}
	return fn.httpHandler(ctx, req)
}

// HasTriggerSchema reports whether a trigger payload schema is attached.
func (fn *Function) HasTriggerSchema() bool { return fn.schema != nil }

// ValidateTriggerPayload checks raw against the attached trigger schema,
// when one exists. Violations are BAD_REQUEST listing every failed rule.
func (fn *Function) ValidateTriggerPayload(raw json.RawMessage) error {
	if fn.schema == nil {
		return nil
	}
	res, err := fn.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fail.BadRequestf("Data.%s: payload is not valid JSON: %v", fn.Trigger.Name, err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, re := range res.Errors() {
		msgs = append(msgs, re.String())
	}
	sort.Strings(msgs)
	return fail.BadRequestf("Data.%s: payload rejected by schema: %s", fn.Trigger.Name, strings.Join(msgs, "; ")).
		With("violations", msgs)
}
