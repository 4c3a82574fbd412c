// Package router is the request-time engine: it matches an inbound
// invocation to a registered function, translates between the wire
// envelope and the structured request/response model, and guarantees
// that no failure escapes to the transport untyped.
package router

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimd "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ggpwnkthx/azfunc-go/pkg/binding"
	"github.com/ggpwnkthx/azfunc-go/pkg/fail"
	"github.com/ggpwnkthx/azfunc-go/pkg/function"
	"github.com/ggpwnkthx/azfunc-go/pkg/hostcfg"
	"github.com/ggpwnkthx/azfunc-go/pkg/middleware/metrics"
	"github.com/ggpwnkthx/azfunc-go/pkg/protocol"
	"github.com/ggpwnkthx/azfunc-go/pkg/transport/httpx"
)

// Router routes invocation envelopes to registered functions. It is an
// immutable closure over its configuration and a registry snapshot;
// build once, serve concurrently.
type Router struct {
	cfg hostcfg.Config
	reg *function.Registry
	log *zap.Logger
}

// New builds a Router over a frozen registry snapshot.
func New(reg *function.Registry, cfg hostcfg.Config, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{cfg: cfg, reg: reg, log: log}
}

// Mount attaches all routes and baseline middleware to r and returns
// the finished handler.
func (rt *Router) Mount(r httpx.Router) http.Handler {
	r.Use(chimd.RequestID, chimd.Recoverer, chimd.Heartbeat("/ping"))
	r.Get("/admin/functions", http.HandlerFunc(rt.serveList))
	if rt.cfg.TemplateRoutes {
		rt.mountTemplates(r)
	}
	r.HandleAll("/*", http.HandlerFunc(rt.serveInvoke))
	return r.Mux()
}

// Handler is Mount over a fresh chi-backed router.
func (rt *Router) Handler() http.Handler { return rt.Mount(httpx.NewChi()) }

// mountTemplates registers the auxiliary template-route mode: HTTP
// triggers that declare a "route" extra get their template mounted
// under the prefix, with chi URL params resolved into request Params.
// Declared "methods" restrict the mount; the envelope POST is the
// default. Specificity between overlapping templates is chi's.
func (rt *Router) mountTemplates(r httpx.Router) {
	for _, fn := range rt.reg.List() {
		if !fn.IsHTTP() {
			continue
		}
		route := strings.Trim(fn.Trigger.ExtraString("route"), "/")
		if route == "" {
			continue
		}
		pattern := "/" + rt.cfg.RoutePrefix + "/" + route
		h := rt.invokeHandler(fn)
		methods := triggerMethods(fn)
		if len(methods) == 0 {
			methods = []string{http.MethodPost}
		}
		for _, m := range methods {
			r.Handle(strings.ToUpper(m), pattern, h)
		}
		rt.log.Info("template route mounted",
			zap.String("function", fn.Name),
			zap.String("pattern", pattern),
			zap.Strings("methods", methods),
		)
	}
}

func triggerMethods(fn *function.Function) []string {
	switch v := fn.Trigger.Extra["methods"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, m := range v {
			if s, ok := m.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// serveInvoke is the default match-by-name path: the first segment
// after the optional route prefix is the function name.
func (rt *Router) serveInvoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, boundaryBody{
			Error:   "MethodNotAllowed",
			Message: "invocation requests must be POST",
			Request: &requestInfo{Method: r.Method, Pathname: r.URL.Path},
		})
		return
	}
	name := rt.functionName(r.URL.Path)
	fn, ok := rt.reg.Lookup(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, boundaryBody{
			Error:          "NotFound",
			Message:        "no function registered under " + strings.TrimPrefix(r.URL.Path, "/"),
			Request:        &requestInfo{Pathname: r.URL.Path},
			KnownFunctions: rt.reg.Names(),
		})
		return
	}
	rt.invoke(w, r, fn, nil)
}

// invokeHandler adapts a template-mounted function to http.HandlerFunc,
// lifting chi URL params into invocation params.
func (rt *Router) invokeHandler(fn *function.Function) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := map[string]string{}
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			for i, key := range rctx.URLParams.Keys {
				if key == "*" {
					continue
				}
				params[key] = rctx.URLParams.Values[i]
			}
		}
		rt.invoke(w, r, fn, params)
	}
}

// functionName extracts the first path segment, skipping the prefix.
func (rt *Router) functionName(pathname string) string {
	segs := strings.Split(strings.Trim(pathname, "/"), "/")
	if len(segs) > 0 && segs[0] == rt.cfg.RoutePrefix && len(segs) > 1 {
		return segs[1]
	}
	if len(segs) > 0 {
		return segs[0]
	}
	return ""
}

// invoke is the shared pipeline once a function is matched: decode the
// envelope, validate, run the handler, encode the result. Decode
// failures (the structural request itself) surface at the wire level;
// handler failures of HTTP-shaped functions are wrapped into the output
// binding with a wire-level 200, per the host contract.
func (rt *Router) invoke(w http.ResponseWriter, r *http.Request, fn *function.Function, params map[string]string) {
	start := time.Now()
	kind := "generic"
	if fn.IsHTTP() {
		kind = "http"
	}

	env, err := protocol.DecodeInvokeRequest(r.Body, rt.cfg.MaxEnvelopeBytes)
	if err != nil {
		rt.writeError(w, fn, kind, start, err)
		return
	}
	if raw, ok := env.Data[fn.Trigger.Name]; ok {
		if err := fn.ValidateTriggerPayload(raw); err != nil {
			rt.writeError(w, fn, kind, start, err)
			return
		}
	} else if fn.HasTriggerSchema() {
		rt.writeError(w, fn, kind, start,
			fail.BadRequestf("Data.%s: missing", fn.Trigger.Name))
		return
	}

	inv := &function.Invocation{
		ID:           uuid.NewString(),
		FunctionName: fn.Name,
		RoutePrefix:  rt.cfg.RoutePrefix,
		Path:         r.URL.Path,
		Params:       params,
		Logger:       rt.log,
	}
	ctx := function.WithInvocation(r.Context(), inv)

	if fn.IsHTTP() {
		raw, ok := env.Data[fn.Trigger.Name]
		if !ok {
			rt.writeError(w, fn, kind, start, fail.BadRequestf("Data.%s: missing", fn.Trigger.Name))
			return
		}
		data, err := protocol.DecodeHTTPRequestData(raw, fn.Trigger.Name)
		if err != nil {
			rt.writeError(w, fn, kind, start, err)
			return
		}
		req, err := protocol.ToHTTPRequest(data)
		if err != nil {
			rt.writeError(w, fn, kind, start, err)
			return
		}
		for k, v := range params {
			req.Params[k] = v
		}

		out := rt.runHTTP(ctx, fn, req)
		out.Logs = mergeLogs(inv.Logs(), out.Logs)
		metrics.ObserveInvocation(fn.Name, kind, http.StatusOK, time.Since(start))
		writeJSON(w, http.StatusOK, out)
		return
	}

	res, herr := fn.Invoke(ctx, env)
	if herr != nil {
		rt.writeError(w, fn, kind, start, herr)
		return
	}
	if res == nil {
		res = &protocol.InvokeResponse{}
	}
	res.Logs = mergeLogs(inv.Logs(), res.Logs)
	metrics.ObserveInvocation(fn.Name, kind, http.StatusOK, time.Since(start))
	writeJSON(w, http.StatusOK, res)
}

// runHTTP executes an HTTP-shaped handler and encodes its structured
// response — or its failure — into the output binding slot. The
// application-level status always travels inside the envelope.
func (rt *Router) runHTTP(ctx context.Context, fn *function.Function, req *protocol.HTTPRequest) *protocol.InvokeResponse {
	resp, err := fn.InvokeHTTP(ctx, req)
	if err == nil && resp == nil {
		err = fail.Internalf("function %q returned neither a response nor an error", fn.Name)
	}
	if err == nil {
		wire, encErr := protocol.ToWireHTTPResponse(resp, rt.cfg.MaxResponseBytes)
		if encErr != nil {
			err = encErr
		} else {
			return protocol.EncodeInvokeResponse(fn.HTTPOutputName, wire)
		}
	}
	fe := fail.Convert(err)
	rt.log.Warn("handler failed",
		zap.String("function", fn.Name),
		zap.String("kind", string(fe.Kind)),
		zap.Error(fe),
	)
	body, _ := json.Marshal(fail.ToBody(fe))
	return protocol.EncodeInvokeResponse(fn.HTTPOutputName, &protocol.HTTPResponseData{
		StatusCode: fe.Status(),
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	})
}

// writeError reports a failure at the wire level: structural request
// problems and non-HTTP handler failures end up here.
func (rt *Router) writeError(w http.ResponseWriter, fn *function.Function, kind string, start time.Time, err error) {
	fe := fail.Convert(err)
	rt.log.Warn("invocation failed",
		zap.String("function", fn.Name),
		zap.String("kind", string(fe.Kind)),
		zap.Error(fe),
	)
	metrics.ObserveInvocation(fn.Name, kind, fe.Status(), time.Since(start))
	writeJSON(w, fe.Status(), fail.ToBody(fe))
}

// serveList is the admin listing: registered functions with their
// binding tuples, sorted by name.
func (rt *Router) serveList(w http.ResponseWriter, _ *http.Request) {
	type entry struct {
		Name     string            `json:"name"`
		Trigger  string            `json:"trigger"`
		HTTP     bool              `json:"http"`
		Bindings []binding.Binding `json:"bindings"`
	}
	fns := rt.reg.List()
	out := make([]entry, len(fns))
	for i, fn := range fns {
		out[i] = entry{
			Name:     fn.Name,
			Trigger:  fn.Trigger.Type,
			HTTP:     fn.IsHTTP(),
			Bindings: fn.Bindings,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type requestInfo struct {
	Method   string `json:"method,omitempty"`
	Pathname string `json:"pathname"`
}

type boundaryBody struct {
	Error          string       `json:"error"`
	Message        string       `json:"message"`
	Request        *requestInfo `json:"request,omitempty"`
	KnownFunctions []string     `json:"knownFunctions,omitempty"`
}

func mergeLogs(collected, own []string) []string {
	if len(collected) == 0 {
		return own
	}
	return append(collected, own...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Too late to change the status if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}
