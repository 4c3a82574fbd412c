package protocol

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ggpwnkthx/azfunc-go/pkg/fail"
)

// HTTPRequestData is the wire shape an HTTP trigger's Data entry takes.
type HTTPRequestData struct {
	URL     string              `json:"Url"`
	Method  string              `json:"Method"`
	Query   map[string]string   `json:"Query,omitempty"`
	Headers map[string][]string `json:"Headers,omitempty"`
	Params  map[string]string   `json:"Params,omitempty"`
	Body    string              `json:"Body,omitempty"`
}

// HTTPResponseData is the wire shape carried by the HTTP output binding.
type HTTPResponseData struct {
	StatusCode int               `json:"statusCode,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body,omitempty"`
}

// HTTPRequest is the structured request handed to HTTP handlers.
type HTTPRequest struct {
	Method string
	URL    *url.URL
	Query  url.Values
	Header http.Header
	Params map[string]string
	Body   string
}

// HTTPResponse is the structured response HTTP handlers return. Body
// may be nil; it is buffered up to the configured ceiling on encode.
type HTTPResponse struct {
	StatusCode int
	Header     map[string]string
	Body       io.Reader
}

// TextResponse builds a plain-text response.
func TextResponse(status int, body string) *HTTPResponse {
	return &HTTPResponse{
		StatusCode: status,
		Header:     map[string]string{"Content-Type": "text/plain; charset=utf-8"},
		Body:       strings.NewReader(body),
	}
}

// JSONResponse builds an application/json response from v.
func JSONResponse(status int, v any) (*HTTPResponse, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fail.Internalf("encoding response body: %v", err)
	}
	return &HTTPResponse{
		StatusCode: status,
		Header:     map[string]string{"Content-Type": "application/json"},
		Body:       strings.NewReader(string(b)),
	}, nil
}

// DecodeHTTPRequestData validates and decodes the trigger entry named
// bindingName out of the envelope's Data. Every shape violation names
// the exact offending path, e.g. "Data.req.Url".
func DecodeHTTPRequestData(raw json.RawMessage, bindingName string) (*HTTPRequestData, error) {
	at := func(field string) string { return fmt.Sprintf("Data.%s.%s", bindingName, field) }
	if !isJSONObject(raw) {
		return nil, fail.BadRequestf("Data.%s: expected a JSON object", bindingName)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fail.BadRequestf("Data.%s: %v", bindingName, err)
	}
	d := &HTTPRequestData{}
	if err := requireString(fields, "Url", at("Url"), &d.URL); err != nil {
		return nil, err
	}
	if err := requireString(fields, "Method", at("Method"), &d.Method); err != nil {
		return nil, err
	}
	if raw, ok := fields["Query"]; ok {
		if err := json.Unmarshal(raw, &d.Query); err != nil {
			return nil, fail.BadRequestf("%s: expected a map of string to string", at("Query"))
		}
	}
	if raw, ok := fields["Headers"]; ok {
		if err := json.Unmarshal(raw, &d.Headers); err != nil {
			return nil, fail.BadRequestf("%s: expected a map of string to string array", at("Headers"))
		}
	}
	if raw, ok := fields["Params"]; ok {
		if err := json.Unmarshal(raw, &d.Params); err != nil {
			return nil, fail.BadRequestf("%s: expected a map of string to string", at("Params"))
		}
	}
	if raw, ok := fields["Body"]; ok {
		// Hosts send Body as a string; tolerate raw JSON by keeping its text.
		if err := json.Unmarshal(raw, &d.Body); err != nil {
			d.Body = string(raw)
		}
	}
	return d, nil
}

func requireString(fields map[string]json.RawMessage, key, path string, out *string) error {
	raw, ok := fields[key]
	if !ok {
		return fail.BadRequestf("%s: missing", path)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fail.BadRequestf("%s: expected a string", path)
	}
	if *out == "" {
		return fail.BadRequestf("%s: must be non-empty", path)
	}
	return nil
}

// ToHTTPRequest converts the wire request data into the structured
// request model, expanding each Headers array entry into the header.
func ToHTTPRequest(d *HTTPRequestData) (*HTTPRequest, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fail.BadRequestf("Url: %v", err)
	}
	header := make(http.Header, len(d.Headers))
	for name, values := range d.Headers {
		for _, v := range values {
			header.Add(name, v)
		}
	}
	query := make(url.Values, len(d.Query))
	for k, v := range d.Query {
		query.Set(k, v)
	}
	params := make(map[string]string, len(d.Params))
	for k, v := range d.Params {
		params[k] = v
	}
	return &HTTPRequest{
		Method: d.Method,
		URL:    u,
		Query:  query,
		Header: header,
		Params: params,
		Body:   d.Body,
	}, nil
}

// DecodeHTTPResponseData decodes a wire HTTP response value, as found
// in a result envelope's output slot.
func DecodeHTTPResponseData(raw json.RawMessage) (*HTTPResponseData, error) {
	if !isJSONObject(raw) {
		return nil, fail.BadRequestf("http response: expected a JSON object")
	}
	var d HTTPResponseData
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fail.BadRequestf("http response: %v", err)
	}
	return &d, nil
}

// ToWireHTTPResponse buffers and encodes a structured response into the
// wire shape. The body is read through the byte-limited reader;
// exceeding maxBodyBytes is BAD_REQUEST naming the limit. Header names
// must match the HTTP token grammar and values must be control-free
// ASCII; Set-Cookie is dropped since the wire shape cannot carry
// multiple values per name.
func ToWireHTTPResponse(resp *HTTPResponse, maxBodyBytes int64) (*HTTPResponseData, error) {
	d := &HTTPResponseData{StatusCode: resp.StatusCode}
	if resp.StatusCode == 0 {
		d.StatusCode = http.StatusOK
	}
	if len(resp.Header) > 0 {
		d.Headers = make(map[string]string, len(resp.Header))
		for name, value := range resp.Header {
			if strings.EqualFold(name, "Set-Cookie") {
				continue
			}
			if err := checkHeader(name, value); err != nil {
				return nil, err
			}
			d.Headers[name] = value
		}
		if len(d.Headers) == 0 {
			d.Headers = nil
		}
	}
	if resp.Body != nil {
		body, _, err := ReadLimited(resp.Body, maxBodyBytes, FailOnExceed)
		if err != nil {
			return nil, err
		}
		d.Body = string(body)
	}
	return d, nil
}

// EncodeInvokeResponse wraps an encoded HTTP response into a result
// envelope, honoring the $return sentinel.
func EncodeInvokeResponse(outputName string, d *HTTPResponseData) *InvokeResponse {
	if outputName == ReturnSentinel {
		return &InvokeResponse{ReturnValue: d}
	}
	return &InvokeResponse{Outputs: map[string]any{outputName: d}}
}

// isToken reports whether name matches the RFC 7230 token grammar.
func isToken(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0:
		default:
			return false
		}
	}
	return true
}

func checkHeader(name, value string) error {
	if !isToken(name) {
		return fail.Internalf("header %q: name is not a valid HTTP token", name).
			With("header", name)
	}
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c <= 0x1F || c >= 0x7F {
			return fail.Internalf("header %q: value contains illegal byte 0x%02X at offset %d", name, c, i).
				With("header", name).
				With("byte", int(c))
		}
	}
	return nil
}
