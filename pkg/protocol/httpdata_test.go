package protocol

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ggpwnkthx/azfunc-go/pkg/fail"
)

func TestDecodeHTTPRequestData(t *testing.T) {
	raw := json.RawMessage(`{
		"Url": "http://localhost/api/users/42?verbose=1",
		"Method": "GET",
		"Query": {"verbose": "1"},
		"Headers": {"Accept": ["application/json", "text/plain"]},
		"Params": {"id": "42"},
		"Body": ""
	}`)
	d, err := DecodeHTTPRequestData(raw, "req")
	require.NoError(t, err)
	assert.Equal(t, "GET", d.Method)
	assert.Equal(t, "1", d.Query["verbose"])
	assert.Equal(t, []string{"application/json", "text/plain"}, d.Headers["Accept"])
	assert.Equal(t, "42", d.Params["id"])
}

func TestDecodeHTTPRequestDataErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		path string
	}{
		{"not an object", `"hi"`, "Data.req"},
		{"missing url", `{"Method":"GET"}`, "Data.req.Url: missing"},
		{"empty url", `{"Url":"","Method":"GET"}`, "Data.req.Url: must be non-empty"},
		{"url wrong type", `{"Url":7,"Method":"GET"}`, "Data.req.Url: expected a string"},
		{"missing method", `{"Url":"http://x/"}`, "Data.req.Method: missing"},
		{"query wrong shape", `{"Url":"http://x/","Method":"GET","Query":[1]}`, "Data.req.Query"},
		{"headers wrong shape", `{"Url":"http://x/","Method":"GET","Headers":{"A":"one"}}`, "Data.req.Headers"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeHTTPRequestData(json.RawMessage(tc.raw), "req")
			require.Error(t, err)
			assert.True(t, fail.IsKind(err, fail.BadRequest))
			assert.Contains(t, err.Error(), tc.path)
		})
	}
}

func TestDecodeHTTPRequestDataNonStringBody(t *testing.T) {
	raw := json.RawMessage(`{"Url":"http://x/","Method":"POST","Body":{"n":1}}`)
	d, err := DecodeHTTPRequestData(raw, "req")
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, d.Body)
}

func TestToHTTPRequestExpandsHeaders(t *testing.T) {
	d := &HTTPRequestData{
		URL:     "http://localhost/api/hello?name=go",
		Method:  "GET",
		Query:   map[string]string{"name": "go"},
		Headers: map[string][]string{"Accept": {"application/json", "text/plain"}},
	}
	req, err := ToHTTPRequest(d)
	require.NoError(t, err)
	assert.Equal(t, "/api/hello", req.URL.Path)
	assert.Equal(t, "go", req.Query.Get("name"))
	assert.Equal(t, []string{"application/json", "text/plain"}, req.Header.Values("Accept"))
}

func TestToWireHTTPResponse(t *testing.T) {
	t.Run("status headers and body round-trip", func(t *testing.T) {
		resp := &HTTPResponse{
			StatusCode: http.StatusCreated,
			Header: map[string]string{
				"Content-Type": "application/json",
				"X-Request-Id": "r1",
			},
			Body: strings.NewReader(`{"ok":true}`),
		}
		d, err := ToWireHTTPResponse(resp, DefaultMaxResponseBytes)
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, d.StatusCode)
		assert.Equal(t, "application/json", d.Headers["Content-Type"])
		assert.Equal(t, `{"ok":true}`, d.Body)
	})

	t.Run("zero status defaults to 200", func(t *testing.T) {
		d, err := ToWireHTTPResponse(&HTTPResponse{}, DefaultMaxResponseBytes)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, d.StatusCode)
	})

	t.Run("set-cookie is dropped", func(t *testing.T) {
		resp := &HTTPResponse{
			StatusCode: http.StatusOK,
			Header: map[string]string{
				"Set-Cookie":   "session=abc",
				"set-cookie":   "other=1",
				"Content-Type": "text/plain",
			},
		}
		d, err := ToWireHTTPResponse(resp, DefaultMaxResponseBytes)
		require.NoError(t, err)
		assert.NotContains(t, d.Headers, "Set-Cookie")
		assert.NotContains(t, d.Headers, "set-cookie")
		assert.Equal(t, "text/plain", d.Headers["Content-Type"])
	})

	t.Run("bad header name rejected", func(t *testing.T) {
		resp := &HTTPResponse{
			Header: map[string]string{"X Bad": "v"},
		}
		_, err := ToWireHTTPResponse(resp, DefaultMaxResponseBytes)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"X Bad"`)
	})

	t.Run("control byte in value rejected naming header and byte", func(t *testing.T) {
		resp := &HTTPResponse{
			Header: map[string]string{"X-Note": "a\x00b"},
		}
		_, err := ToWireHTTPResponse(resp, DefaultMaxResponseBytes)
		require.Error(t, err)
		fe := fail.Convert(err)
		assert.Equal(t, "X-Note", fe.Details["header"])
		assert.Equal(t, 0, fe.Details["byte"])
	})

	t.Run("non-ascii value rejected", func(t *testing.T) {
		resp := &HTTPResponse{
			Header: map[string]string{"X-Note": "caf\xc3\xa9"},
		}
		_, err := ToWireHTTPResponse(resp, DefaultMaxResponseBytes)
		require.Error(t, err)
	})

	t.Run("oversized body rejected naming the limit", func(t *testing.T) {
		resp := &HTTPResponse{Body: strings.NewReader(strings.Repeat("x", 100))}
		_, err := ToWireHTTPResponse(resp, 10)
		require.Error(t, err)
		assert.True(t, fail.IsKind(err, fail.BadRequest))
		assert.Equal(t, int64(10), fail.Convert(err).Details["maxBytes"])
	})
}

func TestEncodeInvokeResponse(t *testing.T) {
	d := &HTTPResponseData{StatusCode: 200, Body: "ok"}

	t.Run("named output", func(t *testing.T) {
		env := EncodeInvokeResponse("res", d)
		require.Contains(t, env.Outputs, "res")
		assert.Nil(t, env.ReturnValue)
	})

	t.Run("return sentinel", func(t *testing.T) {
		env := EncodeInvokeResponse(ReturnSentinel, d)
		assert.Empty(t, env.Outputs)
		assert.Equal(t, d, env.ReturnValue)
	})
}

func TestDecodeHTTPResponseData(t *testing.T) {
	d, err := DecodeHTTPResponseData(json.RawMessage(`{"statusCode":204,"headers":{"A":"b"},"body":""}`))
	require.NoError(t, err)
	assert.Equal(t, 204, d.StatusCode)
	assert.Equal(t, "b", d.Headers["A"])

	_, err = DecodeHTTPResponseData(json.RawMessage(`"nope"`))
	require.Error(t, err)
}

func TestResponseHelpers(t *testing.T) {
	txt := TextResponse(http.StatusTeapot, "short and stout")
	d, err := ToWireHTTPResponse(txt, DefaultMaxResponseBytes)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, d.StatusCode)
	assert.Equal(t, "short and stout", d.Body)

	js, err := JSONResponse(http.StatusOK, map[string]int{"n": 1})
	require.NoError(t, err)
	d, err = ToWireHTTPResponse(js, DefaultMaxResponseBytes)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, d.Body)
	assert.Equal(t, "application/json", d.Headers["Content-Type"])
}
