package function

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ggpwnkthx/azfunc-go/pkg/binding"
	"github.com/ggpwnkthx/azfunc-go/pkg/fail"
	"github.com/ggpwnkthx/azfunc-go/pkg/protocol"
)

func noopHandler(ctx context.Context, env *protocol.InvokeRequest) (*protocol.InvokeResponse, error) {
	return &protocol.InvokeResponse{}, nil
}

func noopHTTPHandler(ctx context.Context, req *protocol.HTTPRequest) (*protocol.HTTPResponse, error) {
	return protocol.TextResponse(http.StatusOK, "ok"), nil
}

func TestNameValidation(t *testing.T) {
	cases := []struct {
		name   string
		fnName string
		ok     bool
	}{
		{"plain", "echo", true},
		{"with dash", "get-user", true},
		{"empty", "", false},
		{"whitespace only", "   ", false},
		{"traversal", "../etc/passwd", false},
		{"embedded dots", "a..b", false},
		{"leading slash", "/echo", false},
		{"backslash", "a\\b", false},
		{"newline", "echo\n", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.fnName,
				[]binding.Binding{binding.QueueTrigger("item")}, noopHandler)
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, fail.IsKind(err, fail.Definition))
			}
		})
	}
}

func TestEmptyBindings(t *testing.T) {
	_, err := New("f", nil, noopHandler)
	require.Error(t, err)
	assert.True(t, fail.IsKind(err, fail.Definition))
}

func TestDuplicateBindingNames(t *testing.T) {
	_, err := New("f", []binding.Binding{
		binding.QueueTrigger("item"),
		binding.Queue("item"),
	}, noopHandler)
	require.Error(t, err)
	assert.True(t, fail.IsKind(err, fail.Definition))
	assert.Contains(t, err.Error(), `"item"`)
}

func TestTriggerInference(t *testing.T) {
	t.Run("suffix match wins", func(t *testing.T) {
		fn, err := New("f", []binding.Binding{
			binding.BlobInput("aux"),
			binding.QueueTrigger("item"),
			binding.Queue("out"),
		}, noopHandler)
		require.NoError(t, err)
		assert.Equal(t, "item", fn.Trigger.Name)
	})

	t.Run("two triggers rejected naming both", func(t *testing.T) {
		_, err := New("f", []binding.Binding{
			binding.QueueTrigger("a"),
			binding.ServiceBusTrigger("b"),
		}, noopHandler)
		require.Error(t, err)
		assert.True(t, fail.IsKind(err, fail.Definition))
		assert.Contains(t, err.Error(), "queueTrigger")
		assert.Contains(t, err.Error(), "serviceBusTrigger")
	})

	t.Run("single in-direction fallback", func(t *testing.T) {
		fn, err := New("f", []binding.Binding{
			binding.BlobInput("doc"),
			binding.Queue("out"),
		}, noopHandler)
		require.NoError(t, err)
		assert.Equal(t, "doc", fn.Trigger.Name)
	})

	t.Run("ambiguous fallback rejected", func(t *testing.T) {
		_, err := New("f", []binding.Binding{
			binding.BlobInput("a"),
			binding.TableInput("b"),
		}, noopHandler)
		require.Error(t, err)
		assert.True(t, fail.IsKind(err, fail.Definition))
	})

	t.Run("no inputs rejected", func(t *testing.T) {
		_, err := New("f", []binding.Binding{binding.Queue("out")}, noopHandler)
		require.Error(t, err)
		assert.True(t, fail.IsKind(err, fail.Definition))
	})
}

func TestGenericRejectsHTTPTrigger(t *testing.T) {
	_, err := New("f", []binding.Binding{binding.HTTPTrigger("req")}, noopHandler)
	require.Error(t, err)
	assert.True(t, fail.IsKind(err, fail.Definition))
	assert.Contains(t, err.Error(), "NewHTTP")
}

func TestHTTPArity(t *testing.T) {
	t.Run("defaults to req plus $return", func(t *testing.T) {
		fn, err := NewHTTP("hello", nil, noopHTTPHandler)
		require.NoError(t, err)
		assert.True(t, fn.IsHTTP())
		assert.Equal(t, "req", fn.Trigger.Name)
		assert.Equal(t, protocol.ReturnSentinel, fn.HTTPOutputName)
	})

	t.Run("zero outputs rejected", func(t *testing.T) {
		_, err := NewHTTP("f", []binding.Binding{binding.HTTPTrigger("req")}, noopHTTPHandler)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "found 0")
	})

	t.Run("two triggers rejected", func(t *testing.T) {
		_, err := NewHTTP("f", []binding.Binding{
			binding.HTTPTrigger("a"),
			binding.HTTPTrigger("b"),
			binding.HTTPOutput("res"),
		}, noopHTTPHandler)
		require.Error(t, err)
		assert.True(t, fail.IsKind(err, fail.Definition))
	})

	t.Run("two outputs rejected", func(t *testing.T) {
		_, err := NewHTTP("f", []binding.Binding{
			binding.HTTPTrigger("req"),
			binding.HTTPOutput("a"),
			binding.HTTPOutput("b"),
		}, noopHTTPHandler)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "found 2")
	})

	t.Run("extra non-http outputs allowed", func(t *testing.T) {
		fn, err := NewHTTP("f", []binding.Binding{
			binding.HTTPTrigger("req"),
			binding.HTTPOutput("res"),
			binding.Queue("audit"),
		}, noopHTTPHandler)
		require.NoError(t, err)
		assert.Equal(t, "res", fn.HTTPOutputName)
	})
}

func TestNilHandler(t *testing.T) {
	_, err := New("f", []binding.Binding{binding.QueueTrigger("q")}, nil)
	require.Error(t, err)
	_, err = NewHTTP("f", nil, nil)
	require.Error(t, err)
}

func TestIndices(t *testing.T) {
	fn, err := New("f", []binding.Binding{
		binding.QueueTrigger("item"),
		binding.BlobOutput("copy"),
		binding.Queue("next"),
	}, noopHandler)
	require.NoError(t, err)

	assert.Len(t, fn.Inputs, 1)
	assert.Len(t, fn.Outputs, 2)
	assert.Equal(t, "queueTrigger", fn.ByName["item"].Type)
	assert.Len(t, fn.ByType["queue"], 1)
}

func TestDefinitionIdempotence(t *testing.T) {
	bindings := []binding.Binding{
		binding.QueueTrigger("item"),
		binding.Queue("out"),
	}
	a, err := New("echo", bindings, noopHandler)
	require.NoError(t, err)
	b, err := New("echo", bindings, noopHandler)
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, a.Name, b.Name)
	assert.Equal(t, a.Bindings, b.Bindings)
	assert.Equal(t, a.Trigger, b.Trigger)
	assert.Equal(t, a.Inputs, b.Inputs)
	assert.Equal(t, a.Outputs, b.Outputs)
	assert.Equal(t, a.ByName, b.ByName)
	assert.Equal(t, a.ByType, b.ByType)
}

func TestTriggerSchema(t *testing.T) {
	schema := map[string]any{
		"type":     "object",
		"required": []any{"id"},
		"properties": map[string]any{
			"id": map[string]any{"type": "string"},
		},
	}

	fn, err := New("f", []binding.Binding{binding.QueueTrigger("item")}, noopHandler,
		WithTriggerSchema(schema))
	require.NoError(t, err)
	require.True(t, fn.HasTriggerSchema())

	t.Run("conforming payload passes", func(t *testing.T) {
		require.NoError(t, fn.ValidateTriggerPayload(json.RawMessage(`{"id":"a1"}`)))
	})

	t.Run("violation is BAD_REQUEST naming the rule", func(t *testing.T) {
		err := fn.ValidateTriggerPayload(json.RawMessage(`{}`))
		require.Error(t, err)
		assert.True(t, fail.IsKind(err, fail.BadRequest))
		assert.Contains(t, err.Error(), "id")
	})

	t.Run("bad schema fails definition", func(t *testing.T) {
		_, err := New("g", []binding.Binding{binding.QueueTrigger("item")}, noopHandler,
			WithTriggerSchema(map[string]any{"type": 12}))
		require.Error(t, err)
		assert.True(t, fail.IsKind(err, fail.Definition))
	})
}
