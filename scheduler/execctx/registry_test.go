package execctx

import (
	"bytes"
	"context"
	"encoding/gob"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeRequest(w *bytes.Buffer, req Request) error {
	return gob.NewEncoder(w).Encode(req)
}

func decodeResponse(t *testing.T, r *bytes.Buffer) Response {
	t.Helper()
	var resp Response
	require.NoError(t, gob.NewDecoder(r).Decode(&resp))
	return resp
}

func echoFunc(_ context.Context, args []any, kwargs map[string]any) (any, error) {
	if v, ok := kwargs["value"]; ok {
		return v, nil
	}
	if len(args) > 0 {
		return args[0], nil
	}
	return nil, nil
}

func TestRegisterAndLookup(t *testing.T) {
	Register("registry_test.echo", echoFunc)
	fn, ok := Lookup("registry_test.echo")
	require.True(t, ok)
	value, err := fn(context.Background(), nil, map[string]any{"value": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", value)
}

func TestLookup_MissingName(t *testing.T) {
	_, ok := Lookup("registry_test.does-not-exist")
	assert.False(t, ok)
}

func TestServe_RunsRegisteredTargetAndEncodesResponse(t *testing.T) {
	Register("registry_test.serve", echoFunc)

	var in bytes.Buffer
	require.NoError(t, encodeRequest(&in, Request{
		ProcessName: "registry_test.serve",
		Kwargs:      map[string]any{"value": "served"},
	}))

	var out bytes.Buffer
	err := Serve(context.Background(), &in, &out)
	require.NoError(t, err)

	resp := decodeResponse(t, &out)
	assert.Empty(t, resp.Err)
	assert.Equal(t, "served", resp.Value)
}

func TestServe_UnregisteredTargetProducesErrorResponse(t *testing.T) {
	var in bytes.Buffer
	require.NoError(t, encodeRequest(&in, Request{ProcessName: "registry_test.unregistered"}))

	var out bytes.Buffer
	err := Serve(context.Background(), &in, &out)
	require.NoError(t, err)

	resp := decodeResponse(t, &out)
	assert.NotEmpty(t, resp.Err)
}
