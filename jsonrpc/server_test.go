package jsonrpc_test

import (
	"context"
	"testing"

	"github.com/0xSpaceShard/starknet-devnet-go/jsonrpc"
	"github.com/0xSpaceShard/starknet-devnet-go/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *jsonrpc.Server {
	t.Helper()
	server := jsonrpc.NewServer(utils.NewNopZapLogger())
	require.NoError(t, server.RegisterMethods(
		jsonrpc.Method{
			Name:   "test_add",
			Params: []jsonrpc.Parameter{{Name: "a"}, {Name: "b"}},
			Handler: func(a, b int) (int, *jsonrpc.Error) {
				return a + b, nil
			},
		},
		jsonrpc.Method{
			Name:   "test_greet",
			Params: []jsonrpc.Parameter{{Name: "name", Optional: true}},
			Handler: func(name *string) (string, *jsonrpc.Error) {
				if name == nil {
					return "hello", nil
				}
				return "hello " + *name, nil
			},
		},
		jsonrpc.Method{
			Name:   "test_fail",
			Params: nil,
			Handler: func() (any, *jsonrpc.Error) {
				return nil, &jsonrpc.Error{Code: 24, Message: "Block not found"}
			},
		},
	))
	return server
}

func handle(t *testing.T, server *jsonrpc.Server, req string) string {
	t.Helper()
	resp, err := server.Handle(context.Background(), []byte(req))
	require.NoError(t, err)
	return string(resp)
}

func TestPositionalParams(t *testing.T) {
	server := newServer(t)
	resp := handle(t, server, `{"jsonrpc":"2.0","id":1,"method":"test_add","params":[2,3]}`)
	assert.JSONEq(t, `{"jsonrpc":"2.0","result":5,"id":1}`, resp)
}

func TestNamedParams(t *testing.T) {
	server := newServer(t)
	resp := handle(t, server, `{"jsonrpc":"2.0","id":2,"method":"test_add","params":{"b":3,"a":2}}`)
	assert.JSONEq(t, `{"jsonrpc":"2.0","result":5,"id":2}`, resp)
}

func TestOptionalParam(t *testing.T) {
	server := newServer(t)
	resp := handle(t, server, `{"jsonrpc":"2.0","id":3,"method":"test_greet","params":[]}`)
	assert.JSONEq(t, `{"jsonrpc":"2.0","result":"hello","id":3}`, resp)

	resp = handle(t, server, `{"jsonrpc":"2.0","id":4,"method":"test_greet","params":["dev"]}`)
	assert.JSONEq(t, `{"jsonrpc":"2.0","result":"hello dev","id":4}`, resp)
}

func TestMissingRequiredParam(t *testing.T) {
	server := newServer(t)
	resp := handle(t, server, `{"jsonrpc":"2.0","id":5,"method":"test_add","params":[2]}`)
	assert.Contains(t, resp, `"code":-32602`)
}

func TestMethodNotFound(t *testing.T) {
	server := newServer(t)
	resp := handle(t, server, `{"jsonrpc":"2.0","id":6,"method":"nope"}`)
	assert.Contains(t, resp, `"code":-32601`)
}

func TestInvalidJSON(t *testing.T) {
	server := newServer(t)
	resp := handle(t, server, `{not json`)
	assert.Contains(t, resp, `"code":-32700`)
}

func TestInvalidVersion(t *testing.T) {
	server := newServer(t)
	resp := handle(t, server, `{"jsonrpc":"1.0","id":7,"method":"test_add","params":[1,2]}`)
	assert.Contains(t, resp, `"code":-32600`)
}

func TestHandlerError(t *testing.T) {
	server := newServer(t)
	resp := handle(t, server, `{"jsonrpc":"2.0","id":8,"method":"test_fail"}`)
	assert.Contains(t, resp, `"code":24`)
	assert.Contains(t, resp, `"Block not found"`)
}

func TestBatch(t *testing.T) {
	server := newServer(t)
	resp := handle(t, server,
		`[{"jsonrpc":"2.0","id":1,"method":"test_add","params":[1,1]},`+
			`{"jsonrpc":"2.0","id":2,"method":"test_add","params":[2,2]}]`)
	assert.Contains(t, resp, `"result":2`)
	assert.Contains(t, resp, `"result":4`)
}

func TestRegisterRejectsBadHandler(t *testing.T) {
	server := jsonrpc.NewServer(utils.NewNopZapLogger())
	err := server.RegisterMethods(jsonrpc.Method{
		Name:    "bad",
		Params:  []jsonrpc.Parameter{{Name: "x"}},
		Handler: "not a function",
	})
	assert.Error(t, err)

	err = server.RegisterMethods(jsonrpc.Method{
		Name:    "arity",
		Params:  []jsonrpc.Parameter{{Name: "x"}},
		Handler: func() (int, *jsonrpc.Error) { return 0, nil },
	})
	assert.Error(t, err)
}
