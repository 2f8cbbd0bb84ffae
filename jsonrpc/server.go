// Package jsonrpc is the JSON-RPC 2.0 engine shared by the HTTP and
// WebSocket endpoints: a reflection-based method registry, request
// decoding, and the error envelope.
package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/0xSpaceShard/starknet-devnet-go/utils"
	"github.com/go-playground/validator/v10"
)

const (
	InvalidJSON    = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// Error is the JSON-RPC error envelope. Handlers return it directly; the
// numeric codes come from the Starknet RPC spec.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) CloneWithData(data any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Data: data}
}

func Err(code int, data any) *Error {
	switch code {
	case InvalidJSON:
		return &Error{Code: InvalidJSON, Message: "Parse error", Data: data}
	case InvalidRequest:
		return &Error{Code: InvalidRequest, Message: "Invalid request", Data: data}
	case MethodNotFound:
		return &Error{Code: MethodNotFound, Message: "Method not found", Data: data}
	case InvalidParams:
		return &Error{Code: InvalidParams, Message: "Invalid params", Data: data}
	default:
		return &Error{Code: InternalError, Message: "Internal error", Data: data}
	}
}

// Parameter describes one positional-or-named handler argument.
type Parameter struct {
	Name     string
	Optional bool
}

// Method binds a wire name to a handler. The handler is a func whose
// arguments match Params (optionally preceded by a context.Context) and
// which returns (result, *Error).
type Method struct {
	Name    string
	Params  []Parameter
	Handler any

	needsContext bool
	handlerValue reflect.Value
}

// EventListener observes request handling, for metrics.
type EventListener interface {
	OnNewRequest(method string)
	OnRequestHandled(method string, took time.Duration)
	OnRequestFailed(method string, data any)
}

type nopListener struct{}

func (nopListener) OnNewRequest(string)                    {}
func (nopListener) OnRequestHandled(string, time.Duration) {}
func (nopListener) OnRequestFailed(string, any)            {}

type Server struct {
	methods   map[string]*Method
	validator *validator.Validate
	listener  EventListener
	log       utils.Logger
}

func NewServer(log utils.Logger) *Server {
	return &Server{
		methods:  make(map[string]*Method),
		listener: nopListener{},
		log:      log,
	}
}

func (s *Server) WithValidator(v *validator.Validate) *Server {
	s.validator = v
	return s
}

func (s *Server) WithListener(listener EventListener) *Server {
	s.listener = listener
	return s
}

// RegisterMethods type-checks and installs handlers; registration errors
// are programming errors and surface at startup.
func (s *Server) RegisterMethods(methods ...Method) error {
	for idx := range methods {
		method := methods[idx]
		handlerType := reflect.TypeOf(method.Handler)
		if handlerType == nil || handlerType.Kind() != reflect.Func {
			return fmt.Errorf("method %q: handler is not a function", method.Name)
		}

		numArgs := handlerType.NumIn()
		if numArgs > 0 && handlerType.In(0) == reflect.TypeOf((*context.Context)(nil)).Elem() {
			method.needsContext = true
			numArgs--
		}
		if numArgs != len(method.Params) {
			return fmt.Errorf("method %q: handler has %d params, %d declared",
				method.Name, numArgs, len(method.Params))
		}
		if handlerType.NumOut() != 2 ||
			handlerType.Out(1) != reflect.TypeOf((*Error)(nil)) {
			return fmt.Errorf("method %q: handler must return (T, *jsonrpc.Error)", method.Name)
		}

		method.handlerValue = reflect.ValueOf(method.Handler)
		s.methods[method.Name] = &method
	}
	return nil
}

type request struct {
	Version string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// Success and error responses marshal separately: a response carries
// either result or error, never both, and a null result is still a result.
type successResponse struct {
	Version string          `json:"jsonrpc"`
	Result  any             `json:"result"`
	ID      json.RawMessage `json:"id"`
}

type errorResponse struct {
	Version string          `json:"jsonrpc"`
	Error   *Error          `json:"error"`
	ID      json.RawMessage `json:"id"`
}

// Handle processes one envelope (single request or batch) and returns the
// serialized response; nil for notification-only input.
func (s *Server) Handle(ctx context.Context, data []byte) ([]byte, error) {
	trimmed := strings.TrimLeft(string(data), " \t\r\n")
	if strings.HasPrefix(trimmed, "[") {
		var batch []json.RawMessage
		if err := json.Unmarshal(data, &batch); err != nil || len(batch) == 0 {
			return json.Marshal(errorResponse{Version: "2.0", Error: Err(InvalidJSON, nil), ID: null})
		}
		responses := make([]json.RawMessage, 0, len(batch))
		for _, single := range batch {
			if resp, err := s.handleSingle(ctx, single); err != nil {
				return nil, err
			} else if resp != nil {
				responses = append(responses, resp)
			}
		}
		if len(responses) == 0 {
			return nil, nil
		}
		return json.Marshal(responses)
	}
	return s.handleSingle(ctx, data)
}

var null = json.RawMessage("null")

func (s *Server) handleSingle(ctx context.Context, data []byte) (json.RawMessage, error) {
	id := null
	fail := func(rpcErr *Error) (json.RawMessage, error) {
		return json.Marshal(errorResponse{Version: "2.0", Error: rpcErr, ID: id})
	}

	var req request
	if err := json.Unmarshal(data, &req); err != nil {
		return fail(Err(InvalidJSON, err.Error()))
	}
	if req.ID != nil {
		id = req.ID
	}
	if req.Version != "2.0" || req.Method == "" {
		return fail(Err(InvalidRequest, nil))
	}

	// A request without an id is a notification: it runs but gets no reply.
	notification := req.ID == nil

	method, found := s.methods[req.Method]
	if !found {
		if notification {
			return nil, nil
		}
		return fail(Err(MethodNotFound, nil))
	}

	s.listener.OnNewRequest(req.Method)
	start := time.Now()

	result, rpcErr := s.invoke(ctx, method, req.Params)
	if rpcErr != nil {
		s.listener.OnRequestFailed(req.Method, rpcErr)
		if notification {
			return nil, nil
		}
		return fail(rpcErr)
	}
	s.listener.OnRequestHandled(req.Method, time.Since(start))

	if notification {
		return nil, nil
	}
	return json.Marshal(successResponse{Version: "2.0", Result: result, ID: id})
}

func (s *Server) invoke(ctx context.Context, method *Method, rawParams json.RawMessage) (any, *Error) {
	args, rpcErr := s.buildArgs(ctx, method, rawParams)
	if rpcErr != nil {
		return nil, rpcErr
	}

	results := method.handlerValue.Call(args)
	if errValue := results[1]; !errValue.IsNil() {
		return nil, errValue.Interface().(*Error)
	}
	return results[0].Interface(), nil
}

func (s *Server) buildArgs(ctx context.Context, method *Method, rawParams json.RawMessage) ([]reflect.Value, *Error) {
	handlerType := method.handlerValue.Type()

	args := make([]reflect.Value, 0, handlerType.NumIn())
	offset := 0
	if method.needsContext {
		args = append(args, reflect.ValueOf(ctx))
		offset = 1
	}

	var positional []json.RawMessage
	named := make(map[string]json.RawMessage)
	if len(rawParams) > 0 {
		trimmed := strings.TrimLeft(string(rawParams), " \t\r\n")
		switch {
		case strings.HasPrefix(trimmed, "["):
			if err := json.Unmarshal(rawParams, &positional); err != nil {
				return nil, Err(InvalidParams, err.Error())
			}
		case strings.HasPrefix(trimmed, "{"):
			if err := json.Unmarshal(rawParams, &named); err != nil {
				return nil, Err(InvalidParams, err.Error())
			}
		default:
			return nil, Err(InvalidParams, "params must be an array or an object")
		}
	}
	if len(positional) > len(method.Params) {
		return nil, Err(InvalidParams, "too many params")
	}

	for i, param := range method.Params {
		paramType := handlerType.In(i + offset)
		target := reflect.New(paramType)

		var raw json.RawMessage
		if positional != nil {
			if i < len(positional) {
				raw = positional[i]
			}
		} else {
			raw = named[param.Name]
		}

		if raw == nil {
			if !param.Optional {
				return nil, Err(InvalidParams, fmt.Sprintf("missing param %q", param.Name))
			}
		} else {
			if err := json.Unmarshal(raw, target.Interface()); err != nil {
				return nil, Err(InvalidParams, fmt.Sprintf("param %q: %v", param.Name, err))
			}
			if s.validator != nil {
				if err := s.validateArg(target.Interface()); err != nil {
					return nil, Err(InvalidParams, err.Error())
				}
			}
		}
		args = append(args, target.Elem())
	}
	return args, nil
}

func (s *Server) validateArg(arg any) error {
	value := reflect.ValueOf(arg)
	for value.Kind() == reflect.Ptr {
		if value.IsNil() {
			return nil
		}
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return nil
	}
	err := s.validator.Struct(value.Interface())
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return nil
	}
	return err
}
