package registry

import (
	"io"
	"net/http"
	"strings"

	"github.com/d5/tengo/v2"
)

// trampolineModule is the Go analogue of the original runtime's
// bespoke trampoline module: it exposes task(type, value), a
// constructor producing the {type, task} record a script returns to
// signal a follow-on — the equivalent of the Rune
// `#[rune(constructor)] struct TrampolineTask`.
func trampolineModule() map[string]tengo.Object {
	return map[string]tengo.Object{
		"task": &tengo.UserFunction{
			Name:  "task",
			Value: trampolineTaskConstructor,
		},
	}
}

func trampolineTaskConstructor(args ...tengo.Object) (tengo.Object, error) {
	if len(args) != 2 {
		return nil, tengo.ErrWrongNumArguments
	}

	typeName, ok := tengo.ToString(args[0])
	if !ok {
		return nil, tengo.ErrInvalidArgumentType{Name: "type", Expected: "string", Found: args[0].TypeName()}
	}

	return &tengo.ImmutableMap{
		Value: map[string]tengo.Object{
			"type": &tengo.String{Value: typeName},
			"task": args[1],
		},
	}, nil
}

// scriptHTTPModule is a small capability module letting scripts make
// outbound HTTP calls, the Go analogue of rune_modules::http. Sharing
// client with the surrounding HttpHandlers keeps a single configured
// timeout for every outbound call the process makes.
func scriptHTTPModule(client *http.Client) map[string]tengo.Object {
	return map[string]tengo.Object{
		"get": &tengo.UserFunction{
			Name:  "get",
			Value: scriptHTTPGet(client),
		},
		"post": &tengo.UserFunction{
			Name:  "post",
			Value: scriptHTTPPost(client),
		},
	}
}

func scriptHTTPGet(client *http.Client) tengo.CallableFunc {
	return func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 1 {
			return nil, tengo.ErrWrongNumArguments
		}
		url, ok := tengo.ToString(args[0])
		if !ok {
			return nil, tengo.ErrInvalidArgumentType{Name: "url", Expected: "string", Found: args[0].TypeName()}
		}

		resp, err := client.Get(url)
		if err != nil {
			return wrapHTTPError(err), nil
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return wrapHTTPError(err), nil
		}

		return &tengo.ImmutableMap{Value: map[string]tengo.Object{
			"status": &tengo.Int{Value: int64(resp.StatusCode)},
			"body":   &tengo.String{Value: string(body)},
		}}, nil
	}
}

func scriptHTTPPost(client *http.Client) tengo.CallableFunc {
	return func(args ...tengo.Object) (tengo.Object, error) {
		if len(args) != 2 {
			return nil, tengo.ErrWrongNumArguments
		}
		url, ok := tengo.ToString(args[0])
		if !ok {
			return nil, tengo.ErrInvalidArgumentType{Name: "url", Expected: "string", Found: args[0].TypeName()}
		}
		body, ok := tengo.ToString(args[1])
		if !ok {
			return nil, tengo.ErrInvalidArgumentType{Name: "body", Expected: "string", Found: args[1].TypeName()}
		}

		resp, err := client.Post(url, "application/json", strings.NewReader(body))
		if err != nil {
			return wrapHTTPError(err), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return wrapHTTPError(err), nil
		}

		return &tengo.ImmutableMap{Value: map[string]tengo.Object{
			"status": &tengo.Int{Value: int64(resp.StatusCode)},
			"body":   &tengo.String{Value: string(respBody)},
		}}, nil
	}
}

func wrapHTTPError(err error) tengo.Object {
	return &tengo.ImmutableMap{Value: map[string]tengo.Object{
		"error": &tengo.String{Value: err.Error()},
	}}
}
