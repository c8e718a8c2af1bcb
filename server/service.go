package server

import (
	"fmt"
	"reflect"

	"srpcgo/task"
)

// MethodStub is the generated-stub-shaped dispatch entry spec.md §6
// names: decode(bytes) -> Req, handle(Req) -> Resp, encode(Resp) -> bytes,
// bundled here as constructors plus a handler closure so both a
// reflection-scanned receiver and a hand-written generated client share
// one dispatch table shape.
type MethodStub struct {
	NewRequest  func() any
	NewResponse func() any
	Handler     func(ctx *task.CallContext, req, resp any) error
}

// service wraps a user-defined struct (e.g. &Arith{}) and its
// RPC-compatible methods, generalized from the teacher's reflection
// scanner: the handler signature gains a *task.CallContext first
// parameter so handlers can read/write module-data and append async
// subtasks (spec.md §4.5 "Handler::Method(req, resp, ctx)").
type service struct {
	name    string
	methods map[string]*MethodStub
}

var callContextType = reflect.TypeOf((*task.CallContext)(nil))
var errorType = reflect.TypeOf((*error)(nil)).Elem()

// newService scans rcvr's exported methods for the signature
//
//	func (receiver) Method(ctx *task.CallContext, req *ReqType, resp *RespType) error
//
// and registers each as a MethodStub. Methods that don't match are
// silently skipped, same as the teacher's RegisterMethods.
func newService(rcvr any) (*service, error) {
	typ := reflect.TypeOf(rcvr)
	if typ.Kind() != reflect.Ptr || typ.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("server: rcvr must be a pointer to a struct, got %s", typ.Kind())
	}

	val := reflect.ValueOf(rcvr)
	svc := &service{name: typ.Elem().Name(), methods: make(map[string]*MethodStub)}

	for i := 0; i < typ.NumMethod(); i++ {
		m := typ.Method(i)
		method := val.Method(i)
		mt := method.Type() // bound method value type: (ctx, req, resp) -> error, receiver already bound

		if mt.NumIn() != 3 || mt.NumOut() != 1 {
			continue
		}
		if mt.Out(0) != errorType {
			continue
		}
		if mt.In(0) != callContextType {
			continue
		}
		if mt.In(1).Kind() != reflect.Ptr || mt.In(2).Kind() != reflect.Ptr {
			continue
		}

		reqType := mt.In(1)
		respType := mt.In(2)

		svc.methods[m.Name] = &MethodStub{
			NewRequest:  func() any { return reflect.New(reqType.Elem()).Interface() },
			NewResponse: func() any { return reflect.New(respType.Elem()).Interface() },
			Handler: func(ctx *task.CallContext, req, resp any) error {
				args := []reflect.Value{reflect.ValueOf(ctx), reflect.ValueOf(req), reflect.ValueOf(resp)}
				results := method.Call(args)
				if results[0].IsNil() {
					return nil
				}
				return results[0].Interface().(error)
			},
		}
	}

	return svc, nil
}
