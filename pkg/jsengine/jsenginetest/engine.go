// Package jsenginetest runs page scripts in a local goja runtime, so tests
// can check what the scripts cdt injects actually evaluate to.
package jsenginetest

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"
)

// Engine is a local goja runtime with a recording console. It runs page
// scripts outside a browser.
type Engine struct {
	runtime *goja.Runtime
	logs    [][]interface{}
	mu      sync.Mutex
}

// New returns an engine whose console.log, console.error and console.warn
// record their arguments.
func New() *Engine {
	e := &Engine{
		runtime: goja.New(),
	}
	e.setupConsole()
	return e
}

func (e *Engine) setupConsole() {
	record := func(call goja.FunctionCall) goja.Value {
		args := make([]interface{}, len(call.Arguments))
		for i, arg := range call.Arguments {
			args[i] = arg.Export()
		}
		e.logs = append(e.logs, args)
		return goja.Undefined()
	}

	console := e.runtime.NewObject()
	console.Set("log", record)
	console.Set("error", record)
	console.Set("warn", record)
	e.runtime.Set("console", console)
}

// Eval runs script and returns the exported completion value.
func (e *Engine) Eval(script string) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.runtime.RunString(script)
	if err != nil {
		return nil, err
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	return v.Export(), nil
}

// EvalString runs script and returns its completion value as a string.
func (e *Engine) EvalString(script string) (string, error) {
	v, err := e.Eval(script)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	return fmt.Sprint(v), nil
}

// ConsoleCalls returns every argument list the console recorded.
func (e *Engine) ConsoleCalls() [][]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([][]interface{}, len(e.logs))
	copy(out, e.logs)
	return out
}
