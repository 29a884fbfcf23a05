package scripting

import (
	"context"

	"github.com/dop251/goja"
)

// GojaEngine runs scripts on a goja virtual machine. Not safe for
// concurrent use; a VM executes one script at a time.
type GojaEngine struct {
	vm *goja.Runtime
}

func NewEngine() *GojaEngine {
	return &GojaEngine{vm: goja.New()}
}

func (e *GojaEngine) Execute(ctx context.Context, script string) (interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	defer close(done)
	defer e.vm.ClearInterrupt()

	go func() {
		select {
		case <-ctx.Done():
			e.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	val, err := e.vm.RunString(script)
	if err != nil {
		if interruptedErr, ok := err.(*goja.InterruptedError); ok {
			if cause := interruptedErr.Unwrap(); cause != nil {
				return nil, cause
			}
			return nil, context.Canceled
		}
		return nil, err
	}
	return val.Export(), nil
}

// RegisterDocument installs the `doc` and `app` host objects. The
// surface mirrors the small subset of the Acrobat API that document
// open actions commonly touch.
func (e *GojaEngine) RegisterDocument(api *DocumentAPI) error {
	appObj := e.vm.NewObject()
	if err := appObj.Set("alert", func(call goja.FunctionCall) goja.Value {
		msg := ""
		if len(call.Arguments) > 0 {
			msg = call.Arguments[0].String()
		}
		api.alert(msg)
		return goja.Undefined()
	}); err != nil {
		return err
	}
	if err := e.vm.Set("app", appObj); err != nil {
		return err
	}

	docObj := e.vm.NewObject()
	if err := docObj.Set("numPages", api.NumPages()); err != nil {
		return err
	}
	if err := docObj.Set("getPageText", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return goja.Null()
		}
		idx := int(call.Arguments[0].ToInteger())
		return e.vm.ToValue(api.PageText(idx))
	}); err != nil {
		return err
	}
	if err := docObj.Set("getPageLabel", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return goja.Null()
		}
		idx := int(call.Arguments[0].ToInteger())
		return e.vm.ToValue(api.PageLabel(idx))
	}); err != nil {
		return err
	}
	if api.Doc != nil {
		info := api.Doc.Metadata.Info
		if err := docObj.Set("title", info.Title); err != nil {
			return err
		}
		if err := docObj.Set("author", info.Author); err != nil {
			return err
		}
	}
	return e.vm.Set("doc", docObj)
}
