package extensionhost

import (
	"context"

	extism "github.com/extism/go-sdk"
	"github.com/spirefy/go-extension-host/internal/ctxlog"
)

const (
	hostNamespace = "extism:host/extensionhost"

	hostFuncSuccess uint64 = 0
	hostFuncFailure uint64 = 1
)

// registerCommandFunc
//
// registerCommand(id) lets a WASM extension register a command while its exported activate() runs. The
// resulting Disposable goes onto the extension's context, exactly as for a native extension. Executing the
// command calls the module's export named after the command id, see exportName.
func (w *WasmExtension) registerCommandFunc(ctx context.Context, host Host, ec *ExtensionContext) extism.HostFunction {
	ret := extism.NewHostFunctionWithStack(
		"registerCommand",
		func(_ context.Context, p *extism.CurrentPlugin, stack []uint64) {
			id, err := p.ReadString(stack[0])
			if err != nil {
				ctxlog.Error(ctx, "reading command id from module memory", "error", err)
				stack[0] = hostFuncFailure
				return
			}

			d, err := host.RegisterCommand(id, w.commandHandler(id))
			if err != nil {
				ctxlog.Error(ctx, "registering command for module", "command", id, "error", err)
				stack[0] = hostFuncFailure
				return
			}

			if err := ec.Push(d); err != nil {
				ctxlog.Warn(ctx, "context already disposed", "command", id, "error", err)
				stack[0] = hostFuncFailure
				return
			}

			ctxlog.Debug(ctx, "module registered command", "command", id)
			stack[0] = hostFuncSuccess
		},
		[]extism.ValueType{extism.ValueTypeI64}, []extism.ValueType{extism.ValueTypeI64},
	)
	ret.SetNamespace(hostNamespace)

	return ret
}

// showInformationMessageFunc exposes Host.ShowInformationMessage as showInformationMessage(msg).
func (w *WasmExtension) showInformationMessageFunc(ctx context.Context, host Host) extism.HostFunction {
	ret := extism.NewHostFunctionWithStack(
		"showInformationMessage",
		func(_ context.Context, p *extism.CurrentPlugin, stack []uint64) {
			msg, err := p.ReadString(stack[0])
			if err != nil {
				ctxlog.Error(ctx, "reading message from module memory", "error", err)
				stack[0] = hostFuncFailure
				return
			}

			if err := host.ShowInformationMessage(ctx, msg); err != nil {
				ctxlog.Error(ctx, "showing information message", "error", err)
				stack[0] = hostFuncFailure
				return
			}

			stack[0] = hostFuncSuccess
		},
		[]extism.ValueType{extism.ValueTypeI64}, []extism.ValueType{extism.ValueTypeI64},
	)
	ret.SetNamespace(hostNamespace)

	return ret
}

func (w *WasmExtension) hostFunctions(ctx context.Context, host Host, ec *ExtensionContext) []extism.HostFunction {
	funcs := []extism.HostFunction{
		w.registerCommandFunc(ctx, host, ec),
		w.showInformationMessageFunc(ctx, host),
	}
	return append(funcs, w.engine.hostFuncs...)
}
