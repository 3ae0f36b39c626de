package extensionhost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	extism "github.com/extism/go-sdk"
	"github.com/spirefy/go-extension-host/internal/ctxlog"
	"github.com/spirefy/go-extension-host/types"
	"github.com/tetratelabs/wazero"
)

const (
	activateExport   = "activate"
	deactivateExport = "deactivate"
)

// ErrModuleClosed is returned when a command of a WASM extension runs after the module was released.
var ErrModuleClosed = errors.New("extension module is closed")

// WasmExtension runs an extension compiled to WASM. The module may export activate() and deactivate(); both are
// optional. Commands it registers through the registerCommand host function are dispatched to its exports.
type WasmExtension struct {
	engine   *Engine
	manifest types.Manifest

	// guards plugin; held for the whole of every call into the module, which is not reentrant
	mu     sync.Mutex
	plugin *extism.Plugin
}

func NewWasmExtension(e *Engine, m types.Manifest) *WasmExtension {
	return &WasmExtension{
		engine:   e,
		manifest: m,
	}
}

func (w *WasmExtension) Activate(ctx context.Context, host Host, ec *ExtensionContext) error {
	runtimeConfig := wazero.NewRuntimeConfig().
		WithCompilationCache(w.engine.compilationCache()).
		WithCloseOnContextDone(true)

	config := extism.PluginConfig{
		EnableWasi:    true,
		ModuleConfig:  wazero.NewModuleConfig(),
		RuntimeConfig: runtimeConfig,
	}

	manifest := extism.Manifest{
		Wasm: []extism.Wasm{
			extism.WasmFile{
				Path: w.manifest.Main,
				Name: w.manifest.Id,
			},
		},
	}

	plugin, err := extism.NewPlugin(ctx, manifest, config, w.hostFunctions(ctx, host, ec))
	if err != nil {
		return fmt.Errorf("initialising module %s: %w", w.manifest.Main, err)
	}
	plugin.SetLogger(func(level extism.LogLevel, msg string) {
		ctxlog.Debug(ctx, msg, "module_level", level.String())
	})

	w.mu.Lock()
	w.plugin = plugin
	w.mu.Unlock()

	// pushed first so it is disposed last, after every command dispatching into the module is gone
	closeCtx := context.WithoutCancel(ctx)
	if err := ec.Push(types.DisposableFunc(func() error { return w.close(closeCtx) })); err != nil {
		return err
	}

	_, err = w.call(ctx, activateExport, nil, true)
	return err
}

func (w *WasmExtension) Deactivate(ctx context.Context) error {
	_, err := w.call(ctx, deactivateExport, nil, true)
	if errors.Is(err, ErrModuleClosed) {
		return nil
	}
	return err
}

// call invokes export. A missing export is an error unless optional is set. Cancelling ctx interrupts the export
// and closes the module, so nothing can be called on it afterwards.
func (w *WasmExtension) call(ctx context.Context, export string, input []byte, optional bool) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.plugin == nil {
		return nil, fmt.Errorf("%w: %s", ErrModuleClosed, w.manifest.Id)
	}
	if !w.plugin.FunctionExists(export) {
		if optional {
			return nil, nil
		}
		return nil, fmt.Errorf("%s does not export %s", w.manifest.Id, export)
	}

	rc, out, err := w.plugin.CallWithContext(ctx, export, input)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", w.manifest.Id, export, err)
	}
	if rc != 0 {
		return nil, fmt.Errorf("%s.%s returned %d", w.manifest.Id, export, rc)
	}
	return out, nil
}

func (w *WasmExtension) close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.plugin == nil {
		return nil
	}
	err := w.plugin.CloseWithContext(ctx)
	w.plugin = nil
	return err
}

// commandHandler dispatches a command to the module export for id. Arguments are passed as a JSON array and a
// non-empty output is returned as a string.
func (w *WasmExtension) commandHandler(id string) CommandHandler {
	export := exportName(id)

	return func(ctx context.Context, args ...any) (any, error) {
		if args == nil {
			args = []any{}
		}
		input, err := json.Marshal(args)
		if err != nil {
			return nil, err
		}

		out, err := w.call(ctx, export, input, false)
		if err != nil {
			return nil, err
		}
		if len(out) == 0 {
			return nil, nil
		}
		return string(out), nil
	}
}

// exportName maps a command id to the name of the export implementing it: every character that cannot appear in
// an export name becomes an underscore, so "vscode-agent.helloWorld" is served by "vscode_agent_helloWorld".
func exportName(commandId string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, commandId)
}
