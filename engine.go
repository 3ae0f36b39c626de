package extensionhost

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	extism "github.com/extism/go-sdk"
	"github.com/hashicorp/go-multierror"
	"github.com/spirefy/go-extension-host/internal/ctxlog"
	"github.com/spirefy/go-extension-host/types"
	"github.com/tetratelabs/wazero"
)

var (
	// ErrNilExtension is returned when registering a nil Extension.
	ErrNilExtension = errors.New("extension must not be nil")
	// ErrExtensionNotFound is returned when an operation names an extension that was never registered.
	ErrExtensionNotFound = errors.New("extension not found")
	// ErrExtensionActive is returned when replacing an extension that is currently active.
	ErrExtensionActive = errors.New("extension is active")
	// ErrActivationFailed wraps the error an extension returned from Activate.
	ErrActivationFailed = errors.New("extension activation failed")
	// ErrDeactivationFailed wraps errors from Deactivate or from disposing the extension's subscriptions.
	ErrDeactivationFailed = errors.New("extension deactivation failed")
	// ErrUnsupportedModule is returned by Load for a manifest whose main is not a WASM module.
	ErrUnsupportedModule = errors.New("unsupported extension module")
)

type (
	// registration is an extension known to the engine at a given version.
	registration struct {
		manifest types.Manifest
		ext      Extension

		// set while the extension is active, nil otherwise
		ec *ExtensionContext

		active     bool
		activating bool
	}

	// ExtensionInfo is a read-only view of a registered extension.
	ExtensionInfo struct {
		Manifest types.Manifest
		Active   bool
	}

	Engine struct {
		mu sync.Mutex

		// extension id -> version -> registration
		extensions  map[string]map[string]*registration
		activeOrder []*registration

		commands      *CommandRegistry
		window        Window
		hostFuncs     []extism.HostFunction
		engineVersion string

		cacheMu sync.Mutex
		cache   wazero.CompilationCache
	}

	Option func(*Engine)
)

// WithWindow sets where information messages are shown. The default logs them.
func WithWindow(w Window) Option {
	return func(e *Engine) {
		if w != nil {
			e.window = w
		}
	}
}

// WithHostFunctions adds Extism host functions that WASM extensions can import next to the engine's own.
func WithHostFunctions(hostFuncs ...extism.HostFunction) Option {
	return func(e *Engine) {
		e.hostFuncs = append(e.hostFuncs, hostFuncs...)
	}
}

// WithEngineVersion overrides EngineVersion for manifest engine constraints.
func WithEngineVersion(v string) Option {
	return func(e *Engine) {
		e.engineVersion = v
	}
}

// NewEngine
//
// This function creates an engine with no extensions registered. Extensions are added with Register or Load and
// become active either explicitly through Activate or when one of their activation events is fired.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		extensions:    make(map[string]map[string]*registration),
		commands:      NewCommandRegistry(),
		window:        NewLogWindow(),
		engineVersion: EngineVersion,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// RegisterCommand makes the engine usable as the Host handed to extensions.
func (e *Engine) RegisterCommand(id string, handler CommandHandler) (types.Disposable, error) {
	return e.commands.RegisterCommand(id, handler)
}

func (e *Engine) ShowInformationMessage(ctx context.Context, message string) error {
	return e.window.ShowInformationMessage(ctx, message)
}

func (e *Engine) Commands() *CommandRegistry {
	return e.commands
}

// Register
//
// This method adds an extension under its manifest id and version. If an extension at the same id and version is
// already registered it is replaced, unless it is currently active.
func (e *Engine) Register(ext Extension, m types.Manifest) error {
	if ext == nil {
		return ErrNilExtension
	}
	if err := ValidateManifest(m, e.engineVersion); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	versions := e.extensions[m.Id]
	if versions == nil {
		versions = make(map[string]*registration)
		e.extensions[m.Id] = versions
	}

	if existing := versions[m.Version]; existing != nil && (existing.active || existing.activating) {
		return fmt.Errorf("%w: %s@%s", ErrExtensionActive, m.Id, m.Version)
	}

	versions[m.Version] = &registration{
		manifest: m,
		ext:      ext,
	}
	return nil
}

// latest returns the highest registered version of id. Caller holds e.mu.
func (e *Engine) latest(id string) *registration {
	var best *registration
	for _, reg := range e.extensions[id] {
		if best == nil || compareVersions(reg.manifest.Version, best.manifest.Version) > 0 {
			best = reg
		}
	}
	return best
}

// current returns the active or activating version of id, falling back to the latest one. Caller holds e.mu.
func (e *Engine) current(id string) *registration {
	for _, reg := range e.extensions[id] {
		if reg.active || reg.activating {
			return reg
		}
	}
	return e.latest(id)
}

// Activate activates the highest registered version of the extension id. Activating an extension that is
// already active (or activating) does nothing.
func (e *Engine) Activate(ctx context.Context, id string) error {
	e.mu.Lock()
	reg := e.current(id)
	if reg == nil {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrExtensionNotFound, id)
	}
	if reg.active || reg.activating {
		e.mu.Unlock()
		return nil
	}
	reg.activating = true
	e.mu.Unlock()

	return e.activate(ctx, reg)
}

func (e *Engine) activate(ctx context.Context, reg *registration) error {
	id := reg.manifest.Id
	ec := NewExtensionContext(id)
	ctx = ctxlog.With(ctx, "extension", id, "version", reg.manifest.Version, "session", ec.SessionId)

	ctxlog.Debug(ctx, "activating extension")
	err := reg.ext.Activate(ctx, e, ec)

	e.mu.Lock()
	reg.activating = false
	if err != nil {
		e.mu.Unlock()

		// nothing the extension registered before failing may outlive the failed activation
		if derr := ec.Dispose(); derr != nil {
			ctxlog.Warn(ctx, "disposing subscriptions of failed activation", "error", derr)
		}
		ctxlog.Error(ctx, "extension activation failed", "error", err)
		return fmt.Errorf("%w: %s: %w", ErrActivationFailed, id, err)
	}
	reg.active = true
	reg.ec = ec
	e.activeOrder = append(e.activeOrder, reg)
	e.mu.Unlock()

	ctxlog.Info(ctx, "extension activated", "subscriptions", ec.Len())
	return nil
}

// FireEvent activates every inactive extension with an activation event matching ev. Extensions are activated
// in id order; one failing does not stop the others.
func (e *Engine) FireEvent(ctx context.Context, ev types.Event) error {
	e.mu.Lock()
	ids := make([]string, 0, len(e.extensions))
	for id := range e.extensions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var pending []*registration
	for _, id := range ids {
		reg := e.current(id)
		if reg == nil || reg.active || reg.activating {
			continue
		}
		for _, ae := range reg.manifest.ActivationEvents {
			if ev.Matches(ae) {
				reg.activating = true
				pending = append(pending, reg)
				break
			}
		}
	}
	e.mu.Unlock()

	if len(pending) > 0 {
		ctxlog.Debug(ctx, "activation event", "event", ev.Id, "extensions", len(pending))
	}

	var result *multierror.Error
	for _, reg := range pending {
		if err := e.activate(ctx, reg); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// ExecuteCommand fires the command's activation event, so an extension contributing it is activated lazily, and
// then runs the command. Activation failures of other extensions (a failing "*" extension, say) are logged and do
// not stop the command; they are returned only when the command ends up unregistered.
func (e *Engine) ExecuteCommand(ctx context.Context, id string, args ...any) (any, error) {
	if err := e.FireEvent(ctx, types.OnCommand(id)); err != nil {
		if !e.commands.Has(id) {
			return nil, fmt.Errorf("%w: %s: %w", ErrCommandNotFound, id, err)
		}
		ctxlog.Warn(ctx, "activation failed while dispatching command", "command", id, "error", err)
	}

	ctxlog.Debug(ctx, "executing command", "command", id)
	return e.commands.ExecuteCommand(ctx, id, args...)
}

// Deactivate calls the extension's Deactivate and then disposes everything it pushed onto its context. The
// subscriptions are disposed even when Deactivate fails.
func (e *Engine) Deactivate(ctx context.Context, id string) error {
	e.mu.Lock()
	var reg *registration
	for _, r := range e.extensions[id] {
		if r.active {
			reg = r
			break
		}
	}
	e.mu.Unlock()

	if reg == nil {
		if e.isRegistered(id) {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrExtensionNotFound, id)
	}

	return e.deactivate(ctx, reg)
}

func (e *Engine) isRegistered(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.extensions[id]) > 0
}

func (e *Engine) deactivate(ctx context.Context, reg *registration) error {
	e.mu.Lock()
	if !reg.active {
		e.mu.Unlock()
		return nil
	}
	ec := reg.ec
	reg.active = false
	reg.ec = nil
	for i, r := range e.activeOrder {
		if r == reg {
			e.activeOrder = append(e.activeOrder[:i], e.activeOrder[i+1:]...)
			break
		}
	}
	e.mu.Unlock()

	ctx = ctxlog.With(ctx, "extension", reg.manifest.Id, "session", ec.SessionId)

	var result *multierror.Error
	if err := reg.ext.Deactivate(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := ec.Dispose(); err != nil {
		result = multierror.Append(result, err)
	}

	if err := result.ErrorOrNil(); err != nil {
		ctxlog.Error(ctx, "extension deactivation failed", "error", err)
		return fmt.Errorf("%w: %s: %w", ErrDeactivationFailed, reg.manifest.Id, err)
	}

	ctxlog.Info(ctx, "extension deactivated")
	return nil
}

// Shutdown deactivates all active extensions, most recently activated first, and releases the WASM compilation
// cache.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	active := make([]*registration, len(e.activeOrder))
	copy(active, e.activeOrder)
	e.mu.Unlock()

	var result *multierror.Error
	for i := len(active) - 1; i >= 0; i-- {
		if err := e.deactivate(ctx, active[i]); err != nil {
			result = multierror.Append(result, err)
		}
	}

	e.cacheMu.Lock()
	if e.cache != nil {
		if err := e.cache.Close(ctx); err != nil {
			result = multierror.Append(result, err)
		}
		e.cache = nil
	}
	e.cacheMu.Unlock()

	return result.ErrorOrNil()
}

// Extensions returns every registered extension, sorted by id and then version.
func (e *Engine) Extensions() []ExtensionInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []ExtensionInfo
	for _, versions := range e.extensions {
		for _, reg := range versions {
			out = append(out, ExtensionInfo{Manifest: reg.manifest, Active: reg.active})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Manifest.Id != out[j].Manifest.Id {
			return out[i].Manifest.Id < out[j].Manifest.Id
		}
		return compareVersions(out[i].Manifest.Version, out[j].Manifest.Version) < 0
	})
	return out
}

// IsActive reports whether any version of id is active.
func (e *Engine) IsActive(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, reg := range e.extensions[id] {
		if reg.active {
			return true
		}
	}
	return false
}

// Load
//
// This method walks dir looking for extension manifests and registers every extension whose main is a WASM
// module. A broken manifest does not stop the others from loading; all problems are returned together.
func (e *Engine) Load(ctx context.Context, dir string) error {
	files, err := findManifests(dir)
	if err != nil {
		return err
	}

	var result *multierror.Error
	for _, file := range files {
		m, err := ReadManifest(file)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}

		if m.Main == "" {
			ctxlog.Warn(ctx, "manifest has no main module, skipping", "manifest", file, "extension", m.Id)
			continue
		}

		if !strings.EqualFold(filepath.Ext(m.Main), ".wasm") {
			result = multierror.Append(result, fmt.Errorf("%w: %s: %s", ErrUnsupportedModule, m.Id, m.Main))
			continue
		}

		if err := e.Register(NewWasmExtension(e, m), m); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", file, err))
			continue
		}

		ctxlog.Debug(ctx, "loaded extension", "extension", m.Id, "version", m.Version, "module", m.Main)
	}

	return result.ErrorOrNil()
}

// compilationCache is shared by every WASM extension the engine loads so a module is compiled once.
func (e *Engine) compilationCache() wazero.CompilationCache {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()

	if e.cache == nil {
		e.cache = wazero.NewCompilationCache()
	}
	return e.cache
}
