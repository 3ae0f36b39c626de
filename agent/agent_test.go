package agent

import (
	"context"
	"errors"
	"testing"

	extensionhost "github.com/spirefy/go-extension-host"
	"github.com/spirefy/go-extension-host/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fakeHost records every call the extension makes into the host.
type fakeHost struct {
	registered  []string
	handlers    map[string]extensionhost.CommandHandler
	messages    []string
	registerErr error
	disposed    int
}

func newFakeHost() *fakeHost {
	return &fakeHost{handlers: make(map[string]extensionhost.CommandHandler)}
}

func (h *fakeHost) RegisterCommand(id string, handler extensionhost.CommandHandler) (types.Disposable, error) {
	if h.registerErr != nil {
		return nil, h.registerErr
	}
	h.registered = append(h.registered, id)
	h.handlers[id] = handler
	return types.DisposableFunc(func() error {
		h.disposed++
		return nil
	}), nil
}

func (h *fakeHost) ShowInformationMessage(_ context.Context, message string) error {
	h.messages = append(h.messages, message)
	return nil
}

func TestActivate(t *testing.T) {
	defer goleak.VerifyNone(t)

	host := newFakeHost()
	ec := extensionhost.NewExtensionContext(ExtensionID)

	require.NoError(t, New().Activate(context.Background(), host, ec))

	assert.Equal(t, 1, ec.Len(), "exactly one disposable is pushed")
	assert.Equal(t, []string{"vscode-agent.helloWorld"}, host.registered)
	assert.Empty(t, host.messages, "nothing is shown until the command runs")
}

func TestHelloWorldHandler(t *testing.T) {
	host := newFakeHost()
	ec := extensionhost.NewExtensionContext(ExtensionID)
	require.NoError(t, New().Activate(context.Background(), host, ec))

	handler := host.handlers[HelloWorldCommand]
	require.NotNil(t, handler)

	res, err := handler(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, []string{"Hello World from vscode-agent!"}, host.messages)
}

func TestActivateTwiceWithFreshContexts(t *testing.T) {
	ext := New()
	first := extensionhost.NewExtensionContext(ExtensionID)
	second := extensionhost.NewExtensionContext(ExtensionID)

	require.NoError(t, ext.Activate(context.Background(), newFakeHost(), first))
	require.NoError(t, ext.Activate(context.Background(), newFakeHost(), second))

	assert.Equal(t, 1, first.Len())
	assert.Equal(t, 1, second.Len())
	assert.NotEqual(t, first.SessionId, second.SessionId)
}

func TestActivateRegistrationFailurePropagates(t *testing.T) {
	host := newFakeHost()
	host.registerErr = errors.New("boom")
	ec := extensionhost.NewExtensionContext(ExtensionID)

	err := New().Activate(context.Background(), host, ec)

	assert.Same(t, host.registerErr, err)
	assert.Equal(t, 0, ec.Len())
}

func TestDeactivateHasNoEffect(t *testing.T) {
	host := newFakeHost()
	ec := extensionhost.NewExtensionContext(ExtensionID)
	ext := New()
	require.NoError(t, ext.Activate(context.Background(), host, ec))

	assert.NoError(t, ext.Deactivate(context.Background()))
	assert.Equal(t, 1, ec.Len())
	assert.Equal(t, 0, host.disposed)
	assert.Empty(t, host.messages)
}

func TestDisposingContextReleasesRegistration(t *testing.T) {
	host := newFakeHost()
	ec := extensionhost.NewExtensionContext(ExtensionID)
	require.NoError(t, New().Activate(context.Background(), host, ec))

	require.NoError(t, ec.Dispose())
	assert.Equal(t, 1, host.disposed)
}

func TestManifestIsValid(t *testing.T) {
	m := New().Manifest()

	require.NoError(t, extensionhost.ValidateManifest(m, extensionhost.EngineVersion))
	assert.Equal(t, []string{HelloWorldCommand}, m.CommandIds())
	assert.Equal(t, []string{"onCommand:vscode-agent.helloWorld"}, m.ActivationEvents)
}

func TestWithEngine(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	window := &extensionhost.RecordingWindow{}
	engine := extensionhost.NewEngine(extensionhost.WithWindow(window))
	ext := New()
	require.NoError(t, engine.Register(ext, ext.Manifest()))

	assert.False(t, engine.IsActive(ExtensionID))

	_, err := engine.ExecuteCommand(ctx, HelloWorldCommand)
	require.NoError(t, err)
	assert.True(t, engine.IsActive(ExtensionID))

	_, err = engine.ExecuteCommand(ctx, HelloWorldCommand)
	require.NoError(t, err)
	assert.Equal(t, []string{HelloWorldMessage, HelloWorldMessage}, window.Messages())

	require.NoError(t, engine.Shutdown(ctx))
	assert.False(t, engine.Commands().Has(HelloWorldCommand))
}

func TestDuplicateCommandFailsActivation(t *testing.T) {
	ctx := context.Background()
	engine := extensionhost.NewEngine(extensionhost.WithWindow(&extensionhost.RecordingWindow{}))

	d, err := engine.RegisterCommand(HelloWorldCommand, func(context.Context, ...any) (any, error) { return nil, nil })
	require.NoError(t, err)
	defer d.Dispose()

	ext := New()
	require.NoError(t, engine.Register(ext, ext.Manifest()))

	err = engine.Activate(ctx, ExtensionID)
	require.Error(t, err)
	assert.ErrorIs(t, err, extensionhost.ErrActivationFailed)
	assert.ErrorIs(t, err, extensionhost.ErrCommandExists)
	assert.False(t, engine.IsActive(ExtensionID))
}
