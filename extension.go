package extensionhost

import (
	"context"

	"github.com/spirefy/go-extension-host/types"
)

type (
	// CommandHandler runs when a registered command is executed. The returned value is passed back to whoever
	// executed the command.
	CommandHandler func(ctx context.Context, args ...any) (any, error)

	// Host is what an extension sees of the host during activation: a way to register commands and a way to
	// notify the user. Both are injected so an extension can be exercised without a running host.
	Host interface {
		RegisterCommand(id string, handler CommandHandler) (types.Disposable, error)
		ShowInformationMessage(ctx context.Context, message string) error
	}

	// Extension is the lifecycle contract the host binds to. Activate is called at most once per session with a
	// fresh ExtensionContext; any Disposable pushed onto it is released by the host after Deactivate returns.
	Extension interface {
		Activate(ctx context.Context, host Host, ec *ExtensionContext) error
		Deactivate(ctx context.Context) error
	}
)
