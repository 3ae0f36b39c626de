// Package agent is the vscode-agent extension. Activating it registers a single command that greets the user.
package agent

import (
	"context"

	extensionhost "github.com/spirefy/go-extension-host"
	"github.com/spirefy/go-extension-host/internal/ctxlog"
	"github.com/spirefy/go-extension-host/types"
)

const (
	ExtensionID = "vscode-agent"
	Version     = "0.0.1"

	// HelloWorldCommand is the id the greeting command is registered under.
	HelloWorldCommand = "vscode-agent.helloWorld"

	// HelloWorldMessage is shown every time HelloWorldCommand runs.
	HelloWorldMessage = "Hello World from vscode-agent!"

	activatedMessage = `Congratulations, your extension "vscode-agent" is now active!`
)

var _ extensionhost.Extension = (*Extension)(nil)

type Extension struct{}

func New() *Extension {
	return &Extension{}
}

// Manifest describes the extension to the host. It is activated the first time its command is executed.
func (x *Extension) Manifest() types.Manifest {
	return types.Manifest{
		Id:          ExtensionID,
		Name:        "vscode-agent",
		Version:     Version,
		Description: "Registers a hello world command",
		Engine:      ">= 1.0.0",
		ActivationEvents: []string{
			types.OnCommand(HelloWorldCommand).Id,
		},
		Contributes: types.Contributes{
			Commands: []types.Command{
				{Id: HelloWorldCommand, Title: "Hello World"},
			},
		},
	}
}

// Activate registers HelloWorldCommand and hands its registration to ec. A failing registration, a duplicate id
// for instance, is returned to the host as is.
func (x *Extension) Activate(ctx context.Context, host extensionhost.Host, ec *extensionhost.ExtensionContext) error {
	ctxlog.Info(ctx, activatedMessage)

	d, err := host.RegisterCommand(HelloWorldCommand, func(ctx context.Context, _ ...any) (any, error) {
		return nil, host.ShowInformationMessage(ctx, HelloWorldMessage)
	})
	if err != nil {
		return err
	}

	return ec.Push(d)
}

func (x *Extension) Deactivate(context.Context) error {
	return nil
}
