package extensionhost

import (
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/spirefy/go-extension-host/types"
)

// ExtensionContext is created by the host for every activation. Extensions only ever append to it; the host
// owns it and disposes everything collected once the extension is deactivated.
type ExtensionContext struct {
	ExtensionId string
	SessionId   string

	mu            sync.Mutex
	subscriptions []types.Disposable
	disposed      bool
}

func NewExtensionContext(extensionId string) *ExtensionContext {
	return &ExtensionContext{
		ExtensionId: extensionId,
		SessionId:   uuid.NewString(),
	}
}

// Push appends disposables to the subscriptions. Once the context has been disposed anything pushed is released
// immediately, since nothing would ever release it otherwise.
func (c *ExtensionContext) Push(disposables ...types.Disposable) error {
	c.mu.Lock()
	if !c.disposed {
		for _, d := range disposables {
			if d != nil {
				c.subscriptions = append(c.subscriptions, d)
			}
		}
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	var result *multierror.Error
	for _, d := range disposables {
		if d == nil {
			continue
		}
		if err := d.Dispose(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Subscriptions returns a copy of the collected disposables in the order they were pushed.
func (c *ExtensionContext) Subscriptions() []types.Disposable {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]types.Disposable, len(c.subscriptions))
	copy(out, c.subscriptions)
	return out
}

func (c *ExtensionContext) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscriptions)
}

// Dispose releases every subscription, last pushed first. All of them are attempted; failures are collected.
// Calling it again is a no-op.
func (c *ExtensionContext) Dispose() error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil
	}
	c.disposed = true
	subs := c.subscriptions
	c.subscriptions = nil
	c.mu.Unlock()

	var result *multierror.Error
	for i := len(subs) - 1; i >= 0; i-- {
		if err := subs[i].Dispose(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (c *ExtensionContext) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}
