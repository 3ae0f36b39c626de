package extensionhost

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/spirefy/go-extension-host/types"
)

var (
	// ErrInvalidCommandID is returned when a command is registered with an empty id.
	ErrInvalidCommandID = errors.New("invalid command id")
	// ErrInvalidCommandHandler is returned when a command is registered without a handler.
	ErrInvalidCommandHandler = errors.New("command handler must not be nil")
	// ErrCommandExists is returned when a command id is already registered.
	ErrCommandExists = errors.New("command already exists")
	// ErrCommandNotFound is returned when executing a command nobody registered.
	ErrCommandNotFound = errors.New("command not found")
	// ErrCommandFailed wraps an error returned by a command handler.
	ErrCommandFailed = errors.New("command failed")
)

type registeredCommand struct {
	id      string
	handler CommandHandler
}

// CommandRegistry maps command ids to their handlers.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[string]*registeredCommand
}

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[string]*registeredCommand),
	}
}

// RegisterCommand adds handler under id. The returned Disposable removes this registration only: if the id was
// released and registered again by someone else, disposing the old handle leaves the new one alone.
func (r *CommandRegistry) RegisterCommand(id string, handler CommandHandler) (types.Disposable, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidCommandID
	}
	if handler == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCommandHandler, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.commands[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrCommandExists, id)
	}

	rc := &registeredCommand{id: id, handler: handler}
	r.commands[id] = rc

	return types.DisposableFunc(func() error {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.commands[id] == rc {
			delete(r.commands, id)
		}
		return nil
	}), nil
}

// ExecuteCommand runs the handler registered under id. The handler is called without holding the registry lock
// so it may register or execute other commands.
func (r *CommandRegistry) ExecuteCommand(ctx context.Context, id string, args ...any) (any, error) {
	r.mu.RLock()
	rc, ok := r.commands[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCommandNotFound, id)
	}

	res, err := rc.handler(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCommandFailed, id, err)
	}
	return res, nil
}

func (r *CommandRegistry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.commands[id]
	return ok
}

// Commands returns the registered ids, sorted.
func (r *CommandRegistry) Commands() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.commands))
	for id := range r.commands {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}
