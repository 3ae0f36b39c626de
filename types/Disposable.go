package types

// Disposable is a resource token handed out by a registration. Calling Dispose undoes that registration.
type Disposable interface {
	Dispose() error
}

// DisposableFunc adapts a plain func to the Disposable interface.
type DisposableFunc func() error

func (f DisposableFunc) Dispose() error {
	if f == nil {
		return nil
	}
	return f()
}
