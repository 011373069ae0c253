package di

// Token names a service and carries its type.
type Token[T any] struct {
	name string
}

// NewToken creates a typed token.
func NewToken[T any](name string) Token[T] {
	return Token[T]{name: name}
}

// Name returns the registry key.
func (t Token[T]) Name() string {
	return t.name
}

// RegisterToken registers a lazy factory under the token.
func RegisterToken[T any](c Container, t Token[T], factory func(ServiceRegistry) T) {
	c.RegisterFactory(t.name, func(sr ServiceRegistry) any {
		return factory(sr)
	})
}

// RegisterValue registers a ready value under the token.
func RegisterValue[T any](c Container, t Token[T], value T) {
	c.Register(t.name, value)
}

// GetToken resolves the token with its static type.
func GetToken[T any](sr ServiceRegistry, t Token[T]) T {
	return sr.Get(t.name).(T)
}
