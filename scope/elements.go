package scope

import (
	"github.com/weftrun/weft/dispatch"
	"github.com/weftrun/weft/element"
)

// Well-known element keys layered on top of the element algebra. The
// element package itself defines no concrete kinds; these are the ones
// the scope machinery consumes.
type (
	nameKey       struct{}
	dispatcherKey struct{}
	uncaughtKey   struct{}
)

// NameOf extracts the task/scope name element from a set.
func NameOf(set element.Set) (string, bool) {
	v, ok := set.Get(nameKey{})
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// DispatcherOf extracts the dispatcher element from a set.
func DispatcherOf(set element.Set) (dispatch.Dispatcher, bool) {
	v, ok := set.Get(dispatcherKey{})
	if !ok {
		return nil, false
	}
	d, ok := v.(dispatch.Dispatcher)
	return d, ok
}

// UncaughtOf extracts the uncaught-failure handler element from a set.
func UncaughtOf(set element.Set) (func(element.Set, error), bool) {
	v, ok := set.Get(uncaughtKey{})
	if !ok {
		return nil, false
	}
	h, ok := v.(func(element.Set, error))
	return h, ok
}

// NameElement returns a set holding only a name element, for merging into
// scope or task element sets.
func NameElement(name string) element.Set {
	return element.New(nameKey{}, name)
}

// DispatcherElement returns a set holding only a dispatcher element.
func DispatcherElement(d dispatch.Dispatcher) element.Set {
	return element.New(dispatcherKey{}, d)
}

// UncaughtElement returns a set holding only an uncaught-failure handler
// element. Under a supervising scope a failing task's handler element is
// the only place its failure is delivered.
func UncaughtElement(h func(element.Set, error)) element.Set {
	return element.New(uncaughtKey{}, h)
}
