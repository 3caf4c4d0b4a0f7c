package scene

// Disposable is anything that frees resources on Dispose.
type Disposable interface {
	Dispose()
}

// Ref is a tagged reference: either Owned (released together with the
// holder) or Shared (borrowed from a registry, never disposed by the holder).
type Ref[T Disposable] struct {
	obj   T
	owned bool
}

// Owned wraps an object whose lifetime belongs to the holder.
func Owned[T Disposable](obj T) Ref[T] {
	return Ref[T]{obj: obj, owned: true}
}

// Shared wraps an object owned elsewhere.
func Shared[T Disposable](obj T) Ref[T] {
	return Ref[T]{obj: obj}
}

// Get returns the referenced object.
func (r Ref[T]) Get() T {
	return r.obj
}

// IsOwned reports whether Release disposes the object.
func (r Ref[T]) IsOwned() bool {
	return r.owned
}

// Release disposes owned objects and is a no-op for shared ones.
func (r Ref[T]) Release() {
	if r.owned {
		r.obj.Dispose()
	}
}
