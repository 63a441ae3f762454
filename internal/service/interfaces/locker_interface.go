package interfaces

import "context"

// LockerInterface serialises work on a key across replicas. The returned func releases the lock.
type LockerInterface interface {
	Acquire(ctx context.Context, key string) (release func(ctx context.Context) error, err error)
}
