package interfaces

import "context"

type GcsInterface interface {
	Upload(ctx context.Context, objectName string, data []byte) error
	Close() error
}
