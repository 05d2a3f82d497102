package contracts

import "context"

// AsyncWorker is started per room by the registry while the room has local clients.
type AsyncWorker interface {
	// Run follows the room until ctx ends.
	Run(ctx context.Context, roomID string) error
}
