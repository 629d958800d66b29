package fileutils

import (
	"context"
	"time"
)

// WatchFile re-hashes the file on every tick and emits an event when the
// content changed. Hash failures are reported through onErr and do not
// stop the watch.
func WatchFile(ctx context.Context, path string, ticks <-chan time.Time, onErr func(err error)) (<-chan struct{}, error) {
	lastHash, err := ComputeFileHash(path)
	if err != nil {
		return nil, err
	}

	ch := make(chan struct{})
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticks:
				newHash, err := ComputeFileHash(path)
				if err != nil {
					onErr(err)
					continue
				}
				if newHash == lastHash {
					continue
				}
				lastHash = newHash

				select {
				case <-ctx.Done():
					return
				case ch <- struct{}{}:
				}
			}
		}
	}()

	return ch, nil
}
