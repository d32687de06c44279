package ephemeral

import (
	"context"
	"strings"
)

const MemoryURL = "memory://"

// Open selects the backing store from a URL: memory:// keeps everything in
// process, anything else is handed to the Redis client.
func Open(ctx context.Context, url string) (Store, error) {
	if strings.HasPrefix(strings.TrimSpace(url), MemoryURL) {
		return NewMemoryStore(), nil
	}
	return OpenRedis(ctx, url)
}
