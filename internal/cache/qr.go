package cache

import (
	"github.com/dgraph-io/ristretto"
)

// QRCache keeps rendered QR code images in process memory
type QRCache struct {
	client *ristretto.Cache
}

// NewQRCache creates a cache bounded to maxMB megabytes
func NewQRCache(maxMB int) (*QRCache, error) {
	if maxMB <= 0 {
		maxMB = 16
	}
	maxCost := int64(maxMB) * 1024 * 1024
	client, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxCost / 1024 * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &QRCache{client: client}, nil
}

// Get returns a cached image
func (c *QRCache) Get(key string) ([]byte, bool) {
	v, ok := c.client.Get(key)
	if !ok {
		return nil, false
	}
	png, ok := v.([]byte)
	return png, ok
}

// Set stores an image, costed by its size. Admission is asynchronous.
func (c *QRCache) Set(key string, png []byte) {
	c.client.Set(key, png, int64(len(png)))
}

// Wait blocks until buffered writes are applied
func (c *QRCache) Wait() {
	c.client.Wait()
}

// Close stops the cache's goroutines
func (c *QRCache) Close() {
	c.client.Close()
}
