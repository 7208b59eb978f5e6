package utils

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

// maxNodePart bounds the datacenter and worker ids, 5 bits each
const maxNodePart = 31

var (
	nodeMu sync.RWMutex
	node   *snowflake.Node
)

// InitSnowflake configures the link id generator. Later calls keep the first node.
func InitSnowflake(datacenterID, workerID int64) error {
	if datacenterID < 0 || datacenterID > maxNodePart || workerID < 0 || workerID > maxNodePart {
		return fmt.Errorf("snowflake datacenter and worker ids must be within 0..%d", maxNodePart)
	}

	nodeMu.Lock()
	defer nodeMu.Unlock()
	if node != nil {
		return nil
	}
	n, err := snowflake.NewNode(datacenterID<<5 | workerID)
	if err != nil {
		return fmt.Errorf("failed to create snowflake node: %w", err)
	}
	node = n
	return nil
}

// NextID returns a new link id
func NextID() (int64, error) {
	nodeMu.RLock()
	n := node
	nodeMu.RUnlock()
	if n == nil {
		return 0, fmt.Errorf("snowflake node not initialized")
	}
	return n.Generate().Int64(), nil
}
