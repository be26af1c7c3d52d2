package id

import (
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
)

const defaultNode = 1

var (
	node    *snowflake.Node
	once    sync.Once
	initErr error
)

// Init initializes the Snowflake node with the given node ID.
// Only the first call has any effect.
func Init(nodeID int64) error {
	once.Do(func() {
		node, initErr = snowflake.NewNode(nodeID)
	})
	return initErr
}

// New generates a new time-ordered int64 ID.
// Falls back to the default node when Init was never called, which keeps tests and tools free of setup.
func New() int64 {
	if e := Init(defaultNode); e != nil {
		panic("snowflake node unavailable: " + e.Error())
	}
	return node.Generate().Int64()
}

// Format renders an ID the way the HTTP API exposes it.
func Format(v int64) string {
	return strconv.FormatInt(v, 10)
}
