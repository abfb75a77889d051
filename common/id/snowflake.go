package id

import (
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
)

const defaultNodeID = 1

var (
	node *snowflake.Node
	once sync.Once
)

// Init sets the snowflake node for this process. Only the first call has any effect.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New returns a time-ordered int64 id. Processes that never called Init use node 1.
func New() int64 {
	if node == nil {
		_ = Init(defaultNodeID)
	}
	return node.Generate().Int64()
}

// NewString returns New formatted in base 10, the form used in stream payloads.
func NewString() string {
	return strconv.FormatInt(New(), 10)
}

// Parse reads an id produced by NewString.
func Parse(s string) (int64, error) {
	parsed, err := snowflake.ParseString(s)
	if err != nil {
		return 0, err
	}
	return parsed.Int64(), nil
}
