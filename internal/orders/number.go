package orders

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// OrderNoPrefix marks order numbers issued by this service.
const OrderNoPrefix = "CS"

// NumberGenerator issues unique, roughly time-ordered order numbers.
type NumberGenerator struct {
	node *snowflake.Node
}

// NewNumberGenerator binds a generator to a snowflake node id (0-1023). Each
// running API instance needs its own node id.
func NewNumberGenerator(nodeID int64) (*NumberGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &NumberGenerator{node: node}, nil
}

// Next returns a fresh order number such as "CS1820745301158686720".
func (g *NumberGenerator) Next() string {
	return OrderNoPrefix + g.node.Generate().String()
}

// ValidOrderNo performs a cheap shape check before any lookup.
func ValidOrderNo(orderNo string) bool {
	orderNo = strings.TrimSpace(orderNo)
	return orderNo != "" && len(orderNo) <= 64
}
