// Package snowflake generates time-ordered 63-bit message ids: milliseconds
// since a fixed epoch, the generating node, and a per-millisecond sequence.
package snowflake

import (
	"fmt"
	"sync"
	"time"
)

const (
	nodeBits  = 10
	stepBits  = 12
	nodeMax   = -1 ^ (-1 << nodeBits)
	stepMask  = -1 ^ (-1 << stepBits)
	timeShift = nodeBits + stepBits
	nodeShift = stepBits

	// 2024-01-01 00:00:00 UTC
	Epoch int64 = 1704067200000
)

type Node struct {
	mu    sync.Mutex
	last  int64
	node  int64
	step  int64
	clock func() int64
}

func NewNode(node int64) (*Node, error) {
	if node < 0 || node > nodeMax {
		return nil, fmt.Errorf("snowflake node %d out of range [0, %d]", node, nodeMax)
	}
	return &Node{node: node, clock: func() int64 { return time.Now().UnixMilli() }}, nil
}

// Generate returns an id strictly greater than every id previously returned by n.
func (n *Node) Generate() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.clock()
	if now < n.last {
		// clock went backwards; keep the last timestamp so ids stay monotonic
		now = n.last
	}

	if now == n.last {
		n.step = (n.step + 1) & stepMask
		if n.step == 0 {
			for now <= n.last {
				now = n.clock()
			}
		}
	} else {
		n.step = 0
	}
	n.last = now

	return ((now - Epoch) << timeShift) | (n.node << nodeShift) | n.step
}

// Time extracts the generation time of id.
func Time(id int64) time.Time {
	return time.UnixMilli((id >> timeShift) + Epoch).UTC()
}
