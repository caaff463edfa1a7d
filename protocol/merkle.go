package protocol

import (
	"github.com/blockberries/stakeberry/types"
)

// MerkleRoot folds the leaves pairwise with SHA-256 until one digest
// remains. An odd node at the end of a level is paired with itself.
// No leaves yields the zero-length hash, matching an empty block.
func MerkleRoot(leaves []types.Hash) types.Hash {
	if len(leaves) == 0 {
		return types.Hash{}
	}
	level := make([]types.Hash, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		next := level[:0]
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, types.HashConcat(level[i], level[i+1]))
			} else {
				next = append(next, types.HashConcat(level[i], level[i]))
			}
		}
		level = next
	}
	return level[0]
}
