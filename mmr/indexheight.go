package mmr

import "math/bits"

// References:
// * https://github.com/proofchains/python-proofmarshal/blob/master/proofmarshal/mmr.py#L18
// * https://github.com/mimblewimble/grin/blob/0ff6763ee64e5a14e70ddd4642b99789a1648a32/core/src/core/pmmr.rs#L606
//
// Most of the functions in this file mirror the implementations in the
// references cited above: all of them are closed-form (no materialized
// tree), operating purely on the binary encoding that falls out of the
// append-only construction of an MMR.

// JumpLeftPerfect iteratively discovers the left most node at the same
// height as the node identified by pos. This is how the height of an
// arbitrary position is found without ever materializing the tree: it
// 'jumps left' by the size of the largest perfect tree which would precede
// pos.
//
// So given,
//
//	3            15
//	           /    \
//	          /      \
//	         /        \
//	2       7          14
//	      /   \       /   \
//	1    3     6    10     13      18
//	    / \  /  \   / \   /  \    /  \
//	0  1   2 4   5 8   9 11   12 16   17
//
// JumpLeftPerfect(13) returns 6 because the size of the largest perfect tree
// preceding 13 is 7. The next jump, JumpLeftPerfect(6), returns 3: the
// perfect tree preceding 6 is size 3 and the 'all ones' node is found.
//
// Note that pos is the *one based* position, not the zero based index.
func JumpLeftPerfect(pos uint64) uint64 {
	mostSignificantBit := uint64(1) << (BitLength64(pos) - 1)
	return pos - (mostSignificantBit - 1)
}

// IndexHeight obtains the tree height of an MMR index, taking advantage of
// the binary encoding resulting from the tree construction. This function is
// the basis for the entire MMR implementation.
func IndexHeight(i uint64) uint64 {
	// convert from zero based index to 1 based position, else the encoding doesn't work out
	return PosHeight(i + 1)
}

// HeightIndexLeafCount returns the count of leaves contained in a single
// mountain whose height is heightIndex + 1.
func HeightIndexLeafCount(heightIndex uint64) uint64 {
	// m = (1 << h) - 1 nodes in a mountain of height h; the leaf count f
	// satisfies m = f + f - 1, so f = (m + 1) / 2.
	m := HeightIndexSize(heightIndex)
	return (m + 1) / 2
}

// PosHeight is used when position is a 1 based count.
func PosHeight(pos uint64) uint64 {
	for !AllOnes(pos) {
		pos = JumpLeftPerfect(pos)
	}
	return BitLength64(pos) - 1
}

// JumpRightSibling moves from pos to the next sibling at the same height.
func JumpRightSibling(pos uint64) uint64 {
	return pos + (1 << (PosHeight(pos) + 1)) - 1
}

// LeftChild returns the position of the top most left child of parent pos.
// It returns false for height 0 positions, which have no children.
//
//	pos 18 has height 1, and 18 - (1 << 1) =  18 - 2 = 16.
//	pos 14 has height 2, and 14 - (1 << 2) =  14 - 4 = 10.
func LeftChild(pos uint64) (uint64, bool) {
	height := PosHeight(pos)
	if height == 0 {
		return 0, false
	}
	return pos - (1 << height), true
}

// SiblingOffset returns the offset to the sibling at the given height.
func SiblingOffset(height uint64) uint64 {
	// for a 1 based height this would be (1 << height) - 1; height here is
	// zero based so we start at 2 to recover the same identity.
	return (2 << height) - 1
}

// ParentOffset returns the offset from a node to its parent at the given height.
func ParentOffset(height uint64) uint64 {
	return 2 << height
}

// HeightIndexSize returns the node count corresponding to the zero based height index.
func HeightIndexSize(heightIndex uint64) uint64 {
	return (2 << heightIndex) - 1
}

// MaxPeakHeight returns the height of the highest peak wholly committed by
// mmr index i: the highest peak that can be included when i is the last
// added node.
func MaxPeakHeight(i uint64) uint64 {

	height := uint64(bits.Len64(i+1)) - 1

	// edge case: if i represents a perfect peak, then we are done as node i is
	// included in the derived height.
	if AllOnes(i + 1) {
		return height
	}

	// otherwise, height is the height of the perfect tree that contains i, and
	// its position is *after* i. So the previous height is the highest peak
	// included in the mmr index i.
	return height - 1
}
