package reminder

import "hash/fnv"

// MaxHandle is the exclusive upper bound of a handle (Android's notification id ceiling).
const MaxHandle = 2147483647

// Handle maps (entityID, kind) to a platform notification id in [0, MaxHandle).
//
// Two different pairs may collide; the later schedule then replaces the
// earlier one. That only costs a reminder, so it is not corrected.
func Handle(entityID string, kind Kind) int32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(entityID))
	_, _ = h.Write([]byte{'-'})
	_, _ = h.Write([]byte(kind))
	return int32(h.Sum32() % MaxHandle)
}

// TaskHandles returns the handle of every kind for one entity, in AllKinds order.
func TaskHandles(entityID string) []int32 {
	out := make([]int32, 0, len(allKinds))
	for _, k := range allKinds {
		out = append(out, Handle(entityID, k))
	}
	return out
}
