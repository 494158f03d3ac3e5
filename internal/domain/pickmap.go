package domain

// Pick instructs the merge engine which side of a field conflict to keep.
type Pick string

const (
	// PickA keeps record A's value (or array) verbatim.
	PickA Pick = "A"
	// PickB keeps record B's value (or array) verbatim.
	PickB Pick = "B"
	// PickUnion unions array-valued fields; meaningless for scalars, where it
	// falls back to resolver scoring.
	PickUnion Pick = "UNION"
	// PickNone omits the field from the merged record entirely.
	PickNone Pick = "NONE"
)

// PickMap is the per-field merge instruction set, usually supplied by a UI
// that let the user choose sides. Absent fields default to resolver scoring.
type PickMap map[string]Pick
