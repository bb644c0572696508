package permission

import "fmt"

// Level is an ordered permission level. "Has at least level L" always
// means comparing ranks, never string equality.
type Level string

const (
	LevelNone      Level = "NONE"
	LevelList      Level = "LIST"
	LevelRead      Level = "READ"
	LevelReadData  Level = "READ_DATA"
	LevelWrite     Level = "WRITE"
	LevelWriteData Level = "WRITE_DATA"
	LevelShare     Level = "SHARE"
	LevelOwner     Level = "OWNER"
)

var levelRanks = map[Level]int{
	LevelNone:      0,
	LevelList:      1,
	LevelRead:      2,
	LevelReadData:  3,
	LevelWrite:     4,
	LevelWriteData: 5,
	LevelShare:     6,
	LevelOwner:     7,
}

// Rank returns the ordinal of the level, or -1 for unknown values so
// that corrupt rows never grant access.
func (l Level) Rank() int {
	if rank, ok := levelRanks[l]; ok {
		return rank
	}
	return -1
}

// AtLeast reports whether l grants at least the given minimum level
func (l Level) AtLeast(min Level) bool {
	return l.Rank() >= min.Rank()
}

// ParseLevel validates a permission level name
func ParseLevel(name string) (Level, error) {
	level := Level(name)
	if _, ok := levelRanks[level]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidLevel, name)
	}
	return level, nil
}

// maxLevel returns the higher-ranked of two levels
func maxLevel(a, b Level) Level {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Minimum level required by each named check. Delete is deliberately
// gated on OWNER: sharing a resource never hands out deletion.
const (
	minList     = LevelList
	minRead     = LevelRead
	minReadData = LevelReadData
	minEdit     = LevelWrite
	minEditData = LevelWriteData
	minShare    = LevelShare
	minDelete   = LevelOwner
)
