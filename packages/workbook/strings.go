package workbook

// StringTable interns the text of text cells. repeated strings, common in
// categorical columns, are stored once and reference counted.
type StringTable struct {
	strings   map[uint32]string
	stringIDs map[string]uint32
	refCounts map[uint32]int
	nextID    uint32
}

// NewStringTable creates an empty string table
func NewStringTable() *StringTable {
	return &StringTable{
		strings:   make(map[uint32]string),
		stringIDs: make(map[string]uint32),
		refCounts: make(map[uint32]int),
		nextID:    1, // 0 means no string
	}
}

// Intern returns the ID of s, adding it if needed, and takes a reference.
func (st *StringTable) Intern(s string) uint32 {
	if id, exists := st.stringIDs[s]; exists {
		st.refCounts[id]++
		return id
	}
	id := st.nextID
	st.strings[id] = s
	st.stringIDs[s] = id
	st.refCounts[id] = 1
	st.nextID++
	return id
}

// Get returns the string for id
func (st *StringTable) Get(id uint32) (string, bool) {
	s, ok := st.strings[id]
	return s, ok
}

// Release drops a reference to id and forgets the string once nothing
// references it.
func (st *StringTable) Release(id uint32) {
	count, exists := st.refCounts[id]
	if !exists {
		return
	}
	if count > 1 {
		st.refCounts[id] = count - 1
		return
	}
	delete(st.stringIDs, st.strings[id])
	delete(st.strings, id)
	delete(st.refCounts, id)
}

// Len returns the number of distinct strings held.
func (st *StringTable) Len() int {
	return len(st.strings)
}

// References returns the reference count of id.
func (st *StringTable) References(id uint32) int {
	return st.refCounts[id]
}
