package workbook

import (
	"slices"
	"strings"
)

// symbolTable maps names to IDs for worksheets and named ranges. a name is
// either defined, or only referenced by formulas and undefined until someone
// defines it. lookups ignore case and the spelling of the latest definition
// is kept for display.
type symbolTable[T any] struct {
	nameToID map[string]uint32 // folded name -> ID, defined or not
	idToName map[uint32]string // ID -> display name

	defined map[uint32]T
	order   []uint32 // defined IDs in definition order

	refCounts map[uint32]int // formula references per ID
	nextID    uint32
}

func newSymbolTable[T any]() *symbolTable[T] {
	return &symbolTable[T]{
		nameToID:  make(map[string]uint32),
		idToName:  make(map[uint32]string),
		defined:   make(map[uint32]T),
		refCounts: make(map[uint32]int),
		nextID:    1, // 0 is reserved for "no symbol"
	}
}

func fold(name string) string {
	return strings.ToLower(name)
}

// entry returns the ID for name, creating an undefined entry when needed.
func (t *symbolTable[T]) entry(name string) uint32 {
	if id, exists := t.nameToID[fold(name)]; exists {
		return id
	}
	id := t.nextID
	t.nameToID[fold(name)] = id
	t.idToName[id] = name
	t.nextID++
	return id
}

// intern records a formula reference to name, defined or not.
func (t *symbolTable[T]) intern(name string) uint32 {
	id := t.entry(name)
	t.refCounts[id]++
	return id
}

// release drops one formula reference.
func (t *symbolTable[T]) release(id uint32) {
	if t.refCounts[id] > 1 {
		t.refCounts[id]--
		return
	}
	delete(t.refCounts, id)
	t.dropIfUnused(id)
}

func (t *symbolTable[T]) dropIfUnused(id uint32) {
	if _, isDefined := t.defined[id]; isDefined || t.refCounts[id] > 0 {
		return
	}
	delete(t.nameToID, fold(t.idToName[id]))
	delete(t.idToName, id)
}

// define adds a definition. it reports false when name is already defined.
func (t *symbolTable[T]) define(name string, v T) (uint32, bool) {
	id := t.entry(name)
	if _, exists := t.defined[id]; exists {
		return id, false
	}
	t.idToName[id] = name
	t.defined[id] = v
	t.order = append(t.order, id)
	return id, true
}

// undefine removes the definition of name. the name stays known as long as
// formulas reference it.
func (t *symbolTable[T]) undefine(name string) (T, bool) {
	var zero T
	id, exists := t.nameToID[fold(name)]
	if !exists {
		return zero, false
	}
	v, isDefined := t.defined[id]
	if !isDefined {
		return zero, false
	}
	delete(t.defined, id)
	t.order = slices.DeleteFunc(t.order, func(x uint32) bool { return x == id })
	t.dropIfUnused(id)
	return v, true
}

// rename moves the definition of oldName to newName, keeping its position.
// formula references stay with the old name.
func (t *symbolTable[T]) rename(oldName, newName string) bool {
	oldID, exists := t.nameToID[fold(oldName)]
	if !exists {
		return false
	}
	v, isDefined := t.defined[oldID]
	if !isDefined {
		return false
	}
	if fold(oldName) == fold(newName) {
		t.idToName[oldID] = newName
		return true
	}
	newID := t.entry(newName)
	if _, taken := t.defined[newID]; taken {
		return false
	}
	t.idToName[newID] = newName
	t.defined[newID] = v
	delete(t.defined, oldID)
	t.order[slices.Index(t.order, oldID)] = newID
	t.dropIfUnused(oldID)
	return true
}

func (t *symbolTable[T]) lookup(name string) (T, bool) {
	var zero T
	id, exists := t.nameToID[fold(name)]
	if !exists {
		return zero, false
	}
	v, ok := t.defined[id]
	return v, ok
}

func (t *symbolTable[T]) contains(name string) bool {
	_, ok := t.lookup(name)
	return ok
}

func (t *symbolTable[T]) name(id uint32) string {
	return t.idToName[id]
}

// definedNames lists defined names in definition order.
func (t *symbolTable[T]) definedNames() []string {
	names := make([]string, len(t.order))
	for i, id := range t.order {
		names[i] = t.idToName[id]
	}
	return names
}

// undefinedNames lists names formulas reference that have no definition,
// sorted.
func (t *symbolTable[T]) undefinedNames() []string {
	var names []string
	for id, count := range t.refCounts {
		if _, isDefined := t.defined[id]; !isDefined && count > 0 {
			names = append(names, t.idToName[id])
		}
	}
	slices.Sort(names)
	return names
}

func (t *symbolTable[T]) count() int {
	return len(t.order)
}
