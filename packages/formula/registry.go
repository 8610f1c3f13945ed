package formula

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Category groups functions the way spreadsheet function references do
type Category string

const (
	CategoryMath          Category = "math"
	CategoryStatistical   Category = "statistical"
	CategoryText          Category = "text"
	CategoryDate          Category = "date"
	CategoryFinancial     Category = "financial"
	CategoryLogical       Category = "logical"
	CategoryLookup        Category = "lookup"
	CategoryEngineering   Category = "engineering"
	CategoryDatabase      Category = "database"
	CategoryInformation   Category = "information"
	CategoryCompatibility Category = "compatibility"
)

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{
		CategoryMath, CategoryStatistical, CategoryText, CategoryDate,
		CategoryFinancial, CategoryLogical, CategoryLookup, CategoryEngineering,
		CategoryDatabase, CategoryInformation, CategoryCompatibility,
	}
}

// Variadic marks a FunctionSpec without an upper argument bound.
const Variadic = -1

// FunctionSpec describes one function. Fn receives the call with its
// arguments evaluated unless Lazy is set, in which case it evaluates them on
// demand. ArrayArgs evaluates arguments with element-wise operators.
// RefFn, when set, makes the function a reference producer (INDIRECT,
// OFFSET) usable wherever a range is.
type FunctionSpec struct {
	Name      string
	Category  Category
	MinArgs   int
	MaxArgs   int
	Lazy      bool
	ArrayArgs bool
	Volatile  bool
	Stub      bool
	Fn        func(c *Call) Value
	RefFn     func(c *Call) (RangeAddress, ErrorCode)
}

func (s FunctionSpec) validate() error {
	switch {
	case normalizeFunctionName(s.Name) == "":
		return fmt.Errorf("function spec has no name")
	case s.Fn == nil && s.RefFn == nil:
		return fmt.Errorf("function %s has no implementation", s.Name)
	case s.MinArgs < 0:
		return fmt.Errorf("function %s: negative minimum argument count", s.Name)
	case s.MaxArgs != Variadic && s.MaxArgs < s.MinArgs:
		return fmt.Errorf("function %s: maximum argument count below minimum", s.Name)
	}
	return nil
}

// Registry is an immutable, case-insensitive function table
type Registry struct {
	funcs map[string]FunctionSpec
}

// NewRegistry builds the built-in table plus extra. extra entries replace
// built-ins of the same name.
func NewRegistry(extra ...FunctionSpec) (*Registry, error) {
	r := &Registry{funcs: make(map[string]FunctionSpec, 512)}
	for _, group := range builtinGroups() {
		for _, spec := range group {
			if err := r.add(spec); err != nil {
				return nil, err
			}
		}
	}
	for _, spec := range extra {
		if err := r.add(spec); err != nil {
			return nil, err
		}
	}
	return r, nil
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r, err := NewRegistry()
	if err != nil {
		panic(err)
	}
	return r
})

// DefaultRegistry returns the shared built-in table.
func DefaultRegistry() *Registry {
	return defaultRegistry()
}

func (r *Registry) add(spec FunctionSpec) error {
	if err := spec.validate(); err != nil {
		return err
	}
	spec.Name = normalizeFunctionName(spec.Name)
	r.funcs[spec.Name] = spec
	return nil
}

// With returns a new registry holding r's functions plus specs.
func (r *Registry) With(specs ...FunctionSpec) (*Registry, error) {
	out := &Registry{funcs: make(map[string]FunctionSpec, len(r.funcs)+len(specs))}
	for name, spec := range r.funcs {
		out.funcs[name] = spec
	}
	for _, spec := range specs {
		if err := out.add(spec); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// normalizeFunctionName upper-cases a name and strips the future-function
// prefixes xlsx files carry.
func normalizeFunctionName(name string) string {
	up := strings.ToUpper(strings.TrimSpace(name))
	for {
		switch {
		case strings.HasPrefix(up, "_XLFN."):
			up = up[len("_XLFN."):]
		case strings.HasPrefix(up, "_XLWS."):
			up = up[len("_XLWS."):]
		default:
			return up
		}
	}
}

// Lookup finds a function by name, case-insensitively.
func (r *Registry) Lookup(name string) (FunctionSpec, bool) {
	spec, ok := r.funcs[normalizeFunctionName(name)]
	return spec, ok
}

// Len returns the number of registered functions.
func (r *Registry) Len() int {
	return len(r.funcs)
}

// Names returns every function name in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ByCategory returns the functions of one category sorted by name.
func (r *Registry) ByCategory(cat Category) []FunctionSpec {
	var out []FunctionSpec
	for _, spec := range r.funcs {
		if spec.Category == cat {
			out = append(out, spec)
		}
	}
	slices.SortFunc(out, func(a, b FunctionSpec) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func builtinGroups() [][]FunctionSpec {
	return [][]FunctionSpec{
		mathFunctions(),
		statisticalFunctions(),
		textFunctions(),
		dateFunctions(),
		financialFunctions(),
		logicalFunctions(),
		lookupFunctions(),
		engineeringFunctions(),
		databaseFunctions(),
		informationFunctions(),
		compatibilityFunctions(),
		stubFunctions(),
	}
}

// fn is shorthand for an eager function spec.
func fn(name string, cat Category, minArgs, maxArgs int, impl func(*Call) Value) FunctionSpec {
	return FunctionSpec{Name: name, Category: cat, MinArgs: minArgs, MaxArgs: maxArgs, Fn: impl}
}

// lazy is shorthand for a function that evaluates its own arguments.
func lazy(name string, cat Category, minArgs, maxArgs int, impl func(*Call) Value) FunctionSpec {
	return FunctionSpec{Name: name, Category: cat, MinArgs: minArgs, MaxArgs: maxArgs, Lazy: true, Fn: impl}
}

// arrayFn is shorthand for a function whose arguments evaluate element-wise.
func arrayFn(name string, cat Category, minArgs, maxArgs int, impl func(*Call) Value) FunctionSpec {
	return FunctionSpec{Name: name, Category: cat, MinArgs: minArgs, MaxArgs: maxArgs, ArrayArgs: true, Fn: impl}
}

func volatile(spec FunctionSpec) FunctionSpec {
	spec.Volatile = true
	return spec
}

// alias registers impl under another name, keeping everything else.
func alias(name string, cat Category, spec FunctionSpec) FunctionSpec {
	spec.Name = name
	spec.Category = cat
	return spec
}
