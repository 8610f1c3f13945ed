package formula

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMaxDepth is the evaluation depth after which a formula yields
	// #CIRCULAR! instead of recursing further.
	DefaultMaxDepth = 1024

	// DefaultMaxRangeCells caps how many cells one range may expand to.
	DefaultMaxRangeCells = 4_000_000
)

// Clock interface provides time functionality for testing
type Clock interface {
	Now() time.Time
}

// WallClock is the default implementation using system time
type WallClock struct{}

func (w *WallClock) Now() time.Time {
	return time.Now()
}

// RandomGenerator interface provides random number generation for testing
type RandomGenerator interface {
	Float64() float64
}

// DefaultRandomGenerator uses the standard library's rand package
type DefaultRandomGenerator struct{}

func (d *DefaultRandomGenerator) Float64() float64 {
	return rand.Float64()
}

// Engine parses and evaluates formulas. it holds no per-evaluation state
// and is safe for concurrent use once constructed.
type Engine struct {
	registry      *Registry
	extra         []FunctionSpec
	logger        *zap.Logger
	clock         Clock
	random        RandomGenerator
	maxDepth      int
	maxRangeCells int
	date1904      bool
}

// Option configures an Engine
type Option func(*Engine)

// WithRegistry replaces the built-in function table.
func WithRegistry(r *Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithFunctions adds or overrides functions on top of the registry.
func WithFunctions(specs ...FunctionSpec) Option {
	return func(e *Engine) { e.extra = append(e.extra, specs...) }
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

func WithRandom(random RandomGenerator) Option {
	return func(e *Engine) {
		if random != nil {
			e.random = random
		}
	}
}

// WithMaxDepth sets the evaluation depth ceiling. non-positive values keep
// the default.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// WithMaxRangeCells caps range expansion; larger ranges evaluate to #REF!.
func WithMaxRangeCells(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxRangeCells = n
		}
	}
}

// WithDate1904 switches date serials to the 1904 date system.
func WithDate1904(enabled bool) Option {
	return func(e *Engine) { e.date1904 = enabled }
}

// NewEngine creates an engine with the built-in functions and the given
// options applied.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger:        zap.NewNop(),
		clock:         &WallClock{},
		random:        &DefaultRandomGenerator{},
		maxDepth:      DefaultMaxDepth,
		maxRangeCells: DefaultMaxRangeCells,
	}
	for _, opt := range opts {
		opt(e)
	}

	base := e.registry
	if base == nil {
		base = DefaultRegistry()
	}
	if len(e.extra) > 0 {
		extended, err := base.With(e.extra...)
		if err != nil {
			return nil, fmt.Errorf("build function registry: %w", err)
		}
		base = extended
	}
	e.registry = base
	e.extra = nil
	return e, nil
}

// MustNewEngine is NewEngine for static configuration. it panics if a
// custom function spec is invalid.
func MustNewEngine(opts ...Option) *Engine {
	e, err := NewEngine(opts...)
	if err != nil {
		panic(err)
	}
	return e
}

// Registry returns the engine's function table.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Logger returns the engine's logger.
func (e *Engine) Logger() *zap.Logger {
	return e.logger
}

// Date1904 reports whether serial dates use the 1904 system.
func (e *Engine) Date1904() bool {
	return e.date1904
}

// Formula is a parsed formula ready for evaluation. it can be evaluated any
// number of times, concurrently, against different resolvers.
type Formula struct {
	Source string
	Root   ASTNode
}

// String returns the canonical text of the parsed formula.
func (f *Formula) String() string {
	return f.Root.ToString()
}

// Volatile reports whether the formula calls a function whose result can
// change without any input changing, such as NOW or RAND.
func (f *Formula) Volatile(r *Registry) bool {
	volatile := false
	Walk(f.Root, func(n ASTNode) bool {
		if call, ok := n.(*FunctionCallNode); ok {
			if spec, found := r.Lookup(call.Name); found && spec.Volatile {
				volatile = true
			}
		}
		return !volatile
	})
	return volatile
}

// Parse tokenizes and parses formula text. a single leading "=" is
// tolerated. failures are *ParseError.
func (e *Engine) Parse(src string) (*Formula, error) {
	body := strings.TrimSpace(src)
	body = strings.TrimPrefix(body, "=")
	root, err := ParseFormula(body)
	if err != nil {
		e.logger.Debug("formula parse failed", zap.String("formula", src), zap.Error(err))
		return nil, err
	}
	return &Formula{Source: src, Root: root}, nil
}

// EvalOption adjusts the context of a single evaluation
type EvalOption func(*EvalContext)

// OnSheet sets the sheet that unqualified references resolve against.
func OnSheet(sheet string) EvalOption {
	return func(ctx *EvalContext) { ctx.sheet = sheet }
}

// AtCell marks the cell that owns the formula. the cell joins the
// resolving set, so a formula reading its own cell is circular.
func AtCell(addr CellAddress) EvalOption {
	return func(ctx *EvalContext) {
		if addr.Sheet != "" {
			ctx.sheet = addr.Sheet
		}
		ctx.cell = addr.WithSheet(ctx.sheet)
		ctx.hasCell = true
	}
}

// Within continues the evaluation that owns parent: the resolving set and
// depth counter are shared, and the sheet defaults to parent's. resolvers
// that re-enter the engine through Eval or Evaluate pass the ctx they were
// handed. parent must not be in use on another goroutine.
func Within(parent *EvalContext) EvalOption {
	return func(ctx *EvalContext) {
		if parent == nil {
			return
		}
		ctx.state = parent.state
		ctx.inherited = true
		if ctx.sheet == "" {
			ctx.sheet = parent.sheet
		}
	}
}

// Eval evaluates a parsed formula against resolver. resolver may be nil,
// in which case every cell is blank. each call starts its own resolving
// set and depth counter unless Within is given, so calls made from inside
// Resolver.Resolve need Within(ctx) for cycles to be caught.
func (e *Engine) Eval(f *Formula, resolver Resolver, opts ...EvalOption) Value {
	return e.EvalNode(f.Root, resolver, opts...)
}

// EvalNode evaluates any AST node with a fresh evaluation context.
func (e *Engine) EvalNode(node ASTNode, resolver Resolver, opts ...EvalOption) Value {
	ctx := e.NewContext(resolver, opts...)
	if ctx.inherited && ctx.hasCell {
		key := ctx.cell.Key()
		if _, busy := ctx.state.resolving[key]; busy {
			e.logger.Debug("circular reference detected", zap.String("cell", ctx.cell.String()))
			return Err(ErrorCodeCircular)
		}
		ctx.state.resolving[key] = struct{}{}
		defer delete(ctx.state.resolving, key)
	}
	return ctx.Eval(node)
}

// NewContext creates the per-call context used by Eval. collaborators use
// it directly when they need EvalContext.EvalString.
func (e *Engine) NewContext(resolver Resolver, opts ...EvalOption) *EvalContext {
	ctx := &EvalContext{
		engine:   e,
		resolver: resolver,
		state: &evalState{
			resolving: make(map[CellKey]struct{}),
			maxDepth:  e.maxDepth,
		},
	}
	for _, opt := range opts {
		opt(ctx)
	}
	if ctx.hasCell && !ctx.inherited {
		ctx.state.resolving[ctx.cell.Key()] = struct{}{}
	}
	return ctx
}

// Evaluate parses and evaluates src in one step.
func (e *Engine) Evaluate(src string, resolver Resolver, opts ...EvalOption) (Value, error) {
	f, err := e.Parse(src)
	if err != nil {
		return Value{}, err
	}
	return e.Eval(f, resolver, opts...), nil
}
