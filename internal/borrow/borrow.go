package borrow

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"tern/internal/diag"
	"tern/internal/symbols"
	"tern/internal/token"
)

type Kind int

const (
	Read Kind = iota
	Write
	Immutable
	Mutable
	Move
)

var kindNames = [...]string{
	Read:      "read",
	Write:     "write",
	Immutable: "immutable borrow",
	Mutable:   "mutable borrow",
	Move:      "move",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// exclusive kinds may not coexist with any other active record.
func (k Kind) exclusive() bool { return k == Write || k == Mutable }

// Info is one access event. While active it lives until Scope is released.
type Info struct {
	Symbol   symbols.SymbolID
	Kind     Kind
	Scope    symbols.ScopeID
	Pos      token.Position
	Lifetime string
}

// Binding describes a symbol when it enters the checker.
type Binding struct {
	Name        string
	Mutable     bool
	Initialized bool
}

type state struct {
	Binding
	moved   bool
	movedAt token.Position
	active  []Info
}

// Checker is the per-symbol state machine enforcing initialization before
// use, mutability and single-writer/multiple-reader aliasing. It knows
// nothing about types.
type Checker struct {
	log      *zap.Logger
	states   map[symbols.SymbolID]*state
	nextTemp symbols.ScopeID
}

func NewChecker(log *zap.Logger) *Checker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Checker{
		log:      log,
		states:   make(map[symbols.SymbolID]*state),
		nextTemp: symbols.NoScope - 1,
	}
}

// Declare starts tracking sym, discarding any previous state including moves.
func (c *Checker) Declare(sym symbols.SymbolID, b Binding) {
	c.states[sym] = &state{Binding: b}
}

// Tracked reports whether sym was declared to the checker.
func (c *Checker) Tracked(sym symbols.SymbolID) bool {
	_, ok := c.states[sym]
	return ok
}

// Temporary returns a fresh pseudo scope for records that should only live
// until the end of the current statement. Temporary ids are negative and
// never collide with table scopes.
func (c *Checker) Temporary() symbols.ScopeID {
	id := c.nextTemp
	c.nextTemp--
	return id
}

// IsTemporary reports whether scope was handed out by Temporary.
func IsTemporary(scope symbols.ScopeID) bool { return scope < symbols.NoScope }

// Event applies one access to the state machine and records it when allowed.
func (c *Checker) Event(info Info) error {
	st, ok := c.states[info.Symbol]
	if !ok {
		return diag.Errorf(diag.Internal, info.Pos, "symbol %d is not tracked by the borrow checker", info.Symbol)
	}

	if st.moved {
		return diag.Errorf(diag.UseAfterMove, info.Pos, "use of moved value %q", st.Name).
			WithNote("value moved at %s", st.movedAt)
	}

	switch info.Kind {
	case Read, Immutable:
		if !st.Initialized {
			return c.uninitialized(st, info)
		}
		if prev, ok := st.find(Kind.exclusive); ok {
			return diag.Errorf(diag.MutableBorrowWithImmutableBorrows, info.Pos,
				"cannot use %q while it is mutably borrowed", st.Name).
				WithNote("%s at %s", prev.Kind, prev.Pos)
		}

	case Mutable, Write:
		if info.Kind == Mutable {
			if !st.Initialized {
				return c.uninitialized(st, info)
			}
			if !st.Mutable {
				return diag.Errorf(diag.ImmutableWrite, info.Pos,
					"cannot borrow immutable variable %q as mutable", st.Name)
			}
		} else if st.Initialized && !st.Mutable {
			return diag.Errorf(diag.ImmutableWrite, info.Pos,
				"cannot assign twice to immutable variable %q", st.Name)
		}
		if prev, ok := st.find(func(k Kind) bool { return !k.exclusive() }); ok {
			return diag.Errorf(diag.MutableBorrowWithImmutableBorrows, info.Pos,
				"cannot %s %q because it is borrowed as immutable", verb(info.Kind), st.Name).
				WithNote("%s at %s", prev.Kind, prev.Pos)
		}
		if prev, ok := st.find(Kind.exclusive); ok {
			return diag.Errorf(diag.MultipleMutableBorrows, info.Pos,
				"cannot %s %q because it is already borrowed as mutable", verb(info.Kind), st.Name).
				WithNote("%s at %s", prev.Kind, prev.Pos)
		}
		if info.Kind == Write {
			st.Initialized = true
		}

	case Move:
		if !st.Initialized {
			return c.uninitialized(st, info)
		}
		c.log.Debug("move", zap.String("name", st.Name), zap.Stringer("pos", info.Pos),
			zap.Int("released", len(st.active)))
		st.active = nil
		st.moved = true
		st.movedAt = info.Pos
		return nil

	default:
		return diag.Errorf(diag.Internal, info.Pos, "unknown borrow kind %v", info.Kind)
	}

	st.active = append(st.active, info)
	c.log.Debug("borrow",
		zap.String("name", st.Name),
		zap.Stringer("kind", info.Kind),
		zap.Int("scope", int(info.Scope)),
		zap.Stringer("pos", info.Pos))
	return nil
}

func verb(k Kind) string {
	switch k {
	case Write:
		return "assign to"
	case Mutable, Immutable:
		return "borrow"
	case Move:
		return "move"
	default:
		return "use"
	}
}

func (c *Checker) uninitialized(st *state, info Info) error {
	if info.Kind == Read {
		return diag.Errorf(diag.UninitializedVariable, info.Pos, "use of uninitialized variable %q", st.Name)
	}
	return diag.Errorf(diag.UninitializedVariable, info.Pos,
		"cannot %s uninitialized variable %q", verb(info.Kind), st.Name)
}

func (st *state) find(match func(Kind) bool) (Info, bool) {
	for _, a := range st.active {
		if match(a.Kind) {
			return a, true
		}
	}
	return Info{}, false
}

// ReleaseScope drops every active record owned by scope and reports how many
// were dropped.
func (c *Checker) ReleaseScope(scope symbols.ScopeID) int {
	n := 0
	for _, st := range c.states {
		kept := st.active[:0]
		for _, a := range st.active {
			if a.Scope == scope {
				n++
				continue
			}
			kept = append(kept, a)
		}
		st.active = kept
	}
	if n > 0 {
		c.log.Debug("release", zap.Int("scope", int(scope)), zap.Int("records", n))
	}
	return n
}

// Active returns a copy of the records currently held on sym.
func (c *Checker) Active(sym symbols.SymbolID) []Info {
	st, ok := c.states[sym]
	if !ok {
		return nil
	}
	return slices.Clone(st.active)
}

func (c *Checker) Initialized(sym symbols.SymbolID) bool {
	st, ok := c.states[sym]
	return ok && st.Initialized
}

func (c *Checker) Moved(sym symbols.SymbolID) bool {
	st, ok := c.states[sym]
	return ok && st.moved
}

// Validate re-checks the aliasing invariants over every active record and
// warns about statement temporaries that were never released. The result is
// advisory and ordered by symbol.
func (c *Checker) Validate() []*diag.Error {
	var out []*diag.Error
	ids := maps.Keys(c.states)
	slices.Sort(ids)
	for _, id := range ids {
		st := c.states[id]
		if st.moved && len(st.active) > 0 {
			out = append(out, diag.Errorf(diag.Internal, st.active[0].Pos,
				"moved value %q still has %d active records", st.Name, len(st.active)))
		}
		exclusive := 0
		for _, a := range st.active {
			if a.Kind.exclusive() {
				exclusive++
			}
		}
		if exclusive > 0 && len(st.active) > 1 {
			out = append(out, diag.Errorf(diag.Internal, st.active[0].Pos,
				"%q holds a mutable record alongside %d others", st.Name, len(st.active)-1))
		}
		for _, a := range st.active {
			if IsTemporary(a.Scope) {
				out = append(out, diag.Warnf(diag.DanglingBorrow, a.Pos,
					"%s of %q outlives its statement", a.Kind, st.Name))
			}
		}
	}
	return out
}

// Snapshot records the initialization and move state of every symbol so
// that alternative branches can each start from the same state.
type Snapshot map[symbols.SymbolID]flowState

type flowState struct {
	initialized bool
	moved       bool
	movedAt     token.Position
}

func (c *Checker) Snapshot() Snapshot {
	s := make(Snapshot, len(c.states))
	for id, st := range c.states {
		s[id] = flowState{initialized: st.Initialized, moved: st.moved, movedAt: st.movedAt}
	}
	return s
}

// Restore rewinds initialization and move state to s. Symbols declared after
// s was taken are left alone.
func (c *Checker) Restore(s Snapshot) {
	for id, fs := range s {
		if st, ok := c.states[id]; ok {
			st.Initialized = fs.initialized
			st.moved = fs.moved
			st.movedAt = fs.movedAt
		}
	}
}

// Join merges the state at the end of another branch into the current one:
// a symbol is initialized only if both branches initialized it and moved if
// either branch moved it.
func (c *Checker) Join(other Snapshot) {
	for id, fs := range other {
		st, ok := c.states[id]
		if !ok {
			continue
		}
		st.Initialized = st.Initialized && fs.initialized
		if fs.moved && !st.moved {
			st.moved = true
			st.movedAt = fs.movedAt
			st.active = nil
		}
	}
}
