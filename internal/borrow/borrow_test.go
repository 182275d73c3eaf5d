package borrow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"tern/internal/diag"
	"tern/internal/symbols"
	"tern/internal/token"
)

const x symbols.SymbolID = 7

func at(line int) token.Position { return token.Position{Line: line, Column: 1} }

func event(kind Kind, scope symbols.ScopeID, line int) Info {
	return Info{Symbol: x, Kind: kind, Scope: scope, Pos: at(line)}
}

func requireCode(t *testing.T, err error, code diag.Code) {
	t.Helper()
	require.Error(t, err)
	d, ok := diag.As(err)
	require.True(t, ok, "not a diagnostic: %v", err)
	assert.Equal(t, code, d.Code, d.Error())
}

func TestBorrowExclusivity(t *testing.T) {
	c := NewChecker(zaptest.NewLogger(t))
	c.Declare(x, Binding{Name: "x", Mutable: true, Initialized: true})

	require.NoError(t, c.Event(event(Immutable, 1, 1)))
	require.NoError(t, c.Event(event(Immutable, 1, 2)))

	err := c.Event(event(Mutable, 2, 3))
	requireCode(t, err, diag.MutableBorrowWithImmutableBorrows)

	assert.Equal(t, 2, c.ReleaseScope(1))
	require.NoError(t, c.Event(event(Mutable, 2, 4)))

	err = c.Event(event(Mutable, 2, 5))
	requireCode(t, err, diag.MultipleMutableBorrows)
	d, _ := diag.As(err)
	assert.Equal(t, []string{"mutable borrow at 4:1"}, d.Notes)

	// Reads are rejected while the mutable borrow is active.
	requireCode(t, c.Event(event(Read, 3, 6)), diag.MutableBorrowWithImmutableBorrows)

	c.ReleaseScope(2)
	assert.Empty(t, c.Active(x))
	require.NoError(t, c.Event(event(Read, 3, 7)))
}

func TestInitialization(t *testing.T) {
	c := NewChecker(nil)
	c.Declare(x, Binding{Name: "x", Mutable: false})

	err := c.Event(event(Read, c.Temporary(), 1))
	requireCode(t, err, diag.UninitializedVariable)
	assert.Contains(t, err.Error(), `use of uninitialized variable "x"`)

	requireCode(t, c.Event(event(Immutable, 1, 1)), diag.UninitializedVariable)
	requireCode(t, c.Event(event(Move, 1, 1)), diag.UninitializedVariable)

	tmp := c.Temporary()
	require.NoError(t, c.Event(event(Write, tmp, 2)))
	assert.True(t, c.Initialized(x))
	c.ReleaseScope(tmp)

	require.NoError(t, c.Event(event(Read, c.Temporary(), 3)))
}

func TestImmutableWrite(t *testing.T) {
	c := NewChecker(nil)
	c.Declare(x, Binding{Name: "x", Initialized: true})

	requireCode(t, c.Event(event(Write, c.Temporary(), 1)), diag.ImmutableWrite)
	requireCode(t, c.Event(event(Mutable, 1, 2)), diag.ImmutableWrite)
	require.NoError(t, c.Event(event(Immutable, 1, 3)))
}

func TestMove(t *testing.T) {
	c := NewChecker(nil)
	c.Declare(x, Binding{Name: "x", Mutable: true, Initialized: true})

	require.NoError(t, c.Event(event(Immutable, 1, 1)))
	require.NoError(t, c.Event(event(Move, 1, 2)))
	assert.True(t, c.Moved(x))
	assert.Empty(t, c.Active(x))

	for _, k := range []Kind{Read, Write, Immutable, Mutable, Move} {
		err := c.Event(event(k, 1, 3))
		requireCode(t, err, diag.UseAfterMove)
		d, _ := diag.As(err)
		assert.Equal(t, []string{"value moved at 2:1"}, d.Notes)
	}

	// Redeclaration resets the state.
	c.Declare(x, Binding{Name: "x", Initialized: true})
	assert.False(t, c.Moved(x))
	require.NoError(t, c.Event(event(Read, 1, 4)))
}

func TestUntrackedSymbol(t *testing.T) {
	c := NewChecker(nil)
	assert.False(t, c.Tracked(x))
	requireCode(t, c.Event(event(Read, 1, 1)), diag.Internal)
}

func TestTemporariesAreDistinct(t *testing.T) {
	c := NewChecker(nil)
	a, b := c.Temporary(), c.Temporary()
	assert.NotEqual(t, a, b)
	assert.True(t, IsTemporary(a))
	assert.True(t, IsTemporary(b))
	assert.False(t, IsTemporary(0))
	assert.False(t, IsTemporary(symbols.NoScope))
}

func TestValidateReportsUnreleasedTemporaries(t *testing.T) {
	c := NewChecker(nil)
	c.Declare(x, Binding{Name: "x", Initialized: true})
	require.NoError(t, c.Event(event(Read, 0, 1)))
	assert.Empty(t, c.Validate())

	require.NoError(t, c.Event(event(Read, c.Temporary(), 2)))
	out := c.Validate()
	require.Len(t, out, 1)
	assert.Equal(t, diag.DanglingBorrow, out[0].Code)
	assert.True(t, out[0].IsWarning())
	assert.Equal(t, 2, out[0].Pos.Line)
}

func TestBranchJoin(t *testing.T) {
	c := NewChecker(nil)
	const y symbols.SymbolID = 8
	c.Declare(x, Binding{Name: "x", Initialized: true})
	c.Declare(y, Binding{Name: "y", Mutable: true})

	before := c.Snapshot()

	// then-branch moves x and initializes y
	require.NoError(t, c.Event(event(Move, 1, 1)))
	require.NoError(t, c.Event(Info{Symbol: y, Kind: Write, Scope: c.Temporary(), Pos: at(2)}))
	thenState := c.Snapshot()

	// else-branch starts from the original state
	c.Restore(before)
	assert.False(t, c.Moved(x))
	assert.False(t, c.Initialized(y))
	require.NoError(t, c.Event(event(Read, c.Temporary(), 3)))

	c.Join(thenState)
	assert.True(t, c.Moved(x))
	assert.False(t, c.Initialized(y))
}
