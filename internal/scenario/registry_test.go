package scenario

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopIterate(context.Context, SharedContext) IterationResult {
	return IterationResult{}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&Scenario{Name: "b", Iterate: noopIterate}))
	require.NoError(t, reg.Register(&Scenario{Name: "a", Iterate: noopIterate}))

	s, err := reg.Lookup("a")
	require.NoError(t, err)
	assert.Equal(t, "a", s.Name)

	assert.Equal(t, []string{"a", "b"}, reg.Names())
}

func TestRegistry_DuplicateName(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&Scenario{Name: "browse", Iterate: noopIterate}))

	err := reg.Register(&Scenario{Name: "browse", Iterate: noopIterate})
	var dupErr *DuplicateNameError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "browse", dupErr.Name)
}

func TestRegistry_NotFound(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Lookup("missing")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.Name)
}

func TestRegistry_InvalidScenario(t *testing.T) {
	reg := NewRegistry()
	assert.Error(t, reg.Register(nil))
	assert.Error(t, reg.Register(&Scenario{Iterate: noopIterate}))
	assert.Error(t, reg.Register(&Scenario{Name: "no-iterate"}))
}

func TestRegistry_Freeze(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&Scenario{Name: "a", Iterate: noopIterate}))

	assert.False(t, reg.Frozen())
	reg.Freeze()
	reg.Freeze()
	assert.True(t, reg.Frozen())

	err := reg.Register(&Scenario{Name: "b", Iterate: noopIterate})
	assert.True(t, errors.Is(err, ErrFrozen))

	s, err := reg.Lookup("a")
	require.NoError(t, err)
	assert.Equal(t, "a", s.Name)
}

func TestRegistry_ConcurrentLookupAfterFreeze(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&Scenario{Name: "a", Iterate: noopIterate}))
	reg.Freeze()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.Lookup("a")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestSharedContext_IsACopy(t *testing.T) {
	values := map[string]any{"token": "abc", "n": 1}
	shared := NewSharedContext(values)

	values["token"] = "changed"

	assert.Equal(t, "abc", shared.String("token"))
	assert.Equal(t, "", shared.String("n"))
	v, ok := shared.Get("n")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, shared.Len())

	var empty SharedContext
	assert.Equal(t, 0, empty.Len())
	_, ok = empty.Get("token")
	assert.False(t, ok)
}

func TestIterationResult_AddCheck(t *testing.T) {
	var r IterationResult
	assert.True(t, r.AddCheck("first", true))
	assert.False(t, r.AddCheck("second", false))

	require.Len(t, r.Checks, 2)
	assert.Equal(t, Check{Name: "first", Passed: true}, r.Checks[0])
	assert.Equal(t, Check{Name: "second", Passed: false}, r.Checks[1])
}
