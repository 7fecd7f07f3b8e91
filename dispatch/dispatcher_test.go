package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfulz/tcpcmd/protocol"
)

func okHandler(ctx context.Context, args []string) protocol.Reply {
	return protocol.Reply{RC: protocol.OK, Msg: args[0]}
}

func TestRegister(t *testing.T) {
	t.Run("Duplicate", func(t *testing.T) {
		r := New()
		require.NoError(t, r.Register(Command{Name: "ping", Immediate: okHandler}))
		err := r.Register(Command{Name: "ping", Queued: okHandler})
		assert.ErrorIs(t, err, ErrDuplicateCommand)
	})

	t.Run("NoHandler", func(t *testing.T) {
		err := New().Register(Command{Name: "nothing"})
		assert.ErrorIs(t, err, ErrNoHandler)
	})

	t.Run("EmptyName", func(t *testing.T) {
		assert.Error(t, New().Register(Command{Immediate: okHandler}))
	})

	t.Run("Sealed", func(t *testing.T) {
		r := New()
		r.Seal()
		err := r.Register(Command{Name: "late", Immediate: okHandler})
		assert.ErrorIs(t, err, ErrSealed)
	})
}

func TestLookup(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Command{Name: "b", Immediate: okHandler, Help: "bee"}))
	require.NoError(t, r.Register(Command{Name: "a", Queued: okHandler, Help: "ay"}))

	cmd, ok := r.Lookup("a")
	require.True(t, ok)
	assert.Nil(t, cmd.Immediate)
	assert.NotNil(t, cmd.Queued)
	assert.Equal(t, "ay", cmd.Help)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)

	names := []string{}
	for _, c := range r.Commands() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"b", "a"}, names)
	assert.Equal(t, 2, r.Len())
}

func TestInvoke(t *testing.T) {
	t.Run("PassesThrough", func(t *testing.T) {
		rep := Invoke(context.Background(), okHandler, []string{"ping"})
		assert.Equal(t, protocol.OK, rep.RC)
		assert.Equal(t, "ping", rep.Msg)
	})

	t.Run("RecoversPanic", func(t *testing.T) {
		boom := func(ctx context.Context, args []string) protocol.Reply {
			panic("kaboom")
		}
		rep := Invoke(context.Background(), boom, []string{"boom"})
		assert.Equal(t, protocol.NG, rep.RC)
		assert.Equal(t, "boom: handler failure: kaboom", rep.Msg)
	})
}
