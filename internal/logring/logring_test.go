package logring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingAppendAndTail(t *testing.T) {
	r := New(8)

	r.Append("vm", "one")
	r.Append("vm", "two")
	r.Append("vm", "three")

	all := r.Tail(0)
	require.Len(t, all, 3)
	assert.Equal(t, "one", all[0].Line)
	assert.Equal(t, "three", all[2].Line)
	assert.Equal(t, "vm", all[0].Tag)

	last := r.Tail(2)
	require.Len(t, last, 2)
	assert.Equal(t, "two", last[0].Line)
	assert.Equal(t, "three", last[1].Line)

	assert.Len(t, r.Tail(100), 3, "tail larger than buffer returns everything")
}

func TestRingEvictsOldest(t *testing.T) {
	r := New(4)
	for i := 0; i < 10; i++ {
		r.Append("vm", fmt.Sprintf("line-%d", i))
	}

	entries := r.Tail(0)
	require.Len(t, entries, 4)
	assert.Equal(t, "line-6", entries[0].Line)
	assert.Equal(t, "line-9", entries[3].Line)
}

func TestRingSubscribe(t *testing.T) {
	r := New(8)
	r.Append("vm", "buffered")

	ch, existing, unsub := r.Subscribe()
	defer unsub()

	require.Len(t, existing, 1)
	assert.Equal(t, "buffered", existing[0].Line)

	r.Append("vm", "live")
	entry := <-ch
	assert.Equal(t, "live", entry.Line)
}

func TestRingUnsubscribe(t *testing.T) {
	r := New(8)
	ch, _, unsub := r.Subscribe()
	unsub()
	unsub() // idempotent

	_, open := <-ch
	assert.False(t, open)

	r.Append("vm", "after unsubscribe") // must not panic
}

func TestRingClose(t *testing.T) {
	r := New(8)
	ch, _, _ := r.Subscribe()

	r.Close()
	r.Close() // idempotent

	_, open := <-ch
	require.False(t, open)

	r.Append("vm", "dropped")
	assert.Empty(t, r.Tail(0), "appends after close are dropped")
}
