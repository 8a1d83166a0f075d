package generation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour int) time.Time {
	return time.Date(2024, 1, 1, hour, 0, 0, 0, time.UTC)
}

func both(kind Kind, t time.Time) []Identity {
	return []Identity{
		NewIdentity("job", RoleSignatures, kind, t),
		NewIdentity("job", RoleContent, kind, t),
	}
}

func times(entries []Entry) []time.Time {
	out := make([]time.Time, len(entries))
	for i, e := range entries {
		out[i] = e.Time
	}
	return out
}

func TestGroup_PairsRoles(t *testing.T) {
	ids := append(both(KindIncremental, at(3)), both(KindFull, at(1))...)
	ids = append(ids, NewIdentity("job", RoleSignatures, KindIncremental, at(5)))

	entries := Group(ids)
	require.Len(t, entries, 3)
	assert.Equal(t, []time.Time{at(1), at(3), at(5)}, times(entries))
	assert.True(t, entries[0].Complete())
	assert.True(t, entries[0].IsFull())
	assert.True(t, entries[1].Complete())
	assert.False(t, entries[2].Complete())
	assert.Nil(t, entries[2].Content)
}

func TestBuildChains(t *testing.T) {
	var ids []Identity
	ids = append(ids, both(KindIncremental, at(0))...) // before any full
	ids = append(ids, both(KindFull, at(1))...)
	ids = append(ids, both(KindIncremental, at(4))...)
	ids = append(ids, both(KindIncremental, at(2))...)
	ids = append(ids, both(KindFull, at(5))...)
	ids = append(ids, both(KindIncremental, at(5))...) // same second as its full: belongs to the older chain
	ids = append(ids, both(KindIncremental, at(7))...)

	chains, orphans := BuildChains(Group(ids))
	require.Len(t, chains, 2)
	require.Len(t, orphans, 1)
	assert.Equal(t, at(0), orphans[0].Time)

	assert.Equal(t, at(1), chains[0].Full.Time)
	assert.Equal(t, []time.Time{at(2), at(4), at(5)}, times(chains[0].Incrementals))
	assert.Equal(t, at(5), chains[1].Full.Time)
	assert.Equal(t, []time.Time{at(7)}, times(chains[1].Incrementals))

	for _, c := range chains {
		assert.NoError(t, c.Validate())
	}
	assert.Equal(t, at(7), chains[1].Latest().Time)
	assert.Equal(t, at(5), Chain{Full: chains[1].Full}.Latest().Time)
}

func TestChainValidate(t *testing.T) {
	full := Entry{Kind: KindFull, Time: at(1)}
	inc := func(h int) Entry { return Entry{Kind: KindIncremental, Time: at(h)} }

	assert.NoError(t, Chain{Full: full}.Validate())
	assert.NoError(t, Chain{Full: full, Incrementals: []Entry{inc(2), inc(3)}}.Validate())

	cases := map[string]Chain{
		"incremental head":  {Full: inc(1)},
		"reversed":          {Full: full, Incrementals: []Entry{inc(3), inc(2)}},
		"duplicate time":    {Full: full, Incrementals: []Entry{inc(2), inc(2)}},
		"before full":       {Full: full, Incrementals: []Entry{inc(0)}},
		"full inside chain": {Full: full, Incrementals: []Entry{{Kind: KindFull, Time: at(2)}}},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, c.Validate(), ErrChainOrder)
		})
	}
}

func TestSelectChain(t *testing.T) {
	chains := []Chain{
		{Full: Entry{Kind: KindFull, Time: at(1)}, Incrementals: []Entry{{Kind: KindIncremental, Time: at(2)}, {Kind: KindIncremental, Time: at(3)}}},
		{Full: Entry{Kind: KindFull, Time: at(5)}, Incrementals: []Entry{{Kind: KindIncremental, Time: at(6)}}},
	}

	_, ok := SelectChain(chains, at(0))
	assert.False(t, ok)

	c, ok := SelectChain(chains, at(2))
	require.True(t, ok)
	assert.Equal(t, at(1), c.Full.Time)
	assert.Equal(t, []time.Time{at(2)}, times(c.Incrementals))

	c, ok = SelectChain(chains, at(4))
	require.True(t, ok)
	assert.Equal(t, at(1), c.Full.Time)
	assert.Len(t, c.Incrementals, 2)

	c, ok = SelectChain(chains, at(23))
	require.True(t, ok)
	assert.Equal(t, at(5), c.Full.Time)
	assert.Equal(t, []time.Time{at(5), at(6)}, times(c.Entries()))
}
