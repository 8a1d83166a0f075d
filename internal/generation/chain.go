package generation

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var ErrChainOrder = errors.New("generation: chain out of order")

// Entry joins the signature and content halves of one generation.
type Entry struct {
	Kind       Kind
	Time       time.Time
	Signatures *Identity
	Content    *Identity
}

// Complete reports whether both halves were found.
func (e Entry) Complete() bool {
	return e.Signatures != nil && e.Content != nil
}

func (e Entry) IsFull() bool {
	return e.Kind == KindFull
}

// Chain is a full generation followed by the incrementals that depend on it.
type Chain struct {
	Full         Entry
	Incrementals []Entry
}

// Entries returns the chain in replay order.
func (c Chain) Entries() []Entry {
	return append([]Entry{c.Full}, c.Incrementals...)
}

// Latest returns the newest entry of the chain.
func (c Chain) Latest() Entry {
	if n := len(c.Incrementals); n > 0 {
		return c.Incrementals[n-1]
	}
	return c.Full
}

// Until returns the chain restricted to entries at or before t.
func (c Chain) Until(t time.Time) Chain {
	out := Chain{Full: c.Full}
	for _, inc := range c.Incrementals {
		if inc.Time.After(t) {
			break
		}
		out.Incrementals = append(out.Incrementals, inc)
	}
	return out
}

// Validate checks the replay invariant: one full entry, then incrementals with
// strictly increasing times that are all newer than the full.
func (c Chain) Validate() error {
	if !c.Full.IsFull() {
		return fmt.Errorf("%w: chain starts with %q generation at %s", ErrChainOrder, c.Full.Kind, c.Full.Time.Format(time.RFC3339))
	}
	prev := c.Full.Time
	for _, inc := range c.Incrementals {
		if inc.IsFull() {
			return fmt.Errorf("%w: full generation at %s inside chain", ErrChainOrder, inc.Time.Format(time.RFC3339))
		}
		if !inc.Time.After(prev) {
			return fmt.Errorf("%w: %s is not after %s", ErrChainOrder, inc.Time.Format(time.RFC3339), prev.Format(time.RFC3339))
		}
		prev = inc.Time
	}
	return nil
}

type entryKey struct {
	kind Kind
	unix int64
}

// Group pairs identities that share kind and time. The result is sorted by time,
// with a full entry before an incremental of the same second.
func Group(ids []Identity) []Entry {
	byKey := make(map[entryKey]*Entry)
	for i := range ids {
		id := ids[i]
		key := entryKey{kind: id.Kind, unix: id.Time.Unix()}
		e, ok := byKey[key]
		if !ok {
			e = &Entry{Kind: id.Kind, Time: id.Time}
			byKey[key] = e
		}
		switch id.Role {
		case RoleSignatures:
			e.Signatures = &id
		case RoleContent:
			e.Content = &id
		}
	}

	entries := make([]Entry, 0, len(byKey))
	for _, e := range byKey {
		entries = append(entries, *e)
	}
	sortEntries(entries)
	return entries
}

// BuildChains attaches every incremental to the newest full generation strictly
// older than it. Incrementals with no older full are returned as orphans.
func BuildChains(entries []Entry) (chains []Chain, orphans []Entry) {
	var fulls, incs []Entry
	for _, e := range entries {
		if e.IsFull() {
			fulls = append(fulls, e)
		} else {
			incs = append(incs, e)
		}
	}
	sortEntries(fulls)
	sortEntries(incs)

	chains = make([]Chain, len(fulls))
	for i, f := range fulls {
		chains[i] = Chain{Full: f}
	}

	for _, inc := range incs {
		// first full that is not older than inc
		idx := sort.Search(len(fulls), func(i int) bool {
			return !fulls[i].Time.Before(inc.Time)
		})
		if idx == 0 {
			orphans = append(orphans, inc)
			continue
		}
		chains[idx-1].Incrementals = append(chains[idx-1].Incrementals, inc)
	}
	return chains, orphans
}

// SelectChain returns the newest chain whose full generation is at or before at,
// cut down to the incrementals taken at or before at.
func SelectChain(chains []Chain, at time.Time) (Chain, bool) {
	for i := len(chains) - 1; i >= 0; i-- {
		if !chains[i].Full.Time.After(at) {
			return chains[i].Until(at), true
		}
	}
	return Chain{}, false
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Time.Equal(entries[j].Time) {
			return entries[i].Time.Before(entries[j].Time)
		}
		return entries[i].IsFull() && !entries[j].IsFull()
	})
}
