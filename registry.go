package libemit

import "sort"

// registry maps event names to their listener sets. A name is present only
// while it has at least one listener.
type registry map[string]*listenerSet

func (r registry) add(name string, l *Listener, tier Tier) {
	set, ok := r[name]
	if !ok {
		r[name] = newListenerSet(l, tier)
		return
	}
	set.insert(l, tier)
}

func (r registry) remove(name string, l *Listener) *Listener {
	set, ok := r[name]
	if !ok {
		return nil
	}
	removed := set.remove(l)
	if removed != nil && set.len() == 0 {
		delete(r, name)
	}
	return removed
}

// drop deletes name and returns the listeners it held, in dispatch order.
func (r registry) drop(name string) []*Listener {
	set, ok := r[name]
	if !ok {
		return nil
	}
	delete(r, name)
	return set.listeners
}

func (r registry) has(name string) bool {
	set, ok := r[name]
	return ok && set.len() > 0
}

func (r registry) snapshot(name string) []*Listener {
	set, ok := r[name]
	if !ok {
		return nil
	}
	return set.snapshot()
}

func (r registry) names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
