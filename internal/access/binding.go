package access

import (
	"context"
	"sync"
)

// Binding tracks one variable/file pair and reports state changes, the way
// a component re-renders while its data loads.
type Binding struct {
	hook     *Hook
	onChange func(State)
	opts     []FetchOption

	// notify serialises onChange calls so Close can wait for the last one.
	notify sync.Mutex

	mu      sync.Mutex
	key     [2]string
	bound   bool
	gen     uint64
	state   State
	cancel  context.CancelFunc
	closed  bool
	pending sync.WaitGroup
}

// Bind returns an unbound Binding. onChange may be nil; it must not call
// back into the Binding.
func (h *Hook) Bind(onChange func(State), opts ...FetchOption) *Binding {
	return &Binding{hook: h, onChange: onChange, opts: opts}
}

// Update points the binding at variableName and jsonFilePath. A changed key
// cancels the previous lookup and starts a new one; an unchanged key does
// nothing.
func (b *Binding) Update(variableName, jsonFilePath string) {
	b.mu.Lock()
	key := [2]string{variableName, jsonFilePath}
	if b.closed || (b.bound && b.key == key) {
		b.mu.Unlock()
		return
	}
	if b.cancel != nil {
		b.cancel()
	}
	b.key, b.bound = key, true
	b.gen++
	gen := b.gen
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.pending.Add(1)
	b.mu.Unlock()

	b.deliver(gen, State{IsLoading: true})
	go func() {
		defer b.pending.Done()
		defer cancel()
		st := b.hook.Resolve(ctx, variableName, jsonFilePath, b.opts...)
		if ctx.Err() != nil {
			return
		}
		b.deliver(gen, st)
	}()
}

// State returns the latest state.
func (b *Binding) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Close cancels any lookup in flight. No onChange call happens after Close
// returns.
func (b *Binding) Close() {
	b.mu.Lock()
	b.closed = true
	if b.cancel != nil {
		b.cancel()
	}
	b.mu.Unlock()

	// Wait out an onChange that is already running.
	b.notify.Lock()
	defer b.notify.Unlock()
}

// Wait blocks until every lookup started so far has finished.
func (b *Binding) Wait() {
	b.pending.Wait()
}

func (b *Binding) deliver(gen uint64, st State) {
	b.notify.Lock()
	defer b.notify.Unlock()

	b.mu.Lock()
	if b.closed || gen != b.gen {
		b.mu.Unlock()
		return
	}
	b.state = st
	b.mu.Unlock()

	if b.onChange != nil {
		b.onChange(st)
	}
}
