package domain

import (
	"context"
	"sync"
)

type commitHooksKey struct{}

// CommitHooks collects side effects that must only happen once the
// surrounding transaction has committed.
type CommitHooks struct {
	mu  sync.Mutex
	fns []func()
}

// WithCommitHooks attaches a fresh hook list to ctx unless one is already
// there, in which case the outer list is returned and owns the hooks.
func WithCommitHooks(ctx context.Context) (context.Context, *CommitHooks, bool) {
	if h, ok := ctx.Value(commitHooksKey{}).(*CommitHooks); ok {
		return ctx, h, false
	}
	h := &CommitHooks{}
	return context.WithValue(ctx, commitHooksKey{}, h), h, true
}

// AfterCommit defers fn until the transaction in ctx commits. Outside a
// transaction fn runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	h, ok := ctx.Value(commitHooksKey{}).(*CommitHooks)
	if !ok {
		fn()
		return
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

// Run calls the collected hooks in registration order and clears them.
func (h *CommitHooks) Run() {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Discard drops the collected hooks after a rollback.
func (h *CommitHooks) Discard() {
	h.mu.Lock()
	h.fns = nil
	h.mu.Unlock()
}
