package domain

import (
	"context"
	"testing"
)

func TestAfterCommitWithoutTransactionRunsNow(t *testing.T) {
	ran := false
	AfterCommit(context.Background(), func() { ran = true })
	if !ran {
		t.Fatal("expected hook to run immediately")
	}
}

func TestCommitHooksRunInOrderOnce(t *testing.T) {
	ctx, hooks, owner := WithCommitHooks(context.Background())
	if !owner {
		t.Fatal("expected the first caller to own the hooks")
	}
	var got []int
	AfterCommit(ctx, func() { got = append(got, 1) })
	AfterCommit(ctx, func() { got = append(got, 2) })
	if len(got) != 0 {
		t.Fatalf("hooks ran before commit: %v", got)
	}

	hooks.Run()
	hooks.Run()
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("expected [1 2], got %v", got)
	}
}

func TestNestedCommitHooksShareTheOuterList(t *testing.T) {
	ctx, outer, _ := WithCommitHooks(context.Background())
	inner, hooks, owner := WithCommitHooks(ctx)
	if owner || hooks != outer {
		t.Fatal("expected nested call to reuse the outer hooks")
	}
	ran := false
	AfterCommit(inner, func() { ran = true })
	outer.Discard()
	outer.Run()
	if ran {
		t.Fatal("discarded hook must not run")
	}
}
