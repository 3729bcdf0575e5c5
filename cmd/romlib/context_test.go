package main

import (
	"errors"
	"testing"
)

func TestCloseIntoReportsCloserFailures(t *testing.T) {
	configPath := ""
	jsonMode := false
	ctx := newCommandContext(&configPath, &jsonMode)

	errSession := errors.New("session cleanup failed")
	errStore := errors.New("catalog close failed")
	var order []string
	ctx.closers = append(ctx.closers,
		func() error { order = append(order, "session"); return errSession },
		func() error { order = append(order, "store"); return errStore },
	)

	errRun := errors.New("compare failed")
	run := func(fail bool) (runErr error) {
		defer ctx.closeInto(&runErr)
		if fail {
			return errRun
		}
		return nil
	}

	err := run(true)
	if !errors.Is(err, errRun) || !errors.Is(err, errSession) || !errors.Is(err, errStore) {
		t.Fatalf("expected command and closer errors, got %v", err)
	}
	if len(order) != 2 || order[0] != "store" || order[1] != "session" {
		t.Fatalf("closers should run in reverse order, got %v", order)
	}
	if len(ctx.closers) != 0 {
		t.Fatal("closers should be released after closing")
	}

	ctx.closers = append(ctx.closers, func() error { return errStore })
	if err := run(false); !errors.Is(err, errStore) {
		t.Fatalf("closer failure after a successful command should surface, got %v", err)
	}
	if err := run(false); err != nil {
		t.Fatalf("no closers should mean no error, got %v", err)
	}
}
