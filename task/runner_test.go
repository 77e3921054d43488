package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func startRunner(t *testing.T) *Runner {
	t.Helper()
	r := NewRunner(4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return r
}

func TestPostDeduplicates(t *testing.T) {
	r := NewRunner(4, nil)
	var runs atomic.Int32
	release := make(chan struct{})
	h := r.Register(func() {
		runs.Add(1)
		<-release
	})

	if !r.Post(h) {
		t.Fatal("first Post rejected")
	}
	if r.Post(h) {
		t.Fatal("second Post accepted while outstanding")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	deadline := time.Now().Add(time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	// Running clears the outstanding post.
	if !r.Post(h) {
		t.Fatal("Post rejected after work started")
	}
	close(release)
	for runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if runs.Load() != 2 {
		t.Fatalf("runs = %d, want 2", runs.Load())
	}
}

func TestPostUnknownHandle(t *testing.T) {
	r := NewRunner(1, nil)
	if r.Post(3) {
		t.Fatal("Post accepted unknown handle")
	}
}

func TestTimerFiresOnRunLoop(t *testing.T) {
	r := startRunner(t)
	fired := make(chan struct{}, 1)
	tm := r.NewTimer(func() { fired <- struct{}{} })

	tm.Arm(5 * time.Millisecond)
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestTimerDisarmAndRearm(t *testing.T) {
	r := startRunner(t)
	var count atomic.Int32
	tm := r.NewTimer(func() { count.Add(1) })

	tm.Arm(5 * time.Millisecond)
	tm.Disarm()
	time.Sleep(30 * time.Millisecond)
	if count.Load() != 0 {
		t.Fatal("disarmed timer fired")
	}

	tm.Arm(time.Hour)
	tm.Arm(5 * time.Millisecond)
	deadline := time.Now().Add(time.Second)
	for count.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	if count.Load() != 1 {
		t.Fatalf("fired %d times, want 1", count.Load())
	}
}
