// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package isodispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/isodispatch"
)

func TestPlaceholderResolve(t *testing.T) {
	p := isodispatch.NewPlaceholder[int]()
	go p.Resolve(42)

	v, err := p.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if v != 42 {
		t.Fatalf("got %d, want 42", v)
	}
}

func TestPlaceholderFirstSettleWins(t *testing.T) {
	p := isodispatch.NewPlaceholder[int]()
	if !p.Resolve(1) {
		t.Fatal("first Resolve reported false")
	}
	if p.Resolve(2) {
		t.Fatal("second Resolve reported true")
	}
	if p.Reject(errors.New("late")) {
		t.Fatal("Reject after Resolve reported true")
	}
	v, err := p.Wait(context.Background())
	if err != nil || v != 1 {
		t.Fatalf("got %d, %v, want 1, nil", v, err)
	}
}

func TestPlaceholderReject(t *testing.T) {
	boom := errors.New("boom")
	f := isodispatch.Rejected[string](boom)
	if _, err := f.Wait(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
}

func TestPlaceholderWaitCancelled(t *testing.T) {
	p := isodispatch.NewPlaceholder[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := p.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want %v", err, context.DeadlineExceeded)
	}
	select {
	case <-p.Done():
		t.Fatal("placeholder settled by a cancelled wait")
	default:
	}
}

func TestPlaceholderConcurrentSettle(t *testing.T) {
	p := isodispatch.NewPlaceholder[int]()
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if p.Resolve(i) {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if won != 1 {
		t.Fatalf("settled %d times, want 1", won)
	}
	<-p.Done()
}

func TestResolvedFuture(t *testing.T) {
	v, err := isodispatch.Resolved("done").Wait(context.Background())
	if err != nil || v != "done" {
		t.Fatalf("got %q, %v, want %q, nil", v, err, "done")
	}
}
