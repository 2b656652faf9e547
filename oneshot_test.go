package parkit

import (
	"testing"
	"time"
)

func TestOneShotSendThenRecv(t *testing.T) {
	var c OneShot[string]
	c.Send("hello")
	if v := c.Recv(); v != "hello" {
		t.Fatalf("Recv = %q, want %q", v, "hello")
	}
}

func TestOneShotRecvBlocks(t *testing.T) {
	var c OneShot[int]

	start := time.Now()
	time.AfterFunc(100*time.Millisecond, func() {
		c.Send(99)
	})

	if v := c.Recv(); v != 99 {
		t.Fatalf("Recv = %d, want 99", v)
	}
	if dur := time.Since(start); dur < 100*time.Millisecond {
		t.Errorf("Recv returned too early: %v", dur)
	}
}

func TestOneShotTryRecv(t *testing.T) {
	var c OneShot[int]
	if _, ok := c.TryRecv(); ok {
		t.Fatal("TryRecv succeeded before Send")
	}
	c.Send(5)
	v, ok := c.TryRecv()
	if !ok || v != 5 {
		t.Fatalf("TryRecv = %d, %v, want 5, true", v, ok)
	}
	if _, ok := c.TryRecv(); ok {
		t.Fatal("TryRecv succeeded twice")
	}
}

func TestOneShotDoubleSendPanics(t *testing.T) {
	var c OneShot[int]
	c.Send(1)
	defer func() {
		if recover() == nil {
			t.Fatal("second Send did not panic")
		}
	}()
	c.Send(2)
}

func TestOneShotRecvAfterConsumePanics(t *testing.T) {
	var c OneShot[int]
	c.Send(1)
	c.Recv()
	defer func() {
		if recover() == nil {
			t.Fatal("Recv on a consumed channel did not panic")
		}
	}()
	c.Recv()
}
