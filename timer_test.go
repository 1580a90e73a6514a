package mqtt

import (
	"testing"
	"time"
)

func TestTimerCountdownAndExpired(t *testing.T) {
	var tm timer
	tm.countdownMS(20)
	if tm.expired() {
		t.Error("timer armed for 20ms reported expired immediately")
	}
	time.Sleep(30 * time.Millisecond)
	if !tm.expired() {
		t.Error("timer armed for 20ms did not expire after 30ms")
	}
}

func TestTimerUnsetReportsExpired(t *testing.T) {
	var tm timer
	if !tm.expired() {
		t.Error("a never-armed timer must report expired")
	}
	if tm.leftMS() != 0 {
		t.Errorf("leftMS on an unset timer = %d, want 0", tm.leftMS())
	}
}

func TestTimerLeftMSDecreases(t *testing.T) {
	var tm timer
	tm.countdownMS(200)
	first := tm.leftMS()
	time.Sleep(20 * time.Millisecond)
	second := tm.leftMS()
	if second >= first {
		t.Errorf("leftMS did not decrease: first=%d second=%d", first, second)
	}
}
