package reliable

import (
	"errors"
	"fmt"
	"testing"
)

func texts(cmds []Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.Text
	}
	return out
}

func TestLog_AppendAndCommandsSince(t *testing.T) {
	l := New(8)
	for i := 1; i <= 5; i++ {
		seq, err := l.Append(fmt.Sprintf("cmd%d", i))
		if err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
		if seq != uint32(i) {
			t.Errorf("seq = %d, want %d", seq, i)
		}
	}

	tests := []struct {
		name  string
		since uint32
		want  []string
	}{
		{"from_start", 0, []string{"cmd1", "cmd2", "cmd3", "cmd4", "cmd5"}},
		{"middle", 3, []string{"cmd4", "cmd5"}},
		{"up_to_date", 5, nil},
		{"ahead", 9, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := texts(l.CommandsSince(tc.since))
			if fmt.Sprint(got) != fmt.Sprint(tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestLog_Acknowledge(t *testing.T) {
	l := New(4)
	for i := 0; i < 4; i++ {
		l.Append(fmt.Sprintf("c%d", i+1))
	}

	if err := l.Acknowledge(2); err != nil {
		t.Fatal(err)
	}
	if l.Pending() != 2 || l.Acknowledged() != 2 {
		t.Errorf("pending=%d acked=%d", l.Pending(), l.Acknowledged())
	}
	if _, ok := l.Get(2); ok {
		t.Error("acknowledged command still retrievable")
	}
	if c, ok := l.Get(3); !ok || c.Text != "c3" {
		t.Errorf("Get(3) = %+v, %v", c, ok)
	}

	// Stale acks are harmless.
	if err := l.Acknowledge(1); err != nil || l.Acknowledged() != 2 {
		t.Errorf("stale ack moved window: %v, acked=%d", err, l.Acknowledged())
	}
	// Acks past the last command are rejected.
	if err := l.Acknowledge(9); !errors.Is(err, ErrInvalidAck) {
		t.Errorf("err = %v, want ErrInvalidAck", err)
	}

	// Evicted commands are not resent even if the peer reports an older ack.
	if got := texts(l.CommandsSince(0)); fmt.Sprint(got) != "[c3 c4]" {
		t.Errorf("CommandsSince(0) = %v", got)
	}

	// Room freed by the ack can be reused.
	if _, err := l.Append("c5"); err != nil {
		t.Errorf("Append after ack: %v", err)
	}
}

func TestLog_WindowExhaustion(t *testing.T) {
	l := New(4)
	for i := 0; i < 4; i++ {
		if _, err := l.Append("x"); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	if l.Exhausted() {
		t.Fatal("exhausted too early")
	}

	_, err := l.Append("overflow")
	if !errors.Is(err, ErrWindowExhausted) {
		t.Fatalf("err = %v, want ErrWindowExhausted", err)
	}
	if !l.Exhausted() {
		t.Error("log not flagged")
	}

	// Nothing already queued was lost.
	if got := len(l.CommandsSince(0)); got != 4 {
		t.Errorf("pending commands = %d, want 4", got)
	}
	if c, _ := l.Get(1); c.Text != "x" {
		t.Errorf("first command overwritten: %+v", c)
	}
}

func TestLog_SequenceWrap(t *testing.T) {
	l := New(8)
	l.Reset(0xFFFFFFFD)
	for i := 0; i < 5; i++ {
		l.Append(fmt.Sprintf("w%d", i))
	}
	if l.Sequence() != 2 {
		t.Fatalf("sequence = %#x, want 2", l.Sequence())
	}
	got := l.CommandsSince(0xFFFFFFFE)
	if len(got) != 4 || got[0].Sequence != 0xFFFFFFFF || got[3].Sequence != 2 {
		t.Errorf("CommandsSince across wrap = %+v", got)
	}
	if err := l.Acknowledge(0); err != nil {
		t.Fatal(err)
	}
	if l.Pending() != 2 {
		t.Errorf("pending = %d, want 2", l.Pending())
	}
}

func TestLog_DefaultWindow(t *testing.T) {
	if w := New(0).Window(); w != 64 {
		t.Errorf("window = %d, want 64", w)
	}
}

func TestCommand_Len(t *testing.T) {
	if (Command{Text: "print hi"}).Len() != 8 {
		t.Error("Len")
	}
}
