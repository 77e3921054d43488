package eventpipe

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"rotaryd/platform"
	"rotaryd/rotary"
	"rotaryd/task"
)

func TestParseLine(t *testing.T) {
	cases := []struct {
		line string
		want Command
		err  bool
	}{
		{line: "pin 4 0", want: Command{Kind: Pin, Pin: 4}},
		{line: "PIN 4 high", want: Command{Kind: Pin, Pin: 4, High: true}},
		{line: "turn 1 -3", want: Command{Kind: Turn, Channel: 1, Steps: -3}},
		{line: "press 2", want: Command{Kind: Press, Channel: 2}},
		{line: "release 0", want: Command{Kind: Release}},
		{line: "getpos 0", want: Command{Kind: GetPos}},
		{line: "queue 1", want: Command{Kind: Queue, Channel: 1}},
		{line: "turn 3 1", err: true},
		{line: "pin 4 maybe", err: true},
		{line: "press", err: true},
		{line: "rfid 1234", err: true},
		{line: "", err: true},
	}
	for _, c := range cases {
		got, err := ParseLine(c.line)
		if (err != nil) != c.err {
			t.Errorf("ParseLine(%q) err = %v", c.line, err)
			continue
		}
		if !c.err && got != c.want {
			t.Errorf("ParseLine(%q) = %+v, want %+v", c.line, got, c.want)
		}
	}
}

func newSimDriver(t *testing.T) (*platform.Sim, *rotary.Driver, *Executor) {
	t.Helper()
	sim := platform.NewSim()
	d := rotary.New(sim, task.NewRunner(8, nil), rotary.Options{})
	if err := d.Setup(0, 4, 5, 6); err != nil {
		t.Fatal(err)
	}
	x := NewExecutor(sim, d, map[int]Wiring{0: {PhaseA: 4, PhaseB: 5, Press: 6}})
	return sim, d, x
}

func TestExecutorDrivesDriver(t *testing.T) {
	_, _, x := newSimDriver(t)

	run := func(line string) string {
		t.Helper()
		cmd, err := ParseLine(line)
		if err != nil {
			t.Fatal(err)
		}
		reply, err := x.Exec(cmd)
		if err != nil {
			t.Fatalf("%s: %v", line, err)
		}
		return reply
	}

	run("turn 0 5")
	run("turn 0 -2")
	run("press 0")
	if got := run("getpos 0"); got != "getpos 0 3 pressed" {
		t.Fatalf("reply = %q", got)
	}
	if got := run("queue 0"); got != "queue 0 [3/false 3/true]" {
		t.Fatalf("reply = %q", got)
	}
}

func TestExecutorErrors(t *testing.T) {
	_, _, x := newSimDriver(t)
	if _, err := x.Exec(Command{Kind: GetPos, Channel: 1}); err == nil {
		t.Fatal("getpos on closed channel succeeded")
	}
	if _, err := x.Exec(Command{Kind: Press, Channel: 2}); err == nil {
		t.Fatal("press on unwired channel succeeded")
	}

	query := NewExecutor(nil, nil, nil)
	if _, err := query.Exec(Command{Kind: Pin, Pin: 1}); err == nil {
		t.Fatal("pin without simulated platform succeeded")
	}
}

func TestPipeDeliversCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events")
	got := make(chan Command, 4)
	ep, err := New(Config{Path: path}, func(c Command) (string, error) {
		got <- c
		return "ok", nil
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	go ep.Start()
	defer ep.Close()

	w, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	w.WriteString("# comment\n\nturn 1 2\nbogus\ngetpos 1\n")
	w.Close()

	want := []Command{{Kind: Turn, Channel: 1, Steps: 2}, {Kind: GetPos, Channel: 1}}
	for _, c := range want {
		select {
		case cmd := <-got:
			if cmd != c {
				t.Fatalf("command = %+v, want %+v", cmd, c)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for command")
		}
	}
}

func TestNewWithoutPath(t *testing.T) {
	ep, err := New(Config{}, nil, nil)
	if ep != nil || err != nil {
		t.Fatalf("New = %v, %v", ep, err)
	}
}
