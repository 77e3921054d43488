package mqtt

import "testing"

func TestTopics(t *testing.T) {
	if got := StatusTopic("knob1", 2, "dblclick"); got != "rotary/status/node/knob1/2/dblclick" {
		t.Fatalf("StatusTopic = %q", got)
	}
	if got := ControlTopic("knob1"); got != "rotary/control/node/knob1/getpos" {
		t.Fatalf("ControlTopic = %q", got)
	}
}

func TestParseGetPos(t *testing.T) {
	cases := []struct {
		topic   string
		payload string
		ch      int
		ok      bool
	}{
		{"rotary/control/node/knob1/getpos", "1", 1, true},
		{"rotary/control/node/knob1/getpos", " 0\n", 0, true},
		{"rotary/control/node/knob1/getpos", "x", 0, false},
		{"rotary/control/node/knob1/getpos", "-1", 0, false},
		{"rotary/control/node/other/getpos", "1", 0, false},
	}
	for _, c := range cases {
		ch, ok := ParseGetPos("knob1", c.topic, []byte(c.payload))
		if ch != c.ch || ok != c.ok {
			t.Errorf("ParseGetPos(%q, %q) = %d/%v", c.topic, c.payload, ch, ok)
		}
	}
}

func TestDisabledClient(t *testing.T) {
	connected := false
	c, err := New(Config{}, "knob1", Handlers{OnConnect: func() { connected = true }}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.IsEnabled() {
		t.Fatal("client enabled without host")
	}
	if err := c.Connect(); err != nil || !connected {
		t.Fatalf("Connect = %v, connected = %v", err, connected)
	}
	c.PublishGesture(Gesture{Channel: 0, Gesture: "click"})
	c.Disconnect()
}
