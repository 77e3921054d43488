package eventpipe

import (
	"fmt"
	"strconv"
	"strings"

	"rotaryd/rotary"
)

// Kind is a command verb.
type Kind int

const (
	Pin     Kind = iota + 1 // pin <n> <0|1>: drive a simulated pin level
	Turn                    // turn <ch> <steps>: quadrature steps, negative is counter-clockwise
	Press                   // press <ch>
	Release                 // release <ch>
	GetPos                  // getpos <ch>
	Queue                   // queue <ch>: dump queued states
)

// Command is one parsed control line.
type Command struct {
	Kind    Kind
	Pin     int
	High    bool
	Channel int
	Steps   int
}

// ParseLine parses a command line.
// Command format:
//
//	pin <n> <0|1>        - set pin n low or high
//	turn <ch> <steps>    - rotate channel ch by steps quarter steps
//	press <ch>           - push channel ch's button
//	release <ch>         - release channel ch's button
//	getpos <ch>          - report position and button state
//	queue <ch>           - report queued states
func ParseLine(line string) (Command, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}

	cmd := strings.ToLower(parts[0])
	switch cmd {
	case "pin":
		if len(parts) < 3 {
			return Command{}, fmt.Errorf("pin requires <n> <0|1>")
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil || n < 0 {
			return Command{}, fmt.Errorf("invalid pin: %s", parts[1])
		}
		var high bool
		switch strings.ToLower(parts[2]) {
		case "1", "high", "true":
			high = true
		case "0", "low", "false":
		default:
			return Command{}, fmt.Errorf("invalid level: %s", parts[2])
		}
		return Command{Kind: Pin, Pin: n, High: high}, nil

	case "turn":
		if len(parts) < 3 {
			return Command{}, fmt.Errorf("turn requires <ch> <steps>")
		}
		ch, err := parseChannel(parts[1])
		if err != nil {
			return Command{}, err
		}
		steps, err := strconv.Atoi(parts[2])
		if err != nil {
			return Command{}, fmt.Errorf("invalid steps: %s", parts[2])
		}
		return Command{Kind: Turn, Channel: ch, Steps: steps}, nil

	case "press", "release", "getpos", "queue":
		if len(parts) < 2 {
			return Command{}, fmt.Errorf("%s requires <ch>", cmd)
		}
		ch, err := parseChannel(parts[1])
		if err != nil {
			return Command{}, err
		}
		kind := map[string]Kind{"press": Press, "release": Release, "getpos": GetPos, "queue": Queue}[cmd]
		return Command{Kind: kind, Channel: ch}, nil

	default:
		return Command{}, fmt.Errorf("unknown command: %s", cmd)
	}
}

func parseChannel(s string) (int, error) {
	ch, err := strconv.Atoi(s)
	if err != nil || ch < 0 || ch >= rotary.ChannelCount {
		return 0, fmt.Errorf("invalid channel: %s", s)
	}
	return ch, nil
}
