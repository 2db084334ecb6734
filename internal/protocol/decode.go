package protocol

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/edirooss/streambed-server/internal/domain/flow"
)

var statusParams = [...]string{ParamNumber, ParamState, ParamPushed, ParamLost, ParamLate}

type param struct {
	name  string
	value string
}

// Decode parses exactly one frame, terminator included. Every failure
// wraps ErrMalformedFrame.
func Decode(frame []byte) (Message, error) {
	cmd, params, err := split(frame)
	if err != nil {
		return nil, err
	}
	switch cmd {
	case CmdConfig:
		return decodeConfig(params)
	case CmdFlow:
		return decodeFlow(params)
	case CmdStatus:
		return decodeStatus(params)
	}
	return nil, malformed("unknown command %q", cmd)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedFrame, fmt.Sprintf(format, args...))
}

func split(frame []byte) (string, []param, error) {
	if len(frame) == 0 || frame[len(frame)-1] != Terminator {
		return "", nil, malformed("missing terminator")
	}
	body := frame[:len(frame)-1]
	if bytes.IndexByte(body, Terminator) != -1 {
		return "", nil, malformed("terminator inside frame")
	}
	parts := bytes.Split(body, []byte{ParamSep})
	cmd := string(parts[0])
	if cmd == "" {
		return "", nil, malformed("missing command")
	}
	params := make([]param, 0, len(parts)-1)
	for _, part := range parts[1:] {
		name, value, ok := bytes.Cut(part, []byte{FieldSep})
		if !ok {
			return "", nil, malformed("parameter %q without field separator", part)
		}
		if len(name) == 0 {
			return "", nil, malformed("parameter without name")
		}
		if bytes.IndexByte(value, FieldSep) != -1 {
			return "", nil, malformed("parameter %q has more than one field separator", name)
		}
		params = append(params, param{name: string(name), value: string(value)})
	}
	return cmd, params, nil
}

func decodeConfig(params []param) (*ConfigMessage, error) {
	m := &ConfigMessage{}
	for _, p := range params {
		c, ok := configByName[p.name]
		if !ok {
			m.Unknown = append(m.Unknown, p.name)
			continue
		}
		if err := c.decode(&m.Patch, p.value); err != nil {
			return nil, malformed("%v", err)
		}
	}
	return m, nil
}

func decodeFlow(params []param) (*FlowMessage, error) {
	m := &FlowMessage{}
	hasNumber := false
	for _, p := range params {
		if p.name == ParamNumber {
			n, err := parseNumber(p.value)
			if err != nil {
				return nil, err
			}
			m.Number, hasNumber = n, true
			continue
		}
		c, ok := flowByName[p.name]
		if !ok {
			m.Unknown = append(m.Unknown, p.name)
			continue
		}
		if err := c.decode(&m.Patch, p.value); err != nil {
			return nil, malformed("%v", err)
		}
	}
	if !hasNumber {
		return nil, malformed("flow without %s", ParamNumber)
	}
	return m, nil
}

func decodeStatus(params []param) (*StatusMessage, error) {
	m := &StatusMessage{}
	var seen [len(statusParams)]bool
	for _, p := range params {
		var err error
		switch p.name {
		case ParamNumber:
			var n uint8
			n, err = parseNumber(p.value)
			m.Index, seen[0] = int(n), true
		case ParamState:
			m.State, err = flow.ParseState(p.value)
			seen[1] = true
		case ParamPushed:
			m.Pushed, err = strconv.ParseUint(p.value, 10, 64)
			seen[2] = true
		case ParamLost:
			m.Lost, err = strconv.ParseUint(p.value, 10, 64)
			seen[3] = true
		case ParamLate:
			m.Late, err = strconv.ParseUint(p.value, 10, 64)
			seen[4] = true
		default:
			continue
		}
		if err != nil {
			return nil, malformed("%s: %v", p.name, err)
		}
	}
	for i, ok := range seen {
		if !ok {
			return nil, malformed("status without %s", statusParams[i])
		}
	}
	return m, nil
}

func parseNumber(v string) (uint8, error) {
	n, err := strconv.ParseUint(v, 10, 8)
	if err != nil {
		return 0, malformed("%s %q outside 0-%d", ParamNumber, v, flow.MaxFlows-1)
	}
	return uint8(n), nil
}
