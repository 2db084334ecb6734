package protocol

import (
	"strconv"

	"github.com/edirooss/streambed-server/internal/domain/flow"
	"github.com/edirooss/streambed-server/internal/dto"
)

// Message is a decoded or encodable frame.
type Message interface {
	Command() string
	// AppendFrame appends the encoded frame, terminator included.
	AppendFrame(b []byte) []byte
}

// ConfigMessage updates the global configuration.
type ConfigMessage struct {
	Patch dto.ConfigPatch
	// Unknown lists parameter names that were ignored.
	Unknown []string
}

// FlowMessage updates one flow.
type FlowMessage struct {
	Number  uint8
	Patch   dto.FlowPatch
	Unknown []string
}

// StatusMessage reports a flow's state and counters.
type StatusMessage struct {
	flow.Status
}

// Ack acknowledges a config or flow message.
type Ack struct {
	Cmd string
}

func (*ConfigMessage) Command() string { return CmdConfig }
func (*FlowMessage) Command() string   { return CmdFlow }
func (*StatusMessage) Command() string { return CmdStatus }
func (a *Ack) Command() string         { return a.Cmd }

func (m *ConfigMessage) AppendFrame(b []byte) []byte {
	b = append(b, CmdConfig...)
	for _, c := range configCodecs {
		if v, ok := c.encode(&m.Patch); ok {
			b = appendParam(b, c.name, v)
		}
	}
	return append(b, Terminator)
}

func (m *FlowMessage) AppendFrame(b []byte) []byte {
	b = append(b, CmdFlow...)
	b = appendParam(b, ParamNumber, strconv.Itoa(int(m.Number)))
	for _, c := range flowCodecs {
		if v, ok := c.encode(&m.Patch); ok {
			b = appendParam(b, c.name, v)
		}
	}
	return append(b, Terminator)
}

func (m *StatusMessage) AppendFrame(b []byte) []byte {
	b = append(b, CmdStatus...)
	b = appendParam(b, ParamNumber, strconv.Itoa(m.Index))
	b = appendParam(b, ParamState, string(m.State))
	b = appendParam(b, ParamPushed, strconv.FormatUint(m.Pushed, 10))
	b = appendParam(b, ParamLost, strconv.FormatUint(m.Lost, 10))
	b = appendParam(b, ParamLate, strconv.FormatUint(m.Late, 10))
	return append(b, Terminator)
}

func (a *Ack) AppendFrame(b []byte) []byte {
	b = append(b, a.Cmd...)
	return append(b, Terminator)
}

// Encode returns the frame for m.
func Encode(m Message) []byte {
	return m.AppendFrame(nil)
}

// AckFor returns the acknowledgement of m.
func AckFor(m Message) *Ack {
	return &Ack{Cmd: m.Command()}
}

func appendParam(b []byte, name, value string) []byte {
	b = append(b, ParamSep)
	b = append(b, name...)
	b = append(b, FieldSep)
	return append(b, value...)
}
