package protocol

import (
	"fmt"

	"github.com/edirooss/streambed-server/internal/dto"
)

// ConfigParams lists the config parameter names in encode order.
func ConfigParams() []string { return codecNames(configCodecs) }

// FlowParams lists the flow parameter names, number excluded, in encode order.
func FlowParams() []string { return codecNames(flowCodecs) }

// DecodeConfigParam sets one named parameter on p with wire semantics: an
// empty value resets the field.
func DecodeConfigParam(p *dto.ConfigPatch, name, value string) error {
	c, ok := configByName[name]
	if !ok {
		return fmt.Errorf("unknown config parameter %q", name)
	}
	return c.decode(p, value)
}

// DecodeFlowParam is DecodeConfigParam for flow parameters.
func DecodeFlowParam(p *dto.FlowPatch, name, value string) error {
	c, ok := flowByName[name]
	if !ok {
		return fmt.Errorf("unknown flow parameter %q", name)
	}
	return c.decode(p, value)
}

func codecNames[P any](cs []codec[P]) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.name
	}
	return out
}
