package agent

import (
	"github.com/casualjim/strix/api"
	"github.com/casualjim/strix/internal/registry"
)

// Global holds agents by name so sessions can refer to them without
// passing configuration around.
var Global = registry.New[api.Agent]()

func Add(agent api.Agent) {
	Global.Add(agent.Name(), agent)
}

func Get(name string) (api.Agent, bool) {
	return Global.Get(name)
}

func Del(name string) {
	Global.Del(name)
}
