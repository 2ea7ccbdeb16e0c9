package api

import "github.com/casualjim/strix/provider"

// Model pairs a model name with the backend that serves it.
type Model interface {
	Name() string
	Provider() provider.Provider
}
