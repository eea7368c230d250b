// Package service wires HTTP request/reply types to the business layer.
package service

import "github.com/google/wire"

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(NewEventService, NewStatusService)
