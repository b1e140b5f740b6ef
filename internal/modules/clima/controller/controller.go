package controller

import (
	"context"
	"net/http"

	"clima-relay/internal/broker"
	"clima-relay/internal/modules/clima/forwarder"
	"clima-relay/internal/modules/clima/types"
)

type ClimaController interface {
	RegisterRoutes(mux *http.ServeMux)
}

// Sender is the part of *forwarder.Forwarder the relay handlers use.
type Sender interface {
	Forward(ctx context.Context, obs types.Observation)
	Status() forwarder.Status
}

type mode int

const (
	modeForward mode = iota
	modeEcho
	modeSink
)

type climaControllerImpl struct {
	mode      mode
	sender    Sender
	publisher broker.Publisher
}

// NewForwardingController accepts observations and relays them downstream.
func NewForwardingController(sender Sender) ClimaController {
	return &climaControllerImpl{mode: modeForward, sender: sender}
}

// NewEchoController accepts observations and answers with an acknowledgement.
func NewEchoController() ClimaController {
	return &climaControllerImpl{mode: modeEcho}
}

// NewSinkController accepts relayed observations and publishes them.
func NewSinkController(publisher broker.Publisher) ClimaController {
	return &climaControllerImpl{mode: modeSink, publisher: publisher}
}

func (c *climaControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /clima", c.handleClima)
	if c.mode == modeForward {
		mux.HandleFunc("GET /forwarding/status", c.handleForwardingStatus)
	}
}
