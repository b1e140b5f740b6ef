package controller

import (
	"log/slog"
	"net/http"

	"clima-relay/internal/modules/clima/types"
	"clima-relay/internal/utils"
)

func (c *climaControllerImpl) handleClima(w http.ResponseWriter, r *http.Request) {
	var req types.ObservationRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.WriteDecodeError(w, err)
		return
	}
	obs := req.Observation()

	slog.InfoContext(r.Context(), "observation received",
		"name", obs.Name,
		"temperatura", obs.Temperatura,
		"humedad", obs.Humedad,
		"clima", obs.Clima,
	)

	switch c.mode {
	case modeForward:
		c.sender.Forward(r.Context(), obs)
		w.WriteHeader(http.StatusOK)
	case modeEcho:
		utils.WriteJSON(w, http.StatusOK, types.NewEchoResponse(obs))
	case modeSink:
		if err := c.publisher.Publish(r.Context(), obs); err != nil {
			slog.ErrorContext(r.Context(), "publish observation failed", "name", obs.Name, "error", err)
			utils.WriteError(w, http.StatusBadGateway, "failed to publish observation")
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (c *climaControllerImpl) handleForwardingStatus(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, c.sender.Status())
}
