package types

import (
	"encoding/json"
	"fmt"

	"clima-relay/internal/utils"
)

// Observation is one weather reading for a named place. Field names follow
// the JSON wire format shared by the relay, the downstream service and the
// brokers.
type Observation struct {
	Name        string `json:"name"`
	Temperatura int32  `json:"temperatura"`
	Humedad     int32  `json:"humedad"`
	Clima       string `json:"clima"`
}

// ObservationRequest is the decode target for inbound bodies. Pointers let a
// missing field be told apart from a zero value.
type ObservationRequest struct {
	Name        *string `json:"name" validate:"required"`
	Temperatura *int32  `json:"temperatura" validate:"required"`
	Humedad     *int32  `json:"humedad" validate:"required"`
	Clima       *string `json:"clima" validate:"required"`
}

// Observation assumes the request passed validation.
func (r ObservationRequest) Observation() Observation {
	return Observation{
		Name:        *r.Name,
		Temperatura: *r.Temperatura,
		Humedad:     *r.Humedad,
		Clima:       *r.Clima,
	}
}

type EchoResponse struct {
	Mensaje        string      `json:"mensaje"`
	DatosRecibidos Observation `json:"datos_recibidos"`
}

func NewEchoResponse(obs Observation) EchoResponse {
	return EchoResponse{
		Mensaje:        fmt.Sprintf("Datos de %s recibidos correctamente", obs.Name),
		DatosRecibidos: obs,
	}
}

// ParseObservation decodes a broker payload with the same required-field
// rules as the HTTP ingress.
func ParseObservation(data []byte) (Observation, error) {
	var req ObservationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return Observation{}, fmt.Errorf("decode observation: %w", err)
	}
	if err := utils.Validate(&req); err != nil {
		return Observation{}, fmt.Errorf("decode observation: %w", err)
	}
	return req.Observation(), nil
}
