package clima

import (
	"net/http"

	"clima-relay/internal/broker"
	"clima-relay/internal/modules/clima/controller"
)

func RegisterForwarding(mux *http.ServeMux, sender controller.Sender) {
	controller.NewForwardingController(sender).RegisterRoutes(mux)
}

func RegisterEcho(mux *http.ServeMux) {
	controller.NewEchoController().RegisterRoutes(mux)
}

func RegisterSink(mux *http.ServeMux, publisher broker.Publisher) {
	controller.NewSinkController(publisher).RegisterRoutes(mux)
}
