package usuarios

import (
	"net/http"

	"clima-relay/internal/modules/usuarios/controller"
	"clima-relay/internal/modules/usuarios/repository"
)

func RegisterFeature(mux *http.ServeMux, repo repository.UserRepository) {
	controller.NewUsuariosController(repo).RegisterRoutes(mux)
}
