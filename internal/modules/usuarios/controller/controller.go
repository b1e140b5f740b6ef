package controller

import (
	"net/http"

	"clima-relay/internal/modules/usuarios/repository"
)

type UsuariosController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type usuariosControllerImpl struct {
	repository repository.UserRepository
}

func NewUsuariosController(repository repository.UserRepository) UsuariosController {
	return &usuariosControllerImpl{repository: repository}
}

func (c *usuariosControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", c.handleRoot)
	mux.HandleFunc("GET /usuarios", c.handleList)
	mux.HandleFunc("POST /usuarios", c.handleCreate)
	mux.HandleFunc("GET /saludar/{name}", c.handleGreet)
}
