package controller

import (
	"fmt"
	"log/slog"
	"net/http"

	"clima-relay/internal/modules/usuarios/types"
	"clima-relay/internal/utils"
)

const rootGreeting = "¡Hola desde la API de usuarios!"

func (c *usuariosControllerImpl) handleRoot(w http.ResponseWriter, r *http.Request) {
	utils.WriteText(w, http.StatusOK, rootGreeting)
}

func (c *usuariosControllerImpl) handleList(w http.ResponseWriter, r *http.Request) {
	users, err := c.repository.List(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "list usuarios failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load usuarios")
		return
	}
	utils.WriteJSON(w, http.StatusOK, users)
}

func (c *usuariosControllerImpl) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req types.UserRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.WriteDecodeError(w, err)
		return
	}
	user := req.User()

	users, err := c.repository.Append(r.Context(), user)
	if err != nil {
		slog.ErrorContext(r.Context(), "create usuario failed", "id", user.ID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to create usuario")
		return
	}
	slog.InfoContext(r.Context(), "usuario created", "id", user.ID, "nombre", user.Nombre)
	utils.WriteJSON(w, http.StatusCreated, users)
}

func (c *usuariosControllerImpl) handleGreet(w http.ResponseWriter, r *http.Request) {
	utils.WriteText(w, http.StatusOK, fmt.Sprintf("¡Hola, %s! 👋", r.PathValue("name")))
}
