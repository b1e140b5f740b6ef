package types

type User struct {
	ID     uint32 `json:"id"`
	Nombre string `json:"nombre"`
	Email  string `json:"email"`
}

// UserRequest is the decode target for POST /usuarios.
type UserRequest struct {
	ID     *uint32 `json:"id" validate:"required"`
	Nombre *string `json:"nombre" validate:"required"`
	Email  *string `json:"email" validate:"required"`
}

func (r UserRequest) User() User {
	return User{ID: *r.ID, Nombre: *r.Nombre, Email: *r.Email}
}

// SeedUsers is the collection every store starts with.
func SeedUsers() []User {
	return []User{
		{ID: 1, Nombre: "Ana", Email: "ana@email.com"},
		{ID: 2, Nombre: "Luis", Email: "luis@email.com"},
	}
}
