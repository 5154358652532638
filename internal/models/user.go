package models

import "time"

// Platform roles
const (
	RoleAdmin      = "admin"
	RoleTutor      = "tuteur"
	RoleApprentice = "apprenti"
	RoleCompany    = "entreprise"
	RoleTeacher    = "professeur"
)

// User is the credential-bearing identity record the control plane
// authenticates. Business profile data lives with the CRUD services.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}
