package users

import (
	"golang.org/x/crypto/bcrypt"
)

// RoleType is the opaque role string issued by the identity providers.
// The console only compares roles, it never derives one.
type RoleType string

const (
	RoleAdmin             RoleType = "Admin"     // Academic administrator
	RoleLecturer          RoleType = "Dosen"     // Lecturer
	RoleTeachingAssistant RoleType = "Asisten"   // Teaching assistant
	RoleEmployee          RoleType = "Pegawai"   // Administrative employee
	RoleStudent           RoleType = "Mahasiswa" // Student
)

// AllRoles lists every role the console knows about
var AllRoles = []RoleType{RoleAdmin, RoleLecturer, RoleTeachingAssistant, RoleEmployee, RoleStudent}

// Known reports whether the role is one of the fixed enumeration
func (r RoleType) Known() bool {
	return r.In(AllRoles...)
}

// In reports whether r is a member of roles
func (r RoleType) In(roles ...RoleType) bool {
	for _, role := range roles {
		if role == r {
			return true
		}
	}
	return false
}

// User is the identity record cached inside a session
type User struct {
	ID          string   `json:"id"`              // Identity provider user id
	Username    string   `json:"username"`        // Login name
	DisplayName string   `json:"displayName"`     // Human readable name
	Email       string   `json:"email,omitempty"` // Contact address, when the provider returns one
	Role        RoleType `json:"role"`            // Issued role
	Photo       *string  `json:"photo,omitempty"` // Avatar URL, optional
}

// HasRole reports whether the user's role is a member of roles.
// A nil user has no role.
func (u *User) HasRole(roles ...RoleType) bool {
	if u == nil {
		return false
	}
	return u.Role.In(roles...)
}

// Valid reports whether the record carries the fields a session needs
func (u *User) Valid() bool {
	return u != nil && u.ID != "" && u.Role != ""
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
