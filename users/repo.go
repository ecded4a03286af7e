package users

// Directory names the identity system an account is registered with
type Directory string

const (
	DirectoryCampus Directory = "campus" // Campus identity (teaching staff and students)
	DirectoryAdmin  Directory = "admin"  // Administrative identity
)

// Account is a user record as held by an identity directory
type Account struct {
	User
	PasswordHash string    `json:"-"` // never serialize
	Directory    Directory `json:"directory"`
}

type UserRepo interface {
	Upsert(account *Account) error
	Delete(username string) error
	GetByUsername(directory Directory, username string) (*Account, error)
	GetByID(id string) (*Account, error)
}
