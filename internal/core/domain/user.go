package domain

const (
	RoleAdmin    = "admin"
	RoleClient   = "client"
	RoleEmployee = "employee"
)

// Identity models an authenticated actor as the user store hands it to the core.
// PasswordHash is only set for identities that log in by email.
type Identity struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	DisplayName  string `json:"name"`
	Role         string `json:"role"`
	ClientRef    string `json:"client_id,omitempty"`
	EmployeeRef  string `json:"employee_id,omitempty"`
	PasswordHash string `json:"-"`
	Active       bool   `json:"-"`
}

// Client is a customer record identified by CPF. LinkedUserID points at the
// user account that logs in on its behalf, when one exists.
type Client struct {
	ID           string
	CPF          string
	Name         string
	LinkedUserID string
}

// PublicUser is the subset of an Identity that is safe to return to callers.
type PublicUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	ClientRef   string `json:"client_id,omitempty"`
	EmployeeRef string `json:"employee_id,omitempty"`
}

// Public strips credential material from the identity.
func (i *Identity) Public() PublicUser {
	return PublicUser{
		ID:          i.ID,
		Email:       i.Email,
		Name:        i.DisplayName,
		Role:        i.Role,
		ClientRef:   i.ClientRef,
		EmployeeRef: i.EmployeeRef,
	}
}
