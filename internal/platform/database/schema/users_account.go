package schema

import "strings"

// UserAccountTable represents the 'users.account' table
type UserAccountTable struct {
	Table         string
	ID            string
	Email         string
	Password      string
	DisplayName   string
	Role          string
	EmailVerified string
	CreatedAt     string
	UpdatedAt     string
	DeletedAt     string
}

// UserAccount is the schema definition for users.account
var UserAccount = UserAccountTable{
	Table:         "users.account",
	ID:            "id",
	Email:         "email",
	Password:      "passwordhash",
	DisplayName:   "displayname",
	Role:          "role",
	EmailVerified: "emailverified",
	CreatedAt:     "createdat",
	UpdatedAt:     "updatedat",
	DeletedAt:     "deletedat",
}

// Columns returns the columns read into a user record, in scan order
func (t UserAccountTable) Columns() []string {
	return []string{
		t.ID, t.Email, t.Password, t.DisplayName, t.Role,
		t.EmailVerified, t.CreatedAt, t.UpdatedAt,
	}
}

// Select returns the comma separated column list of Columns
func (t UserAccountTable) Select() string {
	return strings.Join(t.Columns(), ", ")
}
