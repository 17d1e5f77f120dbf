package schema

import "strings"

// UserIdentityTable represents the 'users.identity' table
type UserIdentityTable struct {
	Table          string
	ID             string
	AccountID      string
	Provider       string
	ProviderUserID string
	Email          string
	EmailVerified  string
	CreatedAt      string
	UpdatedAt      string
}

// UserIdentity is the schema definition for users.identity
var UserIdentity = UserIdentityTable{
	Table:          "users.identity",
	ID:             "id",
	AccountID:      "accountid",
	Provider:       "provider",
	ProviderUserID: "provideruserid",
	Email:          "email",
	EmailVerified:  "emailverified",
	CreatedAt:      "createdat",
	UpdatedAt:      "updatedat",
}

// Columns returns all standard column names, in scan order
func (t UserIdentityTable) Columns() []string {
	return []string{
		t.ID, t.AccountID, t.Provider, t.ProviderUserID,
		t.Email, t.EmailVerified, t.CreatedAt, t.UpdatedAt,
	}
}

// Select returns the comma separated column list of Columns
func (t UserIdentityTable) Select() string {
	return strings.Join(t.Columns(), ", ")
}
