// Package auth checks credentials against the fixed demo accounts.
package auth

import (
	"crypto/subtle"

	"github.com/sells-group/loan-desk/internal/apperr"
)

// Role is the portal a user lands on after login.
type Role string

const (
	RoleBank     Role = "BANK"
	RoleCustomer Role = "CUSTOMER"
)

// Session is what a successful login returns to the client.
type Session struct {
	Role     Role   `json:"role"`
	Redirect string `json:"redirect"`
	UserID   int64  `json:"user_id"`
}

type account struct {
	username string
	password string
	session  Session
}

// Authenticator verifies a username and password.
type Authenticator struct {
	accounts []account
}

// NewDemo returns the two built-in accounts: admin/admin for bank staff and
// user/user for the customer portal.
func NewDemo() *Authenticator {
	return &Authenticator{accounts: []account{
		{username: "admin", password: "admin", session: Session{Role: RoleBank, Redirect: "bank.html", UserID: 2}},
		{username: "user", password: "user", session: Session{Role: RoleCustomer, Redirect: "index.html", UserID: 1}},
	}}
}

// Login returns the session for matching credentials or an Auth error.
// Every account is compared so timing does not reveal which name exists.
func (a *Authenticator) Login(username, password string) (Session, error) {
	var (
		found Session
		ok    bool
	)
	for _, acct := range a.accounts {
		u := subtle.ConstantTimeCompare([]byte(username), []byte(acct.username))
		p := subtle.ConstantTimeCompare([]byte(password), []byte(acct.password))
		if u&p == 1 {
			found, ok = acct.session, true
		}
	}
	if !ok {
		return Session{}, apperr.Auth("auth: login")
	}
	return found, nil
}
