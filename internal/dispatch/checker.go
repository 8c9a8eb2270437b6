package dispatch

import (
	"context"
	"fmt"

	"github.com/technosupport/onvif-gateway/internal/authz"
	"github.com/technosupport/onvif-gateway/internal/users"
	"github.com/technosupport/onvif-gateway/internal/wssecurity"
)

// UserStoreChecker adapts a wssecurity.Validator and a users.Store into the
// AuthChecker interface the dispatcher uses.
type UserStoreChecker struct {
	Validator *wssecurity.Validator
	Store     users.Store
}

// NewUserStoreChecker builds a checker backed by store, whose password
// lookups the validator was already configured to call back into (see
// PasswordLookupFor).
func NewUserStoreChecker(validator *wssecurity.Validator, store users.Store) *UserStoreChecker {
	return &UserStoreChecker{Validator: validator, Store: store}
}

func (c *UserStoreChecker) Validate(tok wssecurity.Token) error {
	return c.Validator.Validate(tok)
}

func (c *UserStoreChecker) LevelOf(username string) (authz.Level, error) {
	acct, err := c.Store.Lookup(context.Background(), username)
	if err != nil {
		return authz.Anonymous, err
	}
	if acct.Disabled {
		return authz.Anonymous, fmt.Errorf("account %q is disabled", username)
	}
	return acct.Level, nil
}
