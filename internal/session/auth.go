package session

import (
	"context"

	"white-traffic-console/internal/model"
)

// AuthGateway is the auth resource group of the API gateway.
type AuthGateway interface {
	Login(ctx context.Context, username, password string) (model.User, error)
	Register(ctx context.Context, username, password string) (model.User, error)
}

// Login validates the form, authenticates and stores the returned identity.
func (s *Session) Login(ctx context.Context, gw AuthGateway, c Credentials) (model.User, error) {
	if err := c.ValidateLogin(); err != nil {
		return model.User{}, err
	}
	user, err := gw.Login(ctx, c.Username, c.Password)
	if err != nil {
		s.logger.Warnf("Login failed for %s: %v", c.Username, err)
		return model.User{}, err
	}
	if user.Username == "" {
		user.Username = c.Username
	}
	s.Establish(user)
	return user, nil
}

// Register validates the form including the confirmation, registers the
// operator and stores the returned identity.
func (s *Session) Register(ctx context.Context, gw AuthGateway, c Credentials) (model.User, error) {
	if err := c.ValidateRegister(); err != nil {
		return model.User{}, err
	}
	user, err := gw.Register(ctx, c.Username, c.Password)
	if err != nil {
		s.logger.Warnf("Registration failed for %s: %v", c.Username, err)
		return model.User{}, err
	}
	if user.Username == "" {
		user.Username = c.Username
	}
	s.Establish(user)
	return user, nil
}
