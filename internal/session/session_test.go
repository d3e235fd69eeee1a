package session

import (
	"context"
	"errors"
	"io"
	"testing"

	"white-traffic-console/internal/client"
	"white-traffic-console/internal/model"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeAuthGateway struct {
	calls int
	user  model.User
	err   error
}

func (g *fakeAuthGateway) Login(ctx context.Context, username, password string) (model.User, error) {
	g.calls++
	return g.user, g.err
}

func (g *fakeAuthGateway) Register(ctx context.Context, username, password string) (model.User, error) {
	g.calls++
	return g.user, g.err
}

func TestInvalidateFiresOnce(t *testing.T) {
	fired := 0
	s := NewWithToken("admin", "tok", func() { fired++ }, quietLogger())
	if !s.Authenticated() || s.Token() != "tok" {
		t.Fatal("session should start authenticated")
	}

	s.Invalidate()
	s.Invalidate()
	if fired != 1 {
		t.Errorf("callback fired %d times, want 1", fired)
	}
	if s.Authenticated() {
		t.Error("token survived invalidation")
	}
	if _, ok := s.Identity(); ok {
		t.Error("identity survived invalidation")
	}
}

func TestClearDoesNotNotify(t *testing.T) {
	fired := false
	s := NewWithToken("admin", "tok", func() { fired = true }, quietLogger())
	s.Clear()
	if fired {
		t.Error("Clear fired the unauthenticated callback")
	}
	if s.Authenticated() {
		t.Error("Clear kept the token")
	}
}

func TestLoginValidation(t *testing.T) {
	tests := []Credentials{
		{Username: "", Password: "pw"},
		{Username: "admin", Password: ""},
		{},
	}
	for _, c := range tests {
		gw := &fakeAuthGateway{}
		s := New(nil, quietLogger())
		_, err := s.Login(context.Background(), gw, c)
		if !client.IsValidation(err) {
			t.Errorf("Login(%+v) err = %v, want ValidationError", c, err)
		}
		if gw.calls != 0 {
			t.Errorf("Login(%+v) reached the network", c)
		}
	}
}

func TestRegisterPasswordMismatch(t *testing.T) {
	gw := &fakeAuthGateway{}
	s := New(nil, quietLogger())
	_, err := s.Register(context.Background(), gw, Credentials{Username: "a", Password: "x", Confirm: "y"})
	var verr *client.ValidationError
	if !errors.As(err, &verr) || verr.Field != "confirm" {
		t.Fatalf("err = %v, want confirm ValidationError", err)
	}
	if gw.calls != 0 {
		t.Error("mismatched registration reached the network")
	}
}

func TestLoginEstablishesIdentity(t *testing.T) {
	gw := &fakeAuthGateway{user: model.User{Token: "tok", Role: "admin"}}
	s := New(nil, quietLogger())
	user, err := s.Login(context.Background(), gw, Credentials{Username: "admin", Password: "pw"})
	if err != nil {
		t.Fatal(err)
	}
	if user.Username != "admin" {
		t.Errorf("username = %q, want form value", user.Username)
	}
	if s.Token() != "tok" {
		t.Errorf("token = %q", s.Token())
	}
}

func TestLoginRejectionKeepsLoggedOut(t *testing.T) {
	gw := &fakeAuthGateway{err: &client.ServerRejection{Op: client.OpLogin, Status: 401, Message: "Invalid username or password"}}
	s := New(nil, quietLogger())
	_, err := s.Login(context.Background(), gw, Credentials{Username: "admin", Password: "bad"})
	if err == nil || err.Error() != "Invalid username or password" {
		t.Fatalf("err = %v", err)
	}
	if s.Authenticated() {
		t.Error("rejected login established a session")
	}
}
