package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/pumpwatch/internal/auth"
)

type LoginInput struct {
	Body struct {
		Username string `json:"username" minLength:"1" maxLength:"100" doc:"Username"`
		Password string `json:"password" minLength:"1" maxLength:"128" doc:"Password"` //nolint:gosec // G117: login credential DTO
	}
}

type LoginOutput struct {
	Body struct {
		OK          bool     `json:"ok"`
		AccessToken string   `json:"access_token"` //nolint:gosec // G117: auth response DTO
		User        UserView `json:"user"`
	}
}

type MeOutput struct {
	Body UserView
}

// RegisterAuthRoutes registers the unauthenticated login endpoint.
func RegisterAuthRoutes(api huma.API, authSvc AuthService) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Login with username and password",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *LoginInput) (*LoginOutput, error) {
		token, user, err := authSvc.Login(ctx, input.Body.Username, input.Body.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				return nil, &Error{Status: http.StatusUnauthorized, Kind: KindUnauthorized, Message: "invalid username or password"}
			}
			return nil, fail("login", err, nil)
		}

		out := &LoginOutput{}
		out.Body.OK = true
		out.Body.AccessToken = token
		out.Body.User = userView(user)
		return out, nil
	})
}

// RegisterAccountRoutes registers endpoints about the authenticated caller.
func RegisterAccountRoutes(api huma.API, authSvc AuthService) {
	huma.Register(api, huma.Operation{
		OperationID: "get-me",
		Method:      http.MethodGet,
		Path:        "/auth/me",
		Summary:     "Get the authenticated user",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, _ *struct{}) (*MeOutput, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}

		user, err := authSvc.GetUser(ctx, actor.ID)
		if err != nil {
			return nil, fail("get-me", err, nil)
		}
		return &MeOutput{Body: userView(user)}, nil
	})
}
