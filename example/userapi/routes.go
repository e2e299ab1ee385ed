package userapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/nats-io/nats.go"

	"github.com/unruly-software/api/natsadapter"
	"github.com/unruly-software/api/server"
)

// ErrInvalidUserID rejects non-positive ids.
var ErrInvalidUserID = errors.New("Invalid user ID")

// Env is the context each transport starts a call with.
type Env struct {
	RequestID string
	Transport string
}

// Deps is the context the handlers see.
type Deps struct {
	Repo   UserRepo
	Logger *slog.Logger
}

// NewDispatcher implements every operation of Catalog against repo.
func NewDispatcher(repo UserRepo, logger *slog.Logger, opts ...server.DispatcherOption) (*server.Dispatcher[Meta, Env], error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := server.NewRouter[Meta, Env](Catalog())

	withDeps := func(name string) *server.Route[Meta, Env, Deps] {
		return server.UpdateContext(r.Endpoint(name), func(_ context.Context, e Env) (Deps, error) {
			return Deps{
				Repo:   repo,
				Logger: logger.With("operation", name, "request_id", e.RequestID, "transport", e.Transport),
			}, nil
		})
	}

	getUser := withDeps(GetUser.Name).Handle(server.Typed(func(ctx context.Context, req GetUserRequest, in server.Input[Meta, Deps]) (*User, error) {
		if req.UserID <= 0 {
			return nil, ErrInvalidUserID
		}
		return in.Context.Repo.Get(ctx, req.UserID)
	}))

	createUser := withDeps(CreateUser.Name).Handle(server.Typed(func(ctx context.Context, req CreateUserRequest, in server.Input[Meta, Deps]) (User, error) {
		u, err := in.Context.Repo.Create(ctx, req.Name, req.Email)
		if err != nil {
			return User{}, err
		}
		in.Context.Logger.Info("user created", "user_id", u.ID)
		return u, nil
	}))

	listUsers := withDeps(ListUsers.Name).Handle(func(ctx context.Context, in server.Input[Meta, Deps]) (any, error) {
		return in.Context.Repo.List(ctx)
	})

	return r.Implement([]server.Implementation[Env]{getUser, createUser, listUsers}, opts...)
}

func HTTPEnv(r *http.Request) (Env, error) {
	return Env{RequestID: middleware.GetReqID(r.Context()), Transport: "http"}, nil
}

func NATSEnv(msg *nats.Msg) (Env, error) {
	return Env{RequestID: msg.Header.Get(natsadapter.CallIDHeader), Transport: "nats"}, nil
}

func FrameEnv(_ context.Context, info server.ConnInfo) (Env, error) {
	return Env{RequestID: info.CallID, Transport: "frame"}, nil
}

func LocalEnv(context.Context) (Env, error) {
	return Env{Transport: "local"}, nil
}
