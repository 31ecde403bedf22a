package middleware

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/gryn010/inception/internal/queue"
	"github.com/gryn010/inception/internal/storage"
	"github.com/gryn010/inception/pkg/common"
	"github.com/gryn010/inception/pkg/linking"
	"github.com/gryn010/inception/pkg/store"
)

type AppUser struct {
	UserID      int64
	Role        string
	Permissions []string
}

// Linker is the part of *linking.Service the HTTP handlers use.
type Linker interface {
	Link(ctx context.Context, req linking.LinkRequest) ([]linking.Result, error)
	SearchItems(ctx context.Context, kb common.KnowledgeBase, query string) ([]linking.Result, error)
}

type App struct {
	Linking  Linker
	Registry store.Registry
	Queue    queue.Publisher
	Objects  storage.ObjectStore
	Keyfunc  jwt.Keyfunc

	MasterAPIKey   string
	MasterUserID   int64
	MasterUserRole string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
