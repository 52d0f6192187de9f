package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/pinkconnect/core"
	"github.com/trezcool/pinkconnect/core/identity"
	"github.com/trezcool/pinkconnect/core/profile"
)

type profileApi struct {
	svc        *profile.Service
	translator ut.Translator
}

func registerProfileAPI(g *echo.Group, s *Server) {
	api := profileApi{svc: s.deps.ProfileSvc, translator: s.deps.Translator}

	pg := g.Group("/profiles")
	pg.POST("", api.create)
	pg.GET("/:id", api.retrieve, ownerMiddleware)
}

// ownerMiddleware only lets subjects reach their own profile.
func ownerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, ok := contextClaims(ctx)
		if !ok || claims.Subject != ctx.Param("id") {
			return identity.ErrForbidden
		}
		return next(ctx)
	}
}

func (api *profileApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.FindByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return providerError(err, api.translator)
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *profileApi) create(ctx echo.Context) error {
	var data profile.NewProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProfile")
	}
	claims, _ := contextClaims(ctx)
	if core.CleanString(data.ID) != claims.Subject {
		return identity.ErrForbidden
	}

	p, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return providerError(err, api.translator)
	}
	return ctx.JSON(http.StatusCreated, p)
}
