package handlers

import (
	"context"
	"net/http"

	"github.com/geocoder89/bugzapp/internal/domain/user"
	"github.com/geocoder89/bugzapp/internal/http/middlewares"
	"github.com/geocoder89/bugzapp/internal/identity"
	"github.com/geocoder89/bugzapp/internal/service"
	"github.com/gin-gonic/gin"
)

type Authenticator interface {
	Register(ctx context.Context, req user.RegisterRequest) (service.AuthResult, error)
	Login(ctx context.Context, req user.LoginRequest) (service.AuthResult, error)
}

type AuthHandler struct {
	auth Authenticator
}

func NewAuthHandler(auth Authenticator) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	res, err := h.auth.Register(cctx, req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, res)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx)
	defer cancel()

	res, err := h.auth.Login(cctx, req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, res)
}

type UserDirectory interface {
	Me(ctx context.Context, who identity.Identity) (user.User, error)
	ListUsers(ctx context.Context, who identity.Identity) ([]user.User, error)
}

type UsersHandler struct {
	users UserDirectory
}

func NewUsersHandler(users UserDirectory) *UsersHandler {
	return &UsersHandler{users: users}
}

func (h *UsersHandler) Me(ctx *gin.Context) {
	who, _ := middlewares.IdentityFromContext(ctx)

	cctx, cancel := requestContext(ctx)
	defer cancel()

	u, err := h.users.Me(cctx, who)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, u)
}

func (h *UsersHandler) List(ctx *gin.Context) {
	who, _ := middlewares.IdentityFromContext(ctx)

	cctx, cancel := requestContext(ctx)
	defer cancel()

	users, err := h.users.ListUsers(cctx, who)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, users)
}
