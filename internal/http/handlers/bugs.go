package handlers

import (
	"context"
	"net/http"

	"github.com/geocoder89/bugzapp/internal/domain/bug"
	"github.com/geocoder89/bugzapp/internal/http/middlewares"
	"github.com/geocoder89/bugzapp/internal/identity"
	"github.com/gin-gonic/gin"
)

type BugReader interface {
	List(ctx context.Context) ([]bug.BugReport, error)
	Get(ctx context.Context, id string) (bug.BugReport, error)
}

type BugWriter interface {
	Create(ctx context.Context, req bug.CreateBugRequest, who identity.Identity) (bug.BugReport, error)
	UpdateStatus(ctx context.Context, id string, status bug.Status, who identity.Identity) (bug.BugReport, error)
	UpdatePartial(ctx context.Context, id string, req bug.UpdateBugRequest, who identity.Identity) (bug.BugReport, error)
	Delete(ctx context.Context, id string, who identity.Identity) error
}

type BugService interface {
	BugReader
	BugWriter
}

type BugsHandler struct {
	bugs BugService
}

func NewBugsHandler(bugs BugService) *BugsHandler {
	return &BugsHandler{bugs: bugs}
}

func (h *BugsHandler) ListBugs(ctx *gin.Context) {
	cctx, cancel := requestContext(ctx)
	defer cancel()

	bugs, err := h.bugs.List(cctx)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, bugs)
}

func (h *BugsHandler) GetBug(ctx *gin.Context) {
	cctx, cancel := requestContext(ctx)
	defer cancel()

	b, err := h.bugs.Get(cctx, ctx.Param("id"))
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, b)
}

func (h *BugsHandler) CreateBug(ctx *gin.Context) {
	var req bug.CreateBugRequest

	if !BindJSON(ctx, &req) {
		return
	}

	who, _ := middlewares.IdentityFromContext(ctx)

	cctx, cancel := requestContext(ctx)
	defer cancel()

	b, err := h.bugs.Create(cctx, req, who)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, b)
}

func (h *BugsHandler) UpdateStatus(ctx *gin.Context) {
	var req bug.UpdateStatusRequest

	if !BindJSON(ctx, &req) {
		return
	}

	who, _ := middlewares.IdentityFromContext(ctx)

	cctx, cancel := requestContext(ctx)
	defer cancel()

	b, err := h.bugs.UpdateStatus(cctx, ctx.Param("id"), req.Status, who)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, b)
}

func (h *BugsHandler) UpdateBug(ctx *gin.Context) {
	var req bug.UpdateBugRequest

	if !BindJSON(ctx, &req) {
		return
	}

	who, _ := middlewares.IdentityFromContext(ctx)

	cctx, cancel := requestContext(ctx)
	defer cancel()

	b, err := h.bugs.UpdatePartial(cctx, ctx.Param("id"), req, who)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, b)
}

func (h *BugsHandler) DeleteBug(ctx *gin.Context) {
	who, _ := middlewares.IdentityFromContext(ctx)

	cctx, cancel := requestContext(ctx)
	defer cancel()

	if err := h.bugs.Delete(cctx, ctx.Param("id"), who); err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Bug deleted successfully"})
}
