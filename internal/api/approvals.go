package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Approver decides destructive MCP tool calls on behalf of the user.
type Approver interface {
	Pending() []string
	Approve(actionID string)
	Reject(actionID string)
}

type approvalApi struct {
	approver Approver
}

func registerApprovalAPI(g *echo.Group, approver Approver) {
	if approver == nil {
		return
	}
	api := approvalApi{approver: approver}
	ag := g.Group("/approvals")
	ag.GET("", api.pending)
	ag.POST("/:action/approve", api.approve)
	ag.POST("/:action/reject", api.reject)
}

func (api approvalApi) pending(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.approver.Pending())
}

func (api approvalApi) approve(ctx echo.Context) error {
	api.approver.Approve(ctx.Param("action"))
	return ctx.NoContent(http.StatusNoContent)
}

func (api approvalApi) reject(ctx echo.Context) error {
	api.approver.Reject(ctx.Param("action"))
	return ctx.NoContent(http.StatusNoContent)
}
