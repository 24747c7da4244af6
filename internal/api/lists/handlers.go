// Package lists implements the HTTP handlers for shopping lists, their items and their
// members. Every handler reads the caller from the gate and leaves the access decision
// to the services.
package lists

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sharedlists/sharedlists/internal/api/respond"
	"github.com/sharedlists/sharedlists/internal/authz"
	"github.com/sharedlists/sharedlists/internal/db/models"
	"github.com/sharedlists/sharedlists/internal/middleware"
	"github.com/sharedlists/sharedlists/internal/services"
)

// ListService is the list behaviour the handlers need
type ListService interface {
	Create(ctx context.Context, accountID, name string) (*models.List, authz.Result, error)
	Get(ctx context.Context, accountID, listID string) (*models.List, authz.Decision, error)
	ListForAccount(ctx context.Context, accountID string) ([]*models.ListWithRole, error)
	Rename(ctx context.Context, accountID, listID, name string) (authz.Result, error)
	Delete(ctx context.Context, accountID, listID string) (authz.Result, error)
	Members(ctx context.Context, accountID, listID string) ([]*models.MembershipWithAccount, authz.Decision, error)
	AddCollaborator(ctx context.Context, requesterID, listID, email string) (authz.Result, error)
	Kick(ctx context.Context, requesterID, targetID, listID string) (authz.Result, error)
	Leave(ctx context.Context, requesterID, listID string) (authz.Result, error)
}

// ItemService is the item behaviour the handlers need
type ItemService interface {
	Add(ctx context.Context, accountID, listID string, in services.ItemInput) (*models.Item, authz.Result, error)
	Update(ctx context.Context, accountID, listID, itemID string, patch services.ItemPatch) (*models.Item, authz.Result, error)
	Delete(ctx context.Context, accountID, listID, itemID string) (authz.Result, error)
	List(ctx context.Context, accountID, listID string) ([]*models.Item, authz.Decision, error)
}

// Handlers serves the list, item and member routes
type Handlers struct {
	lists ListService
	items ItemService
}

// NewHandlers creates list handlers
func NewHandlers(lists ListService, items ItemService) *Handlers {
	return &Handlers{lists: lists, items: items}
}

// NameRequest is the body for creating or renaming a list
type NameRequest struct {
	Name string `json:"name" binding:"required"`
}

// CollaboratorRequest is the body of POST /api/v1/lists/:list_id/members
type CollaboratorRequest struct {
	Email string `json:"email" binding:"required"`
}

// @Summary      List lists
// @Description  Returns every list the caller belongs to, with the caller's role on each.
// @Tags         Lists
// @Security     AccountAPIKey
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/lists [get]
func (h *Handlers) ListLists(c *gin.Context) {
	lists, err := h.lists.ListForAccount(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	if lists == nil {
		lists = []*models.ListWithRole{}
	}
	c.JSON(http.StatusOK, gin.H{"lists": lists})
}

// @Summary      Create list
// @Description  Creates a list owned by the caller.
// @Tags         Lists
// @Security     AccountAPIKey
// @Accept       json
// @Produce      json
// @Param        body  body  NameRequest  true  "List name"
// @Success      201  {object}  models.List
// @Failure      409  {object}  map[string]interface{}  "List limit reached"
// @Router       /api/v1/lists [post]
func (h *Handlers) CreateList(c *gin.Context) {
	var req NameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err)
		return
	}
	list, res, err := h.lists.Create(c.Request.Context(), middleware.AccountID(c), req.Name)
	if !respond.Mutation(c, "list", res, err) {
		return
	}
	c.JSON(http.StatusCreated, list)
}

// @Summary      Get list
// @Tags         Lists
// @Security     AccountAPIKey
// @Produce      json
// @Param        list_id  path  string  true  "List ID"
// @Success      200  {object}  models.List
// @Failure      403  {object}  apierror.Rejection  "code 8: list access not granted"
// @Router       /api/v1/lists/{list_id} [get]
func (h *Handlers) GetList(c *gin.Context) {
	list, d, err := h.lists.Get(c.Request.Context(), middleware.AccountID(c), c.Param("list_id"))
	if !respond.Read(c, d, err) {
		return
	}
	if list == nil {
		respond.NotFound(c, "list")
		return
	}
	c.JSON(http.StatusOK, list)
}

// RenameList changes a list's name. Owner only.
// PUT /api/v1/lists/:list_id
func (h *Handlers) RenameList(c *gin.Context) {
	var req NameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err)
		return
	}
	res, err := h.lists.Rename(c.Request.Context(), middleware.AccountID(c), c.Param("list_id"), req.Name)
	if !respond.Mutation(c, "list", res, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteList removes a list with its items and memberships. Owner only.
// DELETE /api/v1/lists/:list_id
func (h *Handlers) DeleteList(c *gin.Context) {
	res, err := h.lists.Delete(c.Request.Context(), middleware.AccountID(c), c.Param("list_id"))
	if !respond.Mutation(c, "list", res, err) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"records_affected": res.RecordsAffected})
}

// ListMembers returns the members of a list with their roles
// GET /api/v1/lists/:list_id/members
func (h *Handlers) ListMembers(c *gin.Context) {
	members, d, err := h.lists.Members(c.Request.Context(), middleware.AccountID(c), c.Param("list_id"))
	if !respond.Read(c, d, err) {
		return
	}
	if members == nil {
		members = []*models.MembershipWithAccount{}
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

// @Summary      Add collaborator
// @Description  Grants the collaborator role to the account registered under the given email. Owner only.
// @Tags         Lists
// @Security     AccountAPIKey
// @Accept       json
// @Param        list_id  path  string               true  "List ID"
// @Param        body     body  CollaboratorRequest  true  "Collaborator email"
// @Success      201
// @Failure      404  {object}  map[string]interface{}  "No account with that email"
// @Failure      409  {object}  map[string]interface{}  "Already a member"
// @Router       /api/v1/lists/{list_id}/members [post]
func (h *Handlers) AddCollaborator(c *gin.Context) {
	var req CollaboratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err)
		return
	}
	res, err := h.lists.AddCollaborator(c.Request.Context(), middleware.AccountID(c), c.Param("list_id"), req.Email)
	if !respond.Mutation(c, "member", res, err) {
		return
	}
	c.Status(http.StatusCreated)
}

// KickCollaborator removes a collaborator. Owner only.
// DELETE /api/v1/lists/:list_id/members/:account_id
func (h *Handlers) KickCollaborator(c *gin.Context) {
	res, err := h.lists.Kick(c.Request.Context(), middleware.AccountID(c), c.Param("account_id"), c.Param("list_id"))
	if !respond.Mutation(c, "member", res, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// LeaveList removes the caller's own collaborator membership
// POST /api/v1/lists/:list_id/leave
func (h *Handlers) LeaveList(c *gin.Context) {
	res, err := h.lists.Leave(c.Request.Context(), middleware.AccountID(c), c.Param("list_id"))
	if !respond.Mutation(c, "membership", res, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// ListItems returns the items on a list
// GET /api/v1/lists/:list_id/items
func (h *Handlers) ListItems(c *gin.Context) {
	items, d, err := h.items.List(c.Request.Context(), middleware.AccountID(c), c.Param("list_id"))
	if !respond.Read(c, d, err) {
		return
	}
	if items == nil {
		items = []*models.Item{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// @Summary      Add item
// @Tags         Items
// @Security     AccountAPIKey
// @Accept       json
// @Produce      json
// @Param        list_id  path  string             true  "List ID"
// @Param        body     body  services.ItemInput  true  "Item"
// @Success      201  {object}  models.Item
// @Failure      409  {object}  map[string]interface{}  "Item limit reached"
// @Router       /api/v1/lists/{list_id}/items [post]
func (h *Handlers) AddItem(c *gin.Context) {
	var in services.ItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.BadRequest(c, err)
		return
	}
	item, res, err := h.items.Add(c.Request.Context(), middleware.AccountID(c), c.Param("list_id"), in)
	if !respond.Mutation(c, "item", res, err) {
		return
	}
	c.JSON(http.StatusCreated, item)
}

// UpdateItem applies a partial update to an item
// PATCH /api/v1/lists/:list_id/items/:item_id
func (h *Handlers) UpdateItem(c *gin.Context) {
	var patch services.ItemPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respond.BadRequest(c, err)
		return
	}
	item, res, err := h.items.Update(c.Request.Context(), middleware.AccountID(c), c.Param("list_id"), c.Param("item_id"), patch)
	if !respond.Mutation(c, "item", res, err) {
		return
	}
	c.JSON(http.StatusOK, item)
}

// DeleteItem removes an item
// DELETE /api/v1/lists/:list_id/items/:item_id
func (h *Handlers) DeleteItem(c *gin.Context) {
	res, err := h.items.Delete(c.Request.Context(), middleware.AccountID(c), c.Param("list_id"), c.Param("item_id"))
	if !respond.Mutation(c, "item", res, err) {
		return
	}
	c.Status(http.StatusNoContent)
}
