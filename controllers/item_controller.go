package controllers

import (
	"net/http"

	"lager_lending_tool/app"
	"lager_lending_tool/apperr"
	"lager_lending_tool/db"
	"lager_lending_tool/models"

	"github.com/gin-gonic/gin"
)

func itemQuery(c *gin.Context) (db.ItemQuery, error) {
	q := db.ItemQuery{Q: c.Query("q"), Category: c.Query("category")}
	if raw := c.Query("status"); raw != "" {
		st, err := models.ParseItemStatus(raw)
		if err != nil {
			return q, apperr.Validation(err.Error())
		}
		q.Status = st
	}
	return q, nil
}

// ListCatalogue is the public item list with who has each item right now.
func (s *Srv) ListCatalogue(c *gin.Context) {
	q, err := itemQuery(c)
	if err != nil {
		app.Fail(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := s.Repo.ListCatalogue(ctx, q)
	if err != nil {
		app.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// GetItem returns an item with its active loans and full loan history.
func (s *Srv) GetItem(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	detail, err := s.Repo.GetItemDetail(ctx, c.Param("id"))
	if err != nil {
		app.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Srv) AdminListItems(c *gin.Context) {
	q, err := itemQuery(c)
	if err != nil {
		app.Fail(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := s.Repo.ListItems(ctx, q)
	if err != nil {
		app.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

type itemReq struct {
	Name        *string `json:"name" binding:"omitempty,max=200"`
	Description *string `json:"description"`
	Location    *string `json:"location" binding:"omitempty,max=200"`
	Category    *string `json:"category" binding:"omitempty,max=120"`
	Quantity    *int    `json:"quantity" binding:"omitempty,min=0"`
	Barcode     *string `json:"barcode" binding:"omitempty,barcode"`
	Status      *string `json:"status"`
	Notes       *string `json:"notes"`
}

func (in itemReq) status() (*models.ItemStatus, error) {
	if in.Status == nil {
		return nil, nil
	}
	st, err := models.ParseItemStatus(*in.Status)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}
	return &st, nil
}

func (s *Srv) CreateItem(c *gin.Context) {
	var in itemReq
	if err := app.Bind(c, &in); err != nil {
		app.Fail(c, err)
		return
	}
	if trimmed(in.Name) == "" {
		app.Fail(c, apperr.Validation("name required"))
		return
	}
	st, err := in.status()
	if err != nil {
		app.Fail(c, err)
		return
	}

	it := &models.Item{
		Name:     *in.Name,
		Quantity: 1,
		Barcode:  in.Barcode,
		Status:   models.ItemAvailable,
	}
	if in.Quantity != nil {
		it.Quantity = *in.Quantity
	}
	if st != nil {
		it.Status = *st
	}
	if in.Description != nil {
		it.Description = *in.Description
	}
	if in.Location != nil {
		it.Location = *in.Location
	}
	if in.Category != nil {
		it.Category = *in.Category
	}
	if in.Notes != nil {
		it.Notes = *in.Notes
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := s.Repo.CreateItem(ctx, it); err != nil {
		app.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, it)
}

func (s *Srv) UpdateItem(c *gin.Context) {
	var in itemReq
	if err := app.Bind(c, &in); err != nil {
		app.Fail(c, err)
		return
	}
	st, err := in.status()
	if err != nil {
		app.Fail(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	it, err := s.Repo.UpdateItem(ctx, c.Param("id"), db.ItemPatch{
		Name:        in.Name,
		Description: in.Description,
		Location:    in.Location,
		Category:    in.Category,
		Quantity:    in.Quantity,
		Barcode:     in.Barcode,
		Status:      st,
		Notes:       in.Notes,
	})
	if err != nil {
		app.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

func (s *Srv) DeleteItem(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := s.Repo.DeleteItem(ctx, c.Param("id")); err != nil {
		app.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"message": "Item deleted"})
}
