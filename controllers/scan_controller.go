package controllers

import (
	"net/http"

	"lager_lending_tool/app"
	"lager_lending_tool/db"

	"github.com/gin-gonic/gin"
)

type scanReq struct {
	Barcode string `json:"barcode" binding:"required,max=120"`
}

// Scan resolves a scanned code to an item, a user or nothing.
func (s *Srv) Scan(c *gin.Context) {
	var in scanReq
	if err := app.Bind(c, &in); err != nil {
		app.Fail(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := s.Repo.Resolve(ctx, in.Barcode)
	if err != nil {
		app.Fail(c, err)
		return
	}
	if res.Type == db.ScanUnknown {
		res.CanQuickCreate = app.PrincipalOf(c).IsAdmin()
	}
	s.Metrics.Scan(string(res.Type))
	c.JSON(http.StatusOK, res)
}

type quickItemReq struct {
	Barcode  string `json:"barcode" binding:"required,barcode"`
	Name     string `json:"name" binding:"required,max=200"`
	Quantity int    `json:"quantity" binding:"min=0"`
}

// QuickCreateItem registers an unknown scanned code as a new item.
func (s *Srv) QuickCreateItem(c *gin.Context) {
	var in quickItemReq
	if err := app.Bind(c, &in); err != nil {
		app.Fail(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	it, err := s.Repo.QuickCreateItem(ctx, db.QuickItemInput{
		Barcode:  in.Barcode,
		Name:     in.Name,
		Quantity: in.Quantity,
	})
	if err != nil {
		app.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, it)
}
