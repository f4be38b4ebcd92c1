package controllers

import (
	"net/http"

	"lager_lending_tool/app"
	"lager_lending_tool/apperr"
	"lager_lending_tool/db"
	"lager_lending_tool/models"

	"github.com/gin-gonic/gin"
)

type createFlagReq struct {
	FlagType string  `json:"flag_type"`
	ItemID   *string `json:"item_id"`
	UserID   *string `json:"user_id"`
	LoanID   *string `json:"loan_id"`
	Message  string  `json:"message" binding:"max=4000"`
}

// CreateFlag files a report for the admins and mails them about it.
func (s *Srv) CreateFlag(c *gin.Context) {
	var in createFlagReq
	if err := app.Bind(c, &in); err != nil {
		app.Fail(c, err)
		return
	}
	ft, err := models.ParseFlagType(in.FlagType)
	if err != nil {
		app.Fail(c, apperr.Validation(err.Error()))
		return
	}

	p := app.PrincipalOf(c)
	var createdBy *string
	if id := p.UserID(); id != "" {
		createdBy = &id
	}
	userID := in.UserID
	if p.IsUser() && userID == nil {
		userID = createdBy
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	flag, err := s.Repo.CreateFlag(ctx, db.CreateFlagInput{
		Type:      ft,
		ItemID:    in.ItemID,
		UserID:    userID,
		LoanID:    in.LoanID,
		CreatedBy: createdBy,
		Message:   in.Message,
	})
	if err != nil {
		app.Fail(c, err)
		return
	}
	s.notifyFlag(ctx, flag)
	c.JSON(http.StatusCreated, flag)
}

// GET /flags?status=&type=
func (s *Srv) ListFlags(c *gin.Context) {
	var q db.FlagQuery
	if raw := c.Query("status"); raw != "" {
		st, err := models.ParseFlagStatus(raw)
		if err != nil {
			app.Fail(c, apperr.Validation(err.Error()))
			return
		}
		q.Status = st
	}
	if raw := c.Query("type"); raw != "" {
		ft, err := models.ParseFlagType(raw)
		if err != nil {
			app.Fail(c, apperr.Validation(err.Error()))
			return
		}
		q.Type = ft
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	flags, err := s.Repo.ListFlags(ctx, q)
	if err != nil {
		app.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, flags)
}

type resolveFlagReq struct {
	Status          string `json:"status" binding:"required"`
	ResolutionNotes string `json:"resolution_notes" binding:"max=4000"`
}

func (s *Srv) ResolveFlag(c *gin.Context) {
	var in resolveFlagReq
	if err := app.Bind(c, &in); err != nil {
		app.Fail(c, err)
		return
	}
	st, err := models.ParseFlagStatus(in.Status)
	if err != nil {
		app.Fail(c, apperr.Validation(err.Error()))
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	flag, err := s.Repo.ResolveFlag(ctx, c.Param("id"), st, in.ResolutionNotes)
	if err != nil {
		app.Fail(c, err)
		return
	}
	s.Metrics.FlagResolved(string(flag.Status))
	c.JSON(http.StatusOK, flag)
}
