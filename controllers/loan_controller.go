package controllers

import (
	"net/http"
	"strings"

	"lager_lending_tool/app"
	"lager_lending_tool/apperr"
	"lager_lending_tool/db"
	"lager_lending_tool/models"

	"github.com/gin-gonic/gin"
)

type createLoanReq struct {
	ItemID   string `json:"item_id" binding:"required"`
	UserID   string `json:"user_id"`
	DueDate  string `json:"due_date" binding:"required,isodate"`
	IsManual bool   `json:"is_manual"`
}

// CreateLoan lends one unit. Borrowers always borrow for themselves; admins name the borrower.
func (s *Srv) CreateLoan(c *gin.Context) {
	var in createLoanReq
	if err := app.Bind(c, &in); err != nil {
		app.Fail(c, err)
		return
	}
	p := app.PrincipalOf(c)

	userID := p.UserID()
	if p.IsAdmin() {
		userID = strings.TrimSpace(in.UserID)
		if userID == "" {
			app.Fail(c, apperr.Validation("user_id required"))
			return
		}
	}
	dueDate, err := models.ParseDate(in.DueDate)
	if err != nil {
		app.Fail(c, apperr.Validation("due_date must be YYYY-MM-DD"))
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := s.Repo.CreateLoan(ctx, db.CreateLoanInput{
		ItemID:  in.ItemID,
		UserID:  userID,
		DueDate: dueDate,
		Manual:  in.IsManual,
		ActorID: p.UserID(),
	})
	s.Metrics.LoanEvent("create", outcome(err))
	if err != nil {
		app.Fail(c, err)
		return
	}
	s.notifyFlag(ctx, res.Flag)
	c.JSON(http.StatusCreated, res.Loan)
}

type returnLoanReq struct {
	ReturnMessage string `json:"return_message" binding:"max=2000"`
}

func (s *Srv) ReturnLoan(c *gin.Context) {
	var in returnLoanReq
	if err := app.BindOptional(c, &in); err != nil {
		app.Fail(c, err)
		return
	}
	p := app.PrincipalOf(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := s.Repo.ReturnLoan(ctx, db.ReturnLoanInput{
		LoanID:  c.Param("id"),
		ActorID: p.UserID(),
		OwnerID: p.OwnerFilter(),
		Message: in.ReturnMessage,
	})
	s.Metrics.LoanEvent("return", outcome(err))
	if err != nil {
		app.Fail(c, err)
		return
	}
	s.notifyFlag(ctx, res.Flag)
	c.JSON(http.StatusOK, res.Loan)
}

type extendLoanReq struct {
	DueDate    string `json:"due_date" binding:"omitempty,isodate"`
	NewDueDate string `json:"new_due_date" binding:"omitempty,isodate"`
}

func (s *Srv) ExtendLoan(c *gin.Context) {
	var in extendLoanReq
	if err := app.Bind(c, &in); err != nil {
		app.Fail(c, err)
		return
	}
	raw := in.DueDate
	if raw == "" {
		raw = in.NewDueDate
	}
	if raw == "" {
		app.Fail(c, apperr.Validation("due_date required"))
		return
	}
	dueDate, err := models.ParseDate(raw)
	if err != nil {
		app.Fail(c, apperr.Validation("due_date must be YYYY-MM-DD"))
		return
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	loan, err := s.Repo.ExtendLoan(ctx, db.ExtendLoanInput{
		LoanID:  c.Param("id"),
		DueDate: dueDate,
		OwnerID: app.PrincipalOf(c).OwnerFilter(),
	})
	s.Metrics.LoanEvent("extend", outcome(err))
	if err != nil {
		app.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

// MyLoans lists the borrower's loans; ?all=true includes returned ones.
func (s *Srv) MyLoans(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	loans, err := s.Repo.ListUserLoans(ctx, app.PrincipalOf(c).UserID(), c.Query("all") != "true")
	if err != nil {
		app.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, loans)
}

func (s *Srv) AdminListLoans(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	loans, err := s.Repo.ListActiveLoans(ctx)
	if err != nil {
		app.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, loans)
}

func (s *Srv) GetLoan(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	loan, err := s.Repo.GetLoan(ctx, c.Param("id"))
	if err != nil {
		app.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

type deliveryReq struct {
	DeliveryStatus *string `json:"delivery_status"`
	DeliveryNotes  *string `json:"delivery_notes" binding:"omitempty,max=2000"`
}

func (s *Srv) UpdateDelivery(c *gin.Context) {
	var in deliveryReq
	if err := app.Bind(c, &in); err != nil {
		app.Fail(c, err)
		return
	}
	var status *models.DeliveryStatus
	if in.DeliveryStatus != nil {
		ds, err := models.ParseDeliveryStatus(*in.DeliveryStatus)
		if err != nil {
			app.Fail(c, apperr.Validation(err.Error()))
			return
		}
		status = &ds
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	loan, err := s.Repo.UpdateDelivery(ctx, c.Param("id"), status, in.DeliveryNotes)
	if err != nil {
		app.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

type reportReq struct {
	Report string `json:"report" binding:"max=4000"`
}

func (s *Srv) UpdateReport(c *gin.Context) {
	var in reportReq
	if err := app.Bind(c, &in); err != nil {
		app.Fail(c, err)
		return
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	loan, err := s.Repo.UpdateReport(ctx, c.Param("id"), in.Report)
	if err != nil {
		app.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if e := apperr.As(err); e != nil {
		return string(e.Kind())
	}
	return string(apperr.KindInternal)
}
