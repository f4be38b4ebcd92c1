package controllers

import (
	"fmt"
	"net/http"

	"lager_lending_tool/app"

	"github.com/gin-gonic/gin"
)

// CheckOverdue runs the overdue sweep on demand.
func (s *Srv) CheckOverdue(c *gin.Context) {
	report, err := s.Overdue.Sweep(c.Request.Context())
	if err != nil {
		app.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{
		"message":       fmt.Sprintf("%d overdue loans found, %d newly flagged", len(report.Overdue), report.Flagged),
		"overdue_count": len(report.Overdue),
		"flagged":       report.Flagged,
		"loans":         report.Overdue,
	})
}

// GDPRCleanup removes borrower accounts past the retention window.
func (s *Srv) GDPRCleanup(c *gin.Context) {
	report, err := s.Cleanup.Cleanup(c.Request.Context())
	if err != nil {
		app.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{
		"message":          fmt.Sprintf("%d inactive users removed", report.RemovedUsers),
		"removed_users":    report.RemovedUsers,
		"anonymized_loans": report.AnonymizedLoans,
	})
}

func (s *Srv) Healthz(c *gin.Context) {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := s.Repo.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, app.H{"ok": false, "error": "database unavailable"})
		return
	}
	if err := s.Sessions.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, app.H{"ok": false, "error": "session store unavailable"})
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}
