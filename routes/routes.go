package routes

import (
	"lager_lending_tool/app"
	"lager_lending_tool/controllers"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(r *gin.Engine, a *app.App, s *controllers.Srv) {
	anyMW := app.RequireSession()
	userMW := app.RequireUser()
	adminMW := app.RequireAdmin()

	r.GET("/healthz", s.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})))

	// ------------------------------
	// Auth
	// ------------------------------
	auth := r.Group("/auth")
	{
		auth.POST("/login", s.AdminLogin)
		auth.POST("/user/login", s.UserLogin)
		auth.POST("/logout", s.Logout)
		auth.POST("/user/logout", s.Logout)
		auth.GET("/me", s.Me)

		auth.POST("/passkeys/login/begin", s.BeginPasskeyLogin)
		auth.POST("/passkeys/login/finish", s.FinishPasskeyLogin)
		auth.POST("/passkeys/register/begin", adminMW, s.BeginPasskeyRegistration)
		auth.POST("/passkeys/register/finish", adminMW, s.FinishPasskeyRegistration)
	}

	// ------------------------------
	// Public directory and catalogue
	// ------------------------------
	r.GET("/items", s.ListCatalogue)
	r.GET("/items/:id", s.GetItem)
	r.GET("/users", s.ListUsers)
	r.POST("/users/search", s.SearchUsers)
	r.GET("/users/me/loans", userMW, s.MyLoans)
	r.GET("/users/:id", s.GetUser)

	// ------------------------------
	// Scan, loans, flags (any session)
	// ------------------------------
	r.POST("/scan", anyMW, s.Scan)
	r.POST("/items/quick", adminMW, s.QuickCreateItem)

	loans := r.Group("/loans", anyMW)
	{
		loans.POST("", s.CreateLoan)
		loans.POST("/:id/return", s.ReturnLoan)
		loans.POST("/:id/extend", s.ExtendLoan)
		loans.PUT("/:id/extend", s.ExtendLoan)
	}

	r.POST("/flags", anyMW, s.CreateFlag)
	r.GET("/flags", adminMW, s.ListFlags)
	r.PUT("/flags/:id/resolve", adminMW, s.ResolveFlag)

	// ------------------------------
	// Admin
	// ------------------------------
	admin := r.Group("/admin", adminMW)
	{
		admin.GET("/flags", s.ListFlags)
		admin.PUT("/flags/:id/resolve", s.ResolveFlag)

		admin.GET("/items", s.AdminListItems)
		admin.POST("/items", s.CreateItem)
		admin.GET("/items/:id", s.GetItem)
		admin.PUT("/items/:id", s.UpdateItem)
		admin.DELETE("/items/:id", s.DeleteItem)

		admin.GET("/users", s.AdminListUsers)
		admin.POST("/users", s.AdminCreateUser)
		admin.POST("/users/batch_delete", s.AdminBatchDeleteUsers)
		admin.GET("/users/:id", s.AdminGetUser)
		admin.PUT("/users/:id", s.AdminUpdateUser)
		admin.DELETE("/users/:id", s.AdminDeleteUser)

		admin.GET("/classes", s.ListClasses)
		admin.GET("/classes/:class/users", s.ListClassUsers)
		admin.DELETE("/classes/:class", s.ClearClass)

		admin.GET("/loans", s.AdminListLoans)
		admin.GET("/loans/:id", s.GetLoan)
		admin.PUT("/loans/:id/delivery", s.UpdateDelivery)
		admin.PUT("/loans/:id/report", s.UpdateReport)

		admin.POST("/check_overdue", s.CheckOverdue)
		admin.POST("/gdpr_cleanup", s.GDPRCleanup)
	}
}
