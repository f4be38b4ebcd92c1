package app

import (
	"net/http"
	"time"

	"lager_lending_tool/config"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func corsOrigins(cfg config.AppConfig) []string {
	seen := map[string]bool{}
	var out []string
	for _, o := range append([]string{cfg.WebOrigin}, cfg.AllowedOrigins...) {
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		out = append(out, o)
	}
	return out
}

func useCORS(r *gin.Engine, cfg config.AppConfig) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins(cfg),
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
