package app

import (
	"time"

	"lager_lending_tool/db"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// TouchLastSeen stamps last_seen_at at most once per throttle window per user.
func TouchLastSeen(repo *db.Repo, rdb *redis.Client, throttle time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := PrincipalOf(c).UserID()
		if uid == "" || throttle <= 0 {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		if ok, _ := rdb.SetNX(ctx, "user:lastseen:"+uid, "1", throttle).Result(); ok {
			_ = repo.TouchUserSeen(ctx, uid) // best effort
		}
		c.Next()
	}
}
