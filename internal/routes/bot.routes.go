package routes

import (
	"log"

	"statusbot/internal/controllers"
	"statusbot/internal/middleware"
	"statusbot/internal/plugin"
	"statusbot/internal/services"

	"github.com/gin-gonic/gin"
)

// Gateway bundles what the bot gateway routes need
type Gateway struct {
	Runner         *plugin.Runner
	Status         controllers.StatusSource
	Hub            *services.WebSocketHub
	Auth           *services.AuthService
	RateLimit      float64
	AllowedOrigins []string
	AllowedIPs     []string
	TrustedProxies []string // nil trusts no proxy headers
}

// RegisterBotRoutes wires the chat gateway onto r
func RegisterBotRoutes(r *gin.Engine, gw Gateway) {
	// Forwarding headers are honoured only from configured proxies
	if err := r.SetTrustedProxies(gw.TrustedProxies); err != nil {
		log.Printf("[SECURITY] Invalid trusted proxies %v, trusting none: %v", gw.TrustedProxies, err)
		_ = r.SetTrustedProxies(nil)
	}

	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(middleware.CORSMiddleware(gw.AllowedOrigins))
	r.Use(middleware.IPWhitelistMiddleware(middleware.NewIPWhitelist(gw.AllowedIPs)))
	r.Use(middleware.RateLimitMiddleware(middleware.NewRateLimiter(gw.RateLimit)))

	r.GET("/healthz", controllers.Healthz)

	bot := r.Group("/")
	bot.Use(middleware.AuthMiddleware(gw.Auth))
	{
		bot.POST("/events", controllers.HandleEvent(gw.Runner))
		bot.GET("/plugins", controllers.ListPlugins(gw.Runner))
		bot.GET("/report", controllers.GetReport(gw.Status))
		bot.GET("/snapshot", controllers.GetSnapshot(gw.Status))
		bot.GET("/token", controllers.HandleTokenStatus)
		bot.GET("/ws", controllers.HandleWebSocket(gw.Hub, gw.AllowedOrigins))
	}
}
