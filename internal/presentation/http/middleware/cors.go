package middleware

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSSelector routes each request to the right CORS policy: the open beacon
// policy on the tracking ingress, the strict dashboard allowlist everywhere
// else. Installed at the engine root so preflights are answered even before
// route matching.
func CORSSelector() gin.HandlerFunc {
	beacon := BeaconCORSMiddleware()
	strict := CORSMiddleware()

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/v1/track") || strings.HasPrefix(path, "/api/v1/webhooks") {
			beacon(c)
			return
		}
		strict(c)
	}
}

// BeaconCORSMiddleware opens the tracking ingress to any storefront origin.
// The pixel embeds on arbitrary merchant domains, so the policy is wildcard
// origin without credentials.
func BeaconCORSMiddleware() gin.HandlerFunc {
	config := cors.Config{
		AllowAllOrigins: true,
		AllowMethods: []string{
			"POST", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept",
			"X-Tenant-ID", "X-Webhook-Signature",
		},
	}

	return cors.New(config)
}

// CORSMiddleware provides CORS configuration for the dashboard frontend.
func CORSMiddleware() gin.HandlerFunc {
	config := cors.Config{
		AllowOrigins: []string{
			"http://localhost:3000",
			"http://localhost:5173",
			"http://127.0.0.1:3000",
			"http://127.0.0.1:5173",
			"http://[::1]:3000", // IPv6 localhost
			"http://[::1]:5173", // IPv6 localhost
		},
		AllowMethods: []string{
			"GET", "POST", "PUT", "DELETE", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			"X-Tenant-ID", "X-Requested-With", "X-Webhook-Signature",
			"Cache-Control",
		},
		AllowCredentials: true,
		ExposeHeaders: []string{
			"Content-Type", "Cache-Control", "Connection",
		},
	}

	return cors.New(config)
}
