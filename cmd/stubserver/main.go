// Command stubserver is a local stand-in for the Apphud backend, used when
// developing against the SDK without hitting production. It serves canned
// envelope responses for every endpoint the SDK calls and applies
// per-device rate limiting when a redis is available, which makes the
// SDK's 429 retry path reproducible locally.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/apphud/apphud-go/internal/infrastructure/logging"
)

func main() {
	viper.AutomaticEnv()
	viper.SetDefault("stub_port", 8090)
	viper.SetDefault("stub_environment", "development")
	viper.SetDefault("stub_rate_per_second", 5)
	viper.SetDefault("stub_rate_burst", 10)

	if err := logging.Init(logging.Config{
		Environment: viper.GetString("stub_environment"),
		Verbose:     true,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logging.Sync()

	var limiter *redis_rate.Limiter
	if redisURL := viper.GetString("stub_redis_url"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			logging.Logger.Fatal("Failed to parse Redis URL", zap.Error(err))
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logging.Logger.Fatal("Failed to ping Redis", zap.Error(err))
		}
		limiter = redis_rate.NewLimiter(redisClient)
	}

	if viper.GetString("stub_environment") != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if limiter != nil {
		router.Use(rateLimitByDevice(limiter,
			viper.GetInt("stub_rate_per_second"),
			viper.GetInt("stub_rate_burst"),
		))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/v1/customers", registerCustomer)
	router.GET("/v2/products", listProducts)
	router.POST("/v1/attribution", acceptAndAck)
	router.PUT("/v1/customers/push_token", acceptAndAck)
	router.POST("/v1/customers/properties", acceptAndAck)
	router.POST("/v1/promotions", grantPromotional)
	router.POST("/v1/events", acceptAndAck)
	router.GET("/v1/notifications", listNotifications)
	router.POST("/v1/notifications/read", acceptAndAck)
	router.GET("/preview_screen/:id", previewScreen)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", viper.GetInt("stub_port")),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logging.Logger.Info("Stub server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Logger.Info("Shutting down stub server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Logger.Fatal("Server forced to shutdown", zap.Error(err))
	}
}

// rateLimitByDevice throttles per device id so one misbehaving client
// cannot starve the rest, mirroring the production backend's behavior.
func rateLimitByDevice(limiter *redis_rate.Limiter, rate, burst int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Query("device_id")
		if key == "" {
			key = c.ClientIP()
		}

		res, err := limiter.AllowN(c.Request.Context(), "stub:"+key, redis_rate.PerSecond(rate), burst)
		if err != nil {
			// Fail open: the stub should never block development on a
			// flaky local redis.
			logging.Logger.Warn("rate limiter error", zap.Error(err))
			c.Next()
			return
		}

		if res.Allowed == 0 {
			retryAfter := int(res.RetryAfter.Seconds()) + 1
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.JSON(http.StatusTooManyRequests, envelope(gin.H{}))
			c.Abort()
			return
		}
		c.Next()
	}
}

// envelope wraps a payload the way the production backend does.
func envelope(results any) gin.H {
	return gin.H{"data": gin.H{"results": results}}
}

func registerCustomer(c *gin.Context) {
	var body struct {
		UserID   string `json:"user_id"`
		DeviceID string `json:"device_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"errors": []gin.H{{"id": "bad_request", "title": "malformed registration body"}},
		})
		return
	}
	if body.UserID == "" {
		body.UserID = uuid.NewString()
	}

	c.JSON(http.StatusOK, envelope(gin.H{
		"user_id": body.UserID,
		"currency": gin.H{
			"code":         "USD",
			"country_code": "US",
		},
		"subscriptions": []gin.H{},
		"paywalls": []gin.H{
			{
				"id":         "pw_stub_main",
				"identifier": "main",
				"name":       "Main Paywall",
				"default":    true,
				"items": []gin.H{
					{
						"id":         "prod_stub_monthly",
						"product_id": "com.example.premium.monthly",
						"store":      "play_store",
					},
				},
			},
		},
		"placements": []gin.H{
			{
				"id":         "plc_stub_onboarding",
				"identifier": "onboarding",
				"paywalls": []gin.H{
					{
						"id":         "pw_stub_main",
						"identifier": "main",
						"name":       "Main Paywall",
						"default":    true,
					},
				},
			},
		},
	}))
}

func listProducts(c *gin.Context) {
	c.JSON(http.StatusOK, envelope([]gin.H{
		{
			"id":   "grp_stub_premium",
			"name": "premium",
			"products": []gin.H{
				{
					"id":         "prod_stub_monthly",
					"product_id": "com.example.premium.monthly",
					"store":      "play_store",
				},
				{
					"id":         "prod_stub_yearly",
					"product_id": "com.example.premium.yearly",
					"store":      "play_store",
				},
			},
		},
	}))
}

func grantPromotional(c *gin.Context) {
	var body struct {
		UserID    string `json:"user_id"`
		Duration  int    `json:"duration"`
		ProductID string `json:"product_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"errors": []gin.H{{"id": "bad_request", "title": "malformed promotion body"}},
		})
		return
	}

	productID := body.ProductID
	if productID == "" {
		productID = "com.example.premium.monthly"
	}
	expiresAt := time.Now().AddDate(0, 0, body.Duration).UTC().Format("2006-01-02T15:04:05.000Z07:00")

	c.JSON(http.StatusOK, envelope(gin.H{
		"user_id": body.UserID,
		"subscriptions": []gin.H{
			{
				"product_id": productID,
				"kind":       "autorenewable",
				"status":     "promo",
				"expires_at": expiresAt,
			},
		},
		"paywalls":   []gin.H{},
		"placements": []gin.H{},
	}))
}

func listNotifications(c *gin.Context) {
	c.JSON(http.StatusOK, envelope([]gin.H{
		{
			"id":         "ntf_stub_1",
			"created_at": time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			"rule": gin.H{
				"id":          "rule_stub_1",
				"screen_id":   "scr_stub_1",
				"rule_name":   "welcome_offer",
				"screen_name": "Welcome Offer",
			},
		},
	}))
}

func previewScreen(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK,
		"<html><head><title>%s</title></head><body><h1>Stub screen</h1></body></html>",
		c.Param("id"),
	)
}

func acceptAndAck(c *gin.Context) {
	c.JSON(http.StatusOK, envelope(gin.H{"ok": true}))
}
