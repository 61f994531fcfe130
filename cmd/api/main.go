package main

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"firewatch/internal/apperr"
	"firewatch/internal/attendance"
	"firewatch/internal/audit"
	"firewatch/internal/auth"
	"firewatch/internal/config"
	"firewatch/internal/detector"
	"firewatch/internal/httpmiddleware"
	"firewatch/internal/imagestore"
	"firewatch/internal/queue"
	"firewatch/internal/recognize"
	"firewatch/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "firewatch:admissions")
	}

	images, err := imagestore.New(cfg.TempImageDir, cfg.EnrollImageDir)
	if err != nil {
		return err
	}

	det := detector.New(cfg.FaceServiceURL, cfg.FaceSkip, cfg.DetectTimeout)
	if err := det.Health(context.Background()); err != nil {
		log.Printf("warning: face service not reachable: %v", err)
	}

	faceRepo := recognize.NewRepository(db.Client)
	faceCache := recognize.NewCache(faceRepo, cfg.FaceDBRefresh)
	matcher := recognize.Matcher{Threshold: cfg.RecognitionThreshold, Margin: cfg.MatchMargin}
	enroller := recognize.NewEnroller(det, faceRepo, images, faceCache, cfg.DetectionConfidence, cfg.MaxFaceRefs)

	repo := attendance.NewRepository(db.Client)
	auditLog := audit.NewLog(db.Client)

	startHour, startMin := cfg.WorkStart()
	engine := attendance.NewEngine(repo, cfg.Cooldown, startHour, startMin, cfg.WorkGrace)
	workflow := attendance.NewWorkflow(repo, engine, auditLog)
	svc := attendance.NewService(det, faceCache, matcher, engine, repo, images, q,
		cfg.DetectionConfidence, cfg.DetectTimeout)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewLimiter(cfg.RateLimitPerMin).Middleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/auth/token", func(c *gin.Context) {
		var req struct {
			UserID    int64  `json:"user_id" binding:"required"`
			Role      string `json:"role" binding:"required"`
			StationID int64  `json:"station_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Role != "admin" && req.Role != "station" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role must be admin or station"})
			return
		}

		tokens, err := auth.Issue(req.UserID, req.Role, req.StationID, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.UserAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	// Auto-capture recognition: identify the face and admit the next
	// attendance event for the matched person.
	authGroup.POST("/attendance/recognize", func(c *gin.Context) {
		var req struct {
			Image string `json:"image" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		img, err := decodeImage(req.Image)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image encoding"})
			return
		}

		claims := auth.FromContext(c)
		stationID := int64(0)
		if !claims.IsAdmin() {
			stationID = claims.StationID
		}

		result, err := svc.Recognize(c.Request.Context(), img, stationID)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"event":      result.Event,
			"personnel":  personPayload(result.Person),
			"confidence": result.Confidence,
			"record":     result.Record,
		})
	})

	// Manual fallback: file a claim that waits for administrator approval.
	authGroup.POST("/attendance/manual", func(c *gin.Context) {
		var req struct {
			PersonnelID    int64  `json:"personnel_id" binding:"required"`
			AttendanceType string `json:"attendance_type" binding:"required"`
			Image          string `json:"image" binding:"required"`
			Notes          string `json:"notes"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		eventType, err := attendance.ParseEventType(req.AttendanceType)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		img, err := decodeImage(req.Image)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image encoding"})
			return
		}

		claims := auth.FromContext(c)
		if !claims.IsAdmin() {
			person, err := repo.FindPerson(c.Request.Context(), req.PersonnelID)
			if err == nil && person != nil && person.StationID != claims.StationID {
				c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
				return
			}
		}

		path, err := images.StoreCapture(img, req.PersonnelID, "manual_"+eventType.String())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "image save failed"})
			return
		}

		pending, err := workflow.Submit(c.Request.Context(), req.PersonnelID, eventType, path, req.Notes)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "manual attendance submitted for approval",
			"data":    pending,
		})
	})

	authGroup.GET("/attendance/pending", func(c *gin.Context) {
		claims := auth.FromContext(c)
		stationID := int64(0)
		if !claims.IsAdmin() {
			stationID = claims.StationID
		}
		pending, err := repo.ListPending(c.Request.Context(), stationID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": pending})
	})

	authGroup.POST("/attendance/pending", auth.AdminOnly(), func(c *gin.Context) {
		var req struct {
			PendingID int64  `json:"pending_id" binding:"required"`
			Action    string `json:"action" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		claims := auth.FromContext(c)
		switch req.Action {
		case "approve":
			rec, err := workflow.Approve(c.Request.Context(), req.PendingID, claims.UserID)
			if err != nil {
				writeDomainError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "attendance approved", "data": rec})
		case "reject":
			if err := workflow.Reject(c.Request.Context(), req.PendingID, claims.UserID); err != nil {
				writeDomainError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "attendance rejected"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "action must be approve or reject"})
		}
	})

	authGroup.GET("/attendance/history", func(c *gin.Context) {
		personID := int64(0)
		if v := c.Query("personnel_id"); v != "" {
			if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
				personID = parsed
			}
		}
		records, err := repo.ListRecords(c.Request.Context(), personID, c.Query("date_from"), c.Query("date_to"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": records})
	})

	authGroup.POST("/faces/enroll", auth.AdminOnly(), func(c *gin.Context) {
		var req struct {
			PersonnelID int64    `json:"personnel_id" binding:"required"`
			Images      []string `json:"images" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		person, err := repo.FindPerson(c.Request.Context(), req.PersonnelID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if person == nil {
			writeDomainError(c, apperr.New(apperr.PersonNotFound, "personnel not found"))
			return
		}

		imgs := make([][]byte, 0, len(req.Images))
		for _, enc := range req.Images {
			img, err := decodeImage(enc)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image encoding"})
				return
			}
			imgs = append(imgs, img)
		}

		result, err := enroller.Enroll(c.Request.Context(), req.PersonnelID, imgs)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		claims := auth.FromContext(c)
		if len(result.Accepted) > 0 {
			_ = auditLog.Record(c.Request.Context(), audit.Entry{
				ActorID:     claims.UserID,
				Action:      "Face Enrollment",
				Description: "Enrolled face images for " + person.FullName(),
			})
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "accepted": result.Accepted, "rejected": result.Rejected})
	})

	authGroup.POST("/personnel", auth.AdminOnly(), func(c *gin.Context) {
		var req struct {
			FirstName string `json:"first_name" binding:"required"`
			LastName  string `json:"last_name" binding:"required"`
			Rank      string `json:"rank" binding:"required"`
			StationID int64  `json:"station_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		person, err := repo.CreatePerson(c.Request.Context(), attendance.Person{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Rank:      req.Rank,
			StationID: req.StationID,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "data": person})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

// writeDomainError maps a typed domain failure onto the wire shape the
// station clients expect. Cooldown is a soft condition: the client simply
// keeps showing the camera view, so it gets a 200 with success=false.
func writeDomainError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusBadRequest
	switch kind {
	case apperr.Cooldown:
		status = http.StatusOK
	case apperr.PersonNotFound, apperr.PendingNotFound:
		status = http.StatusNotFound
	case apperr.StorageFailure, apperr.Unknown:
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{
		"success":    false,
		"error":      err.Error(),
		"error_kind": kind.String(),
		"error_code": kind.Code(),
	})
}

func personPayload(p *attendance.Person) gin.H {
	if p == nil {
		return nil
	}
	return gin.H{
		"id":         p.ID,
		"name":       p.FullName(),
		"rank":       p.Rank,
		"station_id": p.StationID,
	}
}

// decodeImage accepts raw base64 or a full data URL.
func decodeImage(s string) ([]byte, error) {
	if idx := strings.Index(s, ";base64,"); idx >= 0 {
		s = s[idx+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(s)
}
