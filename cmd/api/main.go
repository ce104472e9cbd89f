package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/pvhs-tutoring/peer-tutoring-api/api/swagger"
	"github.com/pvhs-tutoring/peer-tutoring-api/internal/handler"
	"github.com/pvhs-tutoring/peer-tutoring-api/internal/middleware"
	"github.com/pvhs-tutoring/peer-tutoring-api/internal/repository"
	"github.com/pvhs-tutoring/peer-tutoring-api/internal/service"
	"github.com/pvhs-tutoring/peer-tutoring-api/pkg/cache"
	"github.com/pvhs-tutoring/peer-tutoring-api/pkg/config"
	"github.com/pvhs-tutoring/peer-tutoring-api/pkg/database"
	"github.com/pvhs-tutoring/peer-tutoring-api/pkg/logger"
	corsmiddleware "github.com/pvhs-tutoring/peer-tutoring-api/pkg/middleware/cors"
	reqidmiddleware "github.com/pvhs-tutoring/peer-tutoring-api/pkg/middleware/requestid"
	"github.com/pvhs-tutoring/peer-tutoring-api/pkg/sms"
)

// @title PVHS Peer Tutoring API
// @version 1.0.0
// @description Booking engine for the peer tutoring program
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	sendReminders := flag.Bool("send-reminders", false, "run the day-before reminder sweep and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	loc, err := time.LoadLocation(cfg.Booking.Timezone)
	if err != nil {
		logr.Sugar().Fatalw("invalid booking timezone", "timezone", cfg.Booking.Timezone, "error", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	subjectRepo := repository.NewSubjectRepository(db)
	tutorRepo := repository.NewTutorRepository(db)
	bookingRepo := repository.NewBookingRepository(db)

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Availability.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, availability cache disabled", "error", err)
		} else {
			defer redisClient.Close()
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Availability.CacheTTL, logr, true)
		}
	}

	validate := validator.New()
	smsClient := sms.NewTextbeltClient(cfg.Notifications, logr)

	availabilitySvc := service.NewAvailabilityService(tutorRepo, bookingRepo, cacheSvc, cfg.Booking.SlotMinutes, loc, logr)
	window := service.NewBookingWindow(loc, cfg.Booking.CutoffHour)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	bookingSvc := service.NewBookingService(bookingRepo, subjectRepo, availabilitySvc, window, validate, logr, metricsSvc, rng)
	subjectSvc := service.NewSubjectService(subjectRepo, logr)
	tutorSvc := service.NewTutorService(tutorRepo, bookingRepo, validate, logr, loc)
	authSvc := service.NewAuthService(tutorRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	notificationSvc := service.NewNotificationService(smsClient, tutorRepo, subjectRepo, bookingRepo, logr, loc)
	exportSvc := service.NewExportService(bookingRepo, tutorRepo, subjectRepo, logr, loc)

	if *sendReminders {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		count, err := notificationSvc.SendReminders(ctx)
		if err != nil {
			logr.Sugar().Fatalw("reminder sweep failed", "error", err)
		}
		logr.Sugar().Infow("reminder sweep complete", "reminded", count)
		return
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc, window)
	bookingHandler := handler.NewBookingHandler(bookingSvc, exportSvc, notificationSvc)
	tutorHandler := handler.NewTutorHandler(authSvc, tutorSvc, bookingSvc, notificationSvc)

	api := r.Group(cfg.APIPrefix)
	{
		api.GET("/subjects", subjectHandler.List)
		api.GET("/availability", availabilityHandler.OpenSlots)
		api.GET("/booking-window", availabilityHandler.BookingWindow)
		api.POST("/bookings", bookingHandler.Create)
		if cfg.Exports.Enabled {
			api.GET("/bookings/export", bookingHandler.Export)
		}

		api.POST("/tutors/signup", tutorHandler.Signup)
		api.POST("/tutors/login", tutorHandler.Login)

		me := api.Group("/tutors/me", middleware.JWT(authSvc))
		{
			me.GET("/dashboard", tutorHandler.Dashboard)
			me.PUT("/subjects", tutorHandler.ReplaceSubjects)
			me.POST("/availability", tutorHandler.AddAvailability)
			me.DELETE("/availability/:id", tutorHandler.DeleteAvailability)
			me.POST("/exceptions", tutorHandler.AddException)
			me.DELETE("/exceptions/:id", tutorHandler.DeleteException)
			me.POST("/bookings/:id/cancel", tutorHandler.CancelBooking)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
