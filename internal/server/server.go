// Package server exposes the HTTP API: gig CRUD and applications for
// venues and performers, the booking lifecycle actions, and profile
// management.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stagewire/stagewire/internal/booking"
	bookingdomain "github.com/stagewire/stagewire/internal/booking/domain"
	"github.com/stagewire/stagewire/internal/config"
	"github.com/stagewire/stagewire/internal/gig"
	gigdomain "github.com/stagewire/stagewire/internal/gig/domain"
	"github.com/stagewire/stagewire/internal/gigtemplate"
	gigtemplatedomain "github.com/stagewire/stagewire/internal/gigtemplate/domain"
	"github.com/stagewire/stagewire/internal/performer"
	performerdomain "github.com/stagewire/stagewire/internal/performer/domain"
	"github.com/stagewire/stagewire/internal/venue"
	venuedomain "github.com/stagewire/stagewire/internal/venue/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	venue.Module,
	performer.Module,
	gig.Module,
	gigtemplate.Module,
	booking.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogMiddleware(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func requestLogMiddleware(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	}
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	db           *gorm.DB
	genID        *snowflake.Node
	gigSvc       gigdomain.Service
	templateSvc  gigtemplatedomain.Service
	venueSvc     venuedomain.Service
	performerSvc performerdomain.Service
	bookingSvc   bookingdomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB
	GenID        *snowflake.Node
	GigSvc       gigdomain.Service
	TemplateSvc  gigtemplatedomain.Service
	VenueSvc     venuedomain.Service
	PerformerSvc performerdomain.Service
	BookingSvc   bookingdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		db:           p.DB,
		genID:        p.GenID,
		gigSvc:       p.GigSvc,
		templateSvc:  p.TemplateSvc,
		venueSvc:     p.VenueSvc,
		performerSvc: p.PerformerSvc,
		bookingSvc:   p.BookingSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	// -------- Gigs --------
	v1.POST("/gigs", s.CreateOrUpdateGig)
	v1.GET("/gigs", s.ListGigs)
	v1.GET("/gigs/:id", s.GetGigByID)
	v1.DELETE("/gigs/:id", s.DeleteGig)

	v1.GET("/gigs/:id/applicants", s.ListGigApplicants)
	v1.POST("/gigs/:id/applicants", s.ApplyToGig)
	v1.POST("/gigs/:id/applicants/:performerId/accept", s.AcceptGigApplicant)

	// -------- Booking lifecycle --------
	v1.POST("/gigs/:id/performed", s.MarkGigPerformed)
	v1.POST("/gigs/:id/clear", s.ClearGigFee)
	v1.POST("/gigs/:id/dispute", s.ReportGigDispute)
	v1.POST("/gigs/:id/dispute/resolve", s.ResolveGigDispute)
	v1.POST("/gigs/:id/cancel", s.CancelGig)

	// -------- Venues --------
	v1.POST("/venues", s.CreateVenue)
	v1.GET("/venues/:id", s.GetVenueProfile)
	v1.DELETE("/venues/:id", s.DeleteVenue)

	// -------- Performers --------
	v1.POST("/performers", s.CreatePerformer)
	v1.GET("/performers/:id", s.GetPerformerByID)
	v1.GET("/performers/:id/ledger", s.GetPerformerLedger)
	v1.DELETE("/performers/:id", s.DeletePerformer)

	// -------- Templates --------
	v1.POST("/templates", s.CreateTemplate)
	v1.GET("/templates/:id", s.GetTemplateByID)
	v1.DELETE("/templates/:id", s.DeleteTemplate)
	v1.POST("/templates/:id/instantiate", s.InstantiateTemplate)
}
