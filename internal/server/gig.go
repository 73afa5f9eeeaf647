package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	gigdomain "github.com/stagewire/stagewire/internal/gig/domain"
	"github.com/stagewire/stagewire/pkg/db/pagination"
)

type gigDraftRequest struct {
	ID              string                `json:"id,omitempty"`
	VenueID         string                `json:"venue_id"`
	Title           string                `json:"title"`
	GigDate         string                `json:"gig_date"`
	StartTime       string                `json:"start_time"`
	DurationMinutes int                   `json:"duration_minutes"`
	Visibility      string                `json:"visibility,omitempty"`
	FeeAmount       int64                 `json:"fee_amount"`
	Currency        string                `json:"currency,omitempty"`
	Complete        bool                  `json:"complete"`
	Recurrence      *gigdomain.Recurrence `json:"recurrence,omitempty"`
	Metadata        map[string]any        `json:"metadata,omitempty"`
}

// CreateOrUpdateGig is the single write entry point for gigs: a known id
// updates that record, a fresh draft is expanded into instances.
func (s *Server) CreateOrUpdateGig(c *gin.Context) {
	var req gigDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.gigSvc.CreateOrUpdate(c.Request.Context(), gigdomain.Draft{
		ID:              strings.TrimSpace(req.ID),
		VenueID:         strings.TrimSpace(req.VenueID),
		Title:           req.Title,
		GigDate:         strings.TrimSpace(req.GigDate),
		StartTime:       strings.TrimSpace(req.StartTime),
		DurationMinutes: req.DurationMinutes,
		Visibility:      gigdomain.Visibility(strings.TrimSpace(req.Visibility)),
		FeeAmount:       req.FeeAmount,
		Currency:        strings.TrimSpace(req.Currency),
		Complete:        req.Complete,
		Recurrence:      req.Recurrence,
		Metadata:        req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListGigs(c *gin.Context) {
	var query struct {
		pagination.Pagination
		VenueID string `form:"venue_id"`
		Status  string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.gigSvc.List(c.Request.Context(), gigdomain.ListRequest{
		VenueID:   strings.TrimSpace(query.VenueID),
		Status:    strings.TrimSpace(query.Status),
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetGigByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.gigSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteGig(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := s.gigSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": id}})
}

type applyRequest struct {
	PerformerID string `json:"performer_id"`
}

func (s *Server) ApplyToGig(c *gin.Context) {
	var req applyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.gigSvc.Apply(c.Request.Context(), strings.TrimSpace(c.Param("id")), strings.TrimSpace(req.PerformerID))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListGigApplicants(c *gin.Context) {
	resp, err := s.gigSvc.ListApplicants(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
