package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	gigdomain "github.com/stagewire/stagewire/internal/gig/domain"
	gigtemplatedomain "github.com/stagewire/stagewire/internal/gigtemplate/domain"
)

type createTemplateRequest struct {
	VenueID         string                `json:"venue_id"`
	Title           string                `json:"title"`
	GigDate         string                `json:"gig_date"`
	StartTime       string                `json:"start_time"`
	DurationMinutes int                   `json:"duration_minutes"`
	Visibility      string                `json:"visibility,omitempty"`
	FeeAmount       int64                 `json:"fee_amount"`
	Currency        string                `json:"currency,omitempty"`
	Recurrence      *gigdomain.Recurrence `json:"recurrence,omitempty"`
	Metadata        map[string]any        `json:"metadata,omitempty"`
}

func (s *Server) CreateTemplate(c *gin.Context) {
	var req createTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.templateSvc.Create(c.Request.Context(), gigtemplatedomain.CreateTemplateRequest{
		VenueID:         strings.TrimSpace(req.VenueID),
		Title:           req.Title,
		GigDate:         strings.TrimSpace(req.GigDate),
		StartTime:       strings.TrimSpace(req.StartTime),
		DurationMinutes: req.DurationMinutes,
		Visibility:      gigdomain.Visibility(strings.TrimSpace(req.Visibility)),
		FeeAmount:       req.FeeAmount,
		Currency:        strings.TrimSpace(req.Currency),
		Recurrence:      req.Recurrence,
		Metadata:        req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTemplateByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.templateSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteTemplate(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := s.templateSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": id}})
}

type instantiateTemplateRequest struct {
	GigDate string `json:"gig_date,omitempty"`
}

func (s *Server) InstantiateTemplate(c *gin.Context) {
	var req instantiateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.templateSvc.Instantiate(c.Request.Context(), strings.TrimSpace(c.Param("id")), gigtemplatedomain.InstantiateRequest{
		GigDate: strings.TrimSpace(req.GigDate),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
