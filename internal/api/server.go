// Package api exposes the stored reports over a thin read-only HTTP
// surface: list the latest report set for a date, or fetch one
// report's JSON content.
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	errx "github.com/terra-hawk/smartfarm/internal/core/error"
	"github.com/terra-hawk/smartfarm/internal/farm/model"
	"github.com/terra-hawk/smartfarm/internal/farm/report"
	logx "github.com/terra-hawk/smartfarm/pkg/logger"
)

// Server serves the reports read API.
type Server struct {
	reader *report.Reader
	now    func() time.Time
}

func NewServer(reader *report.Reader) *Server {
	return &Server{reader: reader, now: time.Now}
}

// Router builds the gin engine with CORS suitable for the dashboard
// frontend.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
	}))

	r.GET("/reports/:farm_id", s.listReports)
	r.GET("/reports/:farm_id/:report_type", s.fetchReport)
	return r
}

// listReports answers GET /reports/:farm_id[?date=YYYY-MM-DD] with the
// newest stored report of each known type. An empty day is a normal
// 200, not an error: the frontend polls before the daily run finishes.
func (s *Server) listReports(c *gin.Context) {
	farmID := c.Param("farm_id")
	date := c.DefaultQuery("date", s.now().UTC().Format("2006-01-02"))

	listings, err := s.reader.Latest(c.Request.Context(), farmID, date)
	if err != nil {
		logx.Error().Str("farm_id", farmID).Err(err).Msg("report listing failed")
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if listings == nil {
		listings = []report.Listing{}
	}

	resp := gin.H{
		"farm_id":           farmID,
		"date":              date,
		"reports_available": len(listings) > 0,
		"reports":           listings,
	}
	if len(listings) == 0 {
		resp["message"] = "No reports generated yet for " + date
	}
	c.JSON(http.StatusOK, resp)
}

// fetchReport answers GET /reports/:farm_id/:report_type[?date=] with
// the newest report content of one type.
func (s *Server) fetchReport(c *gin.Context) {
	farmID := c.Param("farm_id")
	rt := model.ReportType(c.Param("report_type"))
	date := c.DefaultQuery("date", s.now().UTC().Format("2006-01-02"))

	if !rt.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_report_type",
			"message": "unknown report type: " + rt.String(),
		})
		return
	}

	fetched, err := s.reader.Fetch(c.Request.Context(), farmID, rt, date)
	if err != nil {
		if nf, ok := err.(report.ErrNotFound); ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error":       "report_not_found",
				"message":     nf.Error(),
				"farm_id":     farmID,
				"report_type": rt.String(),
				"date":        date,
			})
			return
		}
		logx.Error().Str("farm_id", farmID).Str("report_type", rt.String()).Err(err).Msg("report fetch failed")
		c.JSON(statusFor(err), gin.H{"error": "read_failed", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"farm_id":       farmID,
		"report_type":   rt.String(),
		"date":          date,
		"key":           fetched.Key,
		"size":          fetched.Size,
		"last_modified": fetched.LastModified,
		"content":       fetched.Content,
	})
}

func statusFor(err error) int {
	if errx.IsNotFound(err) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
