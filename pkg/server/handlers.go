package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"campus-crawler/pkg/utils"
)

// scrape runs one crawl synchronously. The run continues if the client goes away.
func (s *Server) scrape(c *gin.Context) {
	res, err := s.runner.Run(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, utils.ErrRunInProgress) {
			status = http.StatusConflict
		}
		_ = c.Error(err)
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}

	if !res.Success {
		if res.Err != nil {
			_ = c.Error(res.Err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": res.Error})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     res.Message,
		"totalRoutes": res.TotalRoutes,
	})
}

// status reports the active run, if any, and the last finished one.
func (s *Server) status(c *gin.Context) {
	body := gin.H{"running": false}
	if progress, ok := s.runner.Progress(); ok {
		body["running"] = true
		body["progress"] = progress
	}
	if last := s.runner.LastResult(); last != nil {
		body["last_run"] = last
	}
	c.JSON(http.StatusOK, body)
}

// corpus serves the current corpus file.
func (s *Server) corpus(c *gin.Context) {
	info, err := os.Stat(s.corpusPath)
	if err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "corpus not found, run a scrape first"})
		return
	}
	c.Header("Content-Type", "application/json; charset=utf-8")
	c.File(s.corpusPath)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	})
}
