package dashboard

import (
	"net/http"
	"strconv"

	"github.com/arlobright/signalbox/internal/reconcile"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/api/health", handleHealth(opts.DB))
	router.GET("/api/status", handleStatus(opts.Status))
	router.GET("/api/agents", handleAgents(opts.DB))
	router.GET("/api/defaults", handleDefaults(opts.DB))
	router.GET("/api/jobs", handleJobs(opts.DB))
	router.GET("/api/messages", handleMessages(opts.DB))
}

func handleHealth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		depth, err := QueueDepth(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "queue_depth": depth})
	}
}

func handleStatus(status func() []reconcile.Status) gin.HandlerFunc {
	return func(c *gin.Context) {
		if status == nil {
			c.JSON(http.StatusOK, gin.H{"reconcilers": []reconcile.Status{}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"reconcilers": status()})
	}
}

func handleAgents(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := AgentList(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"agents": rows})
	}
}

func handleDefaults(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := DefaultList(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"defaults": rows})
	}
}

func handleJobs(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := JobList(db, JobFilters{
			Owner:  c.Query("owner"),
			Status: c.Query("status"),
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"jobs": rows})
	}
}

func handleMessages(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		rows, err := MessageList(db, c.Query("agent"), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": rows})
	}
}
