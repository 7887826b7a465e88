package api

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"reviewbot/monitor"
	"reviewbot/types"
)

// RegisterMonitorRoutes registers the event intake and pending-status
// endpoints.
func RegisterMonitorRoutes(r *gin.Engine, m *monitor.Monitor) {
	r.POST("/process", handleProcessEvent(m))
	r.GET("/pending", handlePending(m))
	r.POST("/force-process", handleForceProcess(m))
}

// PushEnvelope is the push-subscription wrapper some notification relays
// put around the event: the actual event JSON is base64 in message.data.
type PushEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
}

// ForceProcessRequest asks for an immediate aggregation run.
type ForceProcessRequest struct {
	SearchQuery  string `json:"search_query" binding:"required"`
	MinCompleted int    `json:"min_completed"`
}

// handleProcessEvent accepts one storage notification, either wrapped in
// a push envelope or as a bare event object. The response always carries
// the outcome; a malformed body is the only client error.
func handleProcessEvent(m *monitor.Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "read body: " + err.Error()})
			return
		}

		ev, err := decodeEvent(body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		outcome := m.HandleEvent(c.Request.Context(), ev)
		c.JSON(http.StatusOK, outcome)
	}
}

// decodeEvent unwraps the push envelope when present, otherwise treats
// the body as the event itself.
func decodeEvent(body []byte) (types.ObjectEvent, error) {
	var env PushEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Message.Data != "" {
		decoded, err := base64.StdEncoding.DecodeString(env.Message.Data)
		if err != nil {
			return types.ObjectEvent{}, err
		}
		var ev types.ObjectEvent
		if err := json.Unmarshal(decoded, &ev); err != nil {
			return types.ObjectEvent{}, err
		}
		return ev, nil
	}

	var ev types.ObjectEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return types.ObjectEvent{}, err
	}
	return ev, nil
}

// handlePending lists every group still waiting, with live completion.
func handlePending(m *monitor.Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		infos, err := m.Pending(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "pending registry: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"pending_count": len(infos),
			"pending":       infos,
		})
	}
}

// handleForceProcess runs aggregation for one group right now, skipping
// the wait window. min_completed defaults to 1 so an empty group cannot
// be forced.
func handleForceProcess(m *monitor.Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ForceProcessRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.MinCompleted <= 0 {
			req.MinCompleted = 1
		}

		log.Printf("api: force-process requested for %q (min completed %d)", req.SearchQuery, req.MinCompleted)

		report, res, err := m.ForceProcess(c.Request.Context(), req.SearchQuery, req.MinCompleted)
		if err != nil {
			status := http.StatusInternalServerError
			if strings.Contains(err.Error(), "not enough completed") ||
				strings.Contains(err.Error(), "search query is required") {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{
				"error":             err.Error(),
				"completion_status": res,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":          true,
			"search_query":     report.SearchQuery,
			"completed_videos": res.CompletedVideos,
			"total_videos":     res.TotalVideos,
			"report":           report,
		})
	}
}
