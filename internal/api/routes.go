package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zulandar/reputation/internal/events"
	"github.com/zulandar/reputation/internal/ledger"
	"github.com/zulandar/reputation/internal/record"
)

// CallerHeader carries the hex identity of the requesting principal. The
// API does not authenticate it: author-only revocation and per-caller rate
// limits hold only when a trusted gateway sets or verifies this header.
const CallerHeader = "X-Caller-Id"

type handlers struct {
	ledger  *ledger.Ledger
	outbox  *events.Outbox
	limiter *callerLimiter
	logger  *slog.Logger
}

// registerRoutes sets up all API routes on the given router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	h := &handlers{
		ledger:  opts.Ledger,
		outbox:  opts.Outbox,
		limiter: newCallerLimiter(opts.ResponseRate, opts.ResponseBurst),
		logger:  opts.Logger,
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "store": h.ledger.Store().Name()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))

	v1 := router.Group("/v1")
	v1.GET("/events", handleEvents(opts.Bus))
	v1.GET("/events/log", h.eventLog)

	agent := v1.Group("/agents/:agent")
	agent.GET("/reputation", h.reputation)
	agent.GET("/clients/:client/next-index", h.nextIndex)
	agent.POST("/feedback", h.submit)
	agent.GET("/feedback/:client/:index", h.feedback)
	agent.POST("/feedback/:client/:index/revoke", h.revoke)
	agent.GET("/feedback/:client/:index/responses", h.responses)
	agent.POST("/feedback/:client/:index/responses", h.respond)
	agent.GET("/feedback/:client/:index/responses/:response", h.response)
}

type submitRequest struct {
	FeedbackIndex uint64               `json:"feedback_index"`
	Score         int                  `json:"score"`
	Tag1          record.Bytes32       `json:"tag1"`
	Tag2          record.Bytes32       `json:"tag2"`
	FileURI       string               `json:"file_uri"`
	FileHash      record.Bytes32       `json:"file_hash"`
	Auth          *ledger.FeedbackAuth `json:"auth,omitempty"`
}

type respondRequest struct {
	ResponseURI  string         `json:"response_uri"`
	ResponseHash record.Bytes32 `json:"response_hash"`
}

func (h *handlers) submit(c *gin.Context) {
	agentID, ok := agentParam(c)
	if !ok {
		return
	}
	caller, ok := callerHeader(c)
	if !ok {
		return
	}
	var body submitRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid body: "+err.Error())
		return
	}

	fb, err := h.ledger.Submit(c.Request.Context(), ledger.SubmitFeedback{
		AgentID:       agentID,
		ClientID:      caller,
		FeedbackIndex: body.FeedbackIndex,
		Score:         body.Score,
		Tag1:          body.Tag1,
		Tag2:          body.Tag2,
		FileURI:       body.FileURI,
		FileHash:      body.FileHash,
		Auth:          body.Auth,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, fb)
}

func (h *handlers) revoke(c *gin.Context) {
	agentID, client, index, ok := feedbackParams(c)
	if !ok {
		return
	}
	caller, ok := callerHeader(c)
	if !ok {
		return
	}

	fb, err := h.ledger.Revoke(c.Request.Context(), ledger.RevokeFeedback{
		AgentID:       agentID,
		ClientID:      client,
		FeedbackIndex: index,
		Caller:        caller,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, fb)
}

func (h *handlers) respond(c *gin.Context) {
	agentID, client, index, ok := feedbackParams(c)
	if !ok {
		return
	}
	caller, ok := callerHeader(c)
	if !ok {
		return
	}
	if !h.limiter.allow(caller.String()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "response rate exceeded", "code": "rate_limited"})
		return
	}
	var body respondRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid body: "+err.Error())
		return
	}

	resp, err := h.ledger.Respond(c.Request.Context(), ledger.AppendResponse{
		AgentID:       agentID,
		ClientID:      client,
		FeedbackIndex: index,
		ResponseURI:   body.ResponseURI,
		ResponseHash:  body.ResponseHash,
		Responder:     caller,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *handlers) reputation(c *gin.Context) {
	agentID, ok := agentParam(c)
	if !ok {
		return
	}
	rep, err := h.ledger.Reputation(c.Request.Context(), agentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *handlers) nextIndex(c *gin.Context) {
	agentID, ok := agentParam(c)
	if !ok {
		return
	}
	client, ok := identityParam(c, "client")
	if !ok {
		return
	}
	next, err := h.ledger.NextFeedbackIndex(c.Request.Context(), agentID, client)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent_id": agentID, "client_id": client, "next_index": next})
}

func (h *handlers) feedback(c *gin.Context) {
	agentID, client, index, ok := feedbackParams(c)
	if !ok {
		return
	}
	fb, err := h.ledger.Feedback(c.Request.Context(), agentID, client, index)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, fb)
}

func (h *handlers) responses(c *gin.Context) {
	agentID, client, index, ok := feedbackParams(c)
	if !ok {
		return
	}
	list, err := h.ledger.Responses(c.Request.Context(), agentID, client, index)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"responses": list, "count": len(list)})
}

func (h *handlers) response(c *gin.Context) {
	agentID, client, index, ok := feedbackParams(c)
	if !ok {
		return
	}
	ri, ok := uintParam(c, "response")
	if !ok {
		return
	}
	resp, err := h.ledger.Response(c.Request.Context(), agentID, client, index, ri)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) eventLog(c *gin.Context) {
	if h.outbox == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event log is not enabled", "code": "outbox_disabled"})
		return
	}
	var after uint64
	if s := c.Query("after"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			badRequest(c, "after must be an unsigned integer")
			return
		}
		after = v
	}
	limit := 100
	if s := c.Query("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = v
	}

	stored, err := h.outbox.Replay(c.Request.Context(), after, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	next := after
	if len(stored) > 0 {
		next = stored[len(stored)-1].Seq
	}
	c.JSON(http.StatusOK, gin.H{"events": stored, "next": next})
}

// fail writes err as a JSON error and logs server-side failures.
func (h *handlers) fail(c *gin.Context, err error) {
	if status, _ := statusFor(err); status == http.StatusInternalServerError {
		h.logger.Error("request failed", "route", c.FullPath(), "error", err)
	}
	writeError(c, err)
}

func callerHeader(c *gin.Context) (record.Identity, bool) {
	raw := c.GetHeader(CallerHeader)
	if raw == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": CallerHeader + " header is required", "code": "missing_caller"})
		return record.Identity{}, false
	}
	id, err := record.ParseIdentity(raw)
	if err != nil {
		badRequest(c, "invalid "+CallerHeader+": "+err.Error())
		return record.Identity{}, false
	}
	return id, true
}

func agentParam(c *gin.Context) (uint64, bool) {
	return uintParam(c, "agent")
}

func uintParam(c *gin.Context, name string) (uint64, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		badRequest(c, name+" must be an unsigned integer")
		return 0, false
	}
	return v, true
}

func identityParam(c *gin.Context, name string) (record.Identity, bool) {
	id, err := record.ParseIdentity(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name+": "+err.Error())
		return record.Identity{}, false
	}
	return id, true
}

func feedbackParams(c *gin.Context) (agentID uint64, client record.Identity, index uint64, ok bool) {
	if agentID, ok = agentParam(c); !ok {
		return
	}
	if client, ok = identityParam(c, "client"); !ok {
		return
	}
	index, ok = uintParam(c, "index")
	return
}
