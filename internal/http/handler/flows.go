package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/edirooss/streambed-server/internal/domain/flow"
	"github.com/edirooss/streambed-server/internal/domain/layout"
	"github.com/edirooss/streambed-server/internal/http/middleware"
	"github.com/edirooss/streambed-server/internal/infrastructure/logring"
	"github.com/edirooss/streambed-server/pkg/avurl"
)

// DefaultLogLines is returned by GetFlowLogs without ?lines.
const DefaultLogLines = 100

// FlowStore is the read side of the configuration store.
type FlowStore interface {
	Export() (flow.GlobalConfig, []flow.FlowConfig)
}

// StatusSource yields the last reported status of a flow.
type StatusSource interface {
	Get(index int) (flow.Status, bool)
}

// LogSource yields a flow's engine log ring, if it ever ran.
type LogSource interface {
	Lookup(index int) (*logring.Ring, bool)
}

// FlowView is a flow's configuration joined with its runtime status. The
// location's password is masked and the matrix is the effective placement.
type FlowView struct {
	Number int             `json:"number"`
	Config flow.FlowConfig `json:"config"`
	State  flow.State      `json:"state,omitempty"`
	flow.Counters
}

// FlowsHandler provides read-only HTTP handlers for flows.
//
// Supported operations:
//   - GET /flows                → global configuration and every flow
//   - GET /flows/{number}       → one flow
//   - GET /flows/{number}/logs  → tail of the flow's engine output
type FlowsHandler struct {
	log    *zap.Logger
	store  FlowStore
	status StatusSource
	logs   LogSource
}

// NewFlowsHandler constructs a FlowsHandler instance.
func NewFlowsHandler(log *zap.Logger, store FlowStore, status StatusSource, logs LogSource) *FlowsHandler {
	return &FlowsHandler{
		log:    log.Named("flows"),
		store:  store,
		status: status,
		logs:   logs,
	}
}

func (h *FlowsHandler) view(index int, g flow.GlobalConfig, cfg flow.FlowConfig) FlowView {
	cfg.Location = avurl.Redact(cfg.Location)
	cfg.Matrix = layout.Placement(index, g, cfg)
	v := FlowView{Number: index, Config: cfg}
	if st, ok := h.status.Get(index); ok {
		v.State, v.Counters = st.State, st.Counters
	}
	return v
}

// GetFlowList handles GET /flows.
//
// Behavior:
//   - Returns the global configuration and all flows within the flow count.
//   - Adds `X-Total-Count` header.
//
// Status Codes:
//   - 200 OK
func (h *FlowsHandler) GetFlowList(c *gin.Context) {
	g, flows := h.store.Export()
	views := make([]FlowView, len(flows))
	for i, cfg := range flows {
		views[i] = h.view(i, g, cfg)
	}
	c.Header("X-Total-Count", strconv.Itoa(len(views)))
	c.JSON(http.StatusOK, gin.H{"global": g, "flows": views})
}

// GetFlow handles GET /flows/{number}.
//
// Status Codes:
//   - 200 OK → JSON of the flow
//   - 400 Bad Request → invalid number (middleware)
//   - 404 Not Found → number at or above the flow count
func (h *FlowsHandler) GetFlow(c *gin.Context) {
	n := middleware.FlowNumber(c)
	g, flows := h.store.Export()
	if n >= len(flows) {
		c.JSON(http.StatusNotFound, gin.H{"message": "flow not found"})
		return
	}
	c.JSON(http.StatusOK, h.view(n, g, flows[n]))
}

// GetFlowLogs handles GET /flows/{number}/logs?lines=N.
//
// Behavior:
//   - Returns up to N of the most recent engine output lines, oldest first.
//   - N defaults to DefaultLogLines and is capped at logring.Capacity.
//
// Status Codes:
//   - 200 OK → {"lines": [...]}
//   - 400 Bad Request → invalid number or lines
//   - 404 Not Found → the flow never ran
func (h *FlowsHandler) GetFlowLogs(c *gin.Context) {
	n := middleware.FlowNumber(c)
	lines := DefaultLogLines
	if s := c.Query("lines"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "lines must be a positive integer"})
			return
		}
		lines = min(v, logring.Capacity)
	}

	ring, ok := h.logs.Lookup(n)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "no logs for flow"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lines": ring.Tail(lines)})
}
