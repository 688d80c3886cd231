// Package http is the admin control surface: an application (an admission
// controller, an ops dashboard) drives peer admission and endpoint
// lifecycle over REST instead of the Media Event wire protocol the peers
// themselves speak.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v3"

	"sfucore/internal/domain"
	"sfucore/internal/engine"
	"sfucore/internal/platform/apperr"
)

// SDPNegotiator is implemented by the reference WebRTC data plane
// (dataplane/webrtc.SFU) to complete connection setup over this admin
// surface. AdminHandler depends on the interface, not the concrete type,
// so it stays testable against a bare Engine with no data plane at all.
type SDPNegotiator interface {
	CreateOffer(endpointID domain.EndpointID) (webrtc.SessionDescription, error)
	HandleAnswer(endpointID domain.EndpointID, answer webrtc.SessionDescription) error
}

// AdminHandler exposes one Engine's admission and endpoint-lifecycle
// control API over HTTP. One Engine per process in the reference
// deployment, so this handler is bound to exactly one.
type AdminHandler struct {
	eng *engine.Engine
	sdp SDPNegotiator
}

func NewAdminHandler(eng *engine.Engine) *AdminHandler {
	return &AdminHandler{eng: eng}
}

// BindSDPNegotiator wires the /offer and /answer routes to n. Left unbound,
// those routes report a 500 rather than panic, since not every deployment
// runs the reference WebRTC data plane.
func (h *AdminHandler) BindSDPNegotiator(n SDPNegotiator) {
	h.sdp = n
}

// SetupRoutes registers this handler's routes under router.
func (h *AdminHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/health", h.Health)
		api.POST("/peers", h.AddPeer)
		api.POST("/peers/:peerId/accept", h.AcceptPeer)
		api.POST("/peers/:peerId/deny", h.DenyPeer)
		api.DELETE("/peers/:peerId", h.RemovePeer)
		api.POST("/endpoints", h.AddEndpoint)
		api.DELETE("/endpoints/:endpointId", h.RemoveEndpoint)
		api.POST("/endpoints/:endpointId/crash", h.CrashEndpoint)
		api.POST("/endpoints/:endpointId/subscriptions", h.Subscribe)
		api.POST("/endpoints/:endpointId/offer", h.CreateOffer)
		api.POST("/endpoints/:endpointId/answer", h.HandleAnswer)
	}
}

func (h *AdminHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// AddPeer inserts a peer directly, bypassing the join/accept handshake —
// for admin tooling that provisions peers out of band.
func (h *AdminHandler) AddPeer(c *gin.Context) {
	var req struct {
		ID       string          `json:"id"`
		Metadata domain.Metadata `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperr.InvalidArguments(err.Error()))
		return
	}
	if req.ID == "" {
		c.Error(apperr.InvalidArguments("id is required"))
		return
	}

	h.eng.AddPeer(domain.Peer{ID: domain.PeerID(req.ID), Metadata: req.Metadata})
	c.JSON(http.StatusCreated, gin.H{"status": "created"})
}

func (h *AdminHandler) AcceptPeer(c *gin.Context) {
	peerID := domain.PeerID(c.Param("peerId"))
	if peerID == "" {
		c.Error(apperr.InvalidArguments("peerId is required"))
		return
	}
	h.eng.AcceptPeer(peerID)
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

func (h *AdminHandler) DenyPeer(c *gin.Context) {
	peerID := domain.PeerID(c.Param("peerId"))
	if peerID == "" {
		c.Error(apperr.InvalidArguments("peerId is required"))
		return
	}

	var body struct {
		Data map[string]interface{} `json:"data"`
	}
	_ = c.ShouldBindJSON(&body)

	var raw []byte
	if body.Data != nil {
		var err error
		raw, err = json.Marshal(body.Data)
		if err != nil {
			c.Error(apperr.InvalidArguments("invalid deny data"))
			return
		}
	}

	h.eng.DenyPeer(peerID, raw)
	c.JSON(http.StatusOK, gin.H{"status": "denied"})
}

func (h *AdminHandler) RemovePeer(c *gin.Context) {
	peerID := domain.PeerID(c.Param("peerId"))
	if peerID == "" {
		c.Error(apperr.InvalidArguments("peerId is required"))
		return
	}
	h.eng.RemovePeer(peerID)
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (h *AdminHandler) AddEndpoint(c *gin.Context) {
	var req struct {
		EndpointID string `json:"endpoint_id"`
		PeerID     string `json:"peer_id"`
		Node       string `json:"node"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperr.InvalidArguments(err.Error()))
		return
	}

	opts := domain.AddEndpointOpts{
		EndpointID: req.EndpointID,
		PeerID:     req.PeerID,
		Node:       req.Node,
	}
	if err := h.eng.AddEndpoint(opts); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "created"})
}

func (h *AdminHandler) RemoveEndpoint(c *gin.Context) {
	endpointID := domain.EndpointID(c.Param("endpointId"))
	if endpointID == "" {
		c.Error(apperr.InvalidArguments("endpointId is required"))
		return
	}
	h.eng.RemoveEndpoint(endpointID)
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// Subscribe implements §6's control-API Subscribe call: endpointId requests
// trackId in format, blocking until the track is ready, rejected, or the
// subscribe timeout elapses.
func (h *AdminHandler) Subscribe(c *gin.Context) {
	endpointID := domain.EndpointID(c.Param("endpointId"))
	if endpointID == "" {
		c.Error(apperr.InvalidArguments("endpointId is required"))
		return
	}

	var req struct {
		TrackID                  string `json:"track_id"`
		Format                   string `json:"format"`
		DefaultSimulcastEncoding string `json:"default_simulcast_encoding"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperr.InvalidArguments(err.Error()))
		return
	}
	if req.TrackID == "" {
		c.Error(apperr.InvalidArguments("track_id is required"))
		return
	}

	opts := domain.SubscriptionOpts{DefaultSimulcastEncoding: req.DefaultSimulcastEncoding}
	if err := h.eng.Subscribe(endpointID, domain.TrackID(req.TrackID), domain.TrackFormat(req.Format), opts); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "subscribed"})
}

// CreateOffer starts WebRTC negotiation for endpointID and returns the SDP
// offer the caller must relay to the peer's client and answer via
// HandleAnswer.
func (h *AdminHandler) CreateOffer(c *gin.Context) {
	endpointID := domain.EndpointID(c.Param("endpointId"))
	if endpointID == "" {
		c.Error(apperr.InvalidArguments("endpointId is required"))
		return
	}
	if h.sdp == nil {
		c.Error(apperr.Internal("no SDP negotiator configured for this deployment"))
		return
	}

	offer, err := h.sdp.CreateOffer(endpointID)
	if err != nil {
		c.Error(apperr.Wrap(apperr.CodeInternal, "create offer failed", err))
		return
	}
	c.JSON(http.StatusOK, offer)
}

// HandleAnswer completes WebRTC negotiation for endpointID with the SDP
// answer the caller obtained from the peer's client.
func (h *AdminHandler) HandleAnswer(c *gin.Context) {
	endpointID := domain.EndpointID(c.Param("endpointId"))
	if endpointID == "" {
		c.Error(apperr.InvalidArguments("endpointId is required"))
		return
	}
	if h.sdp == nil {
		c.Error(apperr.Internal("no SDP negotiator configured for this deployment"))
		return
	}

	var answer webrtc.SessionDescription
	if err := c.ShouldBindJSON(&answer); err != nil {
		c.Error(apperr.InvalidArguments(err.Error()))
		return
	}
	if err := h.sdp.HandleAnswer(endpointID, answer); err != nil {
		c.Error(apperr.Wrap(apperr.CodeInternal, "handle answer failed", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "connected"})
}

// CrashEndpoint runs the same crash-containment path an abnormal
// PeerConnection termination would; exposed for operator-triggered
// failover drills.
func (h *AdminHandler) CrashEndpoint(c *gin.Context) {
	endpointID := domain.EndpointID(c.Param("endpointId"))
	if endpointID == "" {
		c.Error(apperr.InvalidArguments("endpointId is required"))
		return
	}
	h.eng.EndpointCrashed(endpointID)
	c.JSON(http.StatusOK, gin.H{"status": "crashed"})
}
