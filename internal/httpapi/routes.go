// Package httpapi exposes internal/protocol.Facade over a gin REST
// surface plus a gorilla/websocket event feed, for the browser dashboard,
// CLI, and demo runners that drive the protocol as external consumers.
package httpapi

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kunal-drall/lendcircle-core/internal/protocol"
	"github.com/kunal-drall/lendcircle-core/pkg/common"
	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

// Handler binds a protocol façade and event hub to a set of gin routes.
type Handler struct {
	facade *protocol.Facade
	hub    *Hub
}

// SetupRouter builds the full gin.Engine: public health/event endpoints,
// and bearer-protected endpoints for every façade operation.
func SetupRouter(facade *protocol.Facade, hub *Hub) *gin.Engine {
	r := gin.Default()

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
	r.Use(requestIDMiddleware())

	h := &Handler{facade: facade, hub: hub}

	pub := r.Group("/api/v1")
	{
		pub.GET("/health", h.handleHealth)
		pub.GET("/stream", hub.Subscribe)
	}

	auth := r.Group("/api/v1")
	auth.Use(AuthMiddleware())
	{
		circles := auth.Group("/circles")
		{
			circles.POST("", h.handleCreateCircle)
			circles.GET("/:id", h.handleGetCircle)
			circles.POST("/:id/join", h.handleJoinCircle)
			circles.POST("/:id/advance", h.handleAdvanceRound)
		}

		auctions := auth.Group("/auctions")
		{
			auctions.POST("", h.handleOpenAuction)
			auctions.POST("/:id/bids", h.handleSubmitBid)
			auctions.POST("/:id/close", h.handleCloseAuction)
			auctions.POST("/:id/finalize", h.handleFinalizeAuction)
		}

		governance := auth.Group("/governance")
		{
			governance.POST("/proposals", h.handleCreateProposal)
			governance.POST("/proposals/:id/votes", h.handleCastVote)
			governance.POST("/proposals/:id/finalize", h.handleFinalizeProposal)
			governance.POST("/proposals/:id/execute", h.handleExecuteProposal)
		}

		bridge := auth.Group("/bridge")
		{
			bridge.POST("/transfers", h.handleInitiateTransfer)
			bridge.POST("/transfers/:id/confirm", h.handleConfirmTransfer)
			bridge.POST("/transfers/:id/execute", h.handleExecuteTransfer)
		}

		pay := auth.Group("/payments")
		{
			pay.POST("/wallets", h.handleRegisterWallet)
			pay.GET("/wallets/:ic", h.handleListWallets)
			pay.POST("/collect", h.handleCollectPayment)
		}

		risk := auth.Group("/risk")
		{
			risk.POST("/defaults", h.handleFlagDefault)
			risk.GET("/defaults/:circleId/:round", h.handleDetectDefaults)
			risk.POST("/liquidations", h.handleLiquidate)
		}
	}

	return r
}

func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "operational", "service": "lendcircle-core"})
}

// requestIDMiddleware stamps every request with a correlation ID, honoring
// one supplied by an upstream proxy and echoing it back on the response so
// CLI/dashboard clients can tie a request to its server-side log lines.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("requestID", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// --- hash/proof parsing helpers -------------------------------------------

func parseHash(s string) (types.Hash, error) {
	b, err := common.HexToBytes(s)
	if err != nil {
		return types.EmptyHash, err
	}
	return types.HashFromBytes(b), nil
}

func parseHashList(ss []string) ([]types.Hash, error) {
	out := make([]types.Hash, len(ss))
	for i, s := range ss {
		h, err := parseHash(s)
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}

func parseBytes(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return common.HexToBytes(s)
}

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	kind := "Unknown"

	if pe, ok := err.(*protocol.ProtocolError); ok {
		kind = pe.Kind.String()
		switch pe.Kind {
		case protocol.KindNotFound:
			status = http.StatusNotFound
		case protocol.KindInvalidProof, protocol.KindNullifierReused, protocol.KindIllegalState,
			protocol.KindBelowPartialThreshold, protocol.KindUnsupportedChain, protocol.KindRouteUnavailable:
			status = http.StatusBadRequest
		case protocol.KindUnauthorized:
			status = http.StatusForbidden
		case protocol.KindDeadlineExpired:
			status = http.StatusGone
		case protocol.KindInsufficientBalance, protocol.KindCapacity:
			status = http.StatusUnprocessableEntity
		case protocol.KindTimeout:
			status = http.StatusGatewayTimeout
		}
	}

	c.JSON(status, gin.H{"error": err.Error(), "kind": kind})
}

func (h *Handler) broadcastEvent(eventType string, payload interface{}) {
	if h.hub == nil {
		return
	}
	data, err := json.Marshal(gin.H{"type": eventType, "payload": payload})
	if err != nil {
		return
	}
	h.hub.Broadcast(data)
}

// --- circle handlers -------------------------------------------------------

func (h *Handler) handleCreateCircle(c *gin.Context) {
	var req struct {
		CircleID         string `json:"circleId"`
		Creator          string `json:"creator"`
		MaxMembers       int    `json:"maxMembers"`
		MonthlyAmount    uint64 `json:"monthlyAmount"`
		TotalRounds      int    `json:"totalRounds"`
		InterestRateBP   uint32 `json:"interestRateBp"`
		StakeRequirement uint64 `json:"stakeRequirement"`
		CreatedAt        uint64 `json:"createdAt"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	circleID, e1 := parseHash(req.CircleID)
	creator, e2 := parseHash(req.Creator)
	if e1 != nil || e2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid circleId or creator"})
		return
	}

	circleObj, err := h.facade.CreateCircle(c.Request.Context(), circleID, creator, types.CircleParams{
		MaxMembers:       req.MaxMembers,
		MonthlyAmount:    req.MonthlyAmount,
		TotalRounds:      req.TotalRounds,
		InterestRateBP:   req.InterestRateBP,
		StakeRequirement: req.StakeRequirement,
	}, req.CreatedAt)
	if err != nil {
		respondError(c, err)
		return
	}

	h.broadcastEvent("circle_created", circleObj)
	c.JSON(http.StatusOK, circleObj)
}

func (h *Handler) handleGetCircle(c *gin.Context) {
	circleID, err := parseHash(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	circleObj, err := h.facade.GetCircle(c.Request.Context(), circleID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, circleObj)
}

func (h *Handler) handleJoinCircle(c *gin.Context) {
	circleID, err := parseHash(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req struct {
		IC    string `json:"identityCommitment"`
		Stake uint64 `json:"stake"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ic, err := parseHash(req.IC)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identityCommitment"})
		return
	}

	circleObj, err := h.facade.JoinCircle(c.Request.Context(), circleID, ic, req.Stake)
	if err != nil {
		respondError(c, err)
		return
	}

	h.broadcastEvent("circle_joined", circleObj)
	c.JSON(http.StatusOK, circleObj)
}

func (h *Handler) handleAdvanceRound(c *gin.Context) {
	circleID, err := parseHash(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	circleObj, err := h.facade.AdvanceCircleRound(c.Request.Context(), circleID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.broadcastEvent("round_advanced", circleObj)
	c.JSON(http.StatusOK, circleObj)
}

// --- auction handlers --------------------------------------------------

func (h *Handler) handleOpenAuction(c *gin.Context) {
	var req struct {
		AuctionID string   `json:"auctionId"`
		CircleID  string   `json:"circleId"`
		Round     int      `json:"round"`
		MinBid    uint64   `json:"minBid"`
		MaxBid    uint64   `json:"maxBid"`
		Deadline  uint64   `json:"deadline"`
		Eligible  []string `json:"eligible"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	auctionID, err1 := parseHash(req.AuctionID)
	circleID, err2 := parseHash(req.CircleID)
	eligible, err3 := parseHashList(req.Eligible)
	if err1 != nil || err2 != nil || err3 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hash field"})
		return
	}

	a, err := h.facade.OpenAuction(c.Request.Context(), auctionID, circleID, req.Round, req.MinBid, req.MaxBid, req.Deadline, eligible)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) handleSubmitBid(c *gin.Context) {
	auctionID, err := parseHash(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req struct {
		Commitment       string `json:"commitment"`
		Nullifier        string `json:"nullifier"`
		MemberCommitment string `json:"memberCommitment"`
		CircleID         string `json:"circleId"`
		Round            int    `json:"round"`
		Timestamp        uint64 `json:"timestamp"`
		RangeProof       string `json:"rangeProof"`
		MembershipProof  string `json:"membershipProof"`
		FairnessProof    string `json:"fairnessProof"`
		Amount           uint64 `json:"amount"`
		Blinder          string `json:"blinder"`
		Now              uint64 `json:"now"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	commitment, e1 := parseHash(req.Commitment)
	nullifier, e2 := parseHash(req.Nullifier)
	memberCommit, e3 := parseHash(req.MemberCommitment)
	circleID, e4 := parseHash(req.CircleID)
	rangeProof, e5 := parseBytes(req.RangeProof)
	membershipProof, e6 := parseBytes(req.MembershipProof)
	fairnessProof, e7 := parseBytes(req.FairnessProof)
	blinderBytes, e8 := parseBytes(req.Blinder)
	if e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil || e6 != nil || e7 != nil || e8 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hash or proof field"})
		return
	}

	bid := &types.Bid{
		Commitment:       commitment,
		Nullifier:        nullifier,
		MemberCommitment: memberCommit,
		CircleID:         circleID,
		Round:            req.Round,
		Timestamp:        req.Timestamp,
		RangeProof:       rangeProof,
		MembershipProof:  membershipProof,
		FairnessProof:    fairnessProof,
		Amount:           req.Amount,
		Blinder:          new(big.Int).SetBytes(blinderBytes),
	}

	a, err := h.facade.SubmitBid(c.Request.Context(), auctionID, bid, req.Now)
	if err != nil {
		respondError(c, err)
		return
	}
	h.broadcastEvent("bid_submitted", gin.H{"auctionId": c.Param("id"), "auction": a})
	c.JSON(http.StatusOK, a)
}

func (h *Handler) handleCloseAuction(c *gin.Context) {
	auctionID, err := parseHash(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	a, err := h.facade.CloseAuction(c.Request.Context(), auctionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) handleFinalizeAuction(c *gin.Context) {
	auctionID, err := parseHash(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	result, err := h.facade.FinalizeAuction(c.Request.Context(), auctionID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.broadcastEvent("auction_finalized", result)
	c.JSON(http.StatusOK, result)
}

// --- governance handlers -------------------------------------------------

func (h *Handler) handleCreateProposal(c *gin.Context) {
	var req struct {
		Type          uint8  `json:"type"`
		Proposer      string `json:"proposer"`
		CircleID      string `json:"circleId"`
		Payload       string `json:"payload"`
		CreatedAt     uint64 `json:"createdAt"`
		EligibleCount int    `json:"eligibleCount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	proposer, e1 := parseHash(req.Proposer)
	circleID, e2 := parseHash(req.CircleID)
	payload, e3 := parseBytes(req.Payload)
	if e1 != nil || e2 != nil || e3 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid field"})
		return
	}

	p, err := h.facade.CreateProposal(c.Request.Context(), types.ProposalType(req.Type), proposer, circleID, payload, req.CreatedAt, req.EligibleCount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) handleCastVote(c *gin.Context) {
	proposalID, err := parseHash(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req struct {
		Voter      string `json:"voter"`
		VoteCommit string `json:"voteCommit"`
		Nullifier  string `json:"nullifier"`
		VoteProof  string `json:"voteProof"`
		Choice     uint8  `json:"choice"`
		Timestamp  uint64 `json:"timestamp"`
		Now        uint64 `json:"now"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	voter, e0 := parseHash(req.Voter)
	voteCommit, e1 := parseHash(req.VoteCommit)
	nullifier, e2 := parseHash(req.Nullifier)
	voteProof, e3 := parseBytes(req.VoteProof)
	if e0 != nil || e1 != nil || e2 != nil || e3 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid field"})
		return
	}

	vote := &types.Vote{
		VoteCommit: voteCommit,
		Nullifier:  nullifier,
		Choice:     types.VoteChoice(req.Choice),
		ProposalID: proposalID,
		Timestamp:  req.Timestamp,
	}

	if err := h.facade.CastVote(c.Request.Context(), proposalID, vote, voteProof, voter, req.Now); err != nil {
		respondError(c, err)
		return
	}
	h.broadcastEvent("vote_cast", gin.H{"proposalId": c.Param("id")})
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

func (h *Handler) handleFinalizeProposal(c *gin.Context) {
	proposalID, err := parseHash(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req struct {
		Now uint64 `json:"now"`
	}
	_ = c.ShouldBindJSON(&req)

	p, err := h.facade.FinalizeProposal(c.Request.Context(), proposalID, req.Now)
	if err != nil {
		respondError(c, err)
		return
	}
	h.broadcastEvent("proposal_finalized", p)
	c.JSON(http.StatusOK, p)
}

func (h *Handler) handleExecuteProposal(c *gin.Context) {
	proposalID, err := parseHash(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req struct {
		Now uint64 `json:"now"`
	}
	_ = c.ShouldBindJSON(&req)

	p, err := h.facade.ExecuteProposal(c.Request.Context(), proposalID, req.Now)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// --- bridge handlers -------------------------------------------------------

func (h *Handler) handleInitiateTransfer(c *gin.Context) {
	var req struct {
		TransferID      string `json:"transferId"`
		Source          string `json:"source"`
		Target          string `json:"target"`
		Amount          uint64 `json:"amount"`
		RecipientCommit string `json:"recipientCommit"`
		Mode            uint8  `json:"mode"`
		CreatedAt       uint64 `json:"createdAt"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	transferID, e1 := parseHash(req.TransferID)
	recipientCommit, e2 := parseHash(req.RecipientCommit)
	if e1 != nil || e2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid field"})
		return
	}

	t, err := h.facade.InitiateBridgeTransfer(c.Request.Context(), transferID, types.ChainID(req.Source), types.ChainID(req.Target), req.Amount, recipientCommit, types.RouteMode(req.Mode), req.CreatedAt)
	if err != nil {
		respondError(c, err)
		return
	}
	h.broadcastEvent("transfer_initiated", t)
	c.JSON(http.StatusOK, t)
}

func (h *Handler) handleConfirmTransfer(c *gin.Context) {
	transferID, err := parseHash(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req struct {
		Nullifier string `json:"nullifier"`
		Proof     string `json:"proof"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	nullifier, e1 := parseHash(req.Nullifier)
	proof, e2 := parseBytes(req.Proof)
	if e1 != nil || e2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid field"})
		return
	}

	t, err := h.facade.ConfirmBridgeTransfer(c.Request.Context(), transferID, nullifier, proof)
	if err != nil {
		respondError(c, err)
		return
	}
	h.broadcastEvent("transfer_confirmed", t)
	c.JSON(http.StatusOK, t)
}

func (h *Handler) handleExecuteTransfer(c *gin.Context) {
	transferID, err := parseHash(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	t, err := h.facade.ExecuteBridgeTransfer(c.Request.Context(), transferID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.broadcastEvent("transfer_executed", t)
	c.JSON(http.StatusOK, t)
}

// --- payment handlers --------------------------------------------------

func (h *Handler) handleRegisterWallet(c *gin.Context) {
	var req struct {
		IC             string `json:"identityCommitment"`
		Chain          string `json:"chain"`
		BalanceCommit  string `json:"balanceCommit"`
		OwnershipProof string `json:"ownershipProof"`
		VerifiedAt     uint64 `json:"verifiedAt"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ic, e1 := parseHash(req.IC)
	balanceCommit, e2 := parseHash(req.BalanceCommit)
	proof, e3 := parseBytes(req.OwnershipProof)
	if e1 != nil || e2 != nil || e3 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid field"})
		return
	}

	w, err := h.facade.RegisterWallet(c.Request.Context(), ic, types.ChainID(req.Chain), balanceCommit, proof, req.VerifiedAt)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h *Handler) handleListWallets(c *gin.Context) {
	ic, err := parseHash(c.Param("ic"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	wallets, err := h.facade.ListWallets(c.Request.Context(), ic)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, wallets)
}

func (h *Handler) handleCollectPayment(c *gin.Context) {
	var req struct {
		Contributor     string `json:"contributor"`
		CircleID        string `json:"circleId"`
		Round           int    `json:"round"`
		RequiredAmount  uint64 `json:"requiredAmount"`
		RecipientCommit string `json:"recipientCommit"`
		AllowPartial    bool   `json:"allowPartial"`
		MaxRetries      int    `json:"maxRetries"`
		Priority        int    `json:"priority"`
		Contributions   []struct {
			Chain        string `json:"chain"`
			Amount       uint64 `json:"amount"`
			BalanceProof string `json:"balanceProof"`
		} `json:"contributions"`
		Reason string `json:"reason"`
		Now    uint64 `json:"now"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	contributor, e1 := parseHash(req.Contributor)
	circleID, e2 := parseHash(req.CircleID)
	recipientCommit, e3 := parseHash(req.RecipientCommit)
	if e1 != nil || e2 != nil || e3 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid field"})
		return
	}

	contributions := make([]types.ChainContribution, 0, len(req.Contributions))
	for _, rc := range req.Contributions {
		proof, err := parseBytes(rc.BalanceProof)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid field"})
			return
		}
		contributions = append(contributions, types.ChainContribution{
			ChainID:      types.ChainID(rc.Chain),
			Amount:       rc.Amount,
			BalanceProof: proof,
		})
	}

	params := types.CollectionParams{
		Contributor:     contributor,
		CircleID:        circleID,
		Round:           req.Round,
		RequiredAmount:  req.RequiredAmount,
		RecipientCommit: recipientCommit,
		Contributions:   contributions,
		AllowPartial:    req.AllowPartial,
		MaxRetries:      req.MaxRetries,
		Priority:        req.Priority,
	}

	result, err := h.facade.CollectPayment(c.Request.Context(), params, types.RetryReason(req.Reason), req.Now)
	if err != nil {
		respondError(c, err)
		return
	}
	h.broadcastEvent("payment_collected", result)
	c.JSON(http.StatusOK, result)
}

// --- risk handlers -----------------------------------------------------

func (h *Handler) handleFlagDefault(c *gin.Context) {
	var req struct {
		MemberSecret   string `json:"memberSecret"`
		CircleID       string `json:"circleId"`
		Round          int    `json:"round"`
		SeverityCommit string `json:"severityCommit"`
		Proof          string `json:"proof"`
		Now            uint64 `json:"now"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	secret, e1 := parseBytes(req.MemberSecret)
	circleID, e2 := parseHash(req.CircleID)
	severityCommit, e3 := parseHash(req.SeverityCommit)
	proof, e4 := parseBytes(req.Proof)
	if e1 != nil || e2 != nil || e3 != nil || e4 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid field"})
		return
	}

	flag, err := h.facade.FlagDefault(c.Request.Context(), secret, circleID, req.Round, severityCommit, proof, req.Now)
	if err != nil {
		respondError(c, err)
		return
	}
	h.broadcastEvent("default_flagged", gin.H{"circleId": req.CircleID, "round": req.Round})
	c.JSON(http.StatusOK, flag)
}

func (h *Handler) handleDetectDefaults(c *gin.Context) {
	circleID, err := parseHash(c.Param("circleId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid circleId"})
		return
	}
	var round int
	if _, err := fmt.Sscan(c.Param("round"), &round); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid round"})
		return
	}

	result, err := h.facade.DetectDefaults(c.Request.Context(), circleID, round)
	if err != nil {
		respondError(c, err)
		return
	}
	if result.RequiresIntervention {
		h.broadcastEvent("intervention_required", gin.H{"circleId": c.Param("circleId"), "round": round})
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) handleLiquidate(c *gin.Context) {
	var req struct {
		OrderID             string `json:"orderId"`
		CircleID            string `json:"circleId"`
		TargetNullifier     string `json:"targetNullifier"`
		EncryptedReason     string `json:"encryptedReason"`
		Amount              uint64 `json:"amount"`
		JustificationProof  string `json:"justificationProof"`
		ExecutionDeadline   uint64 `json:"executionDeadline"`
		Now                 uint64 `json:"now"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	orderID, e1 := parseHash(req.OrderID)
	circleID, e2 := parseHash(req.CircleID)
	targetNullifier, e3 := parseHash(req.TargetNullifier)
	encryptedReason, e4 := parseBytes(req.EncryptedReason)
	proof, e5 := parseBytes(req.JustificationProof)
	if e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid field"})
		return
	}

	order, err := h.facade.Liquidate(c.Request.Context(), orderID, circleID, targetNullifier, encryptedReason, req.Amount, proof, req.ExecutionDeadline, req.Now)
	if err != nil {
		respondError(c, err)
		return
	}
	h.broadcastEvent("liquidation_ordered", order)
	c.JSON(http.StatusOK, order)
}
