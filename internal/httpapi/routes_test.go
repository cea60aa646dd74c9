package httpapi

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kunal-drall/lendcircle-core/internal/auction"
	"github.com/kunal-drall/lendcircle-core/internal/circle"
	"github.com/kunal-drall/lendcircle-core/internal/governance"
	"github.com/kunal-drall/lendcircle-core/internal/membership"
	"github.com/kunal-drall/lendcircle-core/internal/payments"
	"github.com/kunal-drall/lendcircle-core/internal/privacy"
	"github.com/kunal-drall/lendcircle-core/internal/protocol"
	"github.com/kunal-drall/lendcircle-core/internal/risk"
	"github.com/kunal-drall/lendcircle-core/internal/trust"
	"github.com/kunal-drall/lendcircle-core/internal/zkp"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	facade, err := protocol.NewFacade(context.Background(), protocol.Config{
		CircleStore:               circle.NewInMemoryStore(),
		MemberStore:               membership.NewInMemoryStore(),
		TrustStore:                trust.NewInMemoryStore(),
		AuctionStore:              auction.NewInMemoryStore(),
		GovernanceStore:           governance.NewInMemoryStore(),
		PoolStore:                 privacy.NewInMemoryPoolStore(),
		TransferStore:             privacy.NewInMemoryTransferStore(),
		WalletStore:               payments.NewInMemoryWalletStore(),
		HistoryStore:              payments.NewInMemoryHistoryStore(),
		DefaultStore:              risk.NewInMemoryDefaultStore(),
		LiquidationStore:          risk.NewInMemoryLiquidationStore(),
		PenaltyStore:              risk.NewInMemoryPenaltyStore(),
		NullifierStore:            zkp.NewInMemoryNullifierStore(),
		GovernanceExecutionDelay:  3600,
		RiskInterventionThreshold: 20,
	})
	if err != nil {
		t.Fatalf("NewFacade: %v", err)
	}
	return SetupRouter(facade, NewHub())
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var parsed map[string]interface{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
			t.Fatalf("unmarshal response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, parsed
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)
	rec, body := doJSON(t, router, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["status"] != "operational" {
		t.Fatalf("unexpected health payload: %v", body)
	}
}

func TestCreateAndGetCircle(t *testing.T) {
	router := newTestRouter(t)
	circleID := hex.EncodeToString([]byte("circle-a"))

	rec, body := doJSON(t, router, http.MethodPost, "/api/v1/circles", map[string]interface{}{
		"circleId":         circleID,
		"maxMembers":       5,
		"monthlyAmount":    100,
		"totalRounds":      5,
		"interestRateBp":   500,
		"stakeRequirement": 50,
		"createdAt":        1000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create circle: expected 200, got %d (%v)", rec.Code, body)
	}

	rec, body = doJSON(t, router, http.MethodGet, "/api/v1/circles/"+circleID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get circle: expected 200, got %d (%v)", rec.Code, body)
	}
}

func TestGetCircleNotFoundReturns404(t *testing.T) {
	router := newTestRouter(t)
	rec, body := doJSON(t, router, http.MethodGet, "/api/v1/circles/"+hex.EncodeToString([]byte("missing")), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d (%v)", rec.Code, body)
	}
}

func TestCreateCircleRejectsInvalidHash(t *testing.T) {
	router := newTestRouter(t)
	rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/circles", map[string]interface{}{
		"circleId": "not-hex",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
