package testutils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rongwang/fabricstock/internal/api"
	"github.com/rongwang/fabricstock/internal/models"
	"github.com/rongwang/fabricstock/internal/repository"
	"github.com/rongwang/fabricstock/internal/service"
	"github.com/rongwang/fabricstock/internal/utils"
)

const testJWTSecret = "test-secret-key"

// TestContext holds all dependencies for tests
type TestContext struct {
	Router      *gin.Engine
	Repository  *repository.MemoryRepository
	Service     *service.DefaultService
	JWTSecret   []byte
	TestUserID  string
	TestUserJWT string
	// ReceiptID is a seeded receipt with stock for colors 1 and 2
	ReceiptID int64
}

// SetupTestContext creates a router backed by a seeded in-memory repository
func SetupTestContext(t *testing.T) *TestContext {
	t.Helper()

	repo := repository.NewMemoryRepository()
	receiptID := seedInventory(repo)

	svc := service.NewDefaultService(repo, service.Options{
		IdleTTL: time.Hour,
		Logger:  utils.NopLogger(),
	})
	handler := api.NewHandler(svc, utils.NopLogger())

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(api.JWTSecret([]byte(testJWTSecret)))
	handler.SetupRoutes(router)

	userID := uuid.New().String()
	return &TestContext{
		Router:      router,
		Repository:  repo,
		Service:     svc,
		JWTSecret:   []byte(testJWTSecret),
		TestUserID:  userID,
		TestUserJWT: GenerateToken(t, testJWTSecret, userID),
		ReceiptID:   receiptID,
	}
}

func seedInventory(repo *repository.MemoryRepository) int64 {
	repo.SeedReference(models.ReferenceColors,
		models.Reference{ID: 1, Name: "Black"},
		models.Reference{ID: 2, Name: "Navy"},
		models.Reference{ID: 3, Name: "White"},
	)
	repo.SeedReference(models.ReferenceFabrics,
		models.Reference{ID: 10, Name: "Single Jersey"},
		models.Reference{ID: 11, Name: "Interlock"},
	)
	repo.SeedReference(models.ReferenceCompanies, models.Reference{ID: 20, Name: "Acme Knits"})
	repo.SeedReference(models.ReferenceStores, models.Reference{ID: 30, Name: "Main Store"})

	return repo.SeedTransaction(models.Transaction{
		Kind: models.KindReceipt,
		TransactionHeader: models.TransactionHeader{
			CompanyID: 20,
			StoreID:   30,
			FabricID:  10,
			Number:    "R-001",
			Date:      "2024-01-15",
		},
		Details: []models.TransactionDetail{
			{ColorID: 1, Dia: 20, Rolls: 10, Weight: decimal.RequireFromString("50.00")},
			{ColorID: 1, Dia: 22, Rolls: 8, Weight: decimal.RequireFromString("40.00")},
			{ColorID: 2, Dia: 20, Rolls: 5, Weight: decimal.RequireFromString("25.50")},
		},
	})
}

// GenerateToken signs an HS256 token for userID
func GenerateToken(t *testing.T, secret, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})

	tokenString, err := token.SignedString([]byte(secret))
	require.NoError(t, err, "Failed to generate JWT token")
	return tokenString
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}

// DecodeJSON unmarshals a recorded response body into out
func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), "body: %s", w.Body.String())
}
