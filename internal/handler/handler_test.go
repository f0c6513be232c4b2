package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/segyhp/sacco-ledger/internal/cache"
	"github.com/segyhp/sacco-ledger/internal/config"
	"github.com/segyhp/sacco-ledger/internal/documents"
	"github.com/segyhp/sacco-ledger/internal/domain"
	"github.com/segyhp/sacco-ledger/internal/repository/memory"
	"github.com/segyhp/sacco-ledger/internal/service"
	customError "github.com/segyhp/sacco-ledger/pkg/errors"
)

type envelope struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func testConfig() *config.Config {
	return &config.Config{
		Business: config.BusinessConfig{
			InitialDeposit:             "1000",
			DefaultMonthlyContribution: "1000",
			MinInterestRate:            "1",
			MaxInterestRate:            "100",
			MaxLoanTerm:                360,
			MaxDocumentSize:            1 << 10,
		},
	}
}

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	cfg := testConfig()
	log := zap.NewNop()
	store := memory.NewStore()
	docs := documents.NewStore(afero.NewMemMapFs(), "/docs", cfg.Business.MaxDocumentSize)

	return NewRouter(Handlers{
		Members: NewMemberHandler(service.NewMemberService(store, cache.Noop{}, cfg, log), log),
		Loans:   NewLoanHandler(service.NewLoanService(store, docs, cache.Noop{}, cfg, log), cfg.Business.MaxDocumentSize, log),
		Savings: NewSavingsHandler(service.NewSavingsService(store, cache.Noop{}, cfg, log), log),
		Health:  NewHealthHandler(store, nil, time.Second),
	}, log)
}

func call(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func dataField(t *testing.T, env envelope, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func TestLoanLifecycleOverHTTP(t *testing.T) {
	router := newTestRouter(t)

	rec, env := call(t, router, http.MethodPost, "/api/v1/members", `{"name":"Jane","email":"jane@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var member struct {
		ID             string `json:"id"`
		SavingsBalance string `json:"savings_balance"`
	}
	dataField(t, env, &member)
	assert.Equal(t, "1000", member.SavingsBalance)

	rec, env = call(t, router, http.MethodPost, "/api/v1/loans",
		`{"member_id":"`+member.ID+`","amount":50000,"purpose":"dairy","loan_term":12,"interest_rate":12}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var loan struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	dataField(t, env, &loan)
	assert.Equal(t, "Pending", loan.Status)

	rec, _ = call(t, router, http.MethodPost, "/api/v1/loans/"+loan.ID+"/approve", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = call(t, router, http.MethodPost, "/api/v1/loans/"+loan.ID+"/approve", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, customError.ErrCodeInvalidLoanState, env.Code)

	rec, env = call(t, router, http.MethodPost, "/api/v1/loans/"+loan.ID+"/repayments", `{"amount":4442.44}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var repayment struct {
		PrincipalPaid string `json:"principal_paid"`
		InterestPaid  string `json:"interest_paid"`
		BalanceAfter  string `json:"balance_after"`
	}
	dataField(t, env, &repayment)
	assert.Equal(t, "3942.44", repayment.PrincipalPaid)
	assert.Equal(t, "500", repayment.InterestPaid)
	assert.Equal(t, "46057.56", repayment.BalanceAfter)

	rec, env = call(t, router, http.MethodPost, "/api/v1/loans/"+loan.ID+"/repayments", `{"amount":99999}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, customError.ErrCodePaymentExceeds, env.Code)

	rec, env = call(t, router, http.MethodGet, "/api/v1/loans/L-NOPE", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, customError.ErrCodeLoanNotFound, env.Code)

	rec, env = call(t, router, http.MethodGet, "/api/v1/loans/"+loan.ID+"/schedule", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var schedule []json.RawMessage
	dataField(t, env, &schedule)
	assert.Len(t, schedule, 11)

	rec, env = call(t, router, http.MethodGet, "/api/v1/members/"+member.ID+"/ledger-check", "")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, env.Success)
}

func TestSavingsOverHTTP(t *testing.T) {
	router := newTestRouter(t)

	_, env := call(t, router, http.MethodPost, "/api/v1/members", `{"name":"Jane","email":"jane@example.com"}`)
	var member struct {
		ID string `json:"id"`
	}
	dataField(t, env, &member)

	rec, env := call(t, router, http.MethodPost, "/api/v1/savings/deposits", `{"member_id":"`+member.ID+`","amount":"250.50"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var receipt struct {
		Balance string `json:"balance"`
	}
	dataField(t, env, &receipt)
	assert.Equal(t, "1250.5", receipt.Balance)

	rec, env = call(t, router, http.MethodPost, "/api/v1/savings/withdrawals", `{"member_id":"`+member.ID+`","amount":5000}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, customError.ErrCodeInsufficientBalance, env.Code)

	rec, env = call(t, router, http.MethodPost, "/api/v1/savings/group-deposits", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var result struct {
		Count int    `json:"count"`
		Total string `json:"total"`
	}
	dataField(t, env, &result)
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, "1000", result.Total)

	rec, env = call(t, router, http.MethodGet, "/api/v1/savings/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		TotalSavings  string `json:"total_savings"`
		ActiveMembers int    `json:"active_members"`
	}
	dataField(t, env, &stats)
	assert.Equal(t, "2250.5", stats.TotalSavings)
	assert.Equal(t, 1, stats.ActiveMembers)

	rec, env = call(t, router, http.MethodGet, "/api/v1/savings/424242", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, customError.ErrCodeSavingNotFound, env.Code)

	rec, _ = call(t, router, http.MethodGet, "/api/v1/savings/abc", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBadRequests(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"malformed json", "/api/v1/members", `{"name":`},
		{"unknown field", "/api/v1/members", `{"name":"Jane","email":"jane@example.com","balance":5}`},
		{"missing email", "/api/v1/members", `{"name":"Jane"}`},
		{"negative deposit", "/api/v1/savings/deposits", `{"member_id":"M-1","amount":-5}`},
		{"bad deposit type", "/api/v1/savings/deposits", `{"member_id":"M-1","amount":5,"type":"Bonus"}`},
		{"bad group date", "/api/v1/loans/group-repayments", `{"date":"28-05-2024"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := call(t, router, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.False(t, env.Success)
			assert.Equal(t, customError.ErrCodeValidation, env.Code)
		})
	}
}

func TestDocumentsOverHTTP(t *testing.T) {
	router := newTestRouter(t)

	_, env := call(t, router, http.MethodPost, "/api/v1/members", `{"name":"Jane","email":"jane@example.com"}`)
	var member struct {
		ID string `json:"id"`
	}
	dataField(t, env, &member)
	_, env = call(t, router, http.MethodPost, "/api/v1/loans",
		`{"member_id":"`+member.ID+`","amount":1000,"purpose":"fees","loan_term":3,"interest_rate":10}`)
	var loan struct {
		ID string `json:"id"`
	}
	dataField(t, env, &loan)

	upload := func(filename string, content []byte) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPut, "/api/v1/loans/"+loan.ID+"/documents/id-document", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := upload("passport.png", []byte("png-bytes"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = upload("huge.png", bytes.Repeat([]byte("x"), 2<<10))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/loans/"+loan.ID+"/documents/id-document", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", rec.Body.String())

	rec, env = call(t, router, http.MethodGet, "/api/v1/loans/"+loan.ID+"/documents/bank-statements", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, customError.ErrCodeDocumentNotFound, env.Code)
}

type failingMembers struct {
	MemberService
	err error
}

func (f failingMembers) ListMembers(context.Context) ([]*domain.Member, error) {
	return nil, f.err
}

func TestWriteError_StorageFailureHidesCause(t *testing.T) {
	router := mux.NewRouter()
	cause := errors.New("pq: password authentication failed")
	h := NewMemberHandler(failingMembers{err: customError.WrapDatabaseError(cause)}, zap.NewNop())
	router.HandleFunc("/members", h.ListMembers)

	rec, env := call(t, router, http.MethodGet, "/members", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, customError.ErrCodeDatabaseError, env.Code)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(customError.WrapValidation("x", nil)))
	assert.Equal(t, http.StatusNotFound, StatusFor(customError.WrapMemberNotFound("M-1")))
	assert.Equal(t, http.StatusConflict, StatusFor(customError.WrapMemberInactive("M-1")))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(customError.WrapInsufficientBalance("M-1", decimal.NewFromInt(1), decimal.Zero)))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(errors.New("driver: bad connection")))
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthReady(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	ok := pingerFunc(func(context.Context) error { return nil })

	h := NewHealthHandler(ok, client, time.Second)
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	mr.Close()
	rec = httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"failed`)

	down := NewHealthHandler(pingerFunc(func(context.Context) error { return errors.New("no route to host") }), nil, time.Second)
	rec = httptest.NewRecorder()
	down.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "redis")

	rec = httptest.NewRecorder()
	down.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
