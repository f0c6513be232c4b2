package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/segyhp/sacco-ledger/pkg/response"
)

type Handlers struct {
	Members *MemberHandler
	Loans   *LoanHandler
	Savings *SavingsHandler
	Health  *HealthHandler
}

// NewRouter registers every route of the API.
func NewRouter(h Handlers, log *zap.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware(log), response.CORSMiddleware)

	// Health check
	router.HandleFunc("/health", h.Health.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", h.Health.Ready).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/members", h.Members.CreateMember).Methods(http.MethodPost)
	api.HandleFunc("/members", h.Members.ListMembers).Methods(http.MethodGet)
	api.HandleFunc("/members/{memberId}", h.Members.GetMember).Methods(http.MethodGet)
	api.HandleFunc("/members/{memberId}", h.Members.UpdateMember).Methods(http.MethodPatch)
	api.HandleFunc("/members/{memberId}/summary", h.Members.GetSummary).Methods(http.MethodGet)
	api.HandleFunc("/members/{memberId}/ledger-check", h.Members.VerifyLedger).Methods(http.MethodGet)
	api.HandleFunc("/members/{memberId}/loans", h.Loans.ListMemberLoans).Methods(http.MethodGet)
	api.HandleFunc("/members/{memberId}/loan-balances", h.Loans.GetMonthlyBalances).Methods(http.MethodGet)
	api.HandleFunc("/members/{memberId}/savings", h.Savings.GetMemberSavings).Methods(http.MethodGet)

	api.HandleFunc("/loans", h.Loans.CreateLoan).Methods(http.MethodPost)
	api.HandleFunc("/loans", h.Loans.ListLoans).Methods(http.MethodGet)
	api.HandleFunc("/loans/group-repayments", h.Loans.RecordGroupRepayment).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId}", h.Loans.GetLoan).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId}/approve", h.Loans.ApproveLoan).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId}/reject", h.Loans.RejectLoan).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId}/repayments", h.Loans.RecordRepayment).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId}/schedule", h.Loans.GetSchedule).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId}/documents/{type}", h.Loans.UploadDocument).Methods(http.MethodPut)
	api.HandleFunc("/loans/{loanId}/documents/{type}", h.Loans.DownloadDocument).Methods(http.MethodGet)

	api.HandleFunc("/savings", h.Savings.ListSavings).Methods(http.MethodGet)
	api.HandleFunc("/savings/stats", h.Savings.GetStats).Methods(http.MethodGet)
	api.HandleFunc("/savings/deposits", h.Savings.Deposit).Methods(http.MethodPost)
	api.HandleFunc("/savings/withdrawals", h.Savings.Withdraw).Methods(http.MethodPost)
	api.HandleFunc("/savings/group-deposits", h.Savings.GroupDeposit).Methods(http.MethodPost)
	api.HandleFunc("/savings/{savingId:[0-9]+}", h.Savings.GetSaving).Methods(http.MethodGet)

	return router
}
