package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/segyhp/sacco-ledger/internal/domain"
	customError "github.com/segyhp/sacco-ledger/pkg/errors"
	"github.com/segyhp/sacco-ledger/pkg/response"
	"github.com/segyhp/sacco-ledger/pkg/validation"
)

type SavingsService interface {
	RecordDeposit(ctx context.Context, request *domain.DepositRequest) (*domain.SavingsReceipt, error)
	ProcessWithdrawal(ctx context.Context, request *domain.WithdrawalRequest) (*domain.SavingsReceipt, error)
	RecordGroupDeposit(ctx context.Context, request *domain.GroupDepositRequest) (*domain.GroupDepositResult, error)
	GetMemberSavings(ctx context.Context, memberID string) (*domain.MemberSavings, error)
	GetSaving(ctx context.Context, id int64) (*domain.Saving, error)
	ListSavings(ctx context.Context) ([]*domain.Saving, error)
	GetSavingsStats(ctx context.Context) (*domain.SavingsStats, error)
}

type SavingsHandler struct {
	service   SavingsService
	validator *validator.Validate
	log       *zap.Logger
}

func NewSavingsHandler(service SavingsService, log *zap.Logger) *SavingsHandler {
	return &SavingsHandler{
		service:   service,
		validator: validation.New(),
		log:       log,
	}
}

func (h *SavingsHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var request domain.DepositRequest
	if err := decode(r, h.validator, &request); err != nil {
		writeError(w, h.log, err)
		return
	}

	receipt, err := h.service.RecordDeposit(r.Context(), &request)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	response.Created(w, receipt)
}

func (h *SavingsHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var request domain.WithdrawalRequest
	if err := decode(r, h.validator, &request); err != nil {
		writeError(w, h.log, err)
		return
	}

	receipt, err := h.service.ProcessWithdrawal(r.Context(), &request)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	response.Created(w, receipt)
}

func (h *SavingsHandler) GroupDeposit(w http.ResponseWriter, r *http.Request) {
	var request domain.GroupDepositRequest
	if err := decode(r, h.validator, &request); err != nil {
		writeError(w, h.log, err)
		return
	}

	result, err := h.service.RecordGroupDeposit(r.Context(), &request)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	response.Created(w, result)
}

func (h *SavingsHandler) ListSavings(w http.ResponseWriter, r *http.Request) {
	savings, err := h.service.ListSavings(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	response.Success(w, savings)
}

func (h *SavingsHandler) GetSaving(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["savingId"], 10, 64)
	if err != nil {
		writeError(w, h.log, customError.WrapValidation("saving id must be an integer", nil))
		return
	}

	saving, err := h.service.GetSaving(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	response.Success(w, saving)
}

func (h *SavingsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetSavingsStats(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	response.Success(w, stats)
}

func (h *SavingsHandler) GetMemberSavings(w http.ResponseWriter, r *http.Request) {
	savings, err := h.service.GetMemberSavings(r.Context(), mux.Vars(r)["memberId"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	response.Success(w, savings)
}
