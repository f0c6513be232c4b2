package handler

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/segyhp/sacco-ledger/internal/domain"
	"github.com/segyhp/sacco-ledger/pkg/response"
	"github.com/segyhp/sacco-ledger/pkg/validation"
)

type MemberService interface {
	CreateMember(ctx context.Context, request *domain.CreateMemberRequest) (*domain.Member, error)
	GetMember(ctx context.Context, memberID string) (*domain.Member, error)
	ListMembers(ctx context.Context) ([]*domain.Member, error)
	UpdateMember(ctx context.Context, memberID string, request *domain.UpdateMemberRequest) (*domain.Member, error)
	GetMemberSummary(ctx context.Context, memberID string) (*domain.MemberSummary, error)
	VerifyMemberLedger(ctx context.Context, memberID string) (*domain.LedgerReport, error)
}

type MemberHandler struct {
	service   MemberService
	validator *validator.Validate
	log       *zap.Logger
}

func NewMemberHandler(service MemberService, log *zap.Logger) *MemberHandler {
	return &MemberHandler{
		service:   service,
		validator: validation.New(),
		log:       log,
	}
}

func (h *MemberHandler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var request domain.CreateMemberRequest
	if err := decode(r, h.validator, &request); err != nil {
		writeError(w, h.log, err)
		return
	}

	member, err := h.service.CreateMember(r.Context(), &request)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	response.Created(w, member)
}

func (h *MemberHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.ListMembers(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	response.Success(w, members)
}

func (h *MemberHandler) GetMember(w http.ResponseWriter, r *http.Request) {
	member, err := h.service.GetMember(r.Context(), mux.Vars(r)["memberId"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	response.Success(w, member)
}

func (h *MemberHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	var request domain.UpdateMemberRequest
	if err := decode(r, h.validator, &request); err != nil {
		writeError(w, h.log, err)
		return
	}

	member, err := h.service.UpdateMember(r.Context(), mux.Vars(r)["memberId"], &request)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	response.Success(w, member)
}

func (h *MemberHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetMemberSummary(r.Context(), mux.Vars(r)["memberId"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	response.Success(w, summary)
}

// VerifyLedger answers 200 for a consistent ledger and 409 with the report
// when a mirror has drifted.
func (h *MemberHandler) VerifyLedger(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.VerifyMemberLedger(r.Context(), mux.Vars(r)["memberId"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if !report.Consistent() {
		response.JSON(w, http.StatusConflict, report)
		return
	}
	response.Success(w, report)
}
