package handler

import (
	"context"
	"io"
	"net/http"
	"path"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/segyhp/sacco-ledger/internal/documents"
	"github.com/segyhp/sacco-ledger/internal/domain"
	"github.com/segyhp/sacco-ledger/pkg/amortization"
	customError "github.com/segyhp/sacco-ledger/pkg/errors"
	"github.com/segyhp/sacco-ledger/pkg/response"
	"github.com/segyhp/sacco-ledger/pkg/validation"
)

// multipartOverhead leaves room for the form framing around an upload.
const multipartOverhead = 1 << 20

type LoanService interface {
	CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.Loan, error)
	ApproveLoan(ctx context.Context, loanID string) (*domain.Loan, error)
	RejectLoan(ctx context.Context, loanID string) (*domain.Loan, error)
	RecordRepayment(ctx context.Context, request *domain.RecordRepaymentRequest) (*domain.LoanRepayment, error)
	RecordGroupRepayment(ctx context.Context, request *domain.GroupRepaymentRequest) (*domain.GroupRepaymentResult, error)
	GetLoan(ctx context.Context, loanID string) (*domain.Loan, error)
	ListLoans(ctx context.Context) ([]*domain.Loan, error)
	ListMemberLoans(ctx context.Context, memberID string) ([]*domain.Loan, error)
	GetLoanSchedule(ctx context.Context, loanID string) ([]amortization.Entry, error)
	GetMemberMonthlyLoanBalances(ctx context.Context, memberID string) ([]domain.MonthlyLoanBalance, error)
	AttachDocument(ctx context.Context, loanID, kind, filename string, body io.Reader) (*domain.Loan, error)
	OpenDocument(ctx context.Context, loanID, kind string) (afero.File, string, error)
}

type LoanHandler struct {
	service       LoanService
	validator     *validator.Validate
	log           *zap.Logger
	maxUploadSize int64
}

func NewLoanHandler(service LoanService, maxDocumentSize int64, log *zap.Logger) *LoanHandler {
	return &LoanHandler{
		service:       service,
		validator:     validation.New(),
		log:           log,
		maxUploadSize: maxDocumentSize + multipartOverhead,
	}
}

func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var request domain.CreateLoanRequest
	if err := decode(r, h.validator, &request); err != nil {
		writeError(w, h.log, err)
		return
	}

	loan, err := h.service.CreateLoan(r.Context(), &request)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	response.Created(w, loan)
}

func (h *LoanHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.service.ListLoans(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	response.Success(w, loans)
}

func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loan, err := h.service.GetLoan(r.Context(), mux.Vars(r)["loanId"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	response.Success(w, loan)
}

func (h *LoanHandler) ApproveLoan(w http.ResponseWriter, r *http.Request) {
	loan, err := h.service.ApproveLoan(r.Context(), mux.Vars(r)["loanId"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	response.Success(w, loan)
}

func (h *LoanHandler) RejectLoan(w http.ResponseWriter, r *http.Request) {
	loan, err := h.service.RejectLoan(r.Context(), mux.Vars(r)["loanId"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	response.Success(w, loan)
}

// RecordRepayment takes the loan from the path; a loan_id in the body is
// ignored.
func (h *LoanHandler) RecordRepayment(w http.ResponseWriter, r *http.Request) {
	request := domain.RecordRepaymentRequest{LoanID: mux.Vars(r)["loanId"]}
	if err := decode(r, h.validator, &request); err != nil {
		writeError(w, h.log, err)
		return
	}
	request.LoanID = mux.Vars(r)["loanId"]

	repayment, err := h.service.RecordRepayment(r.Context(), &request)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	response.Created(w, repayment)
}

func (h *LoanHandler) RecordGroupRepayment(w http.ResponseWriter, r *http.Request) {
	var request domain.GroupRepaymentRequest
	if err := decode(r, h.validator, &request); err != nil {
		writeError(w, h.log, err)
		return
	}

	result, err := h.service.RecordGroupRepayment(r.Context(), &request)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	response.Created(w, result)
}

func (h *LoanHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.service.GetLoanSchedule(r.Context(), mux.Vars(r)["loanId"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	response.Success(w, schedule)
}

func (h *LoanHandler) ListMemberLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.service.ListMemberLoans(r.Context(), mux.Vars(r)["memberId"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	response.Success(w, loans)
}

func (h *LoanHandler) GetMonthlyBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.service.GetMemberMonthlyLoanBalances(r.Context(), mux.Vars(r)["memberId"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	response.Success(w, balances)
}

// UploadDocument stores the multipart "file" field as the loan's document of
// the type named in the path.
func (h *LoanHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, h.log, customError.WrapValidation("multipart field \"file\" is required: "+err.Error(), nil))
		return
	}
	defer file.Close()

	loan, err := h.service.AttachDocument(r.Context(), vars["loanId"], vars["type"], header.Filename, file)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	response.Success(w, loan)
}

func (h *LoanHandler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	file, ref, err := h.service.OpenDocument(r.Context(), vars["loanId"], vars["type"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", documents.ContentType(ref))
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(ref)+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, file); err != nil {
		h.log.Warn("document download interrupted", zap.String("ref", ref), zap.Error(err))
	}
}
