package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	customError "github.com/segyhp/sacco-ledger/pkg/errors"
	"github.com/segyhp/sacco-ledger/pkg/response"
	"github.com/segyhp/sacco-ledger/pkg/validation"
)

var kindStatus = map[customError.Kind]int{
	customError.KindValidation:         http.StatusBadRequest,
	customError.KindNotFound:           http.StatusNotFound,
	customError.KindStateConflict:      http.StatusConflict,
	customError.KindInsufficientFunds:  http.StatusUnprocessableEntity,
	customError.KindTransactionAborted: http.StatusServiceUnavailable,
}

// StatusFor maps an error onto the HTTP status of its kind.
func StatusFor(err error) int {
	if status, ok := kindStatus[customError.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// writeError renders err. Storage failures are logged and their cause is not
// echoed to the client.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := StatusFor(err)

	var be *customError.BusinessError
	if !errors.As(err, &be) {
		be = customError.WrapDatabaseError(err)
	}

	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("code", be.Code), zap.Error(err))
		response.Fail(w, status, be.Code, be.Message, nil)
		return
	}
	response.Fail(w, status, be.Code, be.Message, be.Err)
}

// decode reads a JSON body into dst and validates it. An empty body leaves
// dst as it is.
func decode(r *http.Request, v *validator.Validate, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return customError.WrapValidation(fmt.Sprintf("invalid request body: %v", err), nil)
	}
	return validation.Struct(v, dst)
}
