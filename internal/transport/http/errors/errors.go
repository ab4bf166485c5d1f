// errors стандартизирует ответы об ошибках REST API.
// Ошибки сервисного слоя сначала сводятся к gRPC-кодам (FromService),
// затем код превращается в HTTP-статус и краткое безопасное message (ToHTTP).
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pribylovaa/placenotes/internal/service"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// APIError: единый формат для фронта.
// Code: короткий стабильный код для машиночитаемой обработки на FE.
// Message: безопасное человекочитаемое описание.
// RequestID: прокидывается из X-Request-Id, если есть.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse: корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// FromService переводит ошибку сервисного слоя в gRPC-статус:
//
//	ErrInvalidLocation   -> codes.InvalidArgument ("invalid location")
//	ErrInvalidRadius     -> codes.InvalidArgument ("invalid radius")
//	ErrInvalidArgument   -> codes.InvalidArgument
//	ErrNotFound          -> codes.NotFound
//	ErrForbidden         -> codes.PermissionDenied
//	ErrStoreUnavailable  -> codes.Unavailable
//	context.Canceled     -> codes.Canceled
//	context.DeadlineExceeded -> codes.DeadlineExceeded
//	прочее               -> codes.Internal
//
// Уже готовый gRPC-статус возвращается как есть.
func FromService(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := err.(interface{ GRPCStatus() *status.Status }); ok {
		return err
	}

	switch {
	case stderrors.Is(err, service.ErrInvalidLocation):
		return status.Error(codes.InvalidArgument, "invalid location")
	case stderrors.Is(err, service.ErrInvalidRadius):
		return status.Error(codes.InvalidArgument, "invalid radius")
	case stderrors.Is(err, service.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, "invalid argument")
	case stderrors.Is(err, service.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case stderrors.Is(err, service.ErrForbidden):
		return status.Error(codes.PermissionDenied, "permission denied")
	case stderrors.Is(err, service.ErrStoreUnavailable):
		return status.Error(codes.Unavailable, "service unavailable")
	case stderrors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	case stderrors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// ToHTTP конвертирует ошибку в HTTP-статус и унифицированный ответ для фронта.
//
// Поведение:
//   - err == nil - это программная ошибка вызова: 500/internal,
//     чтобы не послать "200 OK" с телом ошибки и не маскировать баг;
//   - ошибки сервиса сначала проходят через FromService;
//   - для InvalidArgument сообщение берётся из статуса (invalid location / invalid radius),
//     для остальных кодов используется фиксированное.
func ToHTTP(err error) (int, ErrorResponse) {
	if err == nil {
		return http.StatusInternalServerError, ErrorResponse{
			Error: APIError{
				Code:    "internal",
				Message: "internal error",
			},
		}
	}

	st, _ := status.FromError(FromService(err))

	httpStatus, code, msg := baseFromGRPC(st.Code())
	if st.Code() == codes.InvalidArgument && st.Message() != "" {
		msg = st.Message()
	}

	return httpStatus, ErrorResponse{
		Error: APIError{
			Code:    code,
			Message: msg,
		},
	}
}

// WriteError: хелпер для HTTP-хендлеров и middleware.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// baseFromGRPC: базовый маппинг gRPC -> HTTP/FE-код/сообщение:
//   - InvalidArgument -> 400
//   - Unauthenticated -> 401
//   - PermissionDenied -> 403
//   - NotFound -> 404
//   - ResourceExhausted -> 429 (rate limit)
//   - Canceled -> 499 (клиент закрыл соединение)
//   - Unavailable -> 503 (хранилище недоступно)
//   - DeadlineExceeded -> 504
//   - прочее -> 500/internal
func baseFromGRPC(c codes.Code) (int, string, string) {
	switch c {
	case codes.InvalidArgument:
		return http.StatusBadRequest, "invalid_argument", "invalid argument"
	case codes.NotFound:
		return http.StatusNotFound, "not_found", "not found"
	case codes.AlreadyExists:
		return http.StatusConflict, "already_exists", "already exists"
	case codes.Unauthenticated:
		return http.StatusUnauthorized, "unauthenticated", "unauthenticated"
	case codes.PermissionDenied:
		return http.StatusForbidden, "permission_denied", "permission denied"
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests, "resource_exhausted", "too many requests"
	case codes.Canceled:
		return StatusClientClosedRequest, "canceled", "canceled"
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"
	case codes.Unavailable:
		return http.StatusServiceUnavailable, "unavailable", "service unavailable"
	case codes.Unimplemented:
		return http.StatusNotImplemented, "unimplemented", "unimplemented"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}
