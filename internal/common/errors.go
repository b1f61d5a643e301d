package common

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

// Error appends the cause unless Message already ends with it.
func (e *AppError) Error() string {
	if e.Cause != nil && !strings.HasSuffix(e.Message, e.Cause.Error()) {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any *AppError carrying the same code, or the code's family, so
// errors.Is works against the sentinels below regardless of message or cause.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code || codeFamily[e.Code] == t.Code
}

// UserMessage is the text shown to the person running the import.
func (e *AppError) UserMessage() string {
	return e.Message
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrValidation   = errors.New("validation failed")
)

// Import pipeline error codes.
const (
	CodeUnsupportedType = "UNSUPPORTED_TYPE"
	CodeTooLarge        = "TOO_LARGE"
	CodeNoSheets        = "NO_SHEETS"
	CodeNoHeaders       = "NO_HEADERS"
	CodeEmptyData       = "EMPTY_DATA"
	CodeParseFailure    = "PARSE_FAILURE"
	CodeAnalysisFailure = "ANALYSIS_FAILURE"
	CodeEmptyColumns    = "EMPTY_COLUMNS"
	CodeNoData          = "NO_DATA"
	CodeImportFailure   = "IMPORT_FAILURE"
	CodeMissingMapping  = "MISSING_MAPPING"
	CodeUnknownClient   = "UNKNOWN_CLIENT"
	CodeSuperseded      = "SUPERSEDED"
	CodeDuplicate       = "DUPLICATE_FILE"
	CodeConfig          = "CONFIG_ERROR"
)

// codeFamily groups specific failures under their stage-level code.
var codeFamily = map[string]string{
	CodeEmptyColumns:   CodeAnalysisFailure,
	CodeNoData:         CodeAnalysisFailure,
	CodeMissingMapping: CodeImportFailure,
	CodeUnknownClient:  CodeImportFailure,
}

// Import pipeline sentinels. Compare with errors.Is.
var (
	ErrUnsupportedType = &AppError{Code: CodeUnsupportedType, Message: "Unsupported file type. Please upload a CSV or Excel file."}
	ErrTooLarge        = &AppError{Code: CodeTooLarge, Message: "File is too large. Maximum size is 10MB."}
	ErrNoSheets        = &AppError{Code: CodeNoSheets, Message: "The spreadsheet has no sheets."}
	ErrNoHeaders       = &AppError{Code: CodeNoHeaders, Message: "No column headers found in the first row."}
	ErrEmptyData       = &AppError{Code: CodeEmptyData, Message: "The file does not contain any data rows."}
	ErrParseFailure    = &AppError{Code: CodeParseFailure, Message: "Failed to parse file."}
	ErrAnalysisFailure = &AppError{Code: CodeAnalysisFailure, Message: "Failed to analyze file data."}
	ErrEmptyColumns    = &AppError{Code: CodeEmptyColumns, Message: "No columns found in the file."}
	ErrNoData          = &AppError{Code: CodeNoData, Message: "No data rows to analyze."}
	ErrImportFailure   = &AppError{Code: CodeImportFailure, Message: "Failed to import receipts."}
	ErrMissingMapping  = &AppError{Code: CodeMissingMapping, Message: "Please map the required fields: Date, Amount, and Vendor."}
	ErrUnknownClient   = &AppError{Code: CodeUnknownClient, Message: "The selected client does not exist."}
	ErrSuperseded      = &AppError{Code: CodeSuperseded, Message: "A newer file replaced this one before parsing finished."}
	ErrDuplicate       = &AppError{Code: CodeDuplicate, Message: "This file was imported before. Force the import to add its receipts again."}
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ParseFailure wraps a decoder error; the underlying message is surfaced verbatim.
func ParseFailure(cause error) *AppError {
	return &AppError{Code: CodeParseFailure, Message: "Failed to parse file: " + cause.Error(), Cause: cause}
}

// ImportFailure wraps an unexpected materialization or store error.
func ImportFailure(cause error) *AppError {
	return &AppError{Code: CodeImportFailure, Message: "Failed to import receipts: " + cause.Error(), Cause: cause}
}

// UserMessage extracts the user-facing text from err. Errors outside the
// taxonomy fall back to their Error() string.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.UserMessage()
	}
	if st, ok := status.FromError(err); ok {
		return st.Message()
	}
	return err.Error()
}

// ErrorCode returns the AppError code in err's chain, or "".
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

func InternalErrorf(format string, args ...interface{}) error {
	return InternalError(fmt.Sprintf(format, args...))
}

// StatusCode classifies err into a gRPC code. Import taxonomy errors are
// caller problems (InvalidArgument / FailedPrecondition); anything unknown is
// Internal.
func StatusCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return st.Code()
	}
	switch ErrorCode(err) {
	case CodeUnsupportedType, CodeNoSheets, CodeNoHeaders, CodeEmptyData,
		CodeParseFailure, CodeEmptyColumns, CodeNoData, CodeAnalysisFailure,
		CodeMissingMapping, CodeUnknownClient:
		return codes.InvalidArgument
	case CodeTooLarge:
		return codes.ResourceExhausted
	case CodeSuperseded:
		return codes.Aborted
	case CodeDuplicate:
		return codes.AlreadyExists
	case CodeConfig:
		return codes.FailedPrecondition
	}
	if errors.Is(err, ErrNotFound) {
		return codes.NotFound
	}
	if errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrValidation) {
		return codes.InvalidArgument
	}
	return codes.Internal
}
