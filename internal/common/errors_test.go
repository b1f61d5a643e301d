package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestAppErrorIsByCode(t *testing.T) {
	err := fmt.Errorf("decode: %w", ParseFailure(errors.New("bare \" in non-quoted field")))

	assert.ErrorIs(t, err, ErrParseFailure)
	assert.NotErrorIs(t, err, ErrEmptyData)
	assert.Equal(t, CodeParseFailure, ErrorCode(err))
	assert.Equal(t, "Failed to parse file: bare \" in non-quoted field", UserMessage(err))
}

func TestAppErrorFamilies(t *testing.T) {
	assert.ErrorIs(t, ErrEmptyColumns, ErrAnalysisFailure)
	assert.ErrorIs(t, ErrNoData, ErrAnalysisFailure)
	assert.ErrorIs(t, ErrMissingMapping, ErrImportFailure)
	assert.ErrorIs(t, ErrUnknownClient, ErrImportFailure)
	assert.NotErrorIs(t, ErrImportFailure, ErrMissingMapping)
	assert.NotErrorIs(t, ErrTooLarge, ErrImportFailure)
}

func TestImportFailureWrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := ImportFailure(cause)
	assert.ErrorIs(t, err, ErrImportFailure)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "IMPORT_FAILURE: Failed to import receipts: disk full", err.Error())

	wrapped := NewAppError(CodeConfig, "invalid classification rules", cause)
	assert.Equal(t, CodeConfig+": invalid classification rules: disk full", wrapped.Error())
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, codes.OK, StatusCode(nil))
	assert.Equal(t, codes.InvalidArgument, StatusCode(ErrMissingMapping))
	assert.Equal(t, codes.InvalidArgument, StatusCode(fmt.Errorf("wrap: %w", ErrUnsupportedType)))
	assert.Equal(t, codes.ResourceExhausted, StatusCode(ErrTooLarge))
	assert.Equal(t, codes.Aborted, StatusCode(ErrSuperseded))
	assert.Equal(t, codes.AlreadyExists, StatusCode(ErrDuplicate))
	assert.Equal(t, codes.NotFound, StatusCode(NotFoundError("import session not found")))
	assert.Equal(t, codes.NotFound, StatusCode(WrapError(ErrNotFound, "client 7")))
	assert.Equal(t, codes.Internal, StatusCode(errors.New("boom")))
	assert.Equal(t, codes.Internal, StatusCode(ImportFailure(errors.New("boom"))))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "Please map the required fields: Date, Amount, and Vendor.", UserMessage(ErrMissingMapping))
	assert.Equal(t, "bad id", UserMessage(InvalidArgumentError("bad id")))
	assert.Equal(t, "plain", UserMessage(errors.New("plain")))
}
