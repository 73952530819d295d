package zipkin

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type ZipkinError struct {
	Message        string
	HTTPStatusCode int
	GRPCStatusCode codes.Code
}

var (
	ErrInvalidContentType     = ZipkinError{Message: "unsupported content-type, valid types are: " + strings.Join(GetSupportedContentTypes(), ", "), HTTPStatusCode: http.StatusUnsupportedMediaType, GRPCStatusCode: codes.Unimplemented}
	ErrInvalidContentEncoding = ZipkinError{Message: "unsupported content-encoding, valid encodings are: gzip, zstd", HTTPStatusCode: http.StatusUnsupportedMediaType, GRPCStatusCode: codes.Unimplemented}
	ErrFailedParseBody        = ZipkinError{Message: "failed to parse zipkin request body", HTTPStatusCode: http.StatusBadRequest, GRPCStatusCode: codes.InvalidArgument}
	ErrMissingAPIKeyHeader    = ZipkinError{Message: "missing 'x-honeycomb-team' header", HTTPStatusCode: http.StatusUnauthorized, GRPCStatusCode: codes.Unauthenticated}
	ErrMissingDatasetHeader   = ZipkinError{Message: "missing 'x-honeycomb-dataset' header", HTTPStatusCode: http.StatusUnauthorized, GRPCStatusCode: codes.Unauthenticated}
)

func (e ZipkinError) Error() string {
	return e.Message
}

func AsJson(e error) string {
	b, err := json.Marshal(struct {
		Message string `json:"message"`
	}{e.Error()})
	if err != nil {
		return `{"message":""}`
	}
	return string(b)
}

func AsGRPCError(e error) error {
	var zipkinErr ZipkinError
	if errors.As(e, &zipkinErr) {
		return status.Error(zipkinErr.GRPCStatusCode, e.Error())
	}
	return status.Error(codes.Internal, "")
}
