package zipkin

import (
	"net/http"

	spb "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/protobuf/encoding/protojson"
)

// WriteHttpFailureResponse writes err as the response to a Zipkin v1 request.
// JSON clients get a google.rpc.Status body, thrift clients the plain message.
func WriteHttpFailureResponse(w http.ResponseWriter, r *http.Request, err ZipkinError) error {
	contentType := r.Header.Get(contentTypeHeader)
	switch {
	case contentType == contentTypeJSON:
		body, merr := protojson.Marshal(&spb.Status{
			Code:    int32(err.GRPCStatusCode),
			Message: err.Message,
		})
		if merr != nil {
			return merr
		}
		w.Header().Set(contentTypeHeader, contentTypeJSON)
		w.WriteHeader(err.HTTPStatusCode)
		_, werr := w.Write(body)
		return werr
	case isThriftContentType(contentType):
		w.Header().Set(contentTypeHeader, "text/plain; charset=utf-8")
		w.WriteHeader(err.HTTPStatusCode)
		_, werr := w.Write([]byte(err.Message))
		return werr
	default:
		return ErrInvalidContentType
	}
}

// WriteHttpSuccessResponse acknowledges an accepted span payload. Zipkin
// collectors reply 202 with an empty body.
func WriteHttpSuccessResponse(w http.ResponseWriter, r *http.Request) error {
	if !IsContentTypeSupported(r.Header.Get(contentTypeHeader)) {
		return ErrInvalidContentType
	}
	w.WriteHeader(http.StatusAccepted)
	return nil
}
