package zipkin

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"regexp"
	"slices"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"google.golang.org/grpc/metadata"
)

const (
	apiKeyHeader             = "x-honeycomb-team"
	datasetHeader            = "x-honeycomb-dataset"
	userAgentHeader          = "user-agent"
	contentTypeHeader        = "content-type"
	contentEncodingHeader    = "content-encoding"
	gRPCAcceptEncodingHeader = "grpc-accept-encoding"
	defaultServiceName       = "unknown_service"

	contentTypeThrift       = "application/x-thrift"
	contentTypeThriftBinary = "application/vnd.apache.thrift.binary"
	contentTypeJSON         = "application/json"
)

// fieldSizeMax is the maximum size of a field that will be accepted by honeycomb.
const fieldSizeMax = 1<<16 - 1

var (
	legacyApiKeyPattern = regexp.MustCompile("^[0-9a-f]{32}$")
	// Incoming Zipkin v1 HTTP Content-Types we support
	supportedContentTypes = []string{
		contentTypeThrift,
		contentTypeThriftBinary,
		contentTypeJSON,
	}
	// Incoming Content-Encodings we support. "" included as a stand in for "not given, assume uncompressed"
	supportedContentEncodings = []string{"", "gzip", "zstd"}

	// Use json-iterator for better performance
	json = jsoniter.ConfigCompatibleWithStandardLibrary
)

// List of HTTP Content Types supported for Zipkin v1 ingest.
func GetSupportedContentTypes() []string {
	return supportedContentTypes
}

// Check whether we support a given HTTP Content Type for Zipkin v1.
func IsContentTypeSupported(contentType string) bool {
	return slices.Contains(supportedContentTypes, contentType)
}

// List of HTTP Content Encodings supported for Zipkin v1 ingest.
func GetSupportedContentEncodings() []string {
	return supportedContentEncodings
}

func isContentEncodingSupported(contentEncoding string) bool {
	return slices.Contains(supportedContentEncodings, contentEncoding)
}

func isThriftContentType(contentType string) bool {
	return contentType == contentTypeThrift || contentType == contentTypeThriftBinary
}

// RequestInfo represents information parsed from either HTTP headers or gRPC metadata
type RequestInfo struct {
	ApiKey  string
	Dataset string

	UserAgent          string
	ContentType        string
	ContentEncoding    string
	GRPCAcceptEncoding string
}

func (ri RequestInfo) hasLegacyKey() bool {
	return legacyApiKeyPattern.MatchString(ri.ApiKey)
}

// ValidateTracesHeaders validates required headers/metadata for a Zipkin v1 span request
func (ri *RequestInfo) ValidateTracesHeaders() error {
	if len(ri.ApiKey) == 0 {
		return ErrMissingAPIKeyHeader
	}
	if ri.hasLegacyKey() && len(ri.Dataset) == 0 {
		return ErrMissingDatasetHeader
	}
	if !IsContentTypeSupported(ri.ContentType) {
		return ErrInvalidContentType
	}
	return nil // no error, headers passed all the validations
}

// GetRequestInfoFromGrpcMetadata parses relevant gRPC metadata from an incoming request context.
// Spans relayed over gRPC are carried as thrift bytes.
func GetRequestInfoFromGrpcMetadata(ctx context.Context) RequestInfo {
	ri := RequestInfo{
		ContentType: contentTypeThrift,
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		ri.ApiKey = getValueFromMetadata(md, apiKeyHeader)
		ri.Dataset = getValueFromMetadata(md, datasetHeader)
		ri.UserAgent = getValueFromMetadata(md, userAgentHeader)
		ri.ContentEncoding = getValueFromMetadata(md, contentEncodingHeader)
		ri.GRPCAcceptEncoding = getValueFromMetadata(md, gRPCAcceptEncodingHeader)
	}
	return ri
}

// GetRequestInfoFromHttpHeaders parses relevant incoming HTTP headers
func GetRequestInfoFromHttpHeaders(header http.Header) RequestInfo {
	return RequestInfo{
		ApiKey:             header.Get(apiKeyHeader),
		Dataset:            header.Get(datasetHeader),
		UserAgent:          header.Get(userAgentHeader),
		ContentType:        header.Get(contentTypeHeader),
		ContentEncoding:    header.Get(contentEncodingHeader),
		GRPCAcceptEncoding: header.Get(gRPCAcceptEncodingHeader),
	}
}

func getValueFromMetadata(md metadata.MD, key string) string {
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

func getDataset(ri RequestInfo, serviceName string) string {
	if ri.hasLegacyKey() {
		return ri.Dataset
	}
	serviceName = strings.TrimSpace(serviceName)
	if serviceName == "" || strings.HasPrefix(serviceName, defaultServiceName) {
		return defaultServiceName
	}
	return serviceName
}

// readRequestBody reads and decompresses a request body.
func readRequestBody(body io.ReadCloser, contentEncoding string) ([]byte, error) {
	defer body.Close()
	if !isContentEncodingSupported(contentEncoding) {
		return nil, ErrInvalidContentEncoding
	}
	bodyBytes, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	return decompress(bodyBytes, contentEncoding)
}

func decompress(data []byte, contentEncoding string) ([]byte, error) {
	switch contentEncoding {
	case "gzip":
		gzipReader, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer gzipReader.Close()
		return io.ReadAll(gzipReader)
	case "zstd":
		zstdReader, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer zstdReader.Close()
		return zstdReader.DecodeAll(data, nil)
	default:
		return data, nil
	}
}
