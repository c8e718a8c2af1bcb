package protocol

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"srpcgo/message"
)

// S-http: S-bin semantics tunneled over HTTP/1.1. A request is an HTTP POST
// whose URI is "/<service>/<method>"; headers carry data type, compression
// and status; the body is the payload. Module-data is a set of
// "SRPC-Meta-*" headers. A successful RPC always gets HTTP 200 — the RPC
// status travels in the SRPC-Status header even when it is not ok;
// non-200 means a transport-level failure, not an RPC-level one.
//
// Per spec.md §1, the HTTP parser itself is delegated to the runtime —
// here, the standard library's http.ReadRequest/http.ReadResponse, which
// happen to share this package's bufio.Reader-based Parse signature.
const (
	headerContentType     = "Content-Type"
	headerContentEncoding = "Content-Encoding"
	headerSRPCStatus      = "SRPC-Status"
	headerSRPCError       = "SRPC-Error"
	headerMetaPrefix      = "SRPC-Meta-"
)

var dataTypeContentType = map[message.DataType]string{
	message.DataTypeProtobuf: "application/x-protobuf",
	message.DataTypeJSON:     "application/json",
	message.DataTypeThrift:   "application/x-thrift",
}

var contentTypeDataType = map[string]message.DataType{
	"application/x-protobuf": message.DataTypeProtobuf,
	"application/json":       message.DataTypeJSON,
	"application/x-thrift":   message.DataTypeThrift,
}

var compressEncoding = map[message.CompressType]string{
	message.CompressNone:   "identity",
	message.CompressGzip:   "gzip",
	message.CompressZlib:   "deflate",
	message.CompressSnappy: "snappy",
	message.CompressLZ4:    "lz4",
}

var encodingCompress = map[string]message.CompressType{
	"":         message.CompressNone,
	"identity": message.CompressNone,
	"gzip":     message.CompressGzip,
	"deflate":  message.CompressZlib,
	"snappy":   message.CompressSnappy,
	"lz4":      message.CompressLZ4,
}

type shttpAdapter struct{}

func init() { register("s-http", func() Adapter { return shttpAdapter{} }) }

func (shttpAdapter) Name() string { return "s-http" }

// RequiresCorrelation is false: S-http carries no correlation id and the
// server answers one connection's requests in order, so FIFO ordering
// alone matches replies to requests.
func (shttpAdapter) RequiresCorrelation() bool { return false }

func (shttpAdapter) Frame(msg *message.Message) ([]byte, error) {
	m := msg.Meta
	header := make(http.Header)
	if ct, ok := dataTypeContentType[m.DataType]; ok {
		header.Set(headerContentType, ct)
	}
	if enc, ok := compressEncoding[m.CompressType]; ok && enc != "identity" {
		header.Set(headerContentEncoding, enc)
	}
	for k, v := range m.ModuleData {
		header.Set(headerMetaPrefix+k, v)
	}

	var buf bytes.Buffer
	if m.IsRequest {
		req, err := http.NewRequest(http.MethodPost, "/"+m.Service+"/"+m.Method, bytes.NewReader(msg.Payload))
		if err != nil {
			return nil, err
		}
		req.Header = header
		req.ContentLength = int64(len(msg.Payload))
		if err := req.Write(&buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	header.Set(headerSRPCStatus, strconv.Itoa(int(m.Status)))
	if m.StatusErr != "" {
		header.Set(headerSRPCError, m.StatusErr)
	}
	resp := &http.Response{
		StatusCode:    http.StatusOK,
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(msg.Payload)),
		ContentLength: int64(len(msg.Payload)),
	}
	if err := resp.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (shttpAdapter) Parse(r *bufio.Reader, maxFrameSize int) (*message.Message, error) {
	peek, err := r.Peek(5)
	if err != nil && len(peek) == 0 {
		return nil, err
	}
	if string(peek) == "HTTP/" {
		return parseShttpResponse(r, maxFrameSize)
	}
	return parseShttpRequest(r, maxFrameSize)
}

func parseShttpRequest(r *bufio.Reader, maxFrameSize int) (*message.Message, error) {
	req, err := http.ReadRequest(r)
	if err != nil {
		return nil, err
	}
	defer req.Body.Close()

	if req.ContentLength > int64(maxFrameSize) {
		return nil, ErrOversized
	}
	body, err := io.ReadAll(io.LimitReader(req.Body, int64(maxFrameSize)+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxFrameSize {
		return nil, ErrOversized
	}

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: bad S-http URI %q", ErrMetaError, req.URL.Path)
	}

	meta := &message.Meta{
		Service:   parts[0],
		Method:    parts[1],
		IsRequest: true,
	}
	if err := fillMetaFromHeader(meta, req.Header); err != nil {
		return nil, err
	}

	return &message.Message{Meta: meta, Payload: body}, nil
}

func parseShttpResponse(r *bufio.Reader, maxFrameSize int) (*message.Message, error) {
	resp, err := http.ReadResponse(r, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.ContentLength > int64(maxFrameSize) {
		return nil, ErrOversized
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(maxFrameSize)+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxFrameSize {
		return nil, ErrOversized
	}

	meta := &message.Meta{IsRequest: false}
	if resp.StatusCode != http.StatusOK {
		meta.Status = message.StatusUpstreamFailed
		meta.StatusErr = resp.Status
	} else if statusStr := resp.Header.Get(headerSRPCStatus); statusStr != "" {
		code, convErr := strconv.Atoi(statusStr)
		if convErr != nil {
			return nil, fmt.Errorf("%w: bad SRPC-Status %q", ErrMetaError, statusStr)
		}
		meta.Status = message.Status(code)
		meta.StatusErr = resp.Header.Get(headerSRPCError)
	}
	if err := fillMetaFromHeader(meta, resp.Header); err != nil {
		return nil, err
	}

	return &message.Message{Meta: meta, Payload: body}, nil
}

func fillMetaFromHeader(meta *message.Meta, header http.Header) error {
	contentType := header.Get(headerContentType)
	if contentType == "" {
		meta.DataType = message.DataTypeJSON
	} else if dt, ok := contentTypeDataType[contentType]; ok {
		meta.DataType = dt
	} else {
		return fmt.Errorf("%w: unrecognized Content-Type %q", ErrMetaError, contentType)
	}

	encoding := strings.ToLower(header.Get(headerContentEncoding))
	ct, ok := encodingCompress[encoding]
	if !ok {
		return fmt.Errorf("%w: unrecognized Content-Encoding %q", ErrMetaError, encoding)
	}
	meta.CompressType = ct

	// HTTP header field names are case-insensitive (RFC 7230); Go's
	// http.Header canonicalizes them on both Set and parse, so a
	// module-data key survives S-http round-trips in canonical-cased
	// form even if the caller set it in a different case. Values are
	// untouched and preserved exactly.
	canonicalPrefix := textproto.CanonicalMIMEHeaderKey(headerMetaPrefix)
	md := message.ModuleData{}
	for key, values := range header {
		if strings.HasPrefix(key, canonicalPrefix) && len(values) > 0 {
			md[strings.TrimPrefix(key, canonicalPrefix)] = values[0]
		}
	}
	if len(md) > 0 {
		meta.ModuleData = md
	}
	return nil
}
