package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	apperrors "github.com/copyleftdev/aimbench/internal/errors"
)

// JSON-RPC 2.0 error codes.
const (
	rpcParseError     = -32700
	rpcInvalidRequest = -32600
	rpcMethodNotFound = -32601
	rpcInvalidParams  = -32602
	rpcServerError    = -32000
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result"`
}

type rpcErrorResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   *rpcError       `json:"error"`
}

type idParams struct {
	ID string `json:"benchmark_id"`
}

// handleJSONRPC handles JSON-RPC 2.0 requests
//
//	benchmark.start  {suite fields... | "builtin": name} -> {"benchmark_id", "status"}
//	benchmark.status {"benchmark_id"}                     -> job
//	benchmark.cancel {"benchmark_id"}                     -> {"benchmark_id", "status"}
//	benchmark.list                                        -> [job]
//
// Params may be an object or a single-element array holding one.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.HTTP.MaxBodyBytes
	if limit <= 0 {
		limit = 1 << 20
	}

	var req rpcRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit)).Decode(&req); err != nil {
		s.respondWithError(w, rpcParseError, "Parse error", nil, nil)
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		s.respondWithError(w, rpcInvalidRequest, "Invalid Request", req.ID, nil)
		return
	}

	var (
		result interface{}
		err    error
	)
	switch req.Method {
	case "benchmark.start":
		var p StartParams
		if err = decodeParams(req.Params, &p); err == nil {
			var job *Job
			if job, err = s.Start(&p); err == nil {
				result = map[string]interface{}{"benchmark_id": job.ID, "status": StatusPending}
			}
		}
	case "benchmark.status":
		var p idParams
		if err = decodeParams(req.Params, &p); err == nil {
			result, err = s.Job(p.ID)
		}
	case "benchmark.cancel":
		var p idParams
		if err = decodeParams(req.Params, &p); err == nil {
			if err = s.Cancel(p.ID); err == nil {
				result = map[string]interface{}{"benchmark_id": p.ID, "status": StatusCancelled}
			}
		}
	case "benchmark.list":
		result = s.Jobs()
	default:
		s.respondWithError(w, rpcMethodNotFound, "Method not found", req.ID, nil)
		return
	}

	if err != nil {
		kind := apperrors.KindOf(err)
		code, msg := rpcServerError, err.Error()
		switch kind {
		case apperrors.KindInvalid:
			code = rpcInvalidParams
		case apperrors.KindInternal:
			msg = "Server error"
		}
		s.respondWithError(w, code, msg, req.ID, map[string]string{"kind": kind.String()})
		return
	}

	writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
}

func decodeParams(raw json.RawMessage, v interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return apperrors.Wrap(err, "invalid params", apperrors.KindInvalid)
		}
		if len(list) != 1 {
			return apperrors.Errorf(apperrors.KindInvalid, "expected one params object, got %d", len(list))
		}
		raw = list[0]
	}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return apperrors.New(apperrors.KindInvalid, "missing required parameters")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperrors.Wrap(err, "invalid params", apperrors.KindInvalid)
	}
	return nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id json.RawMessage, data interface{}) {
	s.logger.Warn("RPC error", map[string]interface{}{
		"code":    code,
		"message": message,
	})

	writeJSON(w, http.StatusOK, rpcErrorResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message, Data: data},
	})
}
