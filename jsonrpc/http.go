package jsonrpc

import (
	"io"
	"net/http"

	"github.com/0xSpaceShard/starknet-devnet-go/utils"
)

const maxRequestBodySize = 10 * 1024 * 1024

// HTTP adapts the rpc server to net/http; POST only, same envelope as the
// websocket endpoint.
type HTTP struct {
	rpc *Server
	log utils.Logger
}

func NewHTTP(rpc *Server, log utils.Logger) *HTTP {
	return &HTTP{rpc: rpc, log: log}
}

func (h *HTTP) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method == http.MethodGet {
		// Health probe.
		w.WriteHeader(http.StatusOK)
		return
	}
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxRequestBodySize))
	if err != nil {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	resp, err := h.rpc.Handle(req.Context(), body)
	if err != nil {
		h.log.Errorw("Failed to handle rpc request", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if resp != nil {
		if _, err := w.Write(resp); err != nil {
			h.log.Warnw("Failed to write rpc response", "err", err)
		}
	}
}
