package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"rag-chatbot/internal/app"
	"rag-chatbot/internal/httputil"
	"rag-chatbot/internal/schema"
	"rag-chatbot/internal/stream"
)

const maxChatBody = 1 << 20

func chatStreamHandler(deps *app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := deps.Log.With("request_id", requestID(r))

		var req schema.ChatRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
			httputil.Fail(log, w, "body: invalid JSON", err, http.StatusUnprocessableEntity)
			return
		}
		req.Normalize()
		if err := httputil.Validator.Struct(req); err != nil {
			httputil.ValidationError(log, w, err)
			return
		}

		src, sessionID, err := deps.Agent.Run(ctx, req.Message, req.SessionID)
		if err != nil {
			httputil.Fail(log, w, "Failed to start chat", err, http.StatusInternalServerError)
			return
		}
		log = log.With("session_id", sessionID)

		w.Header().Set("X-Session-ID", sessionID)
		sw, err := stream.NewWriter(w)
		if err != nil {
			src.Close()
			httputil.Fail(log, w, "Streaming unsupported", err, http.StatusInternalServerError)
			return
		}

		finish := deps.Metrics.StreamStarted()
		if err := sw.Send(schema.StatusChunk(schema.StatusReceived)); err != nil {
			src.Close()
			finish(string(stream.OutcomeCanceled))
			log.Info("client disconnected before streaming", "err", err)
			return
		}

		outcome, err := stream.Pump(ctx, sw, src)
		finish(string(outcome))
		switch outcome {
		case stream.OutcomeError:
			log.Error("chat stream failed", "err", err)
		case stream.OutcomeCanceled:
			log.Info("chat stream canceled by client")
		default:
			log.Debug("chat stream complete")
		}
	}
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
