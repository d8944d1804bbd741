package http

import (
	"net/http"

	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
)

func (s *Server) generateEmbeddingHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req generateEmbeddingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	if err := s.uc.Embedding.GenerateForEntry(ctx, model.EntryID(req.EntryID), req.Content); err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) batchGenerateHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := s.uc.Embedding.BatchGenerate(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, batchResponse{
		Success:   true,
		Processed: result.Processed,
		Failed:    result.Failed,
		Total:     result.Total,
	})
}

func (s *Server) embeddingStatsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := s.uc.Embedding.Stats(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeData(ctx, w, embeddingStatsResponse{
		Total:          stats.Total,
		Embedded:       stats.Embedded,
		Unembedded:     stats.Unembedded,
		CompletionRate: stats.CompletionRate,
	})
}
