package http

import (
	"errors"
	"net/http"

	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
	"github.com/secmon-lab/zatsugaku/pkg/usecase"
)

// msgLoginRequired is shown to anonymous users instead of an empty result
const msgLoginRequired = "feature unavailable without login"

func (s *Server) similaritySearchHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req similarityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	matches, err := s.uc.Similarity.FindSimilar(ctx, usecase.SimilarityInput{
		Content:   req.Content,
		Vector:    req.Vector,
		ExcludeID: model.EntryID(req.ExcludeID),
		Threshold: req.Threshold,
		Limit:     req.Limit,
	})
	if err != nil {
		if errors.Is(err, model.ErrUnauthorized) {
			writeErrorMessage(ctx, w, err, http.StatusUnauthorized, msgLoginRequired)
			return
		}
		writeError(ctx, w, err)
		return
	}

	resp := make([]similarityMatchResponse, 0, len(matches))
	for _, m := range matches {
		resp = append(resp, similarityMatchResponse{
			entryResponse: toEntryResponse(m.Entry, m.Tags),
			Similarity:    m.Similarity,
			Description:   m.Description,
		})
	}
	writeData(ctx, w, resp)
}

func (s *Server) similarityConfigHandler(w http.ResponseWriter, r *http.Request) {
	writeData(r.Context(), w, toSimilarityConfigResponse(s.uc.Similarity.Config()))
}
