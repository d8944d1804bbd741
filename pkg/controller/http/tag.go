package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
	"github.com/secmon-lab/zatsugaku/pkg/domain/types"
)

func (s *Server) listTagsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tags, err := s.uc.Tag.ListTags(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	resp := make([]tagWithCountResponse, 0, len(tags))
	for _, t := range tags {
		resp = append(resp, tagWithCountResponse{
			tagResponse: toTagResponse(t.Tag),
			EntryCount:  t.EntryCount,
		})
	}
	writeData(ctx, w, resp)
}

func (s *Server) createTagHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req tagRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	created, err := s.uc.Tag.CreateTag(ctx, req.Name, types.Color(req.Color))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, dataResponse[tagResponse]{
		Success: true,
		Data:    toTagResponse(created),
	})
}

// getTagHandler resolves a tag by name and lists its entries
func (s *Server) getTagHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tag, entries, err := s.uc.Entry.ListEntriesByTagName(ctx, chi.URLParam(r, "tag"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeData(ctx, w, tagEntriesResponse{
		Tag:     toTagResponse(tag),
		Entries: toEntryResponses(entries),
	})
}

func (s *Server) updateTagHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req tagRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	updated, err := s.uc.Tag.UpdateTag(ctx, model.TagID(chi.URLParam(r, "tag")), req.Name, types.Color(req.Color))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeData(ctx, w, toTagResponse(updated))
}

func (s *Server) deleteTagHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.uc.Tag.DeleteTag(ctx, model.TagID(chi.URLParam(r, "tag"))); err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, successResponse{Success: true})
}
