package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
)

// queryInt parses an optional integer query parameter; absent means 0
func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, goerr.Wrap(model.ErrValidation, "query parameter must be an integer",
			goerr.V("key", key), goerr.V("value", raw))
	}
	return v, nil
}

func (s *Server) listEntriesHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, err := queryInt(r, "page")
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	perPage, err := queryInt(r, "per_page")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := s.uc.Entry.ListEntries(ctx, page, perPage)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeData(ctx, w, entryPageResponse{
		Entries:    toEntryResponses(result.Entries),
		Total:      result.Total,
		Page:       result.Page,
		PerPage:    result.PerPage,
		TotalPages: result.TotalPages,
	})
}

func (s *Server) recentEntriesHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	entries, err := s.uc.Entry.RecentEntries(ctx, limit)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeData(ctx, w, toEntryResponses(entries))
}

func (s *Server) searchEntriesHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	entries, err := s.uc.Entry.SearchEntries(ctx, query.Get("q"), toTagIDs(query["tag_id"]))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeData(ctx, w, toEntryResponses(entries))
}

func (s *Server) createEntryHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	created, err := s.uc.Entry.CreateEntry(ctx, req.input())
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, dataResponse[entryResponse]{
		Success: true,
		Data:    toEntryResponse(created.Entry, created.Tags),
	})
}

func (s *Server) getEntryHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entry, err := s.uc.Entry.GetEntry(ctx, model.EntryID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeData(ctx, w, toEntryResponse(entry.Entry, entry.Tags))
}

func (s *Server) updateEntryHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	updated, err := s.uc.Entry.UpdateEntry(ctx, model.EntryID(chi.URLParam(r, "id")), req.input())
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeData(ctx, w, toEntryResponse(updated.Entry, updated.Tags))
}

func (s *Server) deleteEntryHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.uc.Entry.DeleteEntry(ctx, model.EntryID(chi.URLParam(r, "id"))); err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, successResponse{Success: true})
}
