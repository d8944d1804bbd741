package http

import (
	"time"

	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model/config"
	"github.com/secmon-lab/zatsugaku/pkg/usecase"
)

type tagResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type tagWithCountResponse struct {
	tagResponse
	EntryCount int `json:"entryCount"`
}

// entryResponse omits the embedding vector itself
type entryResponse struct {
	ID           string        `json:"id"`
	Content      string        `json:"content"`
	Source       string        `json:"source"`
	HasEmbedding bool          `json:"hasEmbedding"`
	Tags         []tagResponse `json:"tags"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

type entryPageResponse struct {
	Entries    []entryResponse `json:"entries"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	PerPage    int             `json:"perPage"`
	TotalPages int             `json:"totalPages"`
}

type tagEntriesResponse struct {
	Tag     tagResponse     `json:"tag"`
	Entries []entryResponse `json:"entries"`
}

type similarityMatchResponse struct {
	entryResponse
	Similarity  float64 `json:"similarity"`
	Description string  `json:"description"`
}

type similarityPresetResponse struct {
	Name        string  `json:"name"`
	Threshold   float64 `json:"threshold"`
	Description string  `json:"description"`
}

type similarityConfigResponse struct {
	DefaultThreshold float64                    `json:"defaultThreshold"`
	DefaultLimit     int                        `json:"defaultLimit"`
	Presets          []similarityPresetResponse `json:"presets"`
}

type batchResponse struct {
	Success   bool `json:"success"`
	Processed int  `json:"processed"`
	Failed    int  `json:"failed"`
	Total     int  `json:"total"`
}

type embeddingStatsResponse struct {
	Total          int     `json:"total"`
	Embedded       int     `json:"embedded"`
	Unembedded     int     `json:"unembedded"`
	CompletionRate float64 `json:"completionRate"`
}

type userResponse struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type entryRequest struct {
	Content string   `json:"content"`
	Source  string   `json:"source"`
	TagIDs  []string `json:"tagIds"`
}

func (x entryRequest) input() usecase.EntryInput {
	return usecase.EntryInput{
		Content: x.Content,
		Source:  x.Source,
		TagIDs:  toTagIDs(x.TagIDs),
	}
}

type tagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type similarityRequest struct {
	Content   string    `json:"content"`
	Vector    []float32 `json:"vector,omitempty"`
	ExcludeID string    `json:"excludeId,omitempty"`
	Threshold *float64  `json:"threshold,omitempty"`
	Limit     *int      `json:"limit,omitempty"`
}

type generateEmbeddingRequest struct {
	EntryID string `json:"entryId"`
	Content string `json:"content"`
}

func toTagIDs(ids []string) []model.TagID {
	result := make([]model.TagID, 0, len(ids))
	for _, id := range ids {
		result = append(result, model.TagID(id))
	}
	return result
}

func toTagResponse(t *model.Tag) tagResponse {
	return tagResponse{
		ID:        t.ID.String(),
		Name:      t.Name,
		Color:     t.Color.String(),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func toTagResponses(tags []*model.Tag) []tagResponse {
	result := make([]tagResponse, 0, len(tags))
	for _, t := range tags {
		result = append(result, toTagResponse(t))
	}
	return result
}

func toEntryResponse(e *model.Entry, tags []*model.Tag) entryResponse {
	return entryResponse{
		ID:           e.ID.String(),
		Content:      e.Content,
		Source:       e.Source,
		HasEmbedding: e.HasEmbedding(),
		Tags:         toTagResponses(tags),
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func toEntryResponses(entries []*model.EntryWithTags) []entryResponse {
	result := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		result = append(result, toEntryResponse(e.Entry, e.Tags))
	}
	return result
}

func toSimilarityConfigResponse(cfg *config.SimilarityConfig) similarityConfigResponse {
	presets := make([]similarityPresetResponse, 0, len(model.SimilarityPresets))
	for _, p := range model.SimilarityPresets {
		presets = append(presets, similarityPresetResponse{
			Name:        p.Name,
			Threshold:   p.Threshold,
			Description: p.Description,
		})
	}
	return similarityConfigResponse{
		DefaultThreshold: cfg.DefaultThreshold,
		DefaultLimit:     cfg.DefaultLimit,
		Presets:          presets,
	}
}
