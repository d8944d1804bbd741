package usecase

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/zatsugaku/pkg/domain/interfaces"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
	"github.com/secmon-lab/zatsugaku/pkg/domain/types"
)

type TagUseCase struct {
	repo interfaces.Repository
}

func NewTagUseCase(repo interfaces.Repository) *TagUseCase {
	return &TagUseCase{
		repo: repo,
	}
}

func buildTag(name string, color types.Color) (*model.Tag, error) {
	name = strings.TrimSpace(name)
	if err := model.ValidateTagName(name); err != nil {
		return nil, err
	}

	color = color.OrDefault()
	if err := color.Validate(); err != nil {
		return nil, goerr.Wrap(model.ErrValidation, "invalid tag color", goerr.V("color", color), goerr.V("cause", err.Error()))
	}

	return &model.Tag{Name: name, Color: color}, nil
}

func (uc *TagUseCase) CreateTag(ctx context.Context, name string, color types.Color) (*model.Tag, error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}

	tag, err := buildTag(name, color)
	if err != nil {
		return nil, err
	}

	created, err := uc.repo.Tag().Create(ctx, tag)
	if err != nil {
		return nil, storeError(err, "failed to create tag", goerr.V(model.TagNameKey, tag.Name))
	}
	return created, nil
}

func (uc *TagUseCase) UpdateTag(ctx context.Context, id model.TagID, name string, color types.Color) (*model.Tag, error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}

	tag, err := buildTag(name, color)
	if err != nil {
		return nil, err
	}
	tag.ID = id

	updated, err := uc.repo.Tag().Update(ctx, tag)
	if err != nil {
		return nil, storeError(err, "failed to update tag", goerr.V(model.TagIDKey, id))
	}
	return updated, nil
}

func (uc *TagUseCase) DeleteTag(ctx context.Context, id model.TagID) error {
	if _, err := requireUser(ctx); err != nil {
		return err
	}
	if err := checkTagID(id); err != nil {
		return err
	}

	if err := uc.repo.Tag().Delete(ctx, id); err != nil {
		return storeError(err, "failed to delete tag", goerr.V(model.TagIDKey, id))
	}
	return nil
}

func (uc *TagUseCase) GetTagByName(ctx context.Context, name string) (*model.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, goerr.Wrap(model.ErrValidation, "tag name is required")
	}

	tag, err := uc.repo.Tag().GetByName(ctx, name)
	if err != nil {
		return nil, storeError(err, "failed to get tag", goerr.V(model.TagNameKey, name))
	}
	return tag, nil
}

// ListTags returns every tag ordered by name with its entry count
func (uc *TagUseCase) ListTags(ctx context.Context) ([]*model.TagWithCount, error) {
	tags, err := uc.repo.Tag().List(ctx)
	if err != nil {
		return nil, storeError(err, "failed to list tags")
	}
	return tags, nil
}
