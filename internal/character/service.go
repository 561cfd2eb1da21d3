// Package character provides persona management and the prompt adapter
// that turns a character interaction into a generation request.
package character

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/model-router/router/internal/storage"
	"github.com/model-router/router/pkg/errors"
	"github.com/model-router/router/pkg/types"
	"github.com/model-router/router/pkg/utils"
)

const (
	cacheTTL = 10 * time.Minute

	// TaskTypeConversation is the task type every character
	// interaction is routed under.
	TaskTypeConversation = "conversation"
)

// Store is the persistence surface the service needs. It is satisfied
// by storage.CharacterRepository.
type Store interface {
	Create(ctx context.Context, character *storage.Character) error
	GetByName(ctx context.Context, name string) (*storage.Character, error)
	List(ctx context.Context, offset, limit int) ([]storage.Character, error)
	Update(ctx context.Context, character *storage.Character) error
	Delete(ctx context.Context, name string) error
}

// Service manages characters and builds generation requests from
// interactions.
type Service struct {
	repo   Store
	cache  *storage.CharacterCache
	logger *utils.Logger
}

func NewService(repo Store, cache *storage.CharacterCache, logger *utils.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// Create stores a new character.
func (s *Service) Create(ctx context.Context, character *storage.Character) error {
	if character.Name == "" {
		return errors.New(errors.ErrInvalidRequest, "Character name is required")
	}
	if character.Persona == "" {
		return errors.New(errors.ErrInvalidRequest, "Character persona is required")
	}
	if character.Temperature == 0 {
		character.Temperature = 0.7
	}

	if err := s.repo.Create(ctx, character); err != nil {
		return fmt.Errorf("failed to create character: %w", err)
	}

	s.logger.WithField("character", character.Name).Info("Character created")
	return nil
}

// Get returns a character by name, reading through the cache.
func (s *Service) Get(ctx context.Context, name string) (*storage.Character, error) {
	if s.cache != nil {
		var cached storage.Character
		if err := s.cache.Get(ctx, name, &cached); err == nil {
			return &cached, nil
		}
	}

	character, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, errors.NewWithDetails(errors.ErrCharacterNotFound,
			"Character not found", name)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, name, character, cacheTTL); err != nil {
			s.logger.WithError(err).Warn("Failed to cache character")
		}
	}

	return character, nil
}

// List returns active characters.
func (s *Service) List(ctx context.Context, offset, limit int) ([]storage.Character, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.List(ctx, offset, limit)
}

// Update saves character changes and invalidates the cache entry.
func (s *Service) Update(ctx context.Context, character *storage.Character) error {
	if err := s.repo.Update(ctx, character); err != nil {
		return fmt.Errorf("failed to update character: %w", err)
	}
	s.invalidate(ctx, character.Name)
	return nil
}

// Delete deactivates a character.
func (s *Service) Delete(ctx context.Context, name string) error {
	if err := s.repo.Delete(ctx, name); err != nil {
		return fmt.Errorf("failed to delete character: %w", err)
	}
	s.invalidate(ctx, name)
	return nil
}

func (s *Service) invalidate(ctx context.Context, name string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, name); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate character cache")
	}
}

// BuildRequest turns a character interaction into a generation request.
// The persona is prepended to the user message, optional caller-supplied
// context sits between them, and the character's temperature carries
// through as a request override.
func (s *Service) BuildRequest(ctx context.Context, characterName, message, contextText, callerID string, selection types.ModelSelection) (*types.GenerationRequest, *storage.Character, error) {
	if strings.TrimSpace(message) == "" {
		return nil, nil, errors.New(errors.ErrInvalidRequest, "Message is required")
	}

	character, err := s.Get(ctx, characterName)
	if err != nil {
		return nil, nil, err
	}

	var prompt strings.Builder
	prompt.WriteString("You are ")
	prompt.WriteString(character.Name)
	prompt.WriteString(". ")
	prompt.WriteString(character.Persona)
	if trimmed := strings.TrimSpace(contextText); trimmed != "" {
		prompt.WriteString("\n\nContext: ")
		prompt.WriteString(trimmed)
	}
	prompt.WriteString("\n\nUser: ")
	prompt.WriteString(message)
	prompt.WriteString("\n")
	prompt.WriteString(character.Name)
	prompt.WriteString(":")

	temperature := character.Temperature

	req := &types.GenerationRequest{
		ID:          utils.GenerateRequestID(),
		Prompt:      prompt.String(),
		TaskType:    TaskTypeConversation,
		Selection:   selection,
		Temperature: &temperature,
		CallerID:    callerID,
		Timestamp:   time.Now(),
	}

	return req, character, nil
}
