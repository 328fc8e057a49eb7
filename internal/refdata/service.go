package refdata

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"haven/internal/models"

	"github.com/rs/zerolog/log"
)

// Service provides read-only access to reference data.
// Safe for concurrent use; Reload swaps the config atomically.
type Service struct {
	mu         sync.RWMutex
	config     *Config
	configPath string
}

// NewService creates a reference data service.
// If configPath is empty, the built-in defaults are used.
func NewService(configPath string) (*Service, error) {
	s := &Service{configPath: configPath}

	if configPath == "" {
		s.config = DefaultConfig()
		log.Info().Msg("refdata: no config path provided, using built-in defaults")
		return s, nil
	}

	if err := s.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load reference data: %w", err)
	}

	return s, nil
}

// loadConfig reads and parses the config file
func (s *Service) loadConfig() error {
	data, err := os.ReadFile(s.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = &config

	log.Info().
		Int("reaction_types", len(config.ReactionValues)).
		Int("templates", len(config.Templates)).
		Int("tiers", len(config.Tiers)).
		Str("path", s.configPath).
		Msg("refdata: config loaded")

	return nil
}

// Reload reloads the configuration from disk
func (s *Service) Reload() error {
	if s.configPath == "" {
		return nil
	}
	return s.loadConfig()
}

// PointValue returns the reputation points granted for a reaction type.
// The second return is false for unknown types.
func (s *Service) PointValue(typ models.ReactionType) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.config.ReactionValues[typ]
	return value, ok
}

// Template returns the report template for the given code, if any
func (s *Service) Template(code string) (*ReportTemplate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tpl, ok := s.config.Templates[code]
	if !ok {
		return nil, false
	}
	// Return a copy to prevent external modification
	tplCopy := *tpl
	return &tplCopy, true
}

// TierFor returns the moderation tier for the given role, if any
func (s *Service) TierFor(role string) (*Tier, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tier, ok := s.config.Tiers[role]
	if !ok {
		return nil, false
	}
	tierCopy := *tier
	return &tierCopy, true
}

// HasCapability reports whether the role's tier allows the capability
func (s *Service) HasCapability(role string, cap Capability) bool {
	tier, ok := s.TierFor(role)
	if !ok {
		return false
	}
	return tier.HasCapability(cap)
}
