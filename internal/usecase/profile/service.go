// Package profile stores onboarding answers per session so later questions can be re-ranked.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/billsearch/internal/db"
	"github.com/kailas-cloud/billsearch/internal/domain"
	"github.com/kailas-cloud/billsearch/internal/domain/document"
)

const keySegment = "profile:"

// Profile describes the company asking questions.
type Profile struct {
	CompanySize string   `json:"company_size,omitempty"`
	Industry    string   `json:"industry,omitempty"`
	State       string   `json:"state,omitempty"`
	Categories  []string `json:"categories,omitempty"`
}

// Service persists profiles in the KV store under <prefix>profile:<session id>.
type Service struct {
	kv     db.KVStore
	prefix string
	ttl    time.Duration
}

// New creates a profile service. ttl <= 0 stores profiles without expiry.
func New(kv db.KVStore, keyPrefix string, ttl time.Duration) *Service {
	return &Service{kv: kv, prefix: keyPrefix + keySegment, ttl: ttl}
}

// Save stores p under a new session id and returns the id.
func (s *Service) Save(ctx context.Context, p Profile) (string, error) {
	p = normalize(p)
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal profile: %w", err)
	}

	id := uuid.NewString()
	if s.ttl > 0 {
		err = s.kv.SetWithTTL(ctx, s.prefix+id, raw, s.ttl)
	} else {
		err = s.kv.Set(ctx, s.prefix+id, raw)
	}
	if err != nil {
		return "", fmt.Errorf("store profile: %w", err)
	}
	return id, nil
}

// Get loads the profile of a session and renews its expiry.
// Unknown or expired sessions return ErrNotFound.
func (s *Service) Get(ctx context.Context, sessionID string) (Profile, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return Profile{}, fmt.Errorf("session %q: %w", sessionID, domain.ErrNotFound)
	}

	raw, err := s.kv.GetEx(ctx, s.prefix+sessionID, s.ttl)
	if errors.Is(err, db.ErrKeyNotFound) {
		return Profile{}, fmt.Errorf("session %q: %w", sessionID, domain.ErrNotFound)
	}
	if err != nil {
		return Profile{}, fmt.Errorf("load profile: %w", err)
	}

	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return Profile{}, fmt.Errorf("decode profile %q: %w", sessionID, err)
	}
	return p, nil
}

func normalize(p Profile) Profile {
	p.CompanySize = strings.TrimSpace(p.CompanySize)
	p.Industry = strings.TrimSpace(p.Industry)
	p.State = document.NormalizeState(p.State)

	cats := make([]string, 0, len(p.Categories))
	for _, c := range p.Categories {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			cats = append(cats, c)
		}
	}
	p.Categories = cats
	return p
}
