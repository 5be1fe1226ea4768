package authclient

import (
	"errors"
	"fmt"
	"time"
)

// DefaultSafetyMargin treats a credential as expired this long before its
// actual expiry.
const DefaultSafetyMargin = 30 * time.Second

// Store reads from the first source that holds credentials and writes to
// all of them.
type Store struct {
	sources []Source
	margin  time.Duration
	clock   func() time.Time
}

func NewStore(sources ...Source) *Store {
	if len(sources) == 0 {
		sources = []Source{NewMemorySource()}
	}
	return &Store{sources: sources, margin: DefaultSafetyMargin, clock: time.Now}
}

func (s *Store) Load() (Credentials, error) {
	var errs []error
	for _, src := range s.sources {
		c, err := src.Load()
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrNoCredentials) {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
		}
	}
	if len(errs) > 0 {
		return Credentials{}, errors.Join(append([]error{ErrNoCredentials}, errs...)...)
	}
	return Credentials{}, ErrNoCredentials
}

func (s *Store) Save(c Credentials) error {
	var errs []error
	for _, src := range s.sources {
		if err := src.Save(c); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (s *Store) Clear() error {
	var errs []error
	for _, src := range s.sources {
		if err := src.Clear(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// IsExpired is true when no credentials are stored or the access token
// expires within the safety margin.
func (s *Store) IsExpired() bool {
	c, err := s.Load()
	if err != nil || c.AccessToken == "" {
		return true
	}
	return !s.clock().Add(s.margin).Before(c.ExpiresAt())
}
