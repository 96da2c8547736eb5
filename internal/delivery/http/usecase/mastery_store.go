package usecase

import (
	"context"
	"errors"

	"github.com/evandrarf/halpi-mastery/internal/cache"
	"github.com/evandrarf/halpi-mastery/internal/delivery/http/repository"
	"github.com/evandrarf/halpi-mastery/internal/mastery"
	"github.com/evandrarf/halpi-mastery/internal/pkg/mapper"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// masteryStore persists sessions through the repository. The identification
// snapshot is also written through to the progress cache when one is set.
type masteryStore struct {
	db    *gorm.DB
	repo  repository.MasteryRepository
	cache cache.ProgressCache
	log   logrus.FieldLogger
}

func newMasteryStore(db *gorm.DB, repo repository.MasteryRepository, progressCache cache.ProgressCache, log logrus.FieldLogger) *masteryStore {
	return &masteryStore{db: db, repo: repo, cache: progressCache, log: log}
}

func (s *masteryStore) conn(ctx context.Context) *gorm.DB {
	if s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return mastery.ErrNotFound
	}
	return err
}

func (s *masteryStore) LoadIdentification(ctx context.Context, key mastery.SessionKey) (mastery.IdentificationState, error) {
	if s.cache != nil {
		state, err := s.cache.Get(ctx, key)
		if err == nil {
			return state, nil
		}
		if !errors.Is(err, mastery.ErrNotFound) {
			s.log.WithError(err).Warn("progress cache read failed")
		}
	}

	row, err := s.repo.FindProgress(s.conn(ctx), key.ActivityID, key.LearnerID)
	if err != nil {
		return mastery.IdentificationState{}, notFound(err)
	}
	state, err := mapper.ConvertToIdentificationState(row)
	if err != nil {
		return mastery.IdentificationState{}, err
	}
	s.cacheSet(ctx, key, state)
	return state, nil
}

func (s *masteryStore) SaveIdentification(ctx context.Context, key mastery.SessionKey, state mastery.IdentificationState) error {
	row, err := mapper.ToIdentificationRow(key, state)
	if err != nil {
		return err
	}
	if err := s.repo.UpsertIdentification(s.conn(ctx), row); err != nil {
		return err
	}
	s.cacheSet(ctx, key, state)
	return nil
}

func (s *masteryStore) cacheSet(ctx context.Context, key mastery.SessionKey, state mastery.IdentificationState) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, state); err != nil {
		s.log.WithError(err).Warn("progress cache write failed")
	}
}

// invalidate drops the cached snapshot so a failed save after a reset
// cannot serve the old state.
func (s *masteryStore) invalidate(ctx context.Context, key mastery.SessionKey) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		s.log.WithError(err).Warn("progress cache delete failed")
	}
}

func (s *masteryStore) LoadRestitution(ctx context.Context, key mastery.SessionKey) ([]mastery.RestitutionRecord, error) {
	rows, err := s.repo.FindRestitutions(s.conn(ctx), key.ActivityID, key.LearnerID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, mastery.ErrNotFound
	}
	records := make([]mastery.RestitutionRecord, 0, len(rows))
	for i := range rows {
		rec, err := mapper.ConvertToRestitutionRecord(&rows[i])
		if err != nil {
			s.log.WithError(err).WithField("concept_id", rows[i].ConceptID).Warn("skipping unreadable restitution")
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *masteryStore) SaveRestitution(ctx context.Context, key mastery.SessionKey, rec mastery.RestitutionRecord) error {
	row, err := mapper.ToRestitutionRow(key, rec)
	if err != nil {
		return err
	}
	return s.repo.UpsertRestitution(s.conn(ctx), row)
}

func (s *masteryStore) ClearRestitution(ctx context.Context, key mastery.SessionKey) error {
	return s.repo.DeleteRestitutions(s.conn(ctx), key.ActivityID, key.LearnerID)
}

func (s *masteryStore) LoadProgress(ctx context.Context, key mastery.SessionKey) (mastery.Progress, error) {
	row, err := s.repo.FindProgress(s.conn(ctx), key.ActivityID, key.LearnerID)
	if err != nil {
		return mastery.Progress{}, notFound(err)
	}
	return mapper.ConvertToProgress(row)
}

func (s *masteryStore) SaveProgress(ctx context.Context, key mastery.SessionKey, p mastery.Progress) error {
	row, err := mapper.ToResultRow(key, p)
	if err != nil {
		return err
	}
	return s.repo.UpsertResult(s.conn(ctx), row)
}

// conceptSource reads authored concepts for an activity, falling back to the
// learner's other activities of the same chapter.
type conceptSource struct {
	db   *gorm.DB
	repo repository.MasteryRepository
}

func (c *conceptSource) conn(ctx context.Context) *gorm.DB {
	if c.db == nil {
		return nil
	}
	return c.db.WithContext(ctx)
}

func (c *conceptSource) Concepts(ctx context.Context, key mastery.SessionKey) ([]mastery.Concept, error) {
	row, err := c.repo.FindConceptsByActivity(c.conn(ctx), key.ActivityID, key.LearnerID)
	switch {
	case err == nil:
		concepts, err := mapper.ConvertToConcepts(row)
		if err != nil {
			return nil, err
		}
		if len(concepts) > 0 {
			return concepts, nil
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	chapter := mastery.ChapterID(key.ActivityID)
	if chapter == "" {
		return nil, mastery.ErrNoConcepts
	}
	rows, err := c.repo.FindConceptsByChapter(c.conn(ctx), chapter, key.LearnerID)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		concepts, err := mapper.ConvertToConcepts(&rows[i])
		if err != nil {
			continue
		}
		if len(concepts) > 0 {
			return concepts, nil
		}
	}
	return nil, mastery.ErrNoConcepts
}
