// Package gradesync pulls scores out of WIMS servers and pushes them to the
// LMS gradebooks that launched the corresponding activities. It also prunes
// mappings of classes that no longer exist on their WIMS server.
package gradesync

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/wims-lti/wims-lti/internal/db/controller/gradelink"
	"github.com/wims-lti/wims-lti/internal/db/controller/registry"
	"github.com/wims-lti/wims-lti/internal/db/models"
	"github.com/wims-lti/wims-lti/internal/outcomes"
	"github.com/wims-lti/wims-lti/internal/wims"
)

// ScoreSource is the part of the WIMS client the synchronizer reads from.
type ScoreSource interface {
	CheckClass(ctx context.Context, qclass string) (bool, error)
	GetSheetScores(ctx context.Context, qclass, qsheet string) ([]wims.SheetScore, error)
}

// ClientFactory builds a score source for one WIMS server.
type ClientFactory func(provider *models.Provider, timeout time.Duration) ScoreSource

// Sender delivers one grade report to an LMS.
type Sender interface {
	Send(ctx context.Context, report outcomes.Report) error
}

// Service runs grade synchronization and class reconciliation.
type Service struct {
	db        *gorm.DB
	timeout   time.Duration
	newClient ClientFactory
	sender    Sender
}

// New creates a synchronizer using real WIMS clients and a real outcomes
// reporter, both bounded by timeout per remote call.
func New(db *gorm.DB, timeout time.Duration) *Service {
	return &Service{
		db:      db,
		timeout: timeout,
		newClient: func(p *models.Provider, timeout time.Duration) ScoreSource {
			return wims.New(p.URL, p.Ident, p.Passwd, p.RClass, timeout)
		},
		sender: outcomes.NewReporter(timeout),
	}
}

// mean averages the per-exercise scores of one sheet result. The boolean is
// false when there are no components, which happens for participants who
// never opened the sheet.
func mean(components []float64) (float64, bool) {
	if len(components) == 0 {
		return 0, false
	}

	var sum float64
	for _, c := range components {
		sum += c
	}

	return sum / float64(len(components)), true
}

// SyncActivity pushes the current scores of one sheet to the LMS. Records
// without a user mapping or grade link are skipped: they belong to
// participants who entered the class outside LTI or never launched the
// activity. A failed delivery is logged and does not stop the rest.
func (s *Service) SyncActivity(
	ctx context.Context,
	class *models.ClassMapping,
	activity *models.ActivityMapping,
) error {
	client := s.newClient(&class.Provider, s.timeout)

	scores, err := client.GetSheetScores(ctx, class.QClass, activity.QSheet)
	if err != nil {
		return errors.Wrapf(err, "fetching scores of sheet %s in class %s", activity.QSheet, class.QClass)
	}

	for _, score := range scores {
		grade, ok := mean(score.GotDetails)
		if !ok {
			continue
		}

		user, err := registry.UserByQUser(s.db, class.ID, score.QUser)
		if err != nil {
			if errors.Is(err, registry.ErrUserNotFound) {
				continue
			}
			return err
		}

		link, err := gradelink.Get(s.db, user.ID, activity.ID)
		if err != nil {
			if errors.Is(err, gradelink.ErrGradeLinkNotFound) {
				continue
			}
			return err
		}

		report := outcomes.Report{
			SourcedID:      link.SourcedID,
			URL:            link.URL,
			Grade:          grade,
			ConsumerKey:    class.Consumer.Key,
			ConsumerSecret: class.Consumer.Secret,
			QUser:          score.QUser,
			QSheet:         activity.QSheet,
			QClass:         class.QClass,
		}

		if err := s.sender.Send(ctx, report); err != nil {
			gradesFailed.Inc()
			log.Warn().
				Err(err).
				Str("quser", score.QUser).
				Str("qclass", class.QClass).
				Str("qsheet", activity.QSheet).
				Msg("grade delivery failed")
			continue
		}

		gradesSent.Inc()
	}

	return nil
}

// SyncAll runs one synchronization pass over every known (class, activity)
// pair. A failure on one pair is logged and does not touch the others.
func (s *Service) SyncAll(ctx context.Context) error {
	syncRuns.Inc()

	classes, err := registry.ListClasses(s.db)
	if err != nil {
		return err
	}

	for i := range classes {
		class := &classes[i]

		activities, err := registry.ListActivities(s.db, class.ID)
		if err != nil {
			return err
		}

		for j := range activities {
			if err := s.SyncActivity(ctx, class, &activities[j]); err != nil {
				log.Warn().
					Err(err).
					Str("qclass", class.QClass).
					Str("qsheet", activities[j].QSheet).
					Msg("activity synchronization failed")
			}
		}
	}

	return nil
}
