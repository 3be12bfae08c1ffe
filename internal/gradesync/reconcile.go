package gradesync

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/wims-lti/wims-lti/internal/db/controller/registry"
)

// ReconcileClasses deletes the mapping tree of every class that no longer
// exists on its WIMS server. Supervisors can remove classes directly on WIMS,
// this keeps the registry from syncing into the void forever. A server that
// cannot be reached is skipped, absence must be positively confirmed.
func (s *Service) ReconcileClasses(ctx context.Context) error {
	classes, err := registry.ListClasses(s.db)
	if err != nil {
		return err
	}

	for i := range classes {
		class := &classes[i]
		client := s.newClient(&class.Provider, s.timeout)

		exists, err := client.CheckClass(ctx, class.QClass)
		if err != nil {
			log.Warn().
				Err(err).
				Str("qclass", class.QClass).
				Str("provider_url", class.Provider.URL).
				Msg("class existence check failed")
			continue
		}
		if exists {
			continue
		}

		if err := registry.DeleteClass(s.db, class.ID); err != nil {
			log.Error().
				Err(err).
				Str("qclass", class.QClass).
				Msg("deleting mappings of removed class failed")
			continue
		}

		classesReconciled.Inc()
		log.Info().
			Str("qclass", class.QClass).
			Str("provider_url", class.Provider.URL).
			Msg("class removed on WIMS server, mappings deleted")
	}

	return nil
}
