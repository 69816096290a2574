package storage

import (
	"context"

	"github.com/agendoai/agendo/services/scheduling-service/internal/model"
)

// GetService loads a service offered by the provider. A service not linked to the
// provider is reported as not found.
func (s *Store) GetService(ctx context.Context, providerID, serviceID int64) (model.Service, error) {
	var (
		svc      model.Service
		duration int32
	)
	err := s.db.QueryRow(ctx, `
		SELECT s.id, ps.provider_id, s.duration_minutes, s.price_cents
		FROM services s
		JOIN provider_services ps ON ps.service_id = s.id
		WHERE ps.provider_id = $1 AND s.id = $2
	`, providerID, serviceID).Scan(&svc.ID, &svc.ProviderID, &duration, &svc.PriceCents)
	if err != nil {
		return model.Service{}, classify(err, "service %d for provider %d", serviceID, providerID)
	}
	svc.Duration = int(duration)
	return svc, nil
}
