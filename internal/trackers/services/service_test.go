package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-killtracker/internal/trackers/models"
)

type fakeWebhookDirectory struct {
	known map[string]bool
	err   error
}

func (f *fakeWebhookDirectory) Exists(ctx context.Context, id string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.known[id], nil
}

func validTracker() *models.Tracker {
	return &models.Tracker{
		Name:      "Lowsec Gankers",
		WebhookID: "webhook-1",
		PingType:  models.PingTypeHere,
		Color:     "#FF0000",
	}
}

func TestValidateTrackerConfiguration(t *testing.T) {
	service := NewService(nil, nil, &fakeWebhookDirectory{known: map[string]bool{"webhook-1": true}})

	cases := []struct {
		name   string
		mutate func(*models.Tracker)
		field  string
	}{
		{"valid", func(*models.Tracker) {}, ""},
		{"missing name", func(tr *models.Tracker) { tr.Name = "" }, "name"},
		{"missing webhook", func(tr *models.Tracker) { tr.WebhookID = "" }, "webhook_id"},
		{"max jumps without origin", func(tr *models.Tracker) { tr.RequireMaxJumps = intPtr(5) }, "origin_solar_system_id"},
		{"max distance without origin", func(tr *models.Tracker) { tr.RequireMaxDistance = float64Ptr(4.5) }, "origin_solar_system_id"},
		{"max jumps with origin", func(tr *models.Tracker) {
			tr.OriginSolarSystemID = intPtr(systemOrigin)
			tr.RequireMaxJumps = intPtr(5)
		}, ""},
		{"npc clauses exclusive", func(tr *models.Tracker) {
			tr.ExcludeNPCKills = true
			tr.RequireNPCKills = true
		}, "require_npc_kills"},
		{"min above max attackers", func(tr *models.Tracker) {
			tr.RequireMinAttackers = intPtr(5)
			tr.RequireMaxAttackers = intPtr(2)
		}, "require_min_attackers"},
		{"negative max jumps", func(tr *models.Tracker) {
			tr.OriginSolarSystemID = intPtr(systemOrigin)
			tr.RequireMaxJumps = intPtr(-1)
		}, "require_max_jumps"},
		{"zero min attackers", func(tr *models.Tracker) { tr.RequireMinAttackers = intPtr(0) }, "require_min_attackers"},
		{"bad ping type", func(tr *models.Tracker) { tr.PingType = "SOMETIMES" }, "ping_type"},
		{"bad color", func(tr *models.Tracker) { tr.Color = "red" }, "color"},
		{"short hex color", func(tr *models.Tracker) { tr.Color = "#FFF" }, "color"},
		{"unknown webhook", func(tr *models.Tracker) { tr.WebhookID = "nope" }, "webhook_id"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tracker := validTracker()
			tc.mutate(tracker)

			err := service.validate(context.Background(), tracker)
			if tc.field == "" {
				assert.NoError(t, err)
				return
			}
			var configErr *ConfigError
			require.ErrorAs(t, err, &configErr)
			assert.Equal(t, tc.field, configErr.Field)
		})
	}
}

func TestValidateSurfacesWebhookLookupFailure(t *testing.T) {
	service := NewService(nil, nil, &fakeWebhookDirectory{err: errors.New("mongo down")})

	err := service.validate(context.Background(), validTracker())
	require.Error(t, err)

	var configErr *ConfigError
	assert.False(t, errors.As(err, &configErr))
}
