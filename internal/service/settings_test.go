package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet/internal/domain"
	"fleet/internal/logging"
	"fleet/internal/repository"
	"fleet/internal/service"
)

func TestSettings_DefaultsBeforeFirstUpdate(t *testing.T) {
	h := newHarness(t)

	settings, err := h.settings.Get(context.Background(), admin)
	require.NoError(t, err)
	assert.True(t, settings.BaseCommission.Equal(dec("15")))
	assert.False(t, settings.RainFee.Active)
	assert.Zero(t, settings.Version)
	assert.False(t, h.cache.Cached(), "defaults are not cached")
}

func TestSettings_UpdateBumpsVersionAndInvalidatesCache(t *testing.T) {
	h := newHarness(t)
	h.setSettings(t, domain.SettingsPatch{RainFee: &domain.RainFee{Active: true, Amount: dec("10")}})

	first, err := h.settings.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Version)
	assert.True(t, h.cache.Cached())

	commission := dec("18")
	updated, err := h.settings.Update(context.Background(), superadmin, domain.SettingsPatch{BaseCommission: &commission})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.True(t, updated.RainFee.Active, "unpatched fields are kept")
	assert.False(t, h.cache.Cached())

	current, err := h.settings.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, current.BaseCommission.Equal(dec("18")))
}

// updateDuringRead runs an update after the wrapped read has loaded its snapshot
// but before the reader gets to fill the cache.
type updateDuringRead struct {
	repository.SettingsRepository
	update func()
}

func (r *updateDuringRead) Get(ctx context.Context) (*domain.OperationalSettings, error) {
	snapshot, err := r.SettingsRepository.Get(ctx)
	if r.update != nil {
		r.update()
		r.update = nil
	}
	return snapshot, err
}

func TestSettings_StaleReadDoesNotRefillCache(t *testing.T) {
	h := newHarness(t)
	h.setSettings(t, domain.SettingsPatch{RainFee: &domain.RainFee{Active: true, Amount: dec("10")}})

	writer := service.NewSettingsService(h.store, h.cache, domain.DefaultBaseCommission, logging.Discard())
	repo := &updateDuringRead{SettingsRepository: h.store, update: func() {
		commission := dec("18")
		_, err := writer.Update(context.Background(), admin, domain.SettingsPatch{BaseCommission: &commission})
		require.NoError(t, err)
	}}
	reader := service.NewSettingsService(repo, h.cache, domain.DefaultBaseCommission, logging.Discard())

	stale, err := reader.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stale.Version, "the read itself returns its snapshot")
	assert.Equal(t, int64(2), h.cache.Floor())
	assert.False(t, h.cache.Cached(), "the older snapshot is not written back")

	current, err := h.settings.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), current.Version)
	assert.True(t, current.BaseCommission.Equal(dec("18")))
}

func TestSettings_NextSettlementSeesUpdate(t *testing.T) {
	h := newHarness(t)
	h.addDriver(t, "ana@example.com", "601", domain.StatusActive)

	_, err := h.settlement.Settle(context.Background(), delivery("S-1", "601", domain.PaymentMethodCash, "0", "0"))
	require.NoError(t, err)

	commission := dec("20")
	h.setSettings(t, domain.SettingsPatch{BaseCommission: &commission})

	result, err := h.settlement.Settle(context.Background(), delivery("S-2", "601", domain.PaymentMethodCash, "0", "0"))
	require.NoError(t, err)
	assert.True(t, result.Transactions[0].Amount.Equal(dec("-20")))
}

func TestSettings_CacheReadFailureFallsBackToStore(t *testing.T) {
	h := newHarness(t)
	commission := dec("12")
	h.setSettings(t, domain.SettingsPatch{BaseCommission: &commission})
	h.cache.GetError = errors.New("redis down")

	current, err := h.settings.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, current.BaseCommission.Equal(dec("12")))
}

func TestSettings_WorksWithoutCache(t *testing.T) {
	h := newHarness(t)
	settings := service.NewSettingsService(h.store, nil, dec("9"), logging.Discard())

	current, err := settings.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, current.BaseCommission.Equal(dec("9")))

	fee := domain.RainFee{Active: true, Amount: dec("5")}
	_, err = settings.Update(context.Background(), admin, domain.SettingsPatch{RainFee: &fee})
	require.NoError(t, err)

	current, err = settings.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, current.BaseCommission.Equal(dec("9")), "configured default is persisted with the first update")
	assert.True(t, current.ActiveRainFee().Equal(dec("5")))
}

func TestSettings_Validation(t *testing.T) {
	h := newHarness(t)
	negative := dec("-1")
	subCent := dec("15.005")

	cases := map[string]domain.SettingsPatch{
		"negative commission": {BaseCommission: &negative},
		"negative rain fee":   {RainFee: &domain.RainFee{Active: true, Amount: negative}},
		"sub-cent commission": {BaseCommission: &subCent},
		"sub-cent rain fee":   {RainFee: &domain.RainFee{Active: true, Amount: dec("0.005")}},
		"sub-cent incentive": {Incentives: &[]domain.Incentive{
			{Description: "Odd", Amount: dec("10.001"), Active: true},
		}},
		"incentive without description": {Incentives: &[]domain.Incentive{
			{Amount: dec("10"), Active: true},
		}},
		"incentive without amount": {Incentives: &[]domain.Incentive{
			{Description: "Zero", Amount: dec("0"), Active: true},
		}},
		"duplicate incentive ids": {Incentives: &[]domain.Incentive{
			{ID: "a", Description: "One", Amount: dec("10")},
			{ID: "a", Description: "Two", Amount: dec("20")},
		}},
	}
	for name, patch := range cases {
		_, err := h.settings.Update(context.Background(), admin, patch)
		assert.ErrorIs(t, err, service.ErrInvalidSettings, name)
	}

	_, err := h.settings.Get(context.Background(), admin)
	require.NoError(t, err)
	_, err = h.store.Get(context.Background())
	assert.Error(t, err, "nothing was stored")
}

func TestSettings_AssignsIncentiveIDs(t *testing.T) {
	h := newHarness(t)
	incentives := []domain.Incentive{{Description: "Weekend rush", Amount: dec("50"), Active: true}}

	updated, err := h.settings.Update(context.Background(), admin, domain.SettingsPatch{Incentives: &incentives})
	require.NoError(t, err)
	require.Len(t, updated.Incentives, 1)
	assert.NotEmpty(t, updated.Incentives[0].ID)
}

func TestSettings_RequiresAdmin(t *testing.T) {
	h := newHarness(t)
	driver := domain.Principal{Subject: "ana@example.com", Role: domain.RoleDriver}

	_, err := h.settings.Get(context.Background(), driver)
	assert.ErrorIs(t, err, service.ErrPermissionDenied)

	commission := dec("1")
	_, err = h.settings.Update(context.Background(), driver, domain.SettingsPatch{BaseCommission: &commission})
	assert.ErrorIs(t, err, service.ErrPermissionDenied)
}
