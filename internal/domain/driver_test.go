package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDriver(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	driver := NewDriver("  Ana.Lopez@Example.com ", " Ana López ", "+523121234567", "uid-1", DefaultDebtLimit, now)

	assert.Equal(t, "ana.lopez@example.com", driver.Key)
	assert.Equal(t, "Ana López", driver.FullName)
	assert.Equal(t, ApplicationAccountCreated, driver.ApplicationStatus)
	assert.Equal(t, StatusUninitialized, driver.OperationalStatus)
	assert.True(t, driver.Wallet.CurrentBalance.IsZero())
	assert.True(t, driver.Wallet.DebtLimit.Equal(d("-500")))
	assert.Equal(t, ProLevelBronze, driver.ProStatus.Level)
	assert.Empty(t, driver.ExternalDispatchID)
	assert.Equal(t, now, driver.CreatedAt)
}

func TestRoles(t *testing.T) {
	assert.Equal(t, RoleAdmin, ParseRole("admin"))
	assert.Equal(t, RoleSuperAdmin, ParseRole("superadmin"))
	assert.Equal(t, RoleDriver, ParseRole("driver"))
	assert.Equal(t, Role(""), ParseRole("Admin "))
	assert.Equal(t, Role(""), ParseRole("root"))

	assert.True(t, RoleAdmin.IsAdmin())
	assert.True(t, RoleSuperAdmin.IsAdmin())
	assert.False(t, RoleDriver.IsAdmin())
	assert.False(t, Role("").IsAdmin())
}
