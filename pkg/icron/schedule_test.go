package icron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTriggerInfo(t *testing.T) {
	ref := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	info, err := GetTriggerInfo("0 3 * * *", ref)
	require.NoError(t, err)

	assert.Equal(t, "0 3 * * *", info.Expression)
	assert.Equal(t, time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC), info.Next)
	assert.Equal(t, time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC), info.Last)
	assert.Equal(t, 9*time.Hour, info.TimeSinceLast)
	assert.Equal(t, 15*time.Hour, info.TimeUntilNext)
}

func TestGetTriggerInfo_Descriptor(t *testing.T) {
	ref := time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC)

	info, err := GetTriggerInfo("@hourly", ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC), info.Next)
	assert.Equal(t, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC), info.Last)
}

func TestGetTriggerInfo_Invalid(t *testing.T) {
	_, err := GetTriggerInfo("not a cron expr", time.Now())
	require.Error(t, err)
}
