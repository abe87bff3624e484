package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFiscalConfig_PoliticaEfectiva(t *testing.T) {
	c := &FiscalConfig{}
	assert.Equal(t, DefaultMaxManualRetries, c.ManualRetryLimit())
	assert.Equal(t, DefaultMaxCronRetries, c.CronRetryLimit())
	assert.Equal(t, 30*time.Second, c.RequestTimeout())

	c = &FiscalConfig{MaxManualRetries: 8, MaxCronRetries: 6, TimeoutSecs: 90}
	assert.Equal(t, 8, c.ManualRetryLimit())
	assert.Equal(t, 6, c.CronRetryLimit())
	assert.Equal(t, 90*time.Second, c.RequestTimeout())
}
