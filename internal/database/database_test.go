package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConnect_Error(t *testing.T) {
	t.Run("Error_UnknownDriver", func(t *testing.T) {
		cfg := Config{
			Driver:             "invalid",
			ConnectionString:   "invalid",
			MaxOpenConnections: 10,
			MaxIdleConnections: 5,
			ConnMaxLifetime:    time.Hour,
		}

		db, err := Connect(cfg)
		assert.Error(t, err)
		assert.Nil(t, db)
		assert.Contains(t, err.Error(), "sql: unknown driver")
	})

	t.Run("Error_MemoryDriver", func(t *testing.T) {
		db, err := Connect(Config{Driver: DriverMemory})
		assert.Error(t, err)
		assert.Nil(t, db)
	})
}
