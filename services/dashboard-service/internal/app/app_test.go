package app

import (
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stoik/leaddesk/services/dashboard-service/internal/db"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/events"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/storage"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/upload"
)

func TestFlagDefaultsReachViper(t *testing.T) {
	assert.Equal(t, storage.DefaultBucket, viper.GetString("storage.bucket"))
	assert.Equal(t, upload.DefaultMaxBytes, viper.GetInt64("upload.max_bytes"))
	assert.True(t, viper.GetBool("upload.csv_only"))
	assert.Equal(t, events.DefaultExchange, viper.GetString("amqp.exchange"))
}

func TestOpenFilesWithoutDatabase(t *testing.T) {
	viper.Set("database.url", "")
	t.Cleanup(func() { viper.Set("database.url", "") })

	files, closeFiles, err := openFiles(context.Background())
	require.NoError(t, err)
	defer closeFiles()

	_, ok := files.(*db.MemoryFiles)
	assert.True(t, ok)
}

func TestOpenPublisherDisabled(t *testing.T) {
	viper.Set("amqp.url", "")

	publisher, err := openPublisher()
	require.NoError(t, err)
	assert.IsType(t, events.NopPublisher{}, publisher)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, name := range []string{"serve", "setup", "token", "upload"} {
		assert.True(t, names[name], name)
	}
}
