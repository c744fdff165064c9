package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/joripage/lobsim/config"
	"github.com/joripage/lobsim/pkg/logging"
	"github.com/joripage/lobsim/pkg/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRecorderClosesCSVOnSinkFailure(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Output.CSVDir = dir
	// no brokers: the kafka sink fails after the CSV sink is open
	cfg.Kafka = &recorder.KafkaConfig{TradeTopic: "lobsim.trades"}

	rec, closeSinks, err := buildRecorder(context.Background(), cfg, "run-1", logging.NewNopLogger())
	require.Error(t, err)
	assert.Nil(t, rec)
	closeSinks()

	// headers are buffered until the CSV sink is closed
	raw, err := os.ReadFile(filepath.Join(dir, recorder.TradesFile))
	require.NoError(t, err)
	assert.Equal(t, "timestamp,price,quantity,side,resting_id,aggressive_id\n", string(raw))
}

func TestBuildRecorderCSVOnly(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Output.CSVDir = dir

	rec, closeSinks, err := buildRecorder(context.Background(), cfg, "run-1", logging.NewNopLogger())
	require.NoError(t, err)
	defer closeSinks()

	require.NoError(t, rec.Close(context.Background()))
	for _, name := range []string{recorder.TradesFile, recorder.BookFile, recorder.QuotesFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}
