package csvlog

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/milkwatch/internal/domain/models"
)

func TestFileName(t *testing.T) {
	started := time.Date(2024, 3, 9, 7, 5, 2, 0, time.UTC)
	assert.Equal(t, "lactation_log_2024_03_09_07_05_02.csv", FileName(started))
}

func TestSink_WritesHeaderAndRows(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audit")
	started := time.Date(2024, 3, 9, 7, 5, 2, 0, time.UTC)
	ctx := context.Background()

	log, err := NewSink(dir, nil).Open(ctx, started)
	require.NoError(t, err)

	calving := int64(17)
	require.NoError(t, log.Append(ctx, models.AuditRow{MilkingEventID: 4, CalvingEventID: &calving, Assigned: true}))
	require.NoError(t, log.Append(ctx, models.AuditRow{MilkingEventID: 5}))
	require.NoError(t, log.Close())

	content, err := os.ReadFile(filepath.Join(dir, FileName(started)))
	require.NoError(t, err)
	assert.Equal(t,
		"milking_event_id,last_calving_event_id,assigned\n4,17,Y\n5,Not found,N\n",
		string(content))
}

func TestSink_RefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	started := time.Date(2024, 3, 9, 7, 5, 2, 0, time.UTC)
	sink := NewSink(dir, nil)

	log, err := sink.Open(context.Background(), started)
	require.NoError(t, err)
	require.NoError(t, log.Close())

	_, err = sink.Open(context.Background(), started)
	assert.Error(t, err)
}

type failOnce struct {
	bytes.Buffer
	failed bool
}

func (f *failOnce) Write(p []byte) (int, error) {
	if !f.failed {
		f.failed = true
		return 0, errors.New("input/output error")
	}
	return f.Buffer.Write(p)
}

func TestLog_RowAfterFailedWriteStillLands(t *testing.T) {
	out := &failOnce{}
	log := &Log{out: out}
	ctx := context.Background()

	calving := int64(17)
	assert.Error(t, log.Append(ctx, models.AuditRow{MilkingEventID: 1}))
	assert.NoError(t, log.Append(ctx, models.AuditRow{MilkingEventID: 2, CalvingEventID: &calving, Assigned: true}))
	assert.NoError(t, log.Append(ctx, models.AuditRow{MilkingEventID: 3}))
	assert.NoError(t, log.Close())

	assert.Equal(t, "2,17,Y\n3,Not found,N\n", out.String())
}
