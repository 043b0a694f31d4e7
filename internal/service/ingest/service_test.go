package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mamadbah2/milkwatch/internal/domain/models"
	"github.com/mamadbah2/milkwatch/internal/repository"
	"github.com/mamadbah2/milkwatch/internal/repository/memory"
)

var when = time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)

func newStore(t *testing.T, calved bool) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	lat, lng := 9.5, -13.7
	require.NoError(t, store.SaveAnimal(ctx, &models.Animal{
		ID: 1,
		Location: models.Location{
			CountryID: 224, RegionID: 3, DistrictID: 31, WardID: 311, VillageID: 3111,
			Latitude: &lat, Longitude: &lng,
		},
	}))
	if calved {
		require.NoError(t, store.InsertEvent(ctx, &models.AnimalEvent{AnimalID: 1, Kind: models.EventCalving, Date: when.AddDate(0, -3, 0)}))
	}
	return store
}

func TestRecordEvent_Milking(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	store := newStore(t, true)
	svc := NewService(store, zap.New(core))

	event, err := svc.RecordEvent(context.Background(), NewEventRequest{
		AnimalID:   1,
		Kind:       models.EventMilking,
		Date:       when,
		Attributes: map[string]any{"59": 4.2, "61": "3.8", "68": ""},
	})
	require.NoError(t, err)

	assert.NotZero(t, event.ID)
	require.NotNil(t, event.Milking)
	assert.Equal(t, 4.2, *event.Milking.Morning)
	assert.Equal(t, 3.8, *event.Milking.Evening)
	assert.Nil(t, event.Milking.Midday)
	assert.False(t, event.Assigned())

	assert.Equal(t, int64(3111), event.Location.VillageID)
	require.NotNil(t, event.Location.Latitude)
	assert.Equal(t, 9.5, *event.Location.Latitude)

	stored, err := store.FindEvent(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, event.Location, stored.Location)
	assert.Equal(t, 1, logs.FilterMessage("event recorded").Len())
}

func TestRecordEvent_KeepsProvidedDivisions(t *testing.T) {
	store := newStore(t, true)
	event, err := NewService(store, nil).RecordEvent(context.Background(), NewEventRequest{
		AnimalID: 1,
		Kind:     models.EventMilking,
		Date:     when,
		Location: &models.Location{CountryID: 224, RegionID: 8},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(8), event.Location.RegionID)
	assert.Zero(t, event.Location.VillageID)
}

func TestRecordEvent_Exit(t *testing.T) {
	store := newStore(t, false)
	event, err := NewService(store, nil).RecordEvent(context.Background(), NewEventRequest{
		AnimalID:   1,
		Kind:       models.EventExit,
		Date:       when,
		Attributes: map[string]any{"247": float64(4)},
	})
	require.NoError(t, err)
	reason, ok := event.DisposalReason()
	require.True(t, ok)
	assert.Equal(t, 4, reason)
	assert.Zero(t, event.Location.RegionID, "only milking events inherit the animal location")
}

func TestRecordEvent_Rejects(t *testing.T) {
	lactation := int64(2)
	tests := []struct {
		name   string
		calved bool
		req    NewEventRequest
		want   error
	}{
		{"unknown kind", true, NewEventRequest{AnimalID: 1, Kind: "weaning", Date: when}, ErrInvalidEvent},
		{"missing date", true, NewEventRequest{AnimalID: 1, Kind: models.EventOther}, ErrInvalidEvent},
		{"preassigned lactation", true, NewEventRequest{AnimalID: 1, Kind: models.EventMilking, Date: when, LactationID: &lactation}, ErrLactationPreassigned},
		{"unknown attribute", true, NewEventRequest{AnimalID: 1, Kind: models.EventMilking, Date: when, Attributes: map[string]any{"12": 1}}, models.ErrUnknownAttribute},
		{"attribute of other kind", true, NewEventRequest{AnimalID: 1, Kind: models.EventMilking, Date: when, Attributes: map[string]any{"247": 2}}, models.ErrAttributeKind},
		{"never calved", false, NewEventRequest{AnimalID: 1, Kind: models.EventMilking, Date: when}, ErrLactationNotFound},
		{"unknown animal", true, NewEventRequest{AnimalID: 99, Kind: models.EventOther, Date: when}, repository.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewService(newStore(t, tt.calved), nil).RecordEvent(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRegisterAnimal(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, nil)

	animal, err := svc.RegisterAnimal(context.Background(), NewAnimalRequest{BirthDate: when.AddDate(-3, 0, 0)})
	require.NoError(t, err)
	assert.NotZero(t, animal.ID)

	_, err = store.FindAnimal(context.Background(), animal.ID)
	require.NoError(t, err)

	_, err = svc.RegisterAnimal(context.Background(), NewAnimalRequest{})
	assert.ErrorIs(t, err, ErrInvalidEvent)
}
