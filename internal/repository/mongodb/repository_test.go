package mongodb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/mamadbah2/milkwatch/internal/domain/models"
)

func TestUnassignedFilter_RequiresMilkingPayload(t *testing.T) {
	filter := unassignedFilter()

	assert.Equal(t, models.EventMilking, filter["kind"])
	assert.Nil(t, filter["milking.lactation_id"])
	assert.Equal(t, bson.M{"$exists": true, "$ne": nil}, filter["milking"])
}
