package persistence

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type amountDoc struct {
	Amount decimal.Decimal `bson:"amount"`
}

func TestDecimalCodec(t *testing.T) {
	reg := NewRegistry()

	t.Run("RoundTripAsDecimal128", func(t *testing.T) {
		raw, err := bson.MarshalWithRegistry(reg, amountDoc{Amount: decimal.RequireFromString("1020.50")})
		require.NoError(t, err)

		var generic bson.M
		require.NoError(t, bson.Unmarshal(raw, &generic))
		_, isDecimal128 := generic["amount"].(primitive.Decimal128)
		assert.True(t, isDecimal128, "amount should be stored as Decimal128")

		var decoded amountDoc
		require.NoError(t, bson.UnmarshalWithRegistry(reg, raw, &decoded))
		assert.True(t, decoded.Amount.Equal(decimal.RequireFromString("1020.5")))
	})

	t.Run("DecodesLegacyDouble", func(t *testing.T) {
		raw, err := bson.Marshal(bson.M{"amount": 12.25})
		require.NoError(t, err)

		var decoded amountDoc
		require.NoError(t, bson.UnmarshalWithRegistry(reg, raw, &decoded))
		assert.Equal(t, "12.25", decoded.Amount.StringFixed(2))
	})

	t.Run("DecodesString", func(t *testing.T) {
		raw, err := bson.Marshal(bson.M{"amount": "7.10"})
		require.NoError(t, err)

		var decoded amountDoc
		require.NoError(t, bson.UnmarshalWithRegistry(reg, raw, &decoded))
		assert.Equal(t, "7.10", decoded.Amount.StringFixed(2))
	})
}

type idDoc struct {
	ID uuid.UUID `bson:"_id"`
}

func TestUUIDCodec(t *testing.T) {
	reg := NewRegistry()
	id := uuid.New()

	raw, err := bson.MarshalWithRegistry(reg, idDoc{ID: id})
	require.NoError(t, err)

	var generic bson.M
	require.NoError(t, bson.Unmarshal(raw, &generic))
	bin, ok := generic["_id"].(primitive.Binary)
	require.True(t, ok, "_id should be stored as binary")
	assert.Equal(t, byte(0x04), bin.Subtype)

	var decoded idDoc
	require.NoError(t, bson.UnmarshalWithRegistry(reg, raw, &decoded))
	assert.Equal(t, id, decoded.ID)

	raw, err = bson.Marshal(bson.M{"_id": id.String()})
	require.NoError(t, err)
	require.NoError(t, bson.UnmarshalWithRegistry(reg, raw, &decoded))
	assert.Equal(t, id, decoded.ID)
}

func TestIndexes(t *testing.T) {
	indexes := Indexes()
	require.Contains(t, indexes, CollectionSnapshots)
	snapshotIdx := indexes[CollectionSnapshots][0]
	require.NotNil(t, snapshotIdx.Options)
	require.NotNil(t, snapshotIdx.Options.Unique)
	assert.True(t, *snapshotIdx.Options.Unique)
	assert.Len(t, indexes[CollectionLedgerEntries], 4)
}
