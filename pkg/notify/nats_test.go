package notify

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dapperlabs/dapper-relay/pkg/relay"
)

func TestSubjectFor(t *testing.T) {
	assert.Equal(t, SubjectSubmitted, subjectFor(&relay.Record{Status: relay.StatusSubmitted}))
	assert.Equal(t, SubjectFailed, subjectFor(&relay.Record{Status: relay.StatusFailed}))
}

func TestRecordJSONRoundTrip(t *testing.T) {
	rec := &relay.Record{
		ID:     "rec-1",
		Wallet: "0x1111111111111111111111111111111111111111",
		TxHash: "0xabc",
		Status: relay.StatusSubmitted,
	}
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var got relay.Record
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Wallet, got.Wallet)
	assert.Equal(t, rec.TxHash, got.TxHash)
}
