package storage

import (
	"encoding/json"
	"testing"

	"resume-ats/internal/storage/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOutboxMessage(t *testing.T) {
	msg := DocumentUploadMessage{
		SubmissionUUID:      "0190a6f2-7c1e-7000-8000-000000000001",
		OriginalFilename:    "jane.pdf",
		OriginalFilePathOSS: "originals/0190a6f2-7c1e-7000-8000-000000000001.pdf",
		NameHint:            "Jane Doe",
	}

	row, err := NewOutboxMessage("resume.uploads", "resume.upload", msg)
	require.NoError(t, err)
	assert.Equal(t, msg.SubmissionUUID, row.AggregateID)
	assert.Equal(t, "resume.uploads", row.TargetExchange)
	assert.Equal(t, "resume.upload", row.TargetRoutingKey)
	assert.Equal(t, models.OutboxPending, row.Status)
	assert.Zero(t, row.RetryCount)

	var decoded DocumentUploadMessage
	require.NoError(t, json.Unmarshal(row.Payload, &decoded))
	assert.Equal(t, msg.SubmissionUUID, decoded.SubmissionUUID)
	assert.Equal(t, "Jane Doe", decoded.NameHint)
	assert.True(t, decoded.Valid())
}
