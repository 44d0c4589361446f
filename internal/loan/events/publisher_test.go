package events

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartlib/internal/loan/models"
	id "smartlib/pkg/domain"
)

func sampleLoan() *models.Loan {
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	loan, _ := models.NewLoan(id.NewLoanID(), id.NewUserID(), id.NewBookID(), now.Add(7*24*time.Hour), now)
	return loan
}

func TestRecordEncoding(t *testing.T) {
	loan := sampleLoan()
	evt := models.NewLoanEvent(models.EventLoanIssued, loan, loan.IssueDate, "req-1")

	record, err := NewRecord("loan-events", evt)
	require.NoError(t, err)

	assert.Equal(t, "loan-events", record.Topic)
	assert.Equal(t, loan.ID.String(), string(record.Key))
	require.Len(t, record.Headers, 1)
	assert.Equal(t, "loan.issued", string(record.Headers[0].Value))

	decoded, err := DecodeRecord(record)
	require.NoError(t, err)
	assert.Equal(t, loan.ID, decoded.LoanID)
	assert.Equal(t, models.StatusActive, decoded.Status)
	assert.Equal(t, "req-1", decoded.RequestID)
	assert.Nil(t, decoded.ReturnDate)
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))
	loan := sampleLoan()

	err := p.Publish(context.Background(), models.NewLoanEvent(models.EventLoanReturned, loan, loan.IssueDate, ""))

	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"type":"loan.returned"`)
	assert.Contains(t, buf.String(), loan.ID.String())
}
