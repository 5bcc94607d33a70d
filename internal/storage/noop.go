package storage

import "github.com/voicebridge/voicebridge/internal/types"

// Store persists call records after sessions end
type Store interface {
	SaveCallRecord(record types.CallRecord) error
	GetCallRecords(dateKey string) ([]types.CallRecord, error)
	GetCallRecordsByTenant(dateKey, tenantID string) ([]types.CallRecord, error)
}

// NoopStore is a no-op implementation when DynamoDB is disabled
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (s *NoopStore) SaveCallRecord(_ types.CallRecord) error { return nil }
func (s *NoopStore) GetCallRecords(_ string) ([]types.CallRecord, error) {
	return nil, nil
}
func (s *NoopStore) GetCallRecordsByTenant(_, _ string) ([]types.CallRecord, error) {
	return nil, nil
}
