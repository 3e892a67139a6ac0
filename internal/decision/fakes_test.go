package decision

import (
	"context"
	"sync"
)

type fakeHistory struct {
	mu      sync.Mutex
	records map[DeliveryQuery][]DeliveryRecord
	err     error
	calls   int
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{records: make(map[DeliveryQuery][]DeliveryRecord)}
}

func (f *fakeHistory) add(q DeliveryQuery, recs ...DeliveryRecord) {
	f.records[q] = append(f.records[q], recs...)
}

func (f *fakeHistory) FindDeliveries(_ context.Context, q DeliveryQuery) ([]DeliveryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.records[q], nil
}

type prefKey struct{ recipient, sender string }

type fakePreferences struct {
	prefs map[prefKey]*RecipientPreferences
	err   error
}

func newFakePreferences() *fakePreferences {
	return &fakePreferences{prefs: make(map[prefKey]*RecipientPreferences)}
}

func (f *fakePreferences) put(p *RecipientPreferences) {
	f.prefs[prefKey{p.Recipient, p.Sender}] = p
}

func (f *fakePreferences) GetPreferences(_ context.Context, recipient, sender string) (*RecipientPreferences, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.prefs[prefKey{recipient, sender}], nil
}
