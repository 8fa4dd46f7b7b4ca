// internal/services/fakes_test.go
package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/licensehub/license-server/internal/models"
)

// fakeLicenses is an in-memory LicenseFinder.
type fakeLicenses struct {
	mu       sync.Mutex
	licenses map[string]*models.License
	FindErr  error
}

func newFakeLicenses(licenses ...*models.License) *fakeLicenses {
	f := &fakeLicenses{licenses: make(map[string]*models.License)}
	for _, l := range licenses {
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		f.licenses[l.LicenseKey] = l
	}
	return f
}

func (f *fakeLicenses) FindByKey(_ context.Context, key string) (*models.License, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FindErr != nil {
		return nil, f.FindErr
	}
	l, ok := f.licenses[key]
	if !ok {
		return nil, ErrLicenseNotFound
	}
	copied := *l
	return &copied, nil
}

type bindingKey struct {
	licenseID uuid.UUID
	domain    string
}

// fakeBindings is an in-memory BindingStore. WithLicenseLock serialises
// callers with one mutex for the whole store.
type fakeBindings struct {
	lock     sync.Mutex
	mu       sync.Mutex
	bindings map[bindingKey]*models.DomainBinding
	touched  []string

	FindErr  error
	CountErr error
	BindErr  error
	TouchErr error
	LockErr  error
}

func newFakeBindings() *fakeBindings {
	return &fakeBindings{bindings: make(map[bindingKey]*models.DomainBinding)}
}

func (f *fakeBindings) FindBinding(_ context.Context, licenseID uuid.UUID, domain string) (*models.DomainBinding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FindErr != nil {
		return nil, f.FindErr
	}
	b, ok := f.bindings[bindingKey{licenseID, domain}]
	if !ok {
		return nil, ErrBindingNotFound
	}
	return b, nil
}

func (f *fakeBindings) CountForLicense(_ context.Context, licenseID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CountErr != nil {
		return 0, f.CountErr
	}
	var n int64
	for k := range f.bindings {
		if k.licenseID == licenseID {
			n++
		}
	}
	return n, nil
}

func (f *fakeBindings) Bind(_ context.Context, licenseID uuid.UUID, domain string) (*models.DomainBinding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.BindErr != nil {
		return nil, f.BindErr
	}
	k := bindingKey{licenseID, domain}
	if _, ok := f.bindings[k]; ok {
		return nil, ErrDuplicateBinding
	}
	b := &models.DomainBinding{LicenseID: licenseID, Domain: domain, LastCheckAt: time.Now()}
	b.ID = uuid.New()
	f.bindings[k] = b
	return b, nil
}

func (f *fakeBindings) Touch(_ context.Context, licenseID uuid.UUID, domain string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.TouchErr != nil {
		return false, f.TouchErr
	}
	b, ok := f.bindings[bindingKey{licenseID, domain}]
	if !ok {
		return false, nil
	}
	b.LastCheckAt = time.Now()
	f.touched = append(f.touched, domain)
	return true, nil
}

func (f *fakeBindings) WithLicenseLock(_ context.Context, _ uuid.UUID, fn func(BindingStore) error) error {
	if f.LockErr != nil {
		return f.LockErr
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	return fn(f)
}

func (f *fakeBindings) domains(licenseID uuid.UUID) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for k := range f.bindings {
		if k.licenseID == licenseID {
			out = append(out, k.domain)
		}
	}
	return out
}

// fixedClock returns a clock frozen at t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
