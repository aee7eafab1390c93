package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnflow/learnflow-progression-core/internal/domain/certificate"
	"github.com/learnflow/learnflow-progression-core/internal/domain/shared"
)

func seedCertificate(s *memStore) *certificate.Certificate {
	now := time.Now().UTC()
	number, _ := certificate.NewNumber(now)
	cert := certificate.Issue("enr1", "student1", number, certificate.Snapshot{
		CertificateID: "cert1",
		StudentName:   "Student student1",
		ProgramTitle:  "Program prog1",
		CompletedDate: now,
		FinalScore:    8.5,
	}, now)
	s.certs[cert.ID] = cert
	return cert
}

func TestRevokeCertificate_RevokesAndInvalidatesCache(t *testing.T) {
	s := newMemStore()
	cert := seedCertificate(s)
	cache := newFakeVerificationCache()
	pub := &capturingPublisher{}
	h := NewRevokeCertificateHandler(&memCertificateRepo{s: s}, cache, pub)

	result, err := h.Handle(context.Background(), RevokeCertificateCommand{
		CertificateID: "cert1",
		Reason:        "plagiarism confirmed",
		RevokedBy:     "admin1",
	})

	require.NoError(t, err)
	assert.False(t, result.Certificate.IsValid)
	assert.Equal(t, "plagiarism confirmed", result.Certificate.RevocationReason)

	stored := s.certs["cert1"]
	assert.False(t, stored.IsValid)
	assert.False(t, stored.RevokedAt.IsZero())

	// Both public lookup keys are evicted.
	assert.ElementsMatch(t, []string{cert.Number, cert.VerificationHash}, cache.invalidated)
	assert.Equal(t, []shared.EventType{shared.EventCertificateRevoked}, pub.types())
}

func TestRevokeCertificate_AlreadyRevoked(t *testing.T) {
	s := newMemStore()
	cert := seedCertificate(s)
	cert.Revoke("earlier", "admin0", time.Now().UTC())
	cache := newFakeVerificationCache()
	pub := &capturingPublisher{}
	h := NewRevokeCertificateHandler(&memCertificateRepo{s: s}, cache, pub)

	_, err := h.Handle(context.Background(), RevokeCertificateCommand{
		CertificateID: "cert1",
		Reason:        "again",
		RevokedBy:     "admin1",
	})

	require.ErrorIs(t, err, shared.ErrCertificateRevoked)
	assert.Empty(t, cache.invalidated)
	assert.Empty(t, pub.types())
}

func TestRevokeCertificate_CacheOutage(t *testing.T) {
	s := newMemStore()
	seedCertificate(s)
	cache := newFakeVerificationCache()
	cache.err = errors.New("redis down")
	h := NewRevokeCertificateHandler(&memCertificateRepo{s: s}, cache, &capturingPublisher{})

	_, err := h.Handle(context.Background(), RevokeCertificateCommand{
		CertificateID: "cert1",
		Reason:        "plagiarism confirmed",
		RevokedBy:     "admin1",
	})

	require.ErrorIs(t, err, shared.ErrServiceUnavailable)
}

func TestRevokeCertificate_RejectsBlankReason(t *testing.T) {
	h := NewRevokeCertificateHandler(&memCertificateRepo{s: newMemStore()}, newFakeVerificationCache(), &capturingPublisher{})

	_, err := h.Handle(context.Background(), RevokeCertificateCommand{
		CertificateID: "cert1",
		RevokedBy:     "admin1",
	})

	require.ErrorIs(t, err, shared.ErrEmptyValue)
}
