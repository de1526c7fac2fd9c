package service_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gstrecon/internal/domain"
	"gstrecon/internal/metrics"
	"gstrecon/internal/port"
	"gstrecon/internal/reconcile"
	"gstrecon/internal/service"
	"gstrecon/mocks"
)

const (
	gstinKA = "29ABCDE1234F1ZW"
	gstinMH = "27FGHIJ5678K2Z0"
	gstinTN = "33KLMNO9012L3ZK"
)

type fixture struct {
	repo    *mocks.MockRunRepo
	cache   *mocks.MockRunCache
	archive *mocks.MockReportArchive
	emailer *mocks.MockEmailSender
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newFixture() *fixture {
	return &fixture{
		repo:    new(mocks.MockRunRepo),
		cache:   new(mocks.MockRunCache),
		archive: new(mocks.MockReportArchive),
		emailer: new(mocks.MockEmailSender),
	}
}

func (f *fixture) service(withArchive bool, opts service.Options) service.ReconciliationService {
	var archive port.ReportArchive
	if withArchive {
		archive = f.archive
	}
	return service.NewReconciliationService(
		reconcile.NewEngine(reconcile.DefaultConfig()),
		f.repo, f.cache, archive, f.emailer,
		metrics.New(), quietLogger(), opts,
	)
}

func (f *fixture) assertExpectations(t *testing.T) {
	f.repo.AssertExpectations(t)
	f.cache.AssertExpectations(t)
	f.archive.AssertExpectations(t)
	f.emailer.AssertExpectations(t)
}

func record(src domain.SourceType, gstinNo, invNo, taxable, tax string) domain.RawRecord {
	return domain.RawRecord{
		Source:        src,
		SourceFile:    string(src) + ".csv",
		SupplierGSTIN: gstinNo,
		VendorName:    "Vendor " + gstinNo[2:7],
		InvoiceNumber: invNo,
		InvoiceDate:   "2024-07-05",
		TaxableAmount: decimal.RequireFromString(taxable),
		IGST:          decimal.RequireFromString(tax),
	}
}

// matchedBatch reconciles cleanly: one invoice present on both sides.
func matchedBatch() []domain.RawRecord {
	return []domain.RawRecord{
		record(domain.SourceGSTR2B, gstinKA, "INV-1", "10000", "1800"),
		record(domain.SourcePurchaseRegister, gstinKA, "INV-1", "10000", "1800"),
	}
}

// suppressedBatch holds an invoice booked by the buyer that the supplier never filed.
func suppressedBatch() []domain.RawRecord {
	return []domain.RawRecord{
		record(domain.SourcePurchaseRegister, gstinMH, "INV-9", "50000", "9000"),
	}
}

func noLockRelease(context.Context) error { return nil }

func TestFingerprint_OrderIndependent(t *testing.T) {
	batch := matchedBatch()
	reversed := []domain.RawRecord{batch[1], batch[0]}

	a, err := service.Fingerprint(batch)
	require.NoError(t, err)
	b, err := service.Fingerprint(reversed)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	c, err := service.Fingerprint(suppressedBatch())
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestReconciliationService_Preview(t *testing.T) {
	f := newFixture()
	svc := f.service(false, service.Options{})

	snap, err := svc.Preview(context.Background(), matchedBatch())
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Stats.Matched)
	f.assertExpectations(t)
}

func TestReconciliationService_Preview_BatchTooLarge(t *testing.T) {
	f := newFixture()
	svc := f.service(false, service.Options{MaxRecords: 1})

	_, err := svc.Preview(context.Background(), matchedBatch())
	assert.ErrorIs(t, err, domain.ErrBatchTooLarge)
}

func TestReconciliationService_Create_NewRun(t *testing.T) {
	f := newFixture()
	svc := f.service(false, service.Options{})
	batch := matchedBatch()
	fp, _ := service.Fingerprint(batch)

	f.cache.On("Get", mock.Anything, fp).Return(uuid.Nil, false, nil)
	f.cache.On("Lock", mock.Anything, fp).Return(noLockRelease, nil)
	f.repo.On("GetByFingerprint", mock.Anything, fp).Return(nil, domain.ErrRunNotFound)
	f.repo.On("LatestVendorScores", mock.Anything).Return(map[string]int{}, nil)
	f.repo.On("Create", mock.Anything, mock.MatchedBy(func(r *domain.Run) bool {
		return r.Fingerprint == fp && r.Label == "July" && r.RecordCount == 2
	}), mock.MatchedBy(func(s *domain.Snapshot) bool {
		return len(s.Groups) == 1 && s.Stats.Matched == 1
	})).Return(nil)
	f.cache.On("Set", mock.Anything, fp, mock.AnythingOfType("uuid.UUID")).Return(nil)

	res, err := svc.Create(context.Background(), &service.CreateRunInput{Label: "July", Records: batch})
	require.NoError(t, err)
	assert.False(t, res.Reused)
	assert.NotEqual(t, uuid.Nil, res.Run.ID)
	assert.Equal(t, 1, res.Run.Stats.TotalInvoices)
	f.assertExpectations(t)
}

func TestReconciliationService_Create_CacheHit(t *testing.T) {
	f := newFixture()
	svc := f.service(false, service.Options{})
	batch := matchedBatch()
	fp, _ := service.Fingerprint(batch)
	stored := &domain.Run{ID: uuid.New(), Fingerprint: fp}

	f.cache.On("Get", mock.Anything, fp).Return(stored.ID, true, nil)
	f.repo.On("GetByID", mock.Anything, stored.ID).Return(stored, nil)

	res, err := svc.Create(context.Background(), &service.CreateRunInput{Records: batch})
	require.NoError(t, err)
	assert.True(t, res.Reused)
	assert.Equal(t, stored, res.Run)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestReconciliationService_Create_StaleCacheEntry(t *testing.T) {
	f := newFixture()
	svc := f.service(false, service.Options{})
	batch := matchedBatch()
	fp, _ := service.Fingerprint(batch)
	stored := &domain.Run{ID: uuid.New(), Fingerprint: fp}
	staleID := uuid.New()

	f.cache.On("Get", mock.Anything, fp).Return(staleID, true, nil)
	f.repo.On("GetByID", mock.Anything, staleID).Return(nil, domain.ErrRunNotFound)
	f.cache.On("Invalidate", mock.Anything, fp).Return(nil)
	f.cache.On("Lock", mock.Anything, fp).Return(noLockRelease, nil)
	f.repo.On("GetByFingerprint", mock.Anything, fp).Return(stored, nil)
	f.cache.On("Set", mock.Anything, fp, stored.ID).Return(nil)

	res, err := svc.Create(context.Background(), &service.CreateRunInput{Records: batch})
	require.NoError(t, err)
	assert.True(t, res.Reused)
	assert.Equal(t, stored.ID, res.Run.ID)
	f.assertExpectations(t)
}

func TestReconciliationService_Create_InProgress(t *testing.T) {
	f := newFixture()
	svc := f.service(false, service.Options{})
	batch := matchedBatch()
	fp, _ := service.Fingerprint(batch)

	f.cache.On("Get", mock.Anything, fp).Return(uuid.Nil, false, nil)
	f.cache.On("Lock", mock.Anything, fp).Return(nil, domain.ErrRunInProgress)

	_, err := svc.Create(context.Background(), &service.CreateRunInput{Records: batch})
	assert.ErrorIs(t, err, domain.ErrRunInProgress)
	f.assertExpectations(t)
}

func TestReconciliationService_Create_ReleasesLockOnFailure(t *testing.T) {
	f := newFixture()
	svc := f.service(false, service.Options{})
	batch := matchedBatch()
	fp, _ := service.Fingerprint(batch)

	released := false
	release := func(context.Context) error {
		released = true
		return nil
	}
	f.cache.On("Get", mock.Anything, fp).Return(uuid.Nil, false, nil)
	f.cache.On("Lock", mock.Anything, fp).Return(release, nil)
	f.repo.On("GetByFingerprint", mock.Anything, fp).Return(nil, domain.ErrRunNotFound)
	f.repo.On("LatestVendorScores", mock.Anything).Return(nil, errors.New("db down"))

	_, err := svc.Create(context.Background(), &service.CreateRunInput{Records: batch})
	assert.Error(t, err)
	assert.True(t, released)
	f.assertExpectations(t)
}

func TestReconciliationService_Create_ArchivesAndAlerts(t *testing.T) {
	f := newFixture()
	svc := f.service(true, service.Options{AlertRecipients: []string{"cfo@example.com"}, PresignExpiry: time.Minute})
	batch := suppressedBatch()
	fp, _ := service.Fingerprint(batch)

	f.cache.On("Get", mock.Anything, fp).Return(uuid.Nil, false, nil)
	f.cache.On("Lock", mock.Anything, fp).Return(noLockRelease, nil)
	f.repo.On("GetByFingerprint", mock.Anything, fp).Return(nil, domain.ErrRunNotFound)
	f.repo.On("LatestVendorScores", mock.Anything).Return(map[string]int{gstinMH: 40}, nil)
	f.repo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.cache.On("Set", mock.Anything, fp, mock.AnythingOfType("uuid.UUID")).Return(nil)
	f.archive.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasSuffix(key, ".xlsx")
	}), mock.Anything, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet").
		Return(&port.ArchivedObject{Key: "reports/run.xlsx"}, nil)
	f.repo.On("SetReportKey", mock.Anything, mock.AnythingOfType("uuid.UUID"), "reports/run.xlsx").Return(nil)
	f.archive.On("PresignGet", mock.Anything, "reports/run.xlsx", time.Minute).Return("https://example.com/run.xlsx", nil)
	f.emailer.On("SendRiskAlert", mock.Anything, mock.MatchedBy(func(a *port.RiskAlert) bool {
		return len(a.Vendors) == 1 && a.Vendors[0].GSTIN == gstinMH &&
			a.ReportURL == "https://example.com/run.xlsx" && a.To[0] == "cfo@example.com"
	})).Return(nil)

	res, err := svc.Create(context.Background(), &service.CreateRunInput{Label: "Q2", Records: batch})
	require.NoError(t, err)
	assert.Equal(t, "reports/run.xlsx", res.Run.ReportKey)
	assert.Equal(t, 1, res.Run.Stats.HighRiskVendors)
	f.assertExpectations(t)
}

func TestReconciliationService_Create_AlertListsRiskiestVendorsFirst(t *testing.T) {
	f := newFixture()
	svc := f.service(false, service.Options{AlertRecipients: []string{"cfo@example.com"}})
	batch := []domain.RawRecord{
		record(domain.SourceGSTR2B, gstinMH, "INV-1", "10000", "1800"),
		record(domain.SourcePurchaseRegister, gstinMH, "INV-1", "10000", "1800"),
		record(domain.SourcePurchaseRegister, gstinMH, "INV-2", "10000", "1800"),
		record(domain.SourcePurchaseRegister, gstinTN, "INV-3", "10000", "1800"),
	}
	fp, _ := service.Fingerprint(batch)

	f.cache.On("Get", mock.Anything, fp).Return(uuid.Nil, false, nil)
	f.cache.On("Lock", mock.Anything, fp).Return(noLockRelease, nil)
	f.repo.On("GetByFingerprint", mock.Anything, fp).Return(nil, domain.ErrRunNotFound)
	f.repo.On("LatestVendorScores", mock.Anything).Return(map[string]int{}, nil)
	f.repo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.cache.On("Set", mock.Anything, fp, mock.AnythingOfType("uuid.UUID")).Return(nil)

	var sent *port.RiskAlert
	f.emailer.On("SendRiskAlert", mock.Anything, mock.AnythingOfType("*port.RiskAlert")).
		Run(func(args mock.Arguments) { sent = args.Get(1).(*port.RiskAlert) }).
		Return(nil)

	res, err := svc.Create(context.Background(), &service.CreateRunInput{Records: batch})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Run.Stats.HighRiskVendors)

	require.NotNil(t, sent)
	require.Len(t, sent.Vendors, 2)
	assert.Equal(t, gstinTN, sent.Vendors[0].GSTIN)
	assert.Equal(t, gstinMH, sent.Vendors[1].GSTIN)
	assert.Greater(t, sent.Vendors[0].RiskScore, sent.Vendors[1].RiskScore)
	f.assertExpectations(t)
}

func TestReconciliationService_Create_ArchiveFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	svc := f.service(true, service.Options{})
	batch := matchedBatch()
	fp, _ := service.Fingerprint(batch)

	f.cache.On("Get", mock.Anything, fp).Return(uuid.Nil, false, nil)
	f.cache.On("Lock", mock.Anything, fp).Return(noLockRelease, nil)
	f.repo.On("GetByFingerprint", mock.Anything, fp).Return(nil, domain.ErrRunNotFound)
	f.repo.On("LatestVendorScores", mock.Anything).Return(map[string]int{}, nil)
	f.repo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.cache.On("Set", mock.Anything, fp, mock.AnythingOfType("uuid.UUID")).Return(nil)
	f.archive.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("s3 down"))

	res, err := svc.Create(context.Background(), &service.CreateRunInput{Records: batch})
	require.NoError(t, err)
	assert.Empty(t, res.Run.ReportKey)
	f.repo.AssertNotCalled(t, "SetReportKey", mock.Anything, mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestReconciliationService_ReportURL(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name    string
		archive bool
		run     *domain.Run
		wantErr error
		want    string
	}{
		{name: "archive disabled", archive: false, wantErr: domain.ErrArchiveDisabled},
		{name: "not archived", archive: true, run: &domain.Run{ID: id}, wantErr: domain.ErrReportNotArchived},
		{name: "presigned", archive: true, run: &domain.Run{ID: id, ReportKey: "k.xlsx"}, want: "https://s3/k.xlsx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			svc := f.service(tt.archive, service.Options{})
			if tt.run != nil {
				f.repo.On("GetByID", mock.Anything, id).Return(tt.run, nil)
			}
			if tt.want != "" {
				f.archive.On("PresignGet", mock.Anything, "k.xlsx", time.Hour).Return(tt.want, nil)
			}

			url, err := svc.ReportURL(context.Background(), id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, url)
			f.assertExpectations(t)
		})
	}
}

func TestReconciliationService_Export(t *testing.T) {
	id := uuid.New()
	run := &domain.Run{ID: id, Label: "July Run", CreatedAt: time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)}
	mismatches := []domain.MismatchRecord{{
		Key:           "inv:X",
		Status:        domain.StatusMismatch,
		InvoiceNumber: "INV-1",
		SupplierGSTIN: gstinKA,
		RootCause:     domain.CauseAmountMismatch,
		RiskLevel:     domain.RiskMedium,
		RiskScore:     55,
	}}

	t.Run("csv", func(t *testing.T) {
		f := newFixture()
		svc := f.service(false, service.Options{})
		f.repo.On("GetByID", mock.Anything, id).Return(run, nil)
		f.repo.On("ListMismatches", mock.Anything, id, &domain.MismatchFilter{}).Return(mismatches, 1, nil)

		file, err := svc.Export(context.Background(), id, domain.ExportCSV)
		require.NoError(t, err)
		assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)
		assert.True(t, strings.HasSuffix(file.Filename, ".csv"))
		assert.True(t, bytes.Contains(file.Data, []byte("INV-1")))
		f.assertExpectations(t)
	})

	t.Run("invalid format", func(t *testing.T) {
		f := newFixture()
		svc := f.service(false, service.Options{})

		_, err := svc.Export(context.Background(), id, domain.ExportFormat("pdf"))
		assert.ErrorIs(t, err, domain.ErrInvalidExportFormat)
	})

	t.Run("unknown run", func(t *testing.T) {
		f := newFixture()
		svc := f.service(false, service.Options{})
		f.repo.On("GetByID", mock.Anything, id).Return(nil, domain.ErrRunNotFound)

		_, err := svc.Export(context.Background(), id, domain.ExportXLSX)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})
}

func TestReconciliationService_Delete(t *testing.T) {
	f := newFixture()
	svc := f.service(true, service.Options{})
	run := &domain.Run{ID: uuid.New(), Fingerprint: "fp", ReportKey: "r.xlsx"}

	f.repo.On("GetByID", mock.Anything, run.ID).Return(run, nil)
	f.repo.On("Delete", mock.Anything, run.ID).Return(nil)
	f.cache.On("Invalidate", mock.Anything, "fp").Return(nil)
	f.archive.On("Delete", mock.Anything, "r.xlsx").Return(nil)

	require.NoError(t, svc.Delete(context.Background(), run.ID))
	f.assertExpectations(t)
}

func TestReconciliationService_ListMismatches_UnknownRun(t *testing.T) {
	f := newFixture()
	svc := f.service(false, service.Options{})
	id := uuid.New()
	f.repo.On("GetByID", mock.Anything, id).Return(nil, domain.ErrRunNotFound)

	_, _, err := svc.ListMismatches(context.Background(), id, &domain.MismatchFilter{Limit: 20})
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
	f.repo.AssertNotCalled(t, "ListMismatches", mock.Anything, mock.Anything, mock.Anything)
}
