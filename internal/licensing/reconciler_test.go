package licensing

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	t1 = time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
)

func date(y int, m time.Month, d int) *civil.Date {
	return &civil.Date{Year: y, Month: m, Day: d}
}

func requireValidation(t *testing.T, err error, field string) {
	t.Helper()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	assert.Equal(t, field, ve.Field)
}

func sampleRoster() []Fingerprint {
	return []Fingerprint{
		{Value: "dev-a", LicenseType: LicenseSubscription, ExpiryDate: date(2024, 12, 31), Status: StatusActive, RegisteredAt: t0},
		{Value: "dev-b", LicenseType: LicenseLifetime, Status: StatusActive, RegisteredAt: t0.Add(time.Hour)},
	}
}

func TestRegisterFingerprintsStartsActive(t *testing.T) {
	fps, err := RegisterFingerprints([]FingerprintInput{
		{Value: "dev-1", LicenseType: LicenseSubscription, ExpiryDate: date(2025, 1, 1)},
		{Value: "dev-2", LicenseType: LicenseLifetime, ExpiryDate: date(2025, 1, 1)},
	}, t0)
	require.NoError(t, err)
	require.Len(t, fps, 2)

	for _, fp := range fps {
		assert.Equal(t, StatusActive, fp.Status)
		assert.Equal(t, t0, fp.RegisteredAt)
	}
	assert.Equal(t, date(2025, 1, 1), fps[0].ExpiryDate)
	assert.Nil(t, fps[1].ExpiryDate, "lifetime licenses carry no expiry")
}

func TestRegisterFingerprintsRejectsFirstOffendingEntry(t *testing.T) {
	cases := []struct {
		name   string
		inputs []FingerprintInput
		field  string
	}{
		{"empty roster", nil, "fingerprints"},
		{"missing value", []FingerprintInput{{LicenseType: LicenseLifetime}}, "fingerprints[0].value"},
		{"blank value", []FingerprintInput{{Value: "  ", LicenseType: LicenseLifetime}}, "fingerprints[0].value"},
		{"missing license type", []FingerprintInput{
			{Value: "dev-1", LicenseType: LicenseLifetime},
			{Value: "dev-2"},
		}, "fingerprints[1].licenseType"},
		{"unknown license type", []FingerprintInput{{Value: "dev-1", LicenseType: "perpetual"}}, "fingerprints[0].licenseType"},
		{"subscription without expiry", []FingerprintInput{{Value: "dev-1", LicenseType: LicenseSubscription}}, "fingerprints[0].expiryDate"},
		{"duplicate value", []FingerprintInput{
			{Value: "dev-1", LicenseType: LicenseLifetime},
			{Value: "dev-1", LicenseType: LicenseLifetime},
		}, "fingerprints[1].value"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fps, err := RegisterFingerprints(tc.inputs, t0)
			assert.Nil(t, fps)
			requireValidation(t, err, tc.field)
		})
	}
}

func TestMergeLeavesUnnamedEntriesUntouched(t *testing.T) {
	existing := sampleRoster()
	edits := []FingerprintEdit{{Value: "dev-a", Status: Set(StatusRevoked), RevokedReason: Set("stolen")}}

	merged, err := MergeFingerprints(existing, edits, t1)
	require.NoError(t, err)
	require.Len(t, merged, 2)

	assert.Equal(t, existing[1], merged[1])
	assert.Equal(t, StatusRevoked, merged[0].Status)
	assert.Equal(t, "stolen", merged[0].RevokedReason)
	assert.Equal(t, t0, merged[0].RegisteredAt)
	assert.Equal(t, date(2024, 12, 31), merged[0].ExpiryDate)
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	existing := sampleRoster()
	snapshot := sampleRoster()

	_, err := MergeFingerprints(existing, []FingerprintEdit{
		{Value: "dev-a", ExpiryDate: Set(date(2030, 1, 1))},
		{Value: "dev-b", Status: Set(StatusRevoked)},
	}, t1)
	require.NoError(t, err)
	assert.Equal(t, snapshot, existing)
}

func TestMergeRegistersUnknownValue(t *testing.T) {
	merged, err := MergeFingerprints(sampleRoster(), []FingerprintEdit{
		{Value: "dev-c", LicenseType: Set(LicenseSubscription), ExpiryDate: Set(date(2025, 6, 30))},
	}, t1)
	require.NoError(t, err)
	require.Len(t, merged, 3)

	added := merged[2]
	assert.Equal(t, "dev-c", added.Value)
	assert.Equal(t, StatusActive, added.Status)
	assert.Equal(t, t1, added.RegisteredAt)
	assert.Equal(t, date(2025, 6, 30), added.ExpiryDate)
}

func TestMergeNewLifetimeDropsExpiry(t *testing.T) {
	merged, err := MergeFingerprints(nil, []FingerprintEdit{
		{Value: "dev-c", LicenseType: Set(LicenseLifetime), ExpiryDate: Set(date(2025, 6, 30))},
	}, t1)
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Nil(t, merged[0].ExpiryDate)
}

func TestMergeRejections(t *testing.T) {
	cases := []struct {
		name  string
		edits []FingerprintEdit
		field string
	}{
		{"missing value", []FingerprintEdit{{Status: Set(StatusRevoked)}}, "fingerprints[0].value"},
		{"duplicate value in edit", []FingerprintEdit{
			{Value: "dev-a", Status: Set(StatusRevoked)},
			{Value: "dev-a", Status: Set(StatusActive)},
		}, "fingerprints[1].value"},
		{"new device without license type", []FingerprintEdit{{Value: "dev-c"}}, "fingerprints[0].licenseType"},
		{"new subscription without expiry", []FingerprintEdit{
			{Value: "dev-c", LicenseType: Set(LicenseSubscription)},
		}, "fingerprints[0].expiryDate"},
		{"switch to subscription without expiry", []FingerprintEdit{
			{Value: "dev-b", LicenseType: Set(LicenseSubscription)},
		}, "fingerprints[0].expiryDate"},
		{"clear expiry on subscription", []FingerprintEdit{
			{Value: "dev-b", Status: Set(StatusActive)},
			{Value: "dev-a", ExpiryDate: Set[*civil.Date](nil)},
		}, "fingerprints[1].expiryDate"},
		{"unknown status", []FingerprintEdit{{Value: "dev-a", Status: Set(FingerprintStatus("paused"))}}, "fingerprints[0].status"},
		{"unknown license type", []FingerprintEdit{{Value: "dev-a", LicenseType: Set(LicenseType("trial"))}}, "fingerprints[0].licenseType"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			merged, err := MergeFingerprints(sampleRoster(), tc.edits, t1)
			assert.Nil(t, merged)
			requireValidation(t, err, tc.field)
		})
	}
}

func TestMergeSwitchToLifetimeClearsExpiry(t *testing.T) {
	merged, err := MergeFingerprints(sampleRoster(), []FingerprintEdit{
		{Value: "dev-a", LicenseType: Set(LicenseLifetime)},
	}, t1)
	require.NoError(t, err)
	assert.Equal(t, LicenseLifetime, merged[0].LicenseType)
	assert.Nil(t, merged[0].ExpiryDate)
}

func TestMergeIsIdempotent(t *testing.T) {
	edits := []FingerprintEdit{
		{Value: "dev-a", Status: Set(StatusRevoked), RevokedReason: Set("returned")},
		{Value: "dev-c", LicenseType: Set(LicenseSubscription), ExpiryDate: Set(date(2026, 1, 1))},
	}
	once, err := MergeFingerprints(sampleRoster(), edits, t0)
	require.NoError(t, err)
	twice, err := MergeFingerprints(once, edits, t1)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestFingerprintEditDistinguishesNullFromAbsent(t *testing.T) {
	var absent, cleared, dated FingerprintEdit
	require.NoError(t, json.Unmarshal([]byte(`{"value":"dev-a","status":"revoked"}`), &absent))
	require.NoError(t, json.Unmarshal([]byte(`{"value":"dev-a","expiryDate":null}`), &cleared))
	require.NoError(t, json.Unmarshal([]byte(`{"value":"dev-a","expiryDate":"2025-02-28"}`), &dated))

	assert.False(t, absent.ExpiryDate.IsSet())
	assert.True(t, absent.Status.IsSet())
	assert.False(t, absent.LicenseType.IsSet())

	d, ok := cleared.ExpiryDate.Get()
	assert.True(t, ok)
	assert.Nil(t, d)
	assert.True(t, cleared.ExpiryDate.IsNull())
	assert.False(t, dated.ExpiryDate.IsNull())
	assert.False(t, absent.ExpiryDate.IsNull())

	d, ok = dated.ExpiryDate.Get()
	require.True(t, ok)
	assert.Equal(t, date(2025, 2, 28), d)
}
