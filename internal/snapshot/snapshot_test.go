package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/secure-access-dashboard/internal/secureaccess"
)

func event(t *testing.T, ts int64, label string) secureaccess.ZTNAEvent {
	t.Helper()
	raw := []byte(`{"timestamp":` + jsonInt(ts) + `,"allapplications":[{"type":"PRIVATE","label":"` + label + `"}]}`)
	var e secureaccess.ZTNAEvent
	require.NoError(t, json.Unmarshal(raw, &e))
	return e
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestFileStore_SaveMergesWithinHour(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, zap.NewNop())
	at := time.Date(2024, 9, 10, 9, 15, 0, 0, time.UTC)

	require.NoError(t, s.Save(t.Context(), at, []secureaccess.ZTNAEvent{event(t, 1, "erp")}))
	require.NoError(t, s.Save(t.Context(), at.Add(30*time.Minute), []secureaccess.ZTNAEvent{event(t, 2, "crm")}))

	_, err := os.Stat(filepath.Join(dir, "ztna_20240910_09.json"))
	require.NoError(t, err)

	got, err := s.Load(t.Context(), at)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].Timestamp)
	assert.Equal(t, "crm", got[1].AllApplications[0].Label)
}

func TestFileStore_LoadOnlyRequestedDay(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, zap.NewNop())
	today := time.Date(2024, 9, 10, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(t.Context(), today.Add(-24*time.Hour), []secureaccess.ZTNAEvent{event(t, 1, "old")}))
	require.NoError(t, s.Save(t.Context(), today, []secureaccess.ZTNAEvent{event(t, 2, "a")}))
	require.NoError(t, s.Save(t.Context(), today.Add(2*time.Hour), []secureaccess.ZTNAEvent{event(t, 3, "b")}))

	got, err := s.Load(t.Context(), today)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestFileStore_Prune(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, zap.NewNop())
	today := time.Date(2024, 9, 10, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(t.Context(), today.Add(-24*time.Hour), []secureaccess.ZTNAEvent{event(t, 1, "old")}))
	require.NoError(t, s.Save(t.Context(), today, []secureaccess.ZTNAEvent{event(t, 2, "new")}))

	require.NoError(t, s.Prune(t.Context(), today))

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "ztna_20240910_09.json", files[0].Name())
}

func TestFileStore_MissingDirIsEmpty(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "absent"), zap.NewNop())

	require.NoError(t, s.Prune(t.Context(), time.Now()))
	got, err := s.Load(t.Context(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileStore_CorruptedFileIsSetAside(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, zap.NewNop())
	day := time.Date(2024, 9, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ztna_20240910_06.json"), []byte("{not json"), 0o644))
	require.NoError(t, s.Save(t.Context(), day.Add(-3*time.Hour), []secureaccess.ZTNAEvent{event(t, 7, "erp")}))

	got, err := s.Load(t.Context(), day)
	require.NoError(t, err)
	require.Len(t, got, 1, "readable snapshots of the day survive")
	assert.Equal(t, int64(7), got[0].Timestamp)

	_, err = os.Stat(filepath.Join(dir, "ztna_20240910_06.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(filepath.Join(dir, "ztna_20240910_06.json.corrupt"))
	require.NoError(t, err)

	got, err = s.Load(t.Context(), day)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, s.Prune(t.Context(), day.Add(24*time.Hour)))
	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, files, "set-aside files go away with the day")
}

func TestFileStore_SaveOverCorruptedHour(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, zap.NewNop())
	at := time.Date(2024, 9, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ztna_20240910_09.json"), []byte("[{"), 0o644))

	require.NoError(t, s.Save(t.Context(), at, []secureaccess.ZTNAEvent{event(t, 1, "erp")}))

	got, err := s.Load(t.Context(), at)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].Timestamp)
}

func TestFileStore_LoadIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, zap.NewNop())
	at := time.Date(2024, 9, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(t.Context(), at, []secureaccess.ZTNAEvent{event(t, 1, "erp")}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ztna_20240910_09.json.tmp"), []byte("{half"), 0o644))

	got, err := s.Load(t.Context(), at)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestBuildInsert(t *testing.T) {
	at := time.Date(2024, 9, 10, 14, 5, 0, 0, time.FixedZone("CST", -6*3600))
	query, vals, err := buildInsert(at, []secureaccess.ZTNAEvent{event(t, 10, "a"), event(t, 20, "b")})
	require.NoError(t, err)

	assert.Equal(t,
		"INSERT INTO ztna_snapshots (day, hour, event_ts, payload) VALUES ($1, $2, $3, $4), ($5, $6, $7, $8)",
		query)
	require.Len(t, vals, 8)
	assert.Equal(t, time.Date(2024, 9, 10, 0, 0, 0, 0, time.UTC), vals[0])
	assert.Equal(t, 14, vals[1])
	assert.Equal(t, int64(20), vals[6])
	assert.JSONEq(t, `{"timestamp":20,"allapplications":[{"type":"PRIVATE","label":"b"}]}`, string(vals[7].([]byte)))
}
