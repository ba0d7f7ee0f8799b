package audit

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestTrail(t *testing.T) (*Trail, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Entry{}))
	return NewTrail(db), db
}

func TestAppendAssignsAuditID(t *testing.T) {
	trail, _ := newTestTrail(t)

	entry := &Entry{
		TradeID:     1,
		TradeRef:    "TRD_1",
		Action:      ActionSendToABook,
		PerformedBy: "ADMIN_1",
		Success:     true,
	}
	require.NoError(t, trail.Append(entry))

	assert.True(t, strings.HasPrefix(entry.AuditID, "AUD_"))
	assert.NotZero(t, entry.ID)
}

func TestQueryFilters(t *testing.T) {
	trail, _ := newTestTrail(t)

	seed := []Entry{
		{TradeID: 1, UserID: "USR_A", Action: ActionSendToABook, Success: true},
		{TradeID: 1, UserID: "USR_A", Action: ActionMoveToBBook, Success: true},
		{TradeID: 2, UserID: "USR_B", Action: ActionSendToABook, Success: false},
	}
	for i := range seed {
		require.NoError(t, trail.Append(&seed[i]))
	}

	entries, total, err := trail.Query(Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, entries, 3)

	entries, total, err = trail.Query(Filter{TradeID: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, entries, 2)

	entries, total, err = trail.Query(Filter{Action: ActionSendToABook})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	for _, e := range entries {
		assert.Equal(t, ActionSendToABook, e.Action)
	}

	entries, total, err = trail.Query(Filter{UserID: "USR_B"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Success)
}

func TestQueryPagination(t *testing.T) {
	trail, _ := newTestTrail(t)

	for i := 0; i < 7; i++ {
		require.NoError(t, trail.Append(&Entry{TradeID: 9, Action: ActionMoveToBBook}))
	}

	entries, total, err := trail.Query(Filter{TradeID: 9, Page: 1, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)
	assert.Len(t, entries, 3)

	entries, _, err = trail.Query(Filter{TradeID: 9, Page: 3, Limit: 3})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// Out-of-range pages are empty, not an error
	entries, _, err = trail.Query(Filter{TradeID: 9, Page: 10, Limit: 3})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecentByTrade(t *testing.T) {
	trail, _ := newTestTrail(t)

	require.NoError(t, trail.Append(&Entry{TradeID: 5, Action: ActionSendToABook}))
	require.NoError(t, trail.Append(&Entry{TradeID: 5, Action: ActionMoveToBBook}))
	require.NoError(t, trail.Append(&Entry{TradeID: 6, Action: ActionSendToABook}))

	entries, err := trail.RecentByTrade(5, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = trail.RecentByTrade(5, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTrailEntriesAreImmutableHistory(t *testing.T) {
	trail, db := newTestTrail(t)

	entry := &Entry{TradeID: 7, Action: ActionHedgeFailed, ErrorDetails: "no liquidity"}
	require.NoError(t, trail.Append(entry))

	// A later append never touches earlier rows
	require.NoError(t, trail.Append(&Entry{TradeID: 7, Action: ActionSendToABook, Success: true}))

	var stored Entry
	require.NoError(t, db.Where("audit_id = ?", entry.AuditID).First(&stored).Error)
	assert.Equal(t, ActionHedgeFailed, stored.Action)
	assert.Equal(t, "no liquidity", stored.ErrorDetails)
}
