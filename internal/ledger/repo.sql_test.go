package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// The adjustment history window is passed as nullable parameters. Without the
// explicit timestamptz casts Postgres types an all-unknown COALESCE/NULL
// comparison as text and rejects the statement at prepare time, so the list
// query can never run.
func TestListAdjustmentsQueryCastsNullableParams(t *testing.T) {
	require.Contains(t, listAdjustmentsQuery, "$3::timestamptz")
	require.Contains(t, listAdjustmentsQuery, "$4::timestamptz")
	require.NotContains(t, listAdjustmentsQuery, "COALESCE($3,")
	require.NotContains(t, listAdjustmentsQuery, "COALESCE($4,")
}

func TestNullParamHelpers(t *testing.T) {
	require.Nil(t, nullTime(time.Time{}))
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.Equal(t, any(at), nullTime(at))

	require.Nil(t, nullInt(0))
	require.Equal(t, any(int64(7)), nullInt(7))
}
