package common

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDint64_Unique(t *testing.T) {
	seen := make(map[int64]bool)
	for i := 0; i < 1000; i++ {
		id := UUIDint64()
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestTransactionID(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	id := TransactionID(ts)
	assert.Regexp(t, regexp.MustCompile(`^tx_20240115_103000_[0-9a-f]{8}$`), id)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "s3cret"))
	assert.False(t, CheckPassword(hash, "wrong"))
}

func TestInSlice(t *testing.T) {
	assert.True(t, InSlice("Admin", []string{"owner", "admin"}))
	assert.False(t, InSlice("staff", []string{"owner", "admin"}))
	assert.True(t, IsEmptyOrNA(" n/a "))
}
