package common

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	ENABLED  = "enabled"
	DISABLED = "disabled"
)

var (
	snowflakeNode *snowflake.Node
	snowflakeOnce sync.Once
)

func idNode() *snowflake.Node {
	snowflakeOnce.Do(func() {
		node, err := snowflake.NewNode(1)
		if err != nil {
			panic(err)
		}
		snowflakeNode = node
	})
	return snowflakeNode
}

// UUIDint64 returns a time-ordered unique int64 id.
func UUIDint64() int64 {
	return idNode().Generate().Int64()
}

// UUID returns a random RFC 4122 id.
func UUID() string {
	return uuid.NewString()
}

// TransactionID formats a sale id as tx_YYYYMMDD_HHMMSS_xxxxxxxx.
func TransactionID(t time.Time) string {
	return fmt.Sprintf("tx_%s_%s", t.Format("20060102_150405"), uuid.NewString()[:8])
}

// HashPassword bcrypt-hashes a password.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword reports whether password matches the bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// InSlice reports whether v is in the list, ignoring case.
func InSlice(v string, list []string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// IsEmptyOrNA reports whether the value is blank or the "N/A" placeholder.
func IsEmptyOrNA(val string) bool {
	val = strings.TrimSpace(val)
	return val == "" || strings.EqualFold(val, "N/A")
}
