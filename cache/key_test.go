package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKeyPlainPath(t *testing.T) {
	assert.Equal(t, "/api/menu", NormalizeKey("/api/menu"))
}

func TestNormalizeKeySortsQueryParams(t *testing.T) {
	a := NormalizeKey("/api/orders?status=active&table=5")
	b := NormalizeKey("/api/orders?table=5&status=active")

	assert.Equal(t, a, b)
	assert.Equal(t, "/api/orders?status=active&table=5", a)
}

func TestNormalizeKeyRepeatedParam(t *testing.T) {
	key := NormalizeKey("/api/menu?tag=b&tag=a")
	assert.Equal(t, "/api/menu?tag=a&tag=b", key)
}

func TestNormalizeKeyEmptyQuery(t *testing.T) {
	assert.Equal(t, "/api/menu", NormalizeKey("/api/menu?"))
}

func TestNormalizeKeyUnparsableQueryFallsBackToPath(t *testing.T) {
	assert.Equal(t, "/api/menu", NormalizeKey("/api/menu?a=%zz"))
}
