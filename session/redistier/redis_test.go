package redistier_test

import (
	"testing"

	"github.com/jrsteele09/go-attendance-console/session/redistier"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestNewFromURL(t *testing.T) {
	_, err := redistier.NewFromURL("not-a-valid-url")
	require.Error(t, err)

	tier, err := redistier.NewFromURL("redis://localhost:6379/0")
	require.NoError(t, err)
	require.NotNil(t, tier)
}

// Without a live Redis only the failure paths are exercised
func TestRedisTier_ConnectionError(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer rdb.Close()

	tier := redistier.New(rdb, redistier.WithKeyPrefix("test"))

	_, err := tier.Get("auth_token")
	require.Error(t, err)
	require.Error(t, tier.Put(map[string]string{"auth_token": "x"}))
	require.Error(t, tier.Delete("auth_token"))
}
