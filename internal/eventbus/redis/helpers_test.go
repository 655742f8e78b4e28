package redis

import (
	"os"
	"testing"
)

func lookupRedis(t *testing.T) string {
	addr := os.Getenv("RCMOS_TEST_REDIS")
	if addr == "" {
		t.Skip("RCMOS_TEST_REDIS not set")
	}
	return addr
}
