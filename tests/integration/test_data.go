//go:build integration

package integration

import (
	"fmt"
	"time"
)

// TestPassword satisfies the owner password policy
const TestPassword = "TestPassword123!"

// TestUser generates unique test user credentials using timestamp
func TestUser(suffix string) (username, password string) {
	return fmt.Sprintf("test-%d-%s", time.Now().UnixNano(), suffix), TestPassword
}
