package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"passgate/internal/utils"

	"gotest.tools/v3/assert"
)

func TestParseUser(t *testing.T) {
	user, err := utils.ParseUser("test@example.com:$2a$10$ne6z693sTgzT3ePoQ05PgOecUHnBjM7sSNj6M.l5CLUP.f6NyCnt.")
	assert.NilError(t, err)
	assert.Equal(t, "test@example.com", user.Email)
	assert.Equal(t, "$2a$10$ne6z693sTgzT3ePoQ05PgOecUHnBjM7sSNj6M.l5CLUP.f6NyCnt.", user.Password)
	assert.Equal(t, "", user.Name)

	user, err = utils.ParseUser("test@example.com:$2a$10$ne6z693sTgzT3ePoQ05PgOecUHnBjM7sSNj6M.l5CLUP.f6NyCnt.:Test User")
	assert.NilError(t, err)
	assert.Equal(t, "Test User", user.Name)

	_, err = utils.ParseUser("no-password")
	assert.ErrorContains(t, err, "invalid user format")

	_, err = utils.ParseUser(":hash")
	assert.ErrorContains(t, err, "cannot be empty")
}

func TestParseUsers(t *testing.T) {
	users, err := utils.ParseUsers("a@example.com:hash1,b@example.com:hash2:B")
	assert.NilError(t, err)
	assert.Equal(t, 2, len(users))
	assert.Equal(t, "b@example.com", users[1].Email)
	assert.Equal(t, "B", users[1].Name)

	users, err = utils.ParseUsers("")
	assert.NilError(t, err)
	assert.Equal(t, 0, len(users))
}

func TestGetUsers(t *testing.T) {
	file := filepath.Join(t.TempDir(), "users")
	err := os.WriteFile(file, []byte("c@example.com:hash3\n\nd@example.com:hash4\n"), 0600)
	assert.NilError(t, err)

	users, err := utils.GetUsers("a@example.com:hash1", file)
	assert.NilError(t, err)
	assert.Equal(t, 3, len(users))
	assert.Equal(t, "d@example.com", users[2].Email)
}
