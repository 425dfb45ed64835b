package utils

import (
	"errors"
	"fmt"
	"strings"

	"passgate/internal/config"
)

// ParseUser parses an entry of the form email:bcrypt-hash or
// email:bcrypt-hash:name. Bcrypt hashes never contain colons, so the split is
// unambiguous.
func ParseUser(user string) (config.User, error) {
	parts := strings.SplitN(user, ":", 3)

	if len(parts) < 2 {
		return config.User{}, fmt.Errorf("invalid user format: %s", user)
	}

	email := strings.TrimSpace(parts[0])
	password := strings.TrimSpace(parts[1])

	if email == "" || password == "" {
		return config.User{}, errors.New("user email and password cannot be empty")
	}

	parsed := config.User{
		Email:    email,
		Password: password,
	}

	if len(parts) == 3 {
		parsed.Name = strings.TrimSpace(parts[2])
	}

	return parsed, nil
}

func ParseUsers(users string) ([]config.User, error) {
	var usersParsed []config.User

	users = strings.TrimSpace(users)

	if users == "" {
		return []config.User{}, nil
	}

	for _, user := range strings.Split(users, ",") {
		if strings.TrimSpace(user) == "" {
			continue
		}
		parsed, err := ParseUser(strings.TrimSpace(user))
		if err != nil {
			return []config.User{}, err
		}
		usersParsed = append(usersParsed, parsed)
	}

	return usersParsed, nil
}

// GetUsers merges the users flag with the users file.
func GetUsers(conf string, file string) ([]config.User, error) {
	var users string

	if conf == "" && file == "" {
		return []config.User{}, nil
	}

	if conf != "" {
		users += conf
	}

	if file != "" {
		contents, err := ReadFile(file)
		if err != nil {
			return []config.User{}, err
		}
		fileUsers := ParseFileToLine(contents)
		if users != "" {
			users = users + "," + fileUsers
		} else {
			users = fileUsers
		}
	}

	return ParseUsers(users)
}
