package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUser_DisplayName(t *testing.T) {
	t.Run("prefers full name", func(t *testing.T) {
		u := User{Email: "ramesh@example.com", Username: "ramesh42", FullName: "Ramesh Karki"}
		assert.Equal(t, "Ramesh Karki", u.DisplayName())
	})

	t.Run("falls back to username", func(t *testing.T) {
		u := User{Email: "ramesh@example.com", Username: "ramesh42"}
		assert.Equal(t, "ramesh42", u.DisplayName())
	})

	t.Run("falls back to email local part", func(t *testing.T) {
		u := User{Email: "ramesh@example.com"}
		assert.Equal(t, "ramesh", u.DisplayName())
	})
}

func TestLocalPart(t *testing.T) {
	assert.Equal(t, "sita", localPart("sita@example.com"))
	assert.Equal(t, "no-at-sign", localPart("no-at-sign"))
	assert.Equal(t, "@example.com", localPart("@example.com"))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `\%`, escapeLike(`%`))
	assert.Equal(t, `\_`, escapeLike(`_`))
	assert.Equal(t, `\\`, escapeLike(`\`))
	assert.Equal(t, `sita\%\_`, escapeLike(`sita%_`))
	assert.Equal(t, `plain`, escapeLike(`plain`))
}
