package friend

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestFriend_Counterpart(t *testing.T) {
	requester := uuid.New()
	addressee := uuid.New()
	f := Friend{UserID: requester, FriendUserID: addressee}

	assert.Equal(t, addressee, f.Counterpart(requester))
	assert.Equal(t, requester, f.Counterpart(addressee))
}
