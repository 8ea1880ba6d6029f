package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"amora/domain"
)

const testSecret = "super-secret"

func Test_Token_Roundtrip(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(testSecret, "alice", time.Minute)
	req.NoError(err)

	userID, err := NewTokenValidator(testSecret).Validate(token)
	req.NoError(err)
	req.Equal(domain.UserID("alice"), userID)
}

func Test_Token_Wrong_Secret_Is_Rejected(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(testSecret, "alice", time.Minute)
	req.NoError(err)

	_, err = NewTokenValidator("another-secret").Validate(token)
	req.Error(err)
}

func Test_Token_Expired_Is_Rejected(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(testSecret, "alice", -time.Minute)
	req.NoError(err)

	_, err = NewTokenValidator(testSecret).Validate(token)
	req.Error(err)
}

func Test_Token_Without_Identity_Is_Rejected(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(testSecret, "", time.Minute)
	req.NoError(err)

	_, err = NewTokenValidator(testSecret).Validate(token)
	req.Error(err)
}

func Test_Token_Garbage_Is_Rejected(t *testing.T) {
	req := require.New(t)

	_, err := NewTokenValidator(testSecret).Validate("not-a-token")
	req.Error(err)
}
