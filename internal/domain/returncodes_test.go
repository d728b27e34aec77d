package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReturnCode_Reason(t *testing.T) {
	reason, ok := R02.Reason()
	assert.True(t, ok)
	assert.Equal(t, "Account Closed", reason)

	reason, ok = R07.Reason()
	assert.True(t, ok)
	assert.Equal(t, "Authorization Revoked by Customer", reason)

	_, ok = ReturnCode("R99").Reason()
	assert.False(t, ok)
}

func TestReturnCode_Valid(t *testing.T) {
	assert.True(t, R01.Valid())
	assert.True(t, R33.Valid())
	assert.False(t, ReturnCode("R34").Valid())
	assert.False(t, ReturnCode("").Valid())
	assert.False(t, ReturnCode("r02").Valid())
}
