package apierr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromResponse(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		want       string
		fromServer bool
	}{
		{
			name:       "string message",
			status:     401,
			body:       `{"message":"Invalid email or password."}`,
			want:       "Invalid email or password.",
			fromServer: true,
		},
		{
			name:       "array message",
			status:     400,
			body:       `{"message":["amount must be a number","comment should not be empty"]}`,
			want:       "amount must be a number; comment should not be empty",
			fromServer: true,
		},
		{
			name:   "empty body falls back to status text",
			status: 500,
			body:   ``,
			want:   "Internal Server Error",
		},
		{
			name:   "json without message",
			status: 404,
			body:   `{"error":"nope"}`,
			want:   "Not Found",
		},
		{
			name:       "plain text body",
			status:     409,
			body:       "User with such email already exists",
			want:       "User with such email already exists",
			fromServer: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := FromResponse(tt.status, []byte(tt.body))
			assert.Equal(t, KindHTTPStatus, e.Kind)
			assert.Equal(t, tt.status, e.StatusCode)
			assert.Equal(t, tt.want, e.Message)
			assert.Equal(t, tt.fromServer, e.ServerMessage())
		})
	}
}

func TestWithFallback(t *testing.T) {
	server := FromResponse(401, []byte(`{"message":"Wrong password"}`))
	assert.Equal(t, "Wrong password", WithFallback(server, "Invalid email or password.").Message)

	bare := FromResponse(401, nil)
	got := WithFallback(bare, "Invalid email or password.")
	assert.Equal(t, 401, got.StatusCode)
	assert.Equal(t, "Invalid email or password.", got.Message)
	assert.Equal(t, "Unauthorized", bare.Message, "original must not be modified")

	network := WithFallback(errors.New("dial tcp: connection refused"), "Registration failed.")
	assert.Equal(t, KindNetwork, network.Kind)
	assert.Equal(t, "Registration failed.", network.Message)

	v := Validation(errors.New("Amount must be greater than 0."))
	assert.Equal(t, "Amount must be greater than 0.", WithFallback(v, "Failed to add transaction.").Message)

	assert.Nil(t, WithFallback(nil, "x"))
}

func TestAsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("get balance: %w", FromResponse(503, nil))
	e, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, 503, e.StatusCode)
	assert.True(t, IsStatus(wrapped, 503))
	assert.False(t, IsStatus(wrapped, 500))
}

func TestNetworkUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	e := Network(cause)
	assert.ErrorIs(t, e, cause)
	assert.Equal(t, 0, e.StatusCode)
	assert.Equal(t, "connection reset", e.Error())
}
