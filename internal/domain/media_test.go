package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMediaConfigDefaults(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	cfg, err := ValidateMediaConfig(&MediaConfigInput{Host: " media.local ", Port: 8443}, now)
	require.NoError(t, err)

	assert.Equal(t, "media.local", cfg.Host)
	assert.Equal(t, "https", cfg.Protocol)
	assert.Equal(t, 8443, cfg.WebRTCPort)
	assert.Equal(t, 8443, cfg.APIPort)
	assert.Equal(t, now, cfg.CreatedAt)
	assert.Equal(t, "https://media.local:8443", cfg.SignalingURL())
}

func TestMediaURLsUseTheirOwnPorts(t *testing.T) {
	cfg, err := ValidateMediaConfig(&MediaConfigInput{Host: "10.0.0.5", Port: 3000, Protocol: "http", WebRTCPort: 3001, APIPort: 3002}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.5:3000", cfg.SignalingURL())
	assert.Equal(t, "http://10.0.0.5:3001", cfg.WebRTCURL())
	assert.Equal(t, "http://10.0.0.5:3002", cfg.APIURL())

	raw, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"webrtcUrl":"http://10.0.0.5:3001"`)
	assert.Contains(t, string(raw), `"apiUrl":"http://10.0.0.5:3002"`)
}

func TestValidateMediaConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		in   *MediaConfigInput
	}{
		{"nil", nil},
		{"blank host", &MediaConfigInput{Host: " ", Port: 80}},
		{"port 0", &MediaConfigInput{Host: "h", Port: 0}},
		{"port 65536", &MediaConfigInput{Host: "h", Port: 65536}},
		{"negative", &MediaConfigInput{Host: "h", Port: -1}},
		{"api port", &MediaConfigInput{Host: "h", Port: 80, APIPort: 100000}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateMediaConfig(tc.in, time.Now())
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Equal(t, http.StatusBadRequest, StatusCode(err))
		})
	}
}

func TestPortAcceptsNumbersAndStrings(t *testing.T) {
	var in MediaConfigInput
	require.NoError(t, json.Unmarshal([]byte(`{"host":"h","port":"8080","webrtcPort":9000,"apiPort":null}`), &in))
	assert.Equal(t, Port(8080), in.Port)
	assert.Equal(t, Port(9000), in.WebRTCPort)
	assert.Equal(t, Port(0), in.APIPort)

	assert.Error(t, json.Unmarshal([]byte(`{"host":"h","port":"eighty"}`), &in))
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{nil, http.StatusOK},
		{Errorf(ErrConflict, "dup"), http.StatusConflict},
		{ErrRoomNotFound, http.StatusNotFound},
		{ErrUserNotFound, http.StatusNotFound},
		{Errorf(ErrNotMember, "x"), http.StatusNotFound},
		{Errorf(ErrForbidden, "x"), http.StatusForbidden},
		{Errorf(ErrCapacity, "x"), http.StatusBadRequest},
		{Errorf(ErrBadInput, "x"), http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", ErrInvalidConfig), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.code, StatusCode(tc.err), "%v", tc.err)
	}
}

func TestErrorfKeepsMessage(t *testing.T) {
	err := Errorf(ErrForbidden, "user %q may not", "bob")
	assert.EqualError(t, err, `user "bob" may not`)
	assert.True(t, errors.Is(err, ErrForbidden))
	assert.False(t, errors.Is(err, ErrConflict))
}
