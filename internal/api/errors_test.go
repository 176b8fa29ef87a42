package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindForStatus(t *testing.T) {
	assert.Equal(t, KindAuthentication, KindForStatus(http.StatusUnauthorized))
	assert.Equal(t, KindValidation, KindForStatus(http.StatusBadRequest))
	assert.Equal(t, KindValidation, KindForStatus(http.StatusConflict))
	assert.Equal(t, KindServer, KindForStatus(http.StatusBadGateway))
}

func TestErrorFromResponseMessageFields(t *testing.T) {
	err := errorFromResponse(http.StatusBadRequest, []byte(`{"message":"Already friends"}`))
	assert.Equal(t, "Already friends", err.Error())

	err = errorFromResponse(http.StatusForbidden, []byte(`{"error":"not allowed"}`))
	assert.Equal(t, "not allowed", err.Error())

	err = errorFromResponse(http.StatusInternalServerError, []byte(`<html>`))
	assert.Equal(t, "", err.Message)
	assert.True(t, errors.Is(err, ErrServer))
}

func TestWithFallbackKeepsServerMessage(t *testing.T) {
	err := WithFallback(&Error{Kind: KindValidation, Status: 400, Message: "Username taken"}, "Register failed.")
	assert.Equal(t, "Username taken", err.Error())

	err = WithFallback(&Error{Kind: KindServer, Status: 500}, "Register failed.")
	assert.Equal(t, "Register failed.", err.Error())
	assert.ErrorIs(t, err, ErrServer)

	assert.NoError(t, WithFallback(nil, "x"))
}
