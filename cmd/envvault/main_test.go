package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/org/envvault/pkg/models"
)

func TestParseAddArgs(t *testing.T) {
	k, v, err := parseAddArgs([]string{"API_KEY", "a b c"})
	require.NoError(t, err)
	assert.Equal(t, "API_KEY", k)
	assert.Equal(t, "a b c", v)

	k, v, err = parseAddArgs([]string{"URL=postgres://h/db?x=1"})
	require.NoError(t, err)
	assert.Equal(t, "URL", k)
	assert.Equal(t, "postgres://h/db?x=1", v)

	_, _, err = parseAddArgs([]string{"NOEQUALS"})
	assert.Error(t, err)
	_, _, err = parseAddArgs([]string{"=value"})
	assert.Error(t, err)
}

func TestParseIDArg(t *testing.T) {
	id, err := parseIDArg("042")
	require.NoError(t, err)
	assert.Equal(t, "42", id)

	for _, bad := range []string{"", "x", "0", "-3"} {
		_, err := parseIDArg(bad)
		assert.Error(t, err, bad)
	}
}

func TestClientSendsTokenAndDecodesData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "evt_test" {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"errors":["invalid token"]}`)) //nolint:errcheck
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"id":1,"key":"A","value_masked":"********"}]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := &Client{addr: srv.URL, token: "evt_test", http: srv.Client()}
	var items []models.SecretItem
	require.NoError(t, c.getInto("/v1/secrets", &items))
	assert.Equal(t, []models.SecretItem{{ID: 1, Key: "A", ValueMasked: "********"}}, items)

	c.token = "evt_wrong"
	err := c.getInto("/v1/secrets", &items)
	require.Error(t, err)
	assert.Equal(t, "invalid token", err.Error())
}
