package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"survey-map/internal/logger"
)

func init() { logger.Discard() }

func fakeCentral(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/sessions":
			_, _ = w.Write([]byte(`{"token":"good"}`))
			return
		}
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/v1/projects":
			_, _ = w.Write([]byte(`[{"id":1,"name":"Survey","description":""}]`))
		case "/v1/projects/1/forms/wells/fields":
			_, _ = w.Write([]byte(`[{"path":"/G6/Q9_5","name":"Q9_5","type":"geopoint"}]`))
		case "/v1/projects/1/forms/wells.svc/Submissions":
			_, _ = w.Write([]byte(`{"value":[{"__id":"a","G6":{"Q9_5":{"coordinates":[79.8,6.9]}}}]}`))
		case "/v1/projects/1/forms/wells/submissions":
			_, _ = w.Write([]byte(`[{"instanceId":"a","reviewState":"approved"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestRun(t *testing.T) {
	t.Setenv("CENTRAL_URL", fakeCentral(t))
	t.Setenv("CENTRAL_TOKEN", "")
	t.Setenv("CENTRAL_EMAIL", "a@b.c")
	t.Setenv("CENTRAL_PASSWORD", "secret")

	var out bytes.Buffer
	require.NoError(t, run(nil, &out))
	assert.JSONEq(t, `[{"id":1,"name":"Survey","description":""}]`, out.String())

	out.Reset()
	require.NoError(t, run([]string{"-project", "1", "-dataset", "wells", "-format", "geojson"}, &out))
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[79.8,6.9]},"properties":{"id":"a"}}
	]}`, out.String())

	out.Reset()
	require.NoError(t, run([]string{"-project", "1", "-dataset", "wells", "-counts"}, &out))
	assert.JSONEq(t, `{"id":"wells","total":1,"edited":0,"rejected":0,"approved":1}`, out.String())
}

func TestRunRejectedToken(t *testing.T) {
	t.Setenv("CENTRAL_URL", fakeCentral(t))
	t.Setenv("CENTRAL_TOKEN", "expired")

	var out bytes.Buffer
	err := run(nil, &out)
	require.Error(t, err)
	assert.Empty(t, out.String())
}
