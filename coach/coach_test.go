package coach

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/entitlement"
)

func TestImproveSuccess(t *testing.T) {
	var got improveRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/answers/improve", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]string{"improved": "I led the migration end to end."})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	out, err := c.Improve(context.Background(), "Tell me about a project.", "i did the migration thing")
	require.NoError(t, err)
	assert.Equal(t, "I led the migration end to end.", out)
	assert.Equal(t, "Tell me about a project.", got.Question)
	assert.Equal(t, "i did the migration thing", got.Answer)
}

func TestImproveUpgradeRequired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(map[string]any{"upgrade": true, "message": "daily limit reached"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.Improve(context.Background(), "q", "a")
	require.Error(t, err)

	var ue *entitlement.UpgradeError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "daily limit reached", ue.Message)
	assert.Equal(t, http.StatusPaymentRequired, ue.Status)
	assert.ErrorIs(t, err, entitlement.ErrUpgradeRequired)
}

func TestImproveGenericFailureIsNotUpgrade(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "backend down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.Improve(context.Background(), "q", "a")
	require.Error(t, err)
	assert.NotErrorIs(t, err, entitlement.ErrUpgradeRequired)
}

func TestImproveEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.Improve(context.Background(), "q", "a")
	assert.Error(t, err)
}

func TestImproveUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", nil)
	_, err := c.Improve(context.Background(), "q", "a")
	assert.Error(t, err)
}

func TestFakeImproverScript(t *testing.T) {
	f := &FakeImprover{
		Results: []string{"first", "second"},
		Errs:    []error{nil, nil, errors.New("boom")},
	}

	got, err := f.Improve(context.Background(), "q", "a1")
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	got, err = f.Improve(context.Background(), "q", "a2")
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	_, err = f.Improve(context.Background(), "q", "a3")
	assert.Error(t, err)

	got, err = f.Improve(context.Background(), "q", "a4")
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	assert.Equal(t, 4, f.Calls())
	assert.Equal(t, []string{"a1", "a2", "a3", "a4"}, f.Answers())

	def := &FakeImprover{}
	got, err = def.Improve(context.Background(), "q", "raw")
	require.NoError(t, err)
	assert.Equal(t, "improved: raw", got)
}
