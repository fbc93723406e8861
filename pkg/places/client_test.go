package places

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rowan-T/clover/pkg/httpclient"
	"github.com/Rowan-T/clover/pkg/logging"
	"github.com/Rowan-T/clover/pkg/models"
)

func newTestClient(serverURL string) *Client {
	httpClient := httpclient.NewClient(httpclient.Config{}, logging.NewNop())
	return NewClient(Config{BaseURL: serverURL, APIKey: "test-key"}, httpClient, logging.NewNop())
}

func TestClient_SearchNearby(t *testing.T) {
	ctx := context.Background()
	anchor := models.LatLng{Lat: 35.2271, Lng: -80.8431}

	t.Run("maps provider results to candidates", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/nearbysearch/json", r.URL.Path)
			query := r.URL.Query()
			assert.Equal(t, "coffee", query.Get("keyword"))
			assert.Equal(t, "test-key", query.Get("key"))
			assert.Equal(t, "5000", query.Get("radius"))
			assert.NotEmpty(t, query.Get("location"))

			fmt.Fprint(w, `{
				"status": "OK",
				"results": [
					{
						"place_id": "p1",
						"name": "Corner Coffee",
						"rating": 4.5,
						"user_ratings_total": 120,
						"vicinity": "12 Main St",
						"geometry": {"location": {"lat": 35.23, "lng": -80.84}}
					},
					{
						"place_id": "p2",
						"name": "Unrated Roasters",
						"geometry": {"location": {"lat": 35.24, "lng": -80.85}}
					},
					{
						"name": "No Place ID",
						"geometry": {"location": {"lat": 35.25, "lng": -80.86}}
					}
				]
			}`)
		}))
		defer server.Close()

		candidates, err := newTestClient(server.URL).SearchNearby(ctx, "coffee", anchor, 5000)
		require.NoError(t, err)
		require.Len(t, candidates, 2, "results without a place id are dropped")

		first := candidates[0]
		assert.Equal(t, "p1", first.ExternalPlaceID)
		assert.Equal(t, "Corner Coffee", first.Name)
		assert.Equal(t, "coffee", first.Category, "keyword becomes the category")
		require.NotNil(t, first.Rating)
		assert.Equal(t, 4.5, *first.Rating)
		require.NotNil(t, first.Address)
		assert.Equal(t, "12 Main St", *first.Address)
		assert.Equal(t, 35.23, first.Location.Lat)

		assert.Nil(t, candidates[1].Rating, "missing rating stays nil")
		assert.Nil(t, candidates[1].Address)
	})

	t.Run("zero results is empty, not an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status": "ZERO_RESULTS", "results": []}`)
		}))
		defer server.Close()

		candidates, err := newTestClient(server.URL).SearchNearby(ctx, "coffee", anchor, 5000)
		require.NoError(t, err)
		assert.Empty(t, candidates)
	})

	t.Run("rejected status surfaces as a StatusError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status": "REQUEST_DENIED", "error_message": "bad key"}`)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).SearchNearby(ctx, "coffee", anchor, 5000)
		require.Error(t, err)

		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, "REQUEST_DENIED", statusErr.Status)
		assert.Contains(t, statusErr.Error(), "bad key")
	})

	t.Run("non-200 transport status is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).SearchNearby(ctx, "coffee", anchor, 5000)
		require.Error(t, err)
	})

	t.Run("malformed body is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `not json`)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).SearchNearby(ctx, "coffee", anchor, 5000)
		require.Error(t, err)
	})
}
