package booklookup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/libris-app/libris-backend/pkg/errors"
)

const searchBody = `{
  "items": [
    {
      "id": "vol-1",
      "volumeInfo": {
        "title": "Lalka",
        "authors": ["Bolesław Prus"],
        "publisher": "PIW",
        "publishedDate": "1890-01-01",
        "description": "Powieść o Wokulskim.",
        "industryIdentifiers": [
          {"type": "ISBN_10", "identifier": "8306023764"},
          {"type": "ISBN_13", "identifier": "9788306023763"}
        ],
        "pageCount": 700,
        "categories": ["Fiction"],
        "language": "pl",
        "imageLinks": {"thumbnail": "https://img/thumb.jpg"},
        "previewLink": "https://preview",
        "infoLink": "https://info"
      }
    },
    {
      "id": "vol-2",
      "volumeInfo": {
        "industryIdentifiers": [
          {"type": "ISBN_10", "identifier": "0306406152"}
        ]
      }
    }
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient("test-key", WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	require.NoError(t, err)
	return client
}

func TestSearchParsesVolumes(t *testing.T) {
	var gotQuery map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"q":            r.URL.Query().Get("q"),
			"maxResults":   r.URL.Query().Get("maxResults"),
			"langRestrict": r.URL.Query().Get("langRestrict"),
			"key":          r.URL.Query().Get("key"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchBody))
	})

	volumes, err := client.Search(context.Background(), SearchParams{Query: "lalka prus"})
	require.NoError(t, err)
	require.Len(t, volumes, 2)

	assert.Equal(t, "lalka prus", gotQuery["q"])
	assert.Equal(t, "10", gotQuery["maxResults"])
	assert.Equal(t, "pl", gotQuery["langRestrict"])
	assert.Equal(t, "test-key", gotQuery["key"])

	first := volumes[0]
	assert.Equal(t, "vol-1", first.GoogleBooksID)
	assert.Equal(t, "Lalka", first.Title)
	assert.Equal(t, "Bolesław Prus", first.Author)
	require.NotNil(t, first.ISBN)
	assert.Equal(t, "9788306023763", *first.ISBN, "ISBN-13 wins over ISBN-10")
	require.NotNil(t, first.PublicationYear)
	assert.Equal(t, 1890, *first.PublicationYear)
	require.NotNil(t, first.PageCount)
	assert.Equal(t, 700, *first.PageCount)
	require.NotNil(t, first.Thumbnail)

	second := volumes[1]
	assert.Equal(t, "Brak tytułu", second.Title)
	assert.Equal(t, "Nieznany autor", second.Author)
	require.NotNil(t, second.ISBN)
	assert.Equal(t, "0306406152", *second.ISBN, "ISBN-10 used when no ISBN-13")
	assert.Nil(t, second.PublicationYear)
}

func TestSearchValidation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := client.Search(context.Background(), SearchParams{Query: "  "})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestSearchClampsMaxResults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "40", r.URL.Query().Get("maxResults"))
		_, _ = w.Write([]byte(`{"items": []}`))
	})
	volumes, err := client.Search(context.Background(), SearchParams{Query: "x", MaxResults: 100})
	require.NoError(t, err)
	assert.Empty(t, volumes)
}

func TestSearchByISBN(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "isbn:9788306023763" {
			_, _ = w.Write([]byte(searchBody))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})

	volume, err := client.SearchByISBN(context.Background(), "9788306023763")
	require.NoError(t, err)
	assert.Equal(t, "vol-1", volume.GoogleBooksID)

	_, err = client.SearchByISBN(context.Background(), "0000000000000")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestGetVolume(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/volumes/vol-1":
			_, _ = w.Write([]byte(`{"id": "vol-1", "volumeInfo": {"title": "Lalka", "authors": ["Bolesław Prus"]}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	volume, err := client.GetVolume(context.Background(), "vol-1")
	require.NoError(t, err)
	assert.Equal(t, "Lalka", volume.Title)

	_, err = client.GetVolume(context.Background(), "missing")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestUpstreamErrorMapsToDependency(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`rate limited`))
	})
	_, err := client.Search(context.Background(), SearchParams{Query: "x"})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())
}
