package problem

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteSetsStatusAndContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, InvalidRequest("logId must be a UUID"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, ContentType, rec.Header().Get("Content-Type"))

	var got Details
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "invalid-request", pathSuffix(got.Type))
	require.Equal(t, "logId must be a UUID", got.Detail)
}

func TestConstructorsSetExpectedStatus(t *testing.T) {
	cases := []struct {
		d    Details
		want int
	}{
		{QueueFull("full"), http.StatusServiceUnavailable},
		{UnsupportedMedia("bad type"), http.StatusUnsupportedMediaType},
		{MethodNotAllowed("nope"), http.StatusMethodNotAllowed},
		{NotFound("gone"), http.StatusNotFound},
		{PayloadTooLarge("too big"), http.StatusRequestEntityTooLarge},
		{Internal("oops"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		require.Equal(t, c.want, c.d.Status)
	}
}

func pathSuffix(typeURL string) string {
	for i := len(typeURL) - 1; i >= 0; i-- {
		if typeURL[i] == '/' {
			return typeURL[i+1:]
		}
	}
	return typeURL
}
