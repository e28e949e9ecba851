package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/datatrails/go-datatrails-sequencer/queue"
)

func newRegistrationMux(t *testing.T) (*mux.Router, *queue.Router) {
	router := newTestRouter(t)
	r := mux.NewRouter()
	(&Registration{Router: router, MaxBodyBytes: 4 << 20}).RegisterRoutes(r)
	return r, router
}

// fakeCOSE builds a minimal byte string starting with the COSE_Sign1 array
// tag (0x84, a 4 element CBOR array) this handler checks for.
func fakeCOSE() []byte {
	return []byte{0x84, 0x01, 0x02, 0x03, 0x04}
}

func TestHandleRegisterAcceptsCOSEContentType(t *testing.T) {
	r, _ := newRegistrationMux(t)
	logID := "11111111-1111-1111-1111-111111111111"

	req := httptest.NewRequest(http.MethodPost, "/logs/"+logID+"/entries", bytes.NewReader(fakeCOSE()))
	req.Header.Set("Content-Type", coseSign1ContentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Location"))
	require.Equal(t, "5", rec.Header().Get("Retry-After"))
}

func TestHandleRegisterAcceptsCBORWrapper(t *testing.T) {
	r, _ := newRegistrationMux(t)
	logID := "11111111-1111-1111-1111-111111111111"

	body, err := cbor.Marshal(cborSignedStatement{SignedStatement: fakeCOSE()})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/logs/"+logID+"/entries", bytes.NewReader(body))
	req.Header.Set("Content-Type", cborCoseContentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestHandleRegisterRejectsBadLogID(t *testing.T) {
	r, _ := newRegistrationMux(t)
	req := httptest.NewRequest(http.MethodPost, "/logs/not-a-uuid/entries", bytes.NewReader(fakeCOSE()))
	req.Header.Set("Content-Type", coseSign1ContentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRegisterRejectsUnsupportedMediaType(t *testing.T) {
	r, _ := newRegistrationMux(t)
	logID := "11111111-1111-1111-1111-111111111111"
	req := httptest.NewRequest(http.MethodPost, "/logs/"+logID+"/entries", bytes.NewReader(fakeCOSE()))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestHandleRegisterRejectsNonCOSEBody(t *testing.T) {
	r, _ := newRegistrationMux(t)
	logID := "11111111-1111-1111-1111-111111111111"
	req := httptest.NewRequest(http.MethodPost, "/logs/"+logID+"/entries", bytes.NewReader([]byte{0x00, 0x01}))
	req.Header.Set("Content-Type", coseSign1ContentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
