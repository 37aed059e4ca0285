package tests

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/orbit/apps/api/echo"
	"github.com/trezcool/orbit/core/upload"
	"github.com/trezcool/orbit/tests"
)

func Test_uploadApi_create(t *testing.T) {
	app := setup(t)
	token := app.token(t, teacherEmail, echoapi.RoleFaculty)
	_ = testutil.CreateCollection(t, app.collections, "c1", "Algebra", teacherEmail)
	_ = testutil.CreateCollection(t, app.collections, "c3", "Chemistry", otherEmail)

	notes := formFile{name: "notes.pdf", contentType: "application/pdf", content: "%PDF-1.4 week 3"}
	slides := formFile{name: "slides.pptx", contentType: "application/vnd.ms-powerpoint", content: "slides"}
	broken := formFile{name: "broken.txt", contentType: "text/plain", content: "nope"}

	t.Run("faculty only", func(t *testing.T) {
		req := newUploadRequest(t, "/v1/collections/c1/uploads", app.token(t, studentEmail, echoapi.RoleStudent), "Week 3", notes)
		assert.Equal(t, http.StatusForbidden, app.serve(req).Code)
	})

	t.Run("not the owner", func(t *testing.T) {
		req := newUploadRequest(t, "/v1/collections/c3/uploads", token, "Week 3", notes)
		assert.Equal(t, http.StatusNotFound, app.serve(req).Code)
	})

	t.Run("validation", func(t *testing.T) {
		rec := app.serve(newUploadRequest(t, "/v1/collections/c1/uploads", token, "  "))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"title":"this field is required","files":"select at least one file"}`),
		}, rec)
	})

	t.Run("not multipart", func(t *testing.T) {
		rec := app.serve(newAuthRequest(http.MethodPost, "/v1/collections/c1/uploads", token, []byte(`{}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("partial failure", func(t *testing.T) {
		rec := app.serve(newUploadRequest(t, "/v1/collections/c1/uploads", token, "Week 3", notes, broken, slides))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var result upload.Result
		unmarshal(t, rec, &result)
		assert.Equal(t, 3, result.Total)
		assert.ElementsMatch(t, []string{"notes.pdf", "slides.pptx"}, result.Succeeded)
		require.Len(t, result.Failures, 1)
		assert.Equal(t, 1, result.Failures[0].TaskIndex)
		assert.Equal(t, "broken.txt", result.Failures[0].TaskName)
		assert.Equal(t, "storage refused the object", result.Failures[0].Reason)

		records, err := app.materials.ListMaterials(context.Background(), "c1")
		require.NoError(t, err)
		require.Len(t, records, 2)
		types := []string{records[0].Type, records[1].Type}
		assert.ElementsMatch(t, []string{upload.TypePDF, upload.TypePPT}, types)
		for _, r := range records {
			assert.Equal(t, "Week 3", r.Title)
			assert.Equal(t, teacherEmail, r.UploadedBy)
		}
		assert.Len(t, app.store.Keys(), 2)

		// the batch stays queryable by its uploader
		path := "/v1/uploads/" + result.BatchID
		rec = app.serve(newAuthRequest(http.MethodGet, path, token))
		require.Equal(t, http.StatusOK, rec.Code)
		var batch upload.Batch
		unmarshal(t, rec, &batch)
		assert.True(t, batch.Complete)
		assert.Equal(t, float64(100)*2/3, batch.AggregateProgress)

		otherToken := app.token(t, otherEmail, echoapi.RoleFaculty)
		assert.Equal(t, http.StatusNotFound, app.serve(newAuthRequest(http.MethodGet, path, otherToken)).Code)
		assert.Equal(t, http.StatusNotFound, app.serve(newAuthRequest(http.MethodDelete, path, otherToken)).Code)
		assert.Equal(t, http.StatusNoContent, app.serve(newAuthRequest(http.MethodDelete, path, token)).Code)
	})

	t.Run("every file failed", func(t *testing.T) {
		rec := app.serve(newUploadRequest(t, "/v1/collections/c1/uploads", token, "Broken", broken))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

		var result upload.Result
		unmarshal(t, rec, &result)
		assert.Empty(t, result.Succeeded)
		assert.Len(t, result.Failures, 1)
	})

	t.Run("client disconnects", func(t *testing.T) {
		reqCtx, disconnect := context.WithCancel(context.Background())
		req := newUploadRequest(t, "/v1/collections/c1/uploads", token, "Stalled",
			formFile{name: "stalled.txt", contentType: "text/plain", content: "slow"},
		).WithContext(reqCtx)

		served := make(chan *httptest.ResponseRecorder, 1)
		go func() { served <- app.serve(req) }()

		select {
		case <-app.stalled:
		case <-time.After(5 * time.Second):
			t.Fatal("upload never reached the store")
		}
		disconnect()
		select {
		case <-served:
		case <-time.After(5 * time.Second):
			t.Fatal("handler did not return after the client went away")
		}

		rec := app.serve(newAuthRequest(http.MethodGet, "/v1/uploads", token))
		require.Equal(t, http.StatusOK, rec.Code)
		var batches []upload.Batch
		unmarshal(t, rec, &batches)
		require.NotEmpty(t, batches)
		stalled := batches[0]
		assert.Equal(t, "Stalled", stalled.Title)
		assert.True(t, stalled.Cancelled)
		require.Len(t, stalled.Tasks, 1)
		assert.Equal(t, upload.StatusFailed, stalled.Tasks[0].Status)
		assert.Equal(t, upload.ReasonCancelled, stalled.Tasks[0].Reason)
	})
}

func Test_uploadApi_query(t *testing.T) {
	app := setup(t)
	token := app.token(t, teacherEmail, echoapi.RoleFaculty)
	_ = testutil.CreateCollection(t, app.collections, "c1", "Algebra", teacherEmail)

	rec := app.serve(newUploadRequest(t, "/v1/collections/c1/uploads", token, "Week 1",
		formFile{name: "notes.txt", contentType: "text/plain", content: "notes"},
	))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	runHTTPTests(t, app, []httpTest{
		{name: "Auth required", path: "/v1/uploads", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "faculty only", path: "/v1/uploads", token: app.token(t, studentEmail, echoapi.RoleStudent), wantCode: http.StatusForbidden},
		{name: "own batches only", path: "/v1/uploads", token: app.token(t, otherEmail, echoapi.RoleFaculty), wantCode: http.StatusOK, wantData: []byte(`[]`)},
	})

	rec = app.serve(newAuthRequest(http.MethodGet, "/v1/uploads", token))
	require.Equal(t, http.StatusOK, rec.Code)
	var batches []upload.Batch
	unmarshal(t, rec, &batches)
	require.Len(t, batches, 1)
	assert.Equal(t, "Week 1", batches[0].Title)
	assert.True(t, batches[0].Complete)
}

func Test_uploadApi_retrieve(t *testing.T) {
	app := setup(t)

	runHTTPTests(t, app, []httpTest{
		{name: "Auth required", path: "/v1/uploads/lol", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "unknown batch", path: "/v1/uploads/lol", token: app.token(t, teacherEmail, echoapi.RoleFaculty),
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "cancel unknown batch", method: http.MethodDelete, path: "/v1/uploads/lol", token: app.token(t, teacherEmail, echoapi.RoleFaculty),
			wantCode: http.StatusNotFound,
		},
	})
}
