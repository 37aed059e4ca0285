package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"reflect"
	"strings"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	echoapi "github.com/trezcool/orbit/apps/api/echo"
	"github.com/trezcool/orbit/core"
	"github.com/trezcool/orbit/core/attendance"
	"github.com/trezcool/orbit/core/collection"
	"github.com/trezcool/orbit/core/material"
	"github.com/trezcool/orbit/core/upload"
	emailsvc "github.com/trezcool/orbit/services/email"
	logsvc "github.com/trezcool/orbit/services/logger"
	"github.com/trezcool/orbit/services/realtime"
	"github.com/trezcool/orbit/services/transport"
	inmemdb "github.com/trezcool/orbit/storage/database/inmem"
	"github.com/trezcool/orbit/storage/objectstore"
)

const (
	teacherEmail = "teacher@school.test"
	otherEmail   = "other@school.test"
	studentEmail = "student@school.test"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	server      *echoapi.Server
	conf        *core.Config
	collections collection.Repository
	materials   material.Repository
	sessions    attendance.Repository
	store       *objectstore.MemoryStore
	stalled     chan string
	hub         *realtime.Hub
}

// brokenStore fails every object whose key contains "broken",
// and holds the ones containing "stalled" until their upload is cancelled.
type brokenStore struct {
	objectstore.Store
	stalled chan<- string
}

func (s brokenStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	switch {
	case strings.Contains(key, "broken"):
		return "", errors.New("storage refused the object")
	case strings.Contains(key, "stalled"):
		s.stalled <- key
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.Store.Put(ctx, key, body, size, contentType)
}

func setup(t *testing.T) testApp {
	conf := core.NewTestConfig()
	logger := logsvc.NewDiscardLogger()

	// set up DB & repos
	db := inmemdb.Open()
	app := testApp{
		conf:        conf,
		collections: inmemdb.NewCollectionRepository(db),
		materials:   inmemdb.NewMaterialRepository(db),
		sessions:    inmemdb.NewSessionRepository(db),
		store:       objectstore.NewMemoryStore(""),
		stalled:     make(chan string, 1),
		hub:         realtime.NewHub(logger),
	}

	// set up services
	materialSvc := material.NewService(app.collections, app.materials, logger, conf, func(owner string) material.Sink {
		return app.hub.Sink(owner)
	})
	attendanceSvc := attendance.NewService(app.collections, app.sessions, logger, conf, func(owner string) attendance.Sink {
		return app.hub.Sink(owner)
	})
	tr := transport.NewMaterialTransport(brokenStore{Store: app.store, stalled: app.stalled}, app.materials, logger, conf)
	uploadSvc := upload.NewService(tr, emailsvc.NewConsoleServiceMock(conf), logger, conf, func(owner string) upload.Sink {
		return upload.MultiSink(app.hub.Sink(owner), upload.CompletionFunc(func(upload.Result) {
			materialSvc.Invalidate(context.Background(), owner)
		}))
	})

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)

	// set up server
	app.server = echoapi.NewServer(echoapi.ServerDeps{
		Conf:          conf,
		Logger:        logger,
		Validate:      validate,
		Translator:    translator,
		Collections:   app.collections,
		Sessions:      app.sessions,
		UploadSvc:     uploadSvc,
		MaterialSvc:   materialSvc,
		AttendanceSvc: attendanceSvc,
		Hub:           app.hub,
	})
	t.Cleanup(func() { _ = app.server.Close() })
	return app
}

func (app testApp) token(t *testing.T, email, role string) string {
	token, err := echoapi.GenerateToken(app.conf, echoapi.NewClaims(app.conf, email, "", role))
	if err != nil {
		t.Fatalf("token() failed: %v", err)
	}
	return token
}

func (app testApp) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	app.server.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) *http.Request {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	if method == "" {
		method = http.MethodGet
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

type formFile struct {
	name        string
	contentType string
	content     string
}

func newUploadRequest(t *testing.T, path, token, title string, files ...formFile) *http.Request {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("title", title); err != nil {
		t.Fatalf("newUploadRequest() failed: %v", err)
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+f.name+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("newUploadRequest() failed: %v", err)
		}
		_, _ = part.Write([]byte(f.content))
	}
	if err := w.Close(); err != nil {
		t.Fatalf("newUploadRequest() failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app testApp, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.serve(newAuthRequest(tt.method, tt.path, tt.token, tt.body))
			checkCodeAndData(t, tt, rec)
		})
	}
}
