package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"shutter-cam/pkg/app"
	"shutter-cam/pkg/camera/cameratest"
	"shutter-cam/pkg/permission"
	"shutter-cam/pkg/storage"
	"shutter-cam/pkg/utils"
	"shutter-cam/pkg/webdav"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type response struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func newTestServer(t *testing.T, grants map[permission.Capability]bool) (*gin.Engine, *app.Controller) {
	t.Helper()
	stg, err := storage.New(t.TempDir(), storage.WithMinFree(0))
	if err != nil {
		t.Fatal(err)
	}
	ctrl := app.New(app.Config{}, cameratest.NewDriver(), stg,
		permission.NewGate(permission.NewStatic(grants), permission.DefaultSet(false), nil))
	t.Cleanup(func() {
		_ = ctrl.Shutdown(context.Background())
	})
	s := &server{
		ctrl:   ctrl,
		store:  stg,
		dav:    webdav.New(context.Background(), 0, stg.Root(), nil),
		logger: utils.GetLogger(),
	}
	return newRouter(s, ""), ctrl
}

func do(t *testing.T, r http.Handler, method, target, body string) (int, response) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s %s: bad body %q: %s", method, target, w.Body.String(), err)
	}
	return w.Code, resp
}

func waitBound(t *testing.T, ctrl *app.Controller) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !ctrl.State().Bound {
		if time.Now().After(deadline) {
			t.Fatal("session never bound")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStateAndPhoto(t *testing.T) {
	r, ctrl := newTestServer(t, map[permission.Capability]bool{permission.Camera: true})

	code, resp := do(t, r, http.MethodGet, "/api/state", "")
	if code != http.StatusOK || resp.Status != "success" {
		t.Fatalf("state = %d %+v", code, resp)
	}
	var st app.State
	if err := json.Unmarshal(resp.Data, &st); err != nil {
		t.Fatal(err)
	}
	if st.Bound || st.Recording != "idle" {
		t.Fatalf("state = %+v", st)
	}

	if code, _ = do(t, r, http.MethodPost, "/api/photo", ""); code != http.StatusConflict {
		t.Fatalf("photo while unbound = %d", code)
	}

	ctrl.Start()
	waitBound(t, ctrl)
	if code, resp = do(t, r, http.MethodPost, "/api/photo", ""); code != http.StatusOK {
		t.Fatalf("photo = %d %+v", code, resp)
	}
	if code, _ = do(t, r, http.MethodPost, "/api/video", ""); code != http.StatusConflict {
		t.Fatalf("video without VideoCapture = %d", code)
	}
}

func TestRebindEndpoint(t *testing.T) {
	r, ctrl := newTestServer(t, map[permission.Capability]bool{permission.Camera: true})
	ctrl.Start()
	waitBound(t, ctrl)

	for _, body := range []string{`{}`, `{"useCases":["preview","hdr"]}`, `{"selector":"side","useCases":["preview"]}`} {
		if code, _ := do(t, r, http.MethodPut, "/api/session", body); code != http.StatusBadRequest {
			t.Fatalf("%s = %d", body, code)
		}
	}
	if code, _ := do(t, r, http.MethodPut, "/api/session", `{"useCases":[]}`); code != http.StatusConflict {
		t.Fatalf("empty set = %d", code)
	}

	code, resp := do(t, r, http.MethodPut, "/api/session", `{"selector":"front","useCases":["preview","video"]}`)
	if code != http.StatusOK {
		t.Fatalf("rebind = %d %+v", code, resp)
	}
	if !strings.Contains(string(resp.Data), `"front"`) {
		t.Fatalf("session = %s", resp.Data)
	}
	if code, resp = do(t, r, http.MethodPost, "/api/video", ""); code != http.StatusOK {
		t.Fatalf("video = %d %+v", code, resp)
	}
}

func TestPermissionDeniedEndpoints(t *testing.T) {
	r, ctrl := newTestServer(t, nil)
	ctrl.Start()

	if code, _ := do(t, r, http.MethodPut, "/api/session", `{"useCases":["preview"]}`); code != http.StatusForbidden {
		t.Fatalf("rebind without permission = %d", code)
	}
	code, resp := do(t, r, http.MethodPost, "/api/permissions/retry", "")
	if code != http.StatusOK || !strings.Contains(string(resp.Data), `"camera":false`) {
		t.Fatalf("retry = %d %s", code, resp.Data)
	}
}

func TestMediaAndWebdav(t *testing.T) {
	r, _ := newTestServer(t, nil)

	if code, _ := do(t, r, http.MethodGet, "/api/media/sound", ""); code != http.StatusNotFound {
		t.Fatalf("unknown category = %d", code)
	}
	code, resp := do(t, r, http.MethodGet, "/api/media/image", "")
	if code != http.StatusOK || string(resp.Data) != "[]" {
		t.Fatalf("list = %d %s", code, resp.Data)
	}
	if code, _ = do(t, r, http.MethodGet, "/api/media/video/latest", ""); code != http.StatusNotFound {
		t.Fatalf("latest = %d", code)
	}
	if code, _ = do(t, r, http.MethodGet, "/api/media/video/files/missing.avi", ""); code != http.StatusNotFound {
		t.Fatalf("missing file = %d", code)
	}

	if code, _ = do(t, r, http.MethodPut, "/api/device/webdav?op=reboot", ""); code != http.StatusBadRequest {
		t.Fatalf("unknown op = %d", code)
	}
	if code, resp = do(t, r, http.MethodPut, "/api/device/webdav?op=start", ""); code != http.StatusOK || resp.Status != "success" {
		t.Fatalf("start = %d %+v", code, resp)
	}
	if code, resp = do(t, r, http.MethodPut, "/api/device/webdav?op=shutdown", ""); code != http.StatusOK || resp.Status != "success" {
		t.Fatalf("shutdown = %d %+v", code, resp)
	}
}
