package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/devadigapratham/leveling3d/api/handlers"
	"github.com/devadigapratham/leveling3d/api/models"
	"github.com/devadigapratham/leveling3d/leveling"
	"github.com/devadigapratham/leveling3d/meshstore"
	"github.com/devadigapratham/leveling3d/printercfg"
	"github.com/devadigapratham/leveling3d/raft"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `[probe]
z_offset: 1.443

[bed_mesh]
probe_count: 3,3
bed_mesh_temp: 60
points: 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9
`

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Status          string               `json:"status"`
	Message         string               `json:"message"`
	GridSizeChanged bool                 `json:"grid_size_changed"`
	Removed         int                  `json:"removed"`
	Updates         []models.ParamUpdate `json:"updates"`
}

type statusResponse struct {
	Status      string                  `json:"status"`
	Settings    models.LevelingSettings `json:"settings"`
	ActiveMesh  models.ActiveMesh       `json:"active_mesh"`
	SavedMeshes []models.MeshSlot       `json:"saved_meshes"`
}

type testServer struct {
	router     *gin.Engine
	handler    *handlers.Handler
	service    *leveling.Service
	slots      *meshstore.Store
	configPath string
	paramsPath string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()

	configPath := filepath.Join(dir, "printer.cfg")
	require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))
	paramsPath := filepath.Join(dir, "parameters.cfg")
	require.NoError(t, os.WriteFile(paramsPath, []byte("precision=0.01\n"), 0644))

	accessor := printercfg.NewAccessor([]printercfg.Profile{{Model: "test", ConfigPath: configPath, DefaultGridSize: 5}}, nil)
	params, err := printercfg.LoadParams(paramsPath)
	require.NoError(t, err)
	slots, err := meshstore.NewStore(filepath.Join(dir, "webfs"), nil)
	require.NoError(t, err)

	service := leveling.NewService(accessor, params, slots, nil)
	reg := prometheus.NewRegistry()
	handler := handlers.NewHandler(service, handlers.NewMetrics(reg), nil)

	return &testServer{
		router:     SetupRouter(handler, DefaultPrefix, reg),
		handler:    handler,
		service:    service,
		slots:      slots,
		configPath: configPath,
		paramsPath: paramsPath,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestGetLevelingEmptyBank(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/leveling", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.Contains(t, w.Body.String(), `"saved_meshes":[]`)

	status := decode[statusResponse](t, w)
	assert.Equal(t, "success", status.Status)
	assert.Equal(t, models.LevelingSettings{GridSize: 3, BedTemp: 60, Precision: 0.01, ZOffset: 1.443}, status.Settings)
	assert.Equal(t, "0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9", status.ActiveMesh.MeshData)
	assert.Empty(t, status.SavedMeshes)
}

func TestPutSlotThenGet(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPut, "/api/leveling/mesh/1", `{"mesh_data":"1.0, 2.0"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[envelope](t, w)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, "Mesh saved to slot 1.", res.Message)

	status := decode[statusResponse](t, s.do(t, http.MethodGet, "/api/leveling", ""))
	require.Len(t, status.SavedMeshes, 1)
	assert.Equal(t, 1, status.SavedMeshes[0].ID)
	assert.Equal(t, "1.0, 2.0", status.SavedMeshes[0].MeshData)
	_, err := time.ParseInLocation(meshstore.DateLayout, status.SavedMeshes[0].Date, time.Local)
	assert.NoError(t, err)
}

func TestSlotIDBounds(t *testing.T) {
	s := newTestServer(t)
	body := `{"mesh_data":"0.5"}`

	for _, id := range []string{"0", "100", "-1", "abc"} {
		w := s.do(t, http.MethodPut, "/api/leveling/mesh/"+id, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "put %s", id)
		res := decode[envelope](t, w)
		assert.Equal(t, "error", res.Status)
		assert.Equal(t, "Invalid slot ID.", res.Message)

		w = s.do(t, http.MethodDelete, "/api/leveling/mesh/"+id, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, "delete %s", id)
	}

	// an empty id parses as 0
	w := s.do(t, http.MethodPut, "/api/leveling/mesh/", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid slot ID.", decode[envelope](t, w).Message)
	w = s.do(t, http.MethodDelete, "/api/leveling/mesh/", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid slot ID.", decode[envelope](t, w).Message)

	for _, id := range []string{"1", "99"} {
		w := s.do(t, http.MethodPut, "/api/leveling/mesh/"+id, body)
		assert.Equal(t, http.StatusOK, w.Code, "put %s", id)
	}
}

func TestMissingBodyOnEveryPut(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/leveling/mesh/3", "/api/leveling/printer-mesh", "/api/leveling/settings"} {
		for _, body := range []string{"", "   \n"} {
			w := s.do(t, http.MethodPut, path, body)
			assert.Equal(t, http.StatusBadRequest, w.Code, path)
			res := decode[envelope](t, w)
			assert.Equal(t, "error", res.Status)
			assert.Equal(t, "Missing request body.", res.Message)
		}
	}
}

func TestMissingMeshData(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/leveling/mesh/3", "/api/leveling/printer-mesh"} {
		w := s.do(t, http.MethodPut, path, `{"points":"1, 2"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.Equal(t, "Invalid JSON payload. Missing 'mesh_data'.", decode[envelope](t, w).Message)
	}
}

func TestPutSlotTooLarge(t *testing.T) {
	s := newTestServer(t)
	body := `{"mesh_data":"` + strings.Repeat("1", meshstore.MaxMeshSize+1) + `"}`

	w := s.do(t, http.MethodPut, "/api/leveling/mesh/2", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPutSlotWriteFailure(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, os.RemoveAll(s.slots.Dir()))
	require.NoError(t, os.WriteFile(s.slots.Dir(), []byte("not a directory"), 0644))

	w := s.do(t, http.MethodPut, "/api/leveling/mesh/2", `{"mesh_data":"1"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to write to file.", decode[envelope](t, w).Message)
}

func TestDeleteSlot(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.slots.Put(5, "abc"))

	w := s.do(t, http.MethodDelete, "/api/leveling/mesh/5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Mesh slot 5 deleted.", decode[envelope](t, w).Message)

	w = s.do(t, http.MethodDelete, "/api/leveling/mesh/5", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	res := decode[envelope](t, w)
	assert.Equal(t, "error", res.Status)
	assert.Equal(t, "Could not delete mesh slot 5. It may not exist.", res.Message)
}

func TestDeleteAllSlots(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.slots.Put(1, "a"))
	require.NoError(t, s.slots.Put(2, "b"))
	require.NoError(t, s.slots.Put(3, "c"))

	w := s.do(t, http.MethodDelete, "/api/leveling/mesh/all", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, decode[envelope](t, w).Removed)

	slots, err := s.slots.List()
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestActivateSlot(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.slots.Put(4, "4, 4, 4"))

	w := s.do(t, http.MethodPut, "/api/leveling/mesh/4/activate", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	status := decode[statusResponse](t, s.do(t, http.MethodGet, "/api/leveling", ""))
	assert.Equal(t, "4, 4, 4", status.ActiveMesh.MeshData)

	w = s.do(t, http.MethodPut, "/api/leveling/mesh/6/activate", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPutPrinterMesh(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.slots.Put(1, "kept"))

	w := s.do(t, http.MethodPut, "/api/leveling/printer-mesh", `{"mesh_data": "0.5, 0.5, 0.5"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, decode[envelope](t, w).Message, "Active printer mesh updated")

	status := decode[statusResponse](t, s.do(t, http.MethodGet, "/api/leveling", ""))
	assert.Equal(t, "0.5, 0.5, 0.5", status.ActiveMesh.MeshData)
	assert.Equal(t, 3, status.Settings.GridSize)
	assert.Len(t, status.SavedMeshes, 1)
}

func TestPutPrinterMeshConfigNotFound(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, os.Remove(s.configPath))

	w := s.do(t, http.MethodPut, "/api/leveling/printer-mesh", `{"mesh_data":"1"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Could not detect printer configuration file.", decode[envelope](t, w).Message)

	w = s.do(t, http.MethodGet, "/api/leveling", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestPutSettingsGridSizeChange(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.slots.Put(1, "a"))
	require.NoError(t, s.slots.Put(2, "b"))

	w := s.do(t, http.MethodPut, "/api/leveling/settings", `{"grid_size": 4, "bed_temp": 65, "precision": 0.02}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[envelope](t, w)
	assert.Equal(t, "success", res.Status)
	assert.True(t, res.GridSizeChanged)
	assert.Len(t, res.Updates, 5)

	status := decode[statusResponse](t, s.do(t, http.MethodGet, "/api/leveling", ""))
	assert.Equal(t, 4, status.Settings.GridSize)
	assert.Equal(t, 65, status.Settings.BedTemp)
	assert.InDelta(t, 0.02, status.Settings.Precision, 1e-9)
	assert.Equal(t, leveling.FlatMesh(4), status.ActiveMesh.MeshData)
	assert.Equal(t, 16, strings.Count(status.ActiveMesh.MeshData, "0.000000"))
	assert.Empty(t, status.SavedMeshes)

	cfg, err := os.ReadFile(s.configPath)
	require.NoError(t, err)
	assert.Contains(t, string(cfg), "probe_count: 4,4")
}

func TestPutSettingsSameGridSize(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.slots.Put(1, "a"))

	w := s.do(t, http.MethodPut, "/api/leveling/settings", `{"grid_size": 3}`)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[envelope](t, w)
	assert.False(t, res.GridSizeChanged)
	assert.NotNil(t, res.Updates)
	assert.Empty(t, res.Updates)

	slots, err := s.slots.List()
	require.NoError(t, err)
	assert.Len(t, slots, 1)
}

func TestPutSettingsPartialFailure(t *testing.T) {
	s := newTestServer(t)
	// Turn parameters.cfg into a directory so persisting the precision fails
	require.NoError(t, os.Remove(s.paramsPath))
	require.NoError(t, os.Mkdir(s.paramsPath, 0755))

	w := s.do(t, http.MethodPut, "/api/leveling/settings", `{"bed_temp": 70, "precision": 0.5}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	res := decode[envelope](t, w)
	assert.Equal(t, "error", res.Status)
	assert.Contains(t, res.Message, leveling.ParamPrecision)
	require.Len(t, res.Updates, 2)
	assert.True(t, res.Updates[0].Applied)
	assert.False(t, res.Updates[1].Applied)

	// the bed temperature write still went through
	status := decode[statusResponse](t, s.do(t, http.MethodGet, "/api/leveling", ""))
	assert.Equal(t, 70, status.Settings.BedTemp)
}

func TestPutSettingsRejectsOversizedGrid(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.slots.Put(1, "kept"))

	for _, grid := range []string{"3037000500", "50000", "21"} {
		w := s.do(t, http.MethodPut, "/api/leveling/settings", `{"grid_size": `+grid+`}`)
		assert.Equal(t, http.StatusBadRequest, w.Code, grid)
		res := decode[envelope](t, w)
		assert.Equal(t, "error", res.Status)
		assert.Equal(t, "Invalid grid size, at most 20 is allowed.", res.Message)
	}

	status := decode[statusResponse](t, s.do(t, http.MethodGet, "/api/leveling", ""))
	assert.Equal(t, 3, status.Settings.GridSize)
	assert.Len(t, status.SavedMeshes, 1)
}

func TestRecoveredPanicHidesDetails(t *testing.T) {
	s := newTestServer(t)
	s.router.GET("/boom", func(c *gin.Context) { panic("makeslice: len out of range") })

	w := s.do(t, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	res := decode[envelope](t, w)
	assert.Equal(t, "Internal server error.", res.Message)
	assert.NotContains(t, w.Body.String(), "makeslice")
}

func TestUnknownEndpoints(t *testing.T) {
	s := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/nothing"},
		{http.MethodPost, "/api/leveling"},
		{http.MethodGet, "/api/leveling/settings"},
		{http.MethodPatch, "/api/leveling/mesh/1"},
		{http.MethodPut, "/api/leveling/mesh"},
		{http.MethodGet, "/api/leveling/"},
	} {
		w := s.do(t, tc.method, tc.path, "")
		assert.Equal(t, http.StatusNotFound, w.Code, "%s %s", tc.method, tc.path)
		res := decode[envelope](t, w)
		assert.Equal(t, "error", res.Status)
		assert.Equal(t, "API endpoint not found", res.Message)
	}
}

func TestRequestIDAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/leveling", "")
	assert.NotEmpty(t, w.Header().Get(handlers.RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/api/leveling", nil)
	req.Header.Set(handlers.RequestIDHeader, "fixed-id")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, "fixed-id", w.Header().Get(handlers.RequestIDHeader))

	s.do(t, http.MethodPut, "/api/leveling/mesh/1", `{"mesh_data":"1"}`)

	w = s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `leveling_http_requests_total{code="200",method="GET",route="/api/leveling"} 2`)
	assert.Contains(t, w.Body.String(), "leveling_slot_writes_total 1")
}

type notLeader struct{ handlers.Executor }

func (notLeader) Leader() bool { return false }

func TestJournalNotLeaderRejectsWrites(t *testing.T) {
	s := newTestServer(t)
	s.handler.WithJournal(notLeader{s.service})

	w := s.do(t, http.MethodPut, "/api/leveling/mesh/1", `{"mesh_data":"1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "error", decode[envelope](t, w).Status)

	w = s.do(t, http.MethodGet, "/api/leveling", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJournalledWrites(t *testing.T) {
	s := newTestServer(t)
	node, err := raft.NewNode(&raft.Config{
		NodeID:           "api-test",
		InMemory:         true,
		HeartbeatTimeout: 50 * time.Millisecond,
	}, s.service, s.slots, nil)
	require.NoError(t, err)
	defer node.Shutdown()
	require.NoError(t, node.WaitForLeader(5*time.Second))
	s.handler.WithJournal(node)

	w := s.do(t, http.MethodPut, "/api/leveling/mesh/8", `{"mesh_data":"8, 8"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPut, "/api/leveling/settings", `{"grid_size": 3037000500}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.True(t, node.Leader())

	w = s.do(t, http.MethodPut, "/api/leveling/settings", `{"grid_size": 6}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[envelope](t, w).GridSizeChanged)

	status := decode[statusResponse](t, s.do(t, http.MethodGet, "/api/leveling", ""))
	assert.Equal(t, 6, status.Settings.GridSize)
	assert.Empty(t, status.SavedMeshes)
	assert.NotZero(t, node.GetFSM().AppliedIndex())
}
