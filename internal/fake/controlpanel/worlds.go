package controlpanel

import (
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kofuk/premises-sub000/internal/shared/types"
)

const storagePrefix = "/_storage/"

// uploadExtensions maps accepted archive types to the stored object suffix.
var uploadExtensions = map[string]string{
	"application/zip":    ".zip",
	"application/x-gzip": ".tar.gz",
	"application/gzip":   ".tar.gz",
	"application/x-tar":  ".tar",
	"application/zstd":   ".tar.zst",
}

func defaultVersions() []types.MCVersion {
	return []types.MCVersion{
		{Name: "1.21.4", IsStable: true, Channel: "stable", ReleaseDate: "2024-12-03T10:12:57+00:00"},
		{Name: "24w14a", IsStable: false, Channel: "snapshot", ReleaseDate: "2024-04-03T12:48:26+00:00"},
		{Name: "b1.7.3", IsStable: false, Channel: "beta", ReleaseDate: "2011-07-07T22:00:00+00:00"},
		{Name: "a1.2.6", IsStable: false, Channel: "alpha", ReleaseDate: "2010-12-02T22:00:00+00:00"},
	}
}

// objectStore stands in for the bucket behind delegated URLs. Keys must be
// signed before they can be read or written.
type objectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	signed  map[string]string
}

func newObjectStore() *objectStore {
	return &objectStore{
		objects: make(map[string][]byte),
		signed:  make(map[string]string),
	}
}

func (o *objectStore) sign(key string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	sig := uuid.NewString()
	o.signed[sig] = key
	return sig
}

func (o *objectStore) verify(sig, key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return sig != "" && o.signed[sig] == key
}

func (o *objectStore) put(key string, data []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[key] = data
}

func (o *objectStore) get(key string) ([]byte, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, ok := o.objects[key]
	return data, ok
}

func (s *Server) delegatedURL(c *gin.Context, key string) string {
	return fmt.Sprintf("http://%s%s%s?sig=%s", c.Request.Host, storagePrefix, key, s.storage.sign(key))
}

func (s *Server) handleListWorlds(c *gin.Context) {
	s.mu.Lock()
	worlds := append([]types.World{}, s.worlds...)
	s.mu.Unlock()

	ok(c, http.StatusOK, worlds)
}

func (s *Server) handleDeleteWorld(c *gin.Context) {
	var req types.DeleteWorldInput
	if err := c.ShouldBindJSON(&req); err != nil || req.WorldName == "" {
		fail(c, http.StatusBadRequest, types.ErrBadRequest)
		return
	}

	s.mu.Lock()
	s.worlds = slices.DeleteFunc(s.worlds, func(w types.World) bool {
		return w.WorldName == req.WorldName
	})
	s.mu.Unlock()

	ok(c, http.StatusNoContent, nil)
}

func (s *Server) handleMCVersions(c *gin.Context) {
	s.mu.Lock()
	versions := append([]types.MCVersion{}, s.versions...)
	s.mu.Unlock()

	ok(c, http.StatusOK, versions)
}

func (s *Server) handleSystemInfo(c *gin.Context) {
	s.mu.Lock()
	info := s.sysInfo
	if s.running {
		info.IPAddr = types.Ptr("127.0.0.1")
	}
	s.mu.Unlock()

	ok(c, http.StatusOK, info)
}

func (s *Server) handleWorldInfo(c *gin.Context) {
	s.mu.Lock()
	running, info := s.running, s.worldInfo
	s.mu.Unlock()

	if !running {
		fail(c, http.StatusInternalServerError, types.ErrServerNotRunning)
		return
	}
	ok(c, http.StatusOK, info)
}

func (s *Server) handleDownloadLink(c *gin.Context) {
	var req types.CreateWorldDownloadLinkReq
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" {
		fail(c, http.StatusBadRequest, types.ErrBadRequest)
		return
	}
	ok(c, http.StatusCreated, types.DelegatedURL{URL: s.delegatedURL(c, req.ID)})
}

func (s *Server) handleUploadLink(c *gin.Context) {
	var req types.CreateWorldUploadLinkReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, types.ErrBadRequest)
		return
	}
	if req.WorldName == "" || strings.ContainsAny(req.WorldName, "@/\\") {
		fail(c, http.StatusBadRequest, types.ErrBadRequest)
		return
	}
	ext, accepted := uploadExtensions[req.MimeType]
	if !accepted {
		fail(c, http.StatusBadRequest, types.ErrBadRequest)
		return
	}

	key := req.WorldName + "/user_uploaded_world" + ext
	ok(c, http.StatusOK, types.DelegatedURL{URL: s.delegatedURL(c, key)})
}

func (s *Server) handleStorageGet(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if !s.storage.verify(c.Query("sig"), key) {
		c.Status(http.StatusForbidden)
		return
	}
	data, found := s.storage.get(key)
	if !found {
		c.Status(http.StatusNotFound)
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", data)
}

func (s *Server) handleStoragePut(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if !s.storage.verify(c.Query("sig"), key) {
		c.Status(http.StatusForbidden)
		return
	}
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	s.storage.put(key, data)

	worldName, _, _ := strings.Cut(key, "/")
	s.mu.Lock()
	if !slices.ContainsFunc(s.worlds, func(w types.World) bool { return w.WorldName == worldName }) {
		s.worlds = append(s.worlds, types.World{
			WorldName:   worldName,
			Generations: []types.WorldGeneration{{Gen: "user_uploaded_world", ID: key}},
		})
	}
	s.mu.Unlock()

	c.Status(http.StatusOK)
}

func (s *Server) handleSnapshot(c *gin.Context) {
	slot, valid := bindSlot(c)
	if !valid {
		return
	}

	s.mu.Lock()
	running := s.running
	if running {
		s.snapshots[slot] = true
	}
	s.mu.Unlock()

	ok(c, http.StatusAccepted, nil)
	if running {
		s.PublishNotify(types.NotifyEvent{InfoCode: types.InfoSnapshotDone})
	} else {
		s.PublishNotify(types.NotifyEvent{InfoCode: types.InfoSnapshotError, IsError: true})
	}
}

func (s *Server) handleUndo(c *gin.Context) {
	slot, valid := bindSlot(c)
	if !valid {
		return
	}

	s.mu.Lock()
	taken := s.snapshots[slot]
	s.mu.Unlock()

	ok(c, http.StatusAccepted, nil)
	if !taken {
		s.PublishNotify(types.NotifyEvent{InfoCode: types.InfoNoSnapshot, IsError: true})
	}
}

func bindSlot(c *gin.Context) (int, bool) {
	var req types.SnapshotConfiguration
	if err := c.ShouldBindJSON(&req); err != nil || req.Slot < 0 || req.Slot >= 10 {
		fail(c, http.StatusBadRequest, types.ErrBadRequest)
		return 0, false
	}
	return req.Slot, true
}
