package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/strikeline/padmon/internal/config"
	"github.com/strikeline/padmon/internal/device"
	"github.com/strikeline/padmon/internal/monitor"
	"github.com/strikeline/padmon/internal/port"
	"github.com/strikeline/padmon/internal/record"
	"github.com/strikeline/padmon/internal/telemetry"
	"github.com/strikeline/padmon/internal/wire"
)

// settingsTimeout bounds a firmware settings exchange from the HTTP side.
const settingsTimeout = 5 * time.Second

// routes builds the daemon's HTTP surface.
func (a *App) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.Handle("/ws", a.hub.Handler())

	mux.HandleFunc("/api/status", a.handleStatus)
	mux.HandleFunc("/api/version", a.handleVersion)
	mux.HandleFunc("/api/config", a.handleConfig)
	mux.HandleFunc("/api/config/profiles", a.handleConfigProfiles)
	mux.HandleFunc("/api/reload", a.handleReload)

	mux.HandleFunc("/api/ports", a.handlePorts)
	mux.HandleFunc("/api/connect", a.handleConnect)
	mux.HandleFunc("/api/disconnect", a.handleDisconnect)

	mux.HandleFunc("/api/snapshot", a.handleSnapshot)
	mux.HandleFunc("/api/clear", a.handleClear)
	mux.HandleFunc("/api/capacity", a.handleCapacity)
	mux.HandleFunc("/api/thresholds", a.handleThresholds)
	mux.HandleFunc("/api/channels", a.handleChannels)

	mux.HandleFunc("/api/record/start", a.handleRecordStart)
	mux.HandleFunc("/api/record/stop", a.handleRecordStop)
	mux.HandleFunc("/api/recordings", a.handleRecordings)

	mux.HandleFunc("/api/settings", a.handleSettings)
	mux.HandleFunc("/api/logs", a.handleLogs)
	return mux
}

// ---------------------------------------------------------------------------
// Core handlers
// ---------------------------------------------------------------------------

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	// If the client asks for JSON, return component-level health checks.
	if r.Header.Get("Accept") == "application/json" {
		a.handleHealthDetailed(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (a *App) handleHealthDetailed(w http.ResponseWriter, _ *http.Request) {
	cfg := a.getConfig()

	checks := map[string]any{}
	allOK := true

	// The recording directory must be writable or record/start will fail.
	tmpPath := filepath.Join(cfg.Recording.Dir, ".healthcheck")
	if err := os.MkdirAll(cfg.Recording.Dir, 0o755); err != nil {
		checks["recording_dir"] = map[string]any{"ok": false, "error": err.Error()}
		allOK = false
	} else if err := os.WriteFile(tmpPath, []byte("ok"), 0o644); err != nil {
		checks["recording_dir"] = map[string]any{"ok": false, "error": err.Error()}
		allOK = false
	} else {
		os.Remove(tmpPath)
		checks["recording_dir"] = map[string]any{"ok": true, "path": cfg.Recording.Dir}
	}

	// The serial link is reported, not judged: a bench setup with no
	// controller plugged in is still a healthy daemon.
	st := a.engine.Status()
	checks["serial"] = map[string]any{
		"ok":    st.State != monitor.StateError,
		"state": st.State,
	}
	if st.State == monitor.StateError {
		allOK = false
	}

	if a.configPath != "" {
		if _, err := os.Stat(a.configPath); err != nil {
			checks["config_file"] = map[string]any{"ok": false, "error": err.Error()}
			allOK = false
		} else {
			checks["config_file"] = map[string]any{"ok": true, "path": a.configPath}
		}
	}

	status := http.StatusOK
	if !allOK {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"healthy": allOK,
		"checks":  checks,
	})
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	cfg := a.getConfig()
	snap := a.engine.Latest()

	resp := map[string]any{
		"name":            "padmon",
		"status":          snap.Status,
		"uptime_seconds":  int64(time.Since(a.startedAt).Seconds()),
		"samples":         snap.Samples,
		"decode_failures": snap.DecodeFailures,
		"capacity":        snap.Capacity,
		"recorder":        snap.Recorder,
		"ws_clients":      a.hub.Clients(),
		"recording_dir":   cfg.Recording.Dir,
		"mqtt_enabled":    cfg.MQTT.Enabled,
		"go_version":      runtime.Version(),
		"os":              runtime.GOOS,
		"arch":            runtime.GOARCH,
	}

	// Disk usage for the recording directory.
	if du := diskUsage(cfg.Recording.Dir); du != nil {
		resp["disk"] = du
	}

	writeJSON(w, resp)
}

func (a *App) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"version":    Version,
		"go_version": GoVersion,
		"built_at":   BuiltAt,
	})
}

func (a *App) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, a.getConfig())
}

func (a *App) handleConfigProfiles(w http.ResponseWriter, _ *http.Request) {
	profiles, err := config.ListProfiles(config.DefaultConfigDir())
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if profiles == nil {
		profiles = []config.ProfileInfo{}
	}
	writeJSON(w, map[string]any{
		"config_dir": config.DefaultConfigDir(),
		"profiles":   profiles,
	})
}

func (a *App) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Accept optional profile name in body: {"profile": "practice"}
	var body struct {
		Profile string `json:"profile"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	loadPath := a.configPath
	if body.Profile != "" {
		candidate := filepath.Join(config.DefaultConfigDir(), body.Profile+".toml")
		if _, err := os.Stat(candidate); err != nil {
			jsonError(w, fmt.Sprintf("profile %q not found at %s", body.Profile, candidate), http.StatusNotFound)
			return
		}
		loadPath = candidate
	}

	if loadPath == "" {
		jsonError(w, "no config file path set", http.StatusInternalServerError)
		return
	}

	newCfg, err := config.Load(loadPath)
	if err != nil {
		jsonError(w, "config reload failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	a.cfgMu.Lock()
	a.cfg = newCfg
	a.configPath = loadPath
	a.cfgMu.Unlock()

	// History and display settings apply immediately; bind address and
	// broker changes need a restart.
	if err := a.engine.SetCapacity(newCfg.History.Capacity); err != nil {
		jsonError(w, "apply capacity: "+err.Error(), http.StatusInternalServerError)
		return
	}
	var thresholds [wire.NumChannels]int
	copy(thresholds[:], newCfg.Display.Thresholds)
	if err := a.engine.SetThresholds(thresholds); err != nil {
		jsonError(w, "apply thresholds: "+err.Error(), http.StatusInternalServerError)
		return
	}

	a.logf("info", "config reloaded from %s", loadPath)
	writeJSON(w, map[string]any{
		"ok":      true,
		"message": "configuration reloaded from " + loadPath,
	})
}

// ---------------------------------------------------------------------------
// Connection
// ---------------------------------------------------------------------------

func (a *App) handlePorts(w http.ResponseWriter, _ *http.Request) {
	ports, err := port.List()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if ports == nil {
		ports = []port.Info{}
	}
	writeJSON(w, map[string]any{"ports": ports})
}

func (a *App) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Port string `json:"port"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Port == "" {
		req.Port = a.getConfig().Serial.Port
	}

	st, err := a.engine.Connect(req.Port)
	if errors.Is(err, monitor.ErrEmptyPort) {
		jsonError(w, "port identifier required", http.StatusBadRequest)
		return
	}
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": err.Error(), "status": st})
		return
	}
	writeJSON(w, map[string]any{"ok": true, "status": st})
}

func (a *App) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	st := a.engine.Disconnect()
	writeJSON(w, map[string]any{"ok": true, "status": st})
}

// ---------------------------------------------------------------------------
// History and display
// ---------------------------------------------------------------------------

func (a *App) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, a.engine.Latest())
}

func (a *App) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	a.engine.Clear()
	a.logf("info", "history cleared")
	writeJSON(w, map[string]any{"ok": true})
}

func (a *App) handleCapacity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Capacity int `json:"capacity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := a.engine.SetCapacity(req.Capacity); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	a.logf("info", "history capacity set to %d", req.Capacity)
	writeJSON(w, map[string]any{"ok": true, "capacity": req.Capacity})
}

func (a *App) handleThresholds(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		snap := a.engine.Latest()
		vals := make([]int, wire.NumChannels)
		for i, ch := range snap.Channels {
			vals[i] = ch.Threshold
		}
		writeJSON(w, map[string]any{"thresholds": vals})

	case http.MethodPost:
		var req struct {
			Thresholds []int `json:"thresholds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "bad request: "+err.Error(), http.StatusBadRequest)
			return
		}
		if len(req.Thresholds) != wire.NumChannels {
			jsonError(w, fmt.Sprintf("exactly %d thresholds required", wire.NumChannels), http.StatusBadRequest)
			return
		}
		var t [wire.NumChannels]int
		copy(t[:], req.Thresholds)
		if err := a.engine.SetThresholds(t); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{"ok": true, "thresholds": req.Thresholds})

	default:
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (a *App) handleChannels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"channels": wire.Channels})
}

// ---------------------------------------------------------------------------
// Recording
// ---------------------------------------------------------------------------

func (a *App) handleRecordStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Dir string `json:"dir"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Dir == "" {
		req.Dir = a.getConfig().Recording.Dir
	}

	session, err := a.engine.StartRecording(req.Dir)
	if errors.Is(err, monitor.ErrRecording) {
		jsonError(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	a.broadcastRecording()
	a.logf("info", "recording started: %s", session.Path)
	writeJSON(w, map[string]any{"ok": true, "session": session})
}

func (a *App) handleRecordStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st := a.engine.StopRecording()
	a.broadcastRecording()
	if st.Session.ID != "" {
		a.logf("info", "recording stopped: %s (%d rows)", st.Session.Path, st.Rows)
	}
	writeJSON(w, map[string]any{"ok": true, "recorder": st})
}

func (a *App) handleRecordings(w http.ResponseWriter, r *http.Request) {
	cfg := a.getConfig()

	if r.Method == http.MethodDelete {
		name := r.URL.Query().Get("name")
		if name == "" {
			jsonError(w, "name parameter required", http.StatusBadRequest)
			return
		}
		// Prevent path traversal.
		if strings.Contains(name, "/") || strings.Contains(name, "..") {
			jsonError(w, "invalid filename", http.StatusBadRequest)
			return
		}
		path := filepath.Join(cfg.Recording.Dir, name)
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				jsonError(w, "file not found", http.StatusNotFound)
			} else {
				jsonError(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		a.logf("info", "deleted recording %s", name)
		writeJSON(w, map[string]any{"ok": true, "message": "deleted " + name})
		return
	}

	files, err := record.List(cfg.Recording.Dir)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if files == nil {
		files = []record.FileInfo{}
	}
	writeJSON(w, map[string]any{"recordings": files})
}

func (a *App) broadcastRecording() {
	a.hub.BroadcastJSON(telemetry.Recording{
		Event:  telemetry.Event{Type: telemetry.EventRecording, TS: telemetry.NowTS()},
		Status: a.engine.Latest().Recorder,
	})
}

// ---------------------------------------------------------------------------
// Device settings
// ---------------------------------------------------------------------------

// settingJSON pairs a firmware key with its stable name for readability.
type settingJSON struct {
	Key   int    `json:"key"`
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func (a *App) handleSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), settingsTimeout)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		settings, err := a.engine.ReadDeviceSettings(ctx)
		if errors.Is(err, monitor.ErrNotConnected) {
			jsonError(w, err.Error(), http.StatusConflict)
			return
		}
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, map[string]any{"settings": settingsToJSON(settings)})

	case http.MethodPost:
		var req struct {
			Settings map[string]int `json:"settings"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "bad request: "+err.Error(), http.StatusBadRequest)
			return
		}
		settings := make(map[int]int, len(req.Settings))
		for k, v := range req.Settings {
			key, err := strconv.Atoi(k)
			if err != nil {
				jsonError(w, "bad setting key "+k, http.StatusBadRequest)
				return
			}
			settings[key] = v
		}

		err := a.engine.WriteDeviceSettings(ctx, settings)
		switch {
		case errors.Is(err, monitor.ErrNotConnected):
			jsonError(w, err.Error(), http.StatusConflict)
		case err != nil:
			jsonError(w, err.Error(), http.StatusBadRequest)
		default:
			a.logf("info", "wrote %d device settings", len(settings))
			writeJSON(w, map[string]any{"ok": true})
		}

	default:
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func settingsToJSON(settings map[int]int) []settingJSON {
	out := make([]settingJSON, 0, len(settings))
	for k := 0; k < device.NumSettings; k++ {
		v, ok := settings[k]
		if !ok {
			continue
		}
		out = append(out, settingJSON{Key: k, Name: device.SettingNames[k], Value: v})
	}
	return out
}

// ---------------------------------------------------------------------------
// Logs
// ---------------------------------------------------------------------------

func (a *App) handleLogs(w http.ResponseWriter, r *http.Request) {
	a.logBufMu.Lock()
	entries := make([]logEntry, len(a.logBuf))
	copy(entries, a.logBuf)
	a.logBufMu.Unlock()

	levelFilter := r.URL.Query().Get("level")
	if levelFilter != "" {
		var filtered []logEntry
		for _, e := range entries {
			if e.Level == levelFilter {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	limitStr := r.URL.Query().Get("limit")
	if limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n < len(entries) {
			entries = entries[len(entries)-n:]
		}
	}
	if entries == nil {
		entries = []logEntry{}
	}

	writeJSON(w, map[string]any{"logs": entries})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":    false,
		"error": msg,
	})
}
