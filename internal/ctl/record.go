package ctl

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RecordStartOptions configures the record start command.
type RecordStartOptions struct {
	Dir  string // override the daemon's configured recording directory
	JSON bool
}

// RecordStart begins a new CSV recording session on the daemon.
func RecordStart(baseURL string, opts RecordStartOptions) error {
	var body any
	if opts.Dir != "" {
		body = map[string]string{"dir": opts.Dir}
	}

	var result struct {
		OK      bool `json:"ok"`
		Session struct {
			ID        string    `json:"id"`
			Path      string    `json:"path"`
			StartedAt time.Time `json:"started_at"`
		} `json:"session"`
	}
	if err := postJSON(baseURL, "/api/record/start", body, &result); err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(result)
	}
	fmt.Printf("\n  %s  %s\n  %s %s\n\n",
		colorize(red, "RECORDING"), result.Session.Path,
		colorize(dim, "session"), result.Session.ID)
	return nil
}

// RecordStop ends the active recording session.
func RecordStop(baseURL string, jsonOut bool) error {
	var result struct {
		OK       bool `json:"ok"`
		Recorder struct {
			Rows    uint64 `json:"rows"`
			Failed  bool   `json:"failed"`
			Error   string `json:"error"`
			Session struct {
				Path string `json:"path"`
			} `json:"session"`
		} `json:"recorder"`
	}
	if err := postJSON(baseURL, "/api/record/stop", nil, &result); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(result)
	}

	if result.Recorder.Session.Path == "" {
		fmt.Printf("\n  %s\n\n", colorize(dim, "no recording was active"))
		return nil
	}
	if result.Recorder.Failed {
		fmt.Printf("\n  %s  %s\n  %s\n\n",
			colorize(red, "FAILED"), result.Recorder.Session.Path, result.Recorder.Error)
		return nil
	}
	fmt.Printf("\n  %s  %s (%d rows)\n\n",
		colorize(green, "SAVED"), result.Recorder.Session.Path, result.Recorder.Rows)
	return nil
}

// RecordingsOptions configures the recordings command.
type RecordingsOptions struct {
	Delete string // filename to delete instead of listing
	JSON   bool
}

// Recordings lists or deletes recorded CSV files on the daemon.
func Recordings(baseURL string, opts RecordingsOptions) error {
	baseURL = strings.TrimRight(baseURL, "/")

	if opts.Delete != "" {
		reqURL := baseURL + "/api/recordings?name=" + url.QueryEscape(opts.Delete)
		req, err := http.NewRequest(http.MethodDelete, reqURL, nil)
		if err != nil {
			return err
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		var result struct {
			OK      bool   `json:"ok"`
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		if opts.JSON {
			return printJSON(result)
		}
		if result.OK {
			fmt.Printf("\n  %s  %s\n\n", colorize(green, "DELETED"), result.Message)
		} else {
			fmt.Printf("\n  %s  %s\n\n", colorize(red, "ERROR"), result.Error)
		}
		return nil
	}

	var resp struct {
		Recordings []struct {
			Filename   string    `json:"filename"`
			SizeBytes  int64     `json:"size_bytes"`
			ModifiedAt time.Time `json:"modified_at"`
		} `json:"recordings"`
	}
	if err := getJSON(baseURL, "/api/recordings", &resp); err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  RECORDINGS"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 60)))
	if len(resp.Recordings) == 0 {
		fmt.Println(colorize(dim, "  none"))
		fmt.Println()
		return nil
	}
	for _, f := range resp.Recordings {
		fmt.Printf("  %-38s %9s  %s\n",
			f.Filename,
			formatBytes(f.SizeBytes),
			colorize(dim, f.ModifiedAt.Local().Format("2006-01-02 15:04")))
	}
	fmt.Println()
	return nil
}
