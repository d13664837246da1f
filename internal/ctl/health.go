package ctl

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Health runs the daemon's component-level health checks.
func Health(baseURL string, jsonOut bool) error {
	req, err := http.NewRequest(http.MethodGet, strings.TrimRight(baseURL, "/")+"/healthz", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result struct {
		Healthy bool                      `json:"healthy"`
		Checks  map[string]map[string]any `json:"checks"`
	}
	// 503 still carries a useful body, so decode regardless of status.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return fmt.Errorf("HTTP %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(result)
	}

	fmt.Println()
	if result.Healthy {
		fmt.Println(header("  HEALTHY"))
	} else {
		fmt.Println(colorize(red, "  UNHEALTHY"))
	}
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 44)))
	for name, check := range result.Checks {
		ok, _ := check["ok"].(bool)
		mark := colorize(green, "ok  ")
		if !ok {
			mark = colorize(red, "fail")
		}
		detail := ""
		if e, _ := check["error"].(string); e != "" {
			detail = colorize(dim, e)
		} else if p, _ := check["path"].(string); p != "" {
			detail = colorize(dim, p)
		} else if s, _ := check["state"].(string); s != "" {
			detail = colorize(stateColor(s), s)
		}
		fmt.Printf("  %s %-16s %s\n", mark, name, detail)
	}
	fmt.Println()

	if !result.Healthy {
		return fmt.Errorf("daemon reports unhealthy")
	}
	return nil
}
