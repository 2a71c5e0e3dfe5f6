// Command notify is the cron trigger for deadline reminders: it asks the
// server to compute due notifications and prints what came due.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"

	"github.com/david/grant-assistant/internal/models"
)

type computeResponse struct {
	ComputedAt    time.Time                `json:"computed_at"`
	Notifications []models.DueNotification `json:"notifications"`
	Error         string                   `json:"error"`
}

func main() {
	_ = godotenv.Load()

	baseURL := flag.String("base-url", "http://localhost:8081", "API base URL")
	adminSecretFlag := flag.String("admin-secret", "", "Admin secret (or use ADMIN_SECRET env)")
	at := flag.String("at", "", "Evaluate as of this RFC 3339 time instead of now")
	timeoutSec := flag.Int("timeout-sec", 30, "HTTP timeout in seconds")
	flag.Parse()

	adminSecret := strings.TrimSpace(*adminSecretFlag)
	if adminSecret == "" {
		adminSecret = strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
	}
	if adminSecret == "" {
		exitErr(errors.New("missing admin secret: use -admin-secret or ADMIN_SECRET env"))
	}
	if *timeoutSec <= 0 {
		exitErr(errors.New("timeout-sec must be > 0"))
	}

	client := &http.Client{Timeout: time.Duration(*timeoutSec) * time.Second}
	resp, err := compute(client, *baseURL, adminSecret, *at)
	if err != nil {
		exitErr(err)
	}

	if len(resp.Notifications) == 0 {
		fmt.Printf("No reminders due at %s\n", resp.ComputedAt.Format(time.RFC3339))
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Grant", "Offset (days)", "Deadline"})
	for _, n := range resp.Notifications {
		t.AppendRow(table.Row{n.GrantID, n.Offset, n.DeadlineAt.Format(time.RFC3339)})
	}
	t.Render()
}

func compute(client *http.Client, baseURL, adminSecret, at string) (*computeResponse, error) {
	var body bytes.Buffer
	if at != "" {
		if err := json.NewEncoder(&body).Encode(map[string]string{"now": at}); err != nil {
			return nil, err
		}
	}

	url := strings.TrimRight(baseURL, "/") + "/api/v1/admin/notifications/compute"
	req, err := http.NewRequest(http.MethodPost, url, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Admin-Secret", adminSecret)
	if at != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload computeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if payload.Error == "" {
			return nil, fmt.Errorf("http %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, payload.Error)
	}
	return &payload, nil
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
