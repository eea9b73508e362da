package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	do(http.MethodGet, adminURL(*baseURL, "/admin/v1/state", nil), 5*time.Second)
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	do(http.MethodPost, adminURL(*baseURL, "/admin/v1/snapshot", nil), 10*time.Second)
}

// resetCmd re-locks a player through the running server.
func resetCmd(args []string) {
	fs := flag.NewFlagSet("progress reset", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	player := fs.String("player", "", "player uuid or name")
	actor := fs.String("actor", "", "name recorded in the audit log (default: $USER)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*player) == "" {
		fmt.Fprintln(os.Stderr, "missing -player")
		os.Exit(2)
	}
	a := strings.TrimSpace(*actor)
	if a == "" {
		a = "admin_cli:" + os.Getenv("USER")
	}
	q := url.Values{"player": {strings.TrimSpace(*player)}, "actor": {a}}
	do(http.MethodPost, adminURL(*baseURL, "/admin/v1/progress/reset", q), 10*time.Second)
}

func adminURL(base, path string, q url.Values) string {
	u := strings.TrimRight(strings.TrimSpace(base), "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func do(method, u string, timeout time.Duration) {
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(2)
	}
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
